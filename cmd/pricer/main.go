package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aluiziolira/go-car-prices/cache"
	"github.com/aluiziolira/go-car-prices/config"
	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/pipeline"
	"github.com/aluiziolira/go-car-prices/registry"
	"github.com/aluiziolira/go-car-prices/scraper"
	"github.com/aluiziolira/go-car-prices/server"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	defaults := config.DefaultConfig()
	plate := flag.String("plate", "", "License plate to value")
	platesFile := flag.String("plates", "", "File with one plate per line to value in batch (- for stdin)")
	brand := flag.String("brand", "", "Vehicle brand, used with -model and -year")
	model := flag.String("model", "", "Vehicle model")
	year := flag.String("year", "", "Model year")
	serve := flag.Bool("serve", false, "Run the HTTP API")
	addr := flag.String("addr", defaults.ListenAddr, "HTTP API listen address (env PORT)")
	configPath := flag.String("config", "", "YAML configuration file")
	outputFormat := flag.String("format", defaults.OutputFormat, "Output format: json, csv, or dual")
	outputFile := flag.String("output", "", "Output file path (default stdout)")
	fetcher := flag.String("fetcher", defaults.Fetcher, "Page fetcher: http or browser (env PRICER_FETCHER)")
	timeout := flag.Duration("timeout", defaults.FetchTimeout, "Per-page fetch timeout (env PRICER_FETCH_TIMEOUT)")
	workers := flag.Int("workers", defaults.Workers, "Concurrent plates in batch mode")
	verbose := flag.Bool("v", false, "Enable verbose logging")

	flag.Parse()

	logger, level := newLogger(*verbose)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level.Level())

	cfg, err := buildConfig(*configPath)
	if err != nil {
		slog.Error("loading configuration", slog.Any("error", err))
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.ListenAddr = *addr
		case "format":
			cfg.OutputFormat = strings.ToLower(*outputFormat)
		case "output":
			cfg.OutputFile = *outputFile
		case "fetcher":
			cfg.Fetcher = strings.ToLower(*fetcher)
		case "timeout":
			cfg.FetchTimeout = *timeout
		case "workers":
			cfg.Workers = *workers
		}
	})
	cfg.Verbose = *verbose
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.RegistryToken == "" {
		slog.Warn("APIPLACAS_TOKEN is not configured, plate lookups will fail")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		slog.Error("initialising", slog.Any("error", err))
		os.Exit(1)
	}

	switch {
	case *serve:
		err = runServer(ctx, cfg, app)
	case *platesFile != "":
		err = runBatch(ctx, cfg, app, *platesFile)
	case *plate != "":
		err = runOne(cfg, func() *models.Estimate { return app.valuer.ValuePlate(ctx, *plate) })
	case *brand != "" && *model != "" && *year != "":
		rec := pipeline.RecordFromDescriptor(*brand, *model, *year)
		err = runOne(cfg, func() *models.Estimate { return app.valuer.ValueRecord(ctx, rec) })
	default:
		fmt.Fprintln(os.Stderr, "one of -serve, -plates, -plate or -brand/-model/-year is required")
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

// buildConfig layers defaults, the optional YAML file and the environment.
func buildConfig(path string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type app struct {
	metrics    *scraper.Metrics
	aggregator *pipeline.Aggregator
	registry   *registry.Client
	valuer     *pipeline.Valuer
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	metrics := scraper.NewMetrics()
	collector := scraper.NewScraper(cfg, scraper.NewFetcher(cfg), metrics, logger)
	aggregator := pipeline.NewAggregator(cfg, collector, scraper.SourcesFromConfig(cfg), metrics, logger)

	store, err := cache.New(cfg)
	if err != nil {
		return nil, err
	}
	if r, ok := store.(*cache.Redis); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := r.Ping(pingCtx)
		cancel()
		if err != nil {
			return nil, err
		}
	}
	client := registry.NewClient(cfg, store, logger)

	return &app{
		metrics:    metrics,
		aggregator: aggregator,
		registry:   client,
		valuer:     pipeline.NewValuer(client, aggregator),
	}, nil
}

func runServer(ctx context.Context, cfg *config.Config, a *app) error {
	srv := server.New(a.registry, a.aggregator, a.metrics.Registry, slog.Default()).HTTPServer(cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	slog.Info("api listening", slog.String("addr", cfg.ListenAddr))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining requests")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runOne(cfg *config.Config, estimate func() *models.Estimate) error {
	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return err
	}

	startTime := time.Now()
	est := estimate()
	if err := writer.Write([]*models.Estimate{est}); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	printEstimate(est, time.Since(startTime))
	if est.Error != "" {
		return errors.New(est.Error)
	}
	return nil
}

func runBatch(ctx context.Context, cfg *config.Config, a *app, path string) error {
	plates, err := readPlates(path)
	if err != nil {
		return err
	}

	writer, err := createWriter(cfg.OutputFormat, cfg.OutputFile)
	if err != nil {
		return err
	}
	defer func() {
		if err := writer.Close(); err != nil {
			slog.Error("close writer", slog.Any("error", err))
		}
	}()

	p := pipeline.NewPipeline(ctx, a.valuer, writer, cfg, slog.Default())
	p.Start(cfg.Workers)
	if cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	startTime := time.Now()
	if err := p.Process(plates...); err != nil {
		return err
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("pipeline shutdown: %w", err)
	}
	if err := writer.Validate(); err != nil {
		return fmt.Errorf("output validation: %w", err)
	}

	printSummary(p.GetMetrics(), len(plates), time.Since(startTime), cfg.OutputFile)
	return nil
}

func readPlates(path string) ([]string, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open plates file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var plates []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		plates = append(plates, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read plates: %w", err)
	}
	return plates, nil
}

func createWriter(format, filename string) (pipeline.OutputWriter, error) {
	switch format {
	case "json":
		return pipeline.NewJSONWriter(filename)
	case "csv":
		return pipeline.NewCSVWriter(filename)
	case "dual":
		base := strings.TrimSuffix(strings.TrimSuffix(filename, ".csv"), ".jsonl")
		return pipeline.NewDualWriter(base+".csv", base+".jsonl")
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}

func printEstimate(est *models.Estimate, duration time.Duration) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(os.Stderr, "\n"+separator)
	fmt.Fprintf(os.Stderr, "  Vehicle:       %s %s %s\n", est.Brand, est.Model, est.Year)
	if est.Plate != "" {
		fmt.Fprintf(os.Stderr, "  Plate:         %s\n", est.Plate)
	}
	if est.Error != "" {
		fmt.Fprintf(os.Stderr, "  Error:         %s\n", est.Error)
	}
	if res := est.Prices; res != nil {
		fmt.Fprintf(os.Stderr, "  Source:        %s\n", res.Provenance)
		if stats := res.Statistics; stats != nil {
			fmt.Fprintf(os.Stderr, "  Samples:       %d\n", stats.Count)
			fmt.Fprintf(os.Stderr, "  Mean:          %.2f\n", stats.Mean)
			fmt.Fprintf(os.Stderr, "  Median:        %.2f\n", stats.Median)
			fmt.Fprintf(os.Stderr, "  Range:         %.2f - %.2f\n", stats.Min, stats.Max)
			fmt.Fprintf(os.Stderr, "  Std dev:       %.2f\n", stats.StdDev)
		} else if res.Message != "" {
			fmt.Fprintf(os.Stderr, "  Message:       %s\n", res.Message)
		}
		fmt.Fprintf(os.Stderr, "  Warnings:      %d\n", len(res.Warnings))
	}
	fmt.Fprintf(os.Stderr, "  Duration:      %v\n", duration)
	fmt.Fprintln(os.Stderr, separator)
}

func printSummary(metrics map[string]interface{}, requested int, duration time.Duration, outputFile string) {
	separator := "--------------------------------------------------"
	fmt.Fprintln(os.Stderr, "\n"+separator)
	fmt.Fprintln(os.Stderr, "Batch complete")
	fmt.Fprintf(os.Stderr, "  Plates:        %d\n", requested)
	if estimated, ok := metrics["estimated"].(int64); ok {
		fmt.Fprintf(os.Stderr, "  Estimated:     %d\n", estimated)
	}
	if failed, ok := metrics["failed"].(int64); ok {
		fmt.Fprintf(os.Stderr, "  Failed:        %d\n", failed)
	}
	if rejected, ok := metrics["rejected"].(map[string]int); ok && len(rejected) > 0 {
		fmt.Fprintf(os.Stderr, "  Rejected:      %v\n", rejected)
	}
	fmt.Fprintf(os.Stderr, "  Duration:      %v\n", duration)
	if outputFile != "" {
		fmt.Fprintf(os.Stderr, "  Output file:   %s\n", outputFile)
	}
	fmt.Fprintln(os.Stderr, separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stderr) {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
