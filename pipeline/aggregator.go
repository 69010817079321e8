package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aluiziolira/go-car-prices/config"
	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/parser"
	"github.com/aluiziolira/go-car-prices/scraper"
)

const (
	msgNoPrices       = "Nenhum preço encontrado"
	msgAggregateError = "Erro ao buscar preços"
)

// SourceCollector gathers samples from one source for a descriptor.
type SourceCollector interface {
	Collect(ctx context.Context, src scraper.Source, desc models.Descriptor) models.SourceResult
}

// Aggregator fans a descriptor out to every source, merges the samples and
// derives the reported statistics.
type Aggregator struct {
	collector  SourceCollector
	sources    []scraper.Source
	priceRange parser.PriceRange
	metrics    *scraper.Metrics
	logger     *slog.Logger
}

// NewAggregator builds an aggregator over sources. A nil logger uses
// slog.Default.
func NewAggregator(cfg *config.Config, collector SourceCollector, sources []scraper.Source, metrics *scraper.Metrics, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		collector:  collector,
		sources:    sources,
		priceRange: parser.PriceRange{Min: cfg.MinPrice, Max: cfg.MaxPrice},
		metrics:    metrics,
		logger:     logger,
	}
}

// Aggregate estimates the market price of the vehicle in rec. It never
// returns an error: failures are reported through Success, Message and
// Error on the result.
func (a *Aggregator) Aggregate(ctx context.Context, rec models.VehicleRecord) (result *models.AggregationResult) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("aggregation panicked", slog.Any("panic", r))
			result = failure(fmt.Errorf("internal error: %v", r))
		}
		a.metrics.IncAggregation(string(result.Provenance))
	}()

	desc := parser.NewDescriptor(rec)
	table, err := parser.DecodeReferenceTable(rec)
	if err != nil {
		a.logger.Error("reference table rejected", slog.Any("error", err))
		return failure(err)
	}
	reference := parser.ReferencePrices(table, a.priceRange)
	if reference == nil {
		reference = []float64{}
	}

	a.logger.Info("aggregation started",
		slog.String("brand", desc.Brand),
		slog.String("model", desc.Model),
		slog.String("year", desc.Year),
		slog.Int("terms", len(desc.Terms)),
	)

	collected := a.collect(ctx, desc)

	result = &models.AggregationResult{Prices: models.NewPrices()}
	var live []float64
	for _, sr := range collected {
		result.Prices.SetSource(sr.Source, sr.Samples)
		live = append(live, sr.Samples...)
		result.Warnings = append(result.Warnings, sr.Warnings...)
	}

	if len(live) == 0 {
		if len(reference) == 0 {
			result.Message = msgNoPrices
			a.logger.Warn("no prices found", slog.Int("warnings", len(result.Warnings)))
			return result
		}
		result.Success = true
		result.Provenance = models.ProvenanceReference
		result.Prices.Reference = reference
		result.Prices.All = reference
		result.Statistics = ComputeStatistics(reference)
		a.logFinished(result, 0)
		return result
	}

	filtered := RemoveOutliers(live)
	combined := filtered
	if len(reference) > 0 {
		combined = append(slices.Clip(filtered), reference...)
	}

	result.Success = true
	result.Provenance = models.ProvenanceLive
	result.Prices.Reference = reference
	result.Prices.All = combined
	result.Statistics = ComputeStatistics(combined)
	a.logFinished(result, len(live)-len(filtered))
	return result
}

// collect runs every source concurrently. Each goroutine owns one slot of
// the returned slice.
func (a *Aggregator) collect(ctx context.Context, desc models.Descriptor) []models.SourceResult {
	results := make([]models.SourceResult, len(a.sources))

	var wg sync.WaitGroup
	for i, src := range a.sources {
		wg.Add(1)
		go func(i int, src scraper.Source) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					a.logger.Error("source collection panicked", slog.String("source", src.Label), slog.Any("panic", r))
					results[i] = models.SourceResult{
						Source: src.Name,
						Warnings: []models.Warning{{
							Source:   src.Name,
							Category: "panic",
							Message:  fmt.Sprint(r),
						}},
					}
				}
			}()
			results[i] = a.collector.Collect(ctx, src, desc)
		}(i, src)
	}
	wg.Wait()

	return results
}

func (a *Aggregator) logFinished(result *models.AggregationResult, outliers int) {
	attrs := []any{
		slog.String("provenance", string(result.Provenance)),
		slog.Int("olx", len(result.Prices.OLX)),
		slog.Int("webmotors", len(result.Prices.Webmotors)),
		slog.Int("reference", len(result.Prices.Reference)),
		slog.Int("outliers", outliers),
		slog.Int("warnings", len(result.Warnings)),
	}
	if result.Statistics != nil {
		attrs = append(attrs,
			slog.Float64("mean", result.Statistics.Mean),
			slog.Float64("median", result.Statistics.Median),
		)
	}
	a.logger.Info("aggregation finished", attrs...)
}

func failure(err error) *models.AggregationResult {
	return &models.AggregationResult{
		Message: msgAggregateError,
		Error:   err.Error(),
		Prices:  models.NewPrices(),
	}
}
