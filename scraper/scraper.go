package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-car-prices/config"
	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/parser"
)

// Scraper collects price samples from one source at a time. Candidate URLs
// are fetched sequentially because each result decides whether the loop
// continues.
type Scraper struct {
	cfg       *config.Config
	fetcher   Fetcher
	extractor *Extractor
	Metrics   *Metrics
	logger    *slog.Logger
}

// NewScraper builds a scraper over fetcher. A nil logger uses slog.Default.
func NewScraper(cfg *config.Config, fetcher Fetcher, metrics *Metrics, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: NewExtractor(parser.PriceRange{Min: cfg.MinPrice, Max: cfg.MaxPrice}, cfg.MinNewPerStrategy),
		Metrics:   metrics,
		logger:    logger,
	}
}

// Collect tries the source's direct listing URLs, then free-text searches
// when the direct pass came up short. Failed fetches become warnings.
func (s *Scraper) Collect(ctx context.Context, src Source, desc models.Descriptor) models.SourceResult {
	set := NewSampleSet(s.cfg.MaxSamplesPerSource)
	result := models.SourceResult{Source: src.Name}

	for _, candidate := range src.DirectURLs(desc.Brand, desc.Model, desc.Year) {
		if set.Full() || ctx.Err() != nil {
			break
		}
		s.visit(ctx, src, candidate, set, &result)
		if set.Len() >= s.cfg.GoodEnoughSamples {
			break
		}
	}

	if set.Len() < s.cfg.FallbackThreshold && len(desc.Terms) > 0 {
		for _, candidate := range src.SearchURLs(desc.Terms, desc.Year, s.cfg.MaxSearchQueries) {
			if set.Len() >= s.cfg.SearchSampleBudget || set.Full() || ctx.Err() != nil {
				break
			}
			s.visit(ctx, src, candidate, set, &result)
			if set.Len() >= s.cfg.GoodEnoughSamples {
				break
			}
		}
	}

	result.Samples = set.Values()
	s.logger.Info("source collection finished",
		slog.String("source", src.Label),
		slog.Int("samples", len(result.Samples)),
		slog.Int("fetches", result.Fetches),
		slog.Int("warnings", len(result.Warnings)),
	)
	return result
}

func (s *Scraper) visit(ctx context.Context, src Source, candidate string, set *SampleSet, result *models.SourceResult) {
	result.Fetches++
	before := set.Len()

	start := time.Now()
	body, err := s.fetcher.Fetch(ctx, candidate)
	s.Metrics.ObserveFetch(src.Name, time.Since(start))
	if err != nil {
		s.skip(src, candidate, errorTypeLabel(err), err, result)
		return
	}

	extraction, err := s.extractor.Extract(body, src, set)
	if err != nil {
		s.skip(src, candidate, "parse", err, result)
		return
	}
	s.Metrics.IncFetch(src.Name, "ok")
	s.Metrics.AddSamples(src.Name, extraction.Total())

	s.logger.Debug("candidate page extracted",
		slog.String("source", src.Label),
		slog.String("url", candidate),
		slog.Int("selector", extraction.Selector),
		slog.Int("regex", extraction.Regex),
		slog.Int("links", extraction.Links),
		slog.Int("added", set.Len()-before),
		slog.Int("total", set.Len()),
	)
}

func (s *Scraper) skip(src Source, candidate, category string, err error, result *models.SourceResult) {
	s.Metrics.IncFetch(src.Name, "skipped")
	s.Metrics.IncError(category)
	s.logger.Warn("candidate page skipped",
		slog.String("source", src.Label),
		slog.String("url", candidate),
		slog.String("category", category),
		slog.Any("error", err),
	)
	result.Warnings = append(result.Warnings, models.Warning{
		Source:   src.Name,
		URL:      candidate,
		Category: category,
		Message:  err.Error(),
	})
}
