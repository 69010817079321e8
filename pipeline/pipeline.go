package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aluiziolira/go-car-prices/config"
	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/parser"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for estimate output.
type OutputWriter interface {
	Write(estimates []*models.Estimate) error
	Close() error
	Validate() error
}

// Estimator values one plate.
type Estimator interface {
	ValuePlate(ctx context.Context, plate string) *models.Estimate
}

// Pipeline values a stream of plates with a worker pool and writes the
// estimates in batches. Plates are de-duplicated after normalization.
type Pipeline struct {
	ctx       context.Context
	estimator Estimator
	writer    OutputWriter
	plateCh   chan string
	batchSize int
	logger    *slog.Logger

	wg sync.WaitGroup

	seen   map[string]struct{}
	seenMu sync.Mutex

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error

	closeOnce    sync.Once
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewPipeline builds a pipeline sized from cfg. Estimation stops early when
// ctx is cancelled.
func NewPipeline(ctx context.Context, estimator Estimator, writer OutputWriter, cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Pipeline{
		ctx:       ctx,
		estimator: estimator,
		writer:    writer,
		plateCh:   make(chan string, 4*batchSize),
		batchSize: batchSize,
		logger:    logger,
		seen:      make(map[string]struct{}),
		metrics:   newMetrics(),
		shutdown:  make(chan struct{}),
	}
}

// Start launches worker goroutines.
func (p *Pipeline) Start(workers int) {
	if workers <= 0 {
		workers = 1
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// Process enqueues plates for valuation.
func (p *Pipeline) Process(plates ...string) error {
	if len(plates) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	for _, plate := range plates {
		normalized := p.admit(plate)
		if normalized == "" {
			continue
		}
		if err := p.enqueue(normalized); err != nil {
			return err
		}
	}
	return nil
}

// Close waits for workers to drain the queue and prevents more submissions.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
	}
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.plateCh)
	})

	p.wg.Wait()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

// StartMetricsReporting emits periodic progress logs.
func (p *Pipeline) StartMetricsReporting(interval time.Duration) {
	if interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				metrics := p.GetMetrics()
				p.logger.Info("pipeline progress",
					slog.Int64("estimated", metrics["estimated"].(int64)),
					slog.Int64("failed", metrics["failed"].(int64)),
					slog.Any("rejected", metrics["rejected"]),
				)
			case <-p.shutdown:
				return
			}
		}
	}()
}

func (p *Pipeline) worker() {
	defer p.wg.Done()

	batch := make([]*models.Estimate, 0, p.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := p.writer.Write(batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for plate := range p.plateCh {
		if p.ctx.Err() != nil {
			p.metrics.addRejected("canceled")
			continue
		}
		est := p.estimator.ValuePlate(p.ctx, plate)
		if est == nil {
			continue
		}
		if est.Error != "" {
			p.metrics.incrementFailed()
			p.logger.Warn("plate not valued", slog.String("plate", plate), slog.String("error", est.Error))
		} else {
			p.metrics.incrementEstimated()
		}
		batch = append(batch, est)
		if len(batch) >= p.batchSize {
			if err := flush(); err != nil {
				p.setErr(fmt.Errorf("write batch: %w", err))
				return
			}
		}
	}

	if err := flush(); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
	}
}

// admit normalizes plate and records it, returning "" for rejects.
func (p *Pipeline) admit(plate string) string {
	normalized := parser.NormalizePlate(plate)
	if normalized == "" {
		p.metrics.addRejected("empty_plate")
		return ""
	}

	p.seenMu.Lock()
	defer p.seenMu.Unlock()
	if _, ok := p.seen[normalized]; ok {
		p.metrics.addRejected("duplicate_plate")
		return ""
	}
	p.seen[normalized] = struct{}{}
	return normalized
}

func (p *Pipeline) enqueue(plate string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrPipelineClosed
		}
	}()

	select {
	case <-p.shutdown:
		return ErrPipelineClosed
	case p.plateCh <- plate:
		return nil
	}
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	if p.err != nil {
		p.mu.Unlock()
		return
	}
	p.err = err
	p.closed = true
	p.mu.Unlock()

	p.signalShutdown()
	p.closeOnce.Do(func() {
		close(p.plateCh)
	})
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

func (p *Pipeline) signalShutdown() {
	p.shutdownOnce.Do(func() {
		close(p.shutdown)
	})
}

type metrics struct {
	mu        sync.Mutex
	estimated int64
	failed    int64
	rejected  map[string]int
}

func newMetrics() metrics {
	return metrics{
		rejected: make(map[string]int),
	}
}

func (m *metrics) incrementEstimated() {
	m.mu.Lock()
	m.estimated++
	m.mu.Unlock()
}

func (m *metrics) incrementFailed() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *metrics) addRejected(kind string) {
	m.mu.Lock()
	m.rejected[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyRejected := make(map[string]int, len(m.rejected))
	for k, v := range m.rejected {
		copyRejected[k] = v
	}

	return map[string]interface{}{
		"estimated": m.estimated,
		"failed":    m.failed,
		"rejected":  copyRejected,
	}
}
