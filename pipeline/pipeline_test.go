package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aluiziolira/go-car-prices/config"
	"github.com/aluiziolira/go-car-prices/models"
)

type mockWriter struct {
	mu          sync.Mutex
	batches     [][]*models.Estimate
	closed      bool
	writeErr    error
	validateErr error
}

func (mw *mockWriter) Write(estimates []*models.Estimate) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]*models.Estimate, len(estimates))
	copy(copyBatch, estimates)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.mu.Lock()
	mw.closed = true
	mw.mu.Unlock()
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) totalWritten() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	total := 0
	for _, batch := range mw.batches {
		total += len(batch)
	}
	return total
}

func (mw *mockWriter) batchSizes() []int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	sizes := make([]int, 0, len(mw.batches))
	for _, batch := range mw.batches {
		sizes = append(sizes, len(batch))
	}
	return sizes
}

func (mw *mockWriter) plates() []string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	var plates []string
	for _, batch := range mw.batches {
		for _, est := range batch {
			plates = append(plates, est.Plate)
		}
	}
	sort.Strings(plates)
	return plates
}

// stubEstimator fails plates listed in failures and values the rest.
type stubEstimator struct {
	failures map[string]string
}

func (se *stubEstimator) ValuePlate(_ context.Context, plate string) *models.Estimate {
	est := &models.Estimate{Plate: plate, EstimatedAt: time.Unix(0, 0).UTC()}
	if msg, ok := se.failures[plate]; ok {
		est.Error = msg
		return est
	}
	est.Prices = &models.AggregationResult{Success: true, Provenance: models.ProvenanceLive}
	return est
}

func TestPipelineProcessDedupAndFailures(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	estimator := &stubEstimator{failures: map[string]string{"XYZ9Z99": "Placa não encontrada ou inválida"}}
	p := NewPipeline(context.Background(), estimator, writer, cfg, nil)
	p.Start(2)

	if err := p.Process("abc1234", "ABC 1234", "XYZ9Z99", "  "); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.plates(); len(got) != 2 || got[0] != "ABC1234" || got[1] != "XYZ9Z99" {
		t.Fatalf("plates=%v, want [ABC1234 XYZ9Z99]", got)
	}

	metrics := p.GetMetrics()
	if metrics["estimated"].(int64) != 1 || metrics["failed"].(int64) != 1 {
		t.Fatalf("metrics=%v", metrics)
	}
	rejected, ok := metrics["rejected"].(map[string]int)
	if !ok {
		t.Fatalf("expected rejected map")
	}
	if rejected["duplicate_plate"] != 1 || rejected["empty_plate"] != 1 {
		t.Fatalf("rejected=%v", rejected)
	}
}

func TestPipelineBatchFlushThreshold(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 8
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), &stubEstimator{}, writer, cfg, nil)
	p.Start(1)

	for i := 0; i < 9; i++ {
		if err := p.Process(fmt.Sprintf("ABC%04d", i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	sizes := writer.batchSizes()
	if len(sizes) != 2 || sizes[0] != 8 || sizes[1] != 1 {
		t.Fatalf("batch sizes = %v, want [8 1]", sizes)
	}
}

func TestPipelineCloseDrainsPendingItems(t *testing.T) {
	cfg := config.DefaultConfig()
	writer := &mockWriter{}
	p := NewPipeline(context.Background(), &stubEstimator{}, writer, cfg, nil)
	p.Start(4)

	for i := 0; i < 100; i++ {
		if err := p.Process(fmt.Sprintf("ABC%04d", i)); err != nil {
			t.Fatalf("process: %v", err)
		}
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 100 {
		t.Fatalf("written estimates = %d, want 100", got)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p := NewPipeline(context.Background(), &stubEstimator{}, &mockWriter{}, config.DefaultConfig(), nil)
	p.Start(1)
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process("ABC1234"); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("err=%v, want ErrPipelineClosed", err)
	}
}

func TestPipelineWriteErrorSurfaces(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BatchSize = 1
	writer := &mockWriter{writeErr: errors.New("disk full")}
	p := NewPipeline(context.Background(), &stubEstimator{}, writer, cfg, nil)
	p.Start(1)

	_ = p.Process("ABC1234")
	err := p.Close()
	if err == nil || !errors.Is(err, writer.writeErr) {
		t.Fatalf("close err=%v, want wrapped write error", err)
	}
}

func TestPipelineCanceledContextSkipsEstimation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	writer := &mockWriter{}
	p := NewPipeline(ctx, &stubEstimator{}, writer, config.DefaultConfig(), nil)
	p.Start(1)
	if err := p.Process("ABC1234", "DEF5678"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	if got := writer.totalWritten(); got != 0 {
		t.Fatalf("written=%d after cancel, want 0", got)
	}
	if rejected := p.GetMetrics()["rejected"].(map[string]int); rejected["canceled"] != 2 {
		t.Fatalf("rejected=%v", rejected)
	}
}
