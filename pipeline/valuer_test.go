package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/aluiziolira/go-car-prices/models"
)

type stubRegistry struct {
	result *models.LookupResult
	err    error
	plates []string
}

func (sr *stubRegistry) Lookup(_ context.Context, plate string) (*models.LookupResult, error) {
	sr.plates = append(sr.plates, plate)
	return sr.result, sr.err
}

type stubAggregator struct {
	records []models.VehicleRecord
}

func (sa *stubAggregator) Aggregate(_ context.Context, rec models.VehicleRecord) *models.AggregationResult {
	sa.records = append(sa.records, rec)
	return &models.AggregationResult{Success: true, Provenance: models.ProvenanceLive, Prices: models.NewPrices()}
}

func TestValuePlate(t *testing.T) {
	registry := &stubRegistry{result: &models.LookupResult{
		Success: true,
		Data:    models.VehicleRecord{"MARCA": "VW", "MODELO": "GOL", "ano": "2010"},
	}}
	aggregator := &stubAggregator{}

	est := NewValuer(registry, aggregator).ValuePlate(context.Background(), "abc 1234")

	if est.Plate != "ABC1234" || est.Brand != "VW" || est.Model != "GOL" || est.Year != "2010" {
		t.Fatalf("estimate=%+v", est)
	}
	if est.Error != "" || est.Prices == nil || !est.Prices.Success {
		t.Fatalf("estimate=%+v, want priced", est)
	}
	if len(aggregator.records) != 1 {
		t.Fatalf("aggregations=%d, want 1", len(aggregator.records))
	}
	if est.EstimatedAt.IsZero() {
		t.Fatalf("estimated_at not set")
	}
}

func TestValuePlateLookupFailures(t *testing.T) {
	tests := []struct {
		name     string
		registry *stubRegistry
		expected string
	}{
		{
			name:     "transport error",
			registry: &stubRegistry{err: errors.New("dial tcp: connection refused")},
			expected: "dial tcp: connection refused",
		},
		{
			name:     "not found",
			registry: &stubRegistry{result: &models.LookupResult{Error: "Placa não encontrada ou inválida"}},
			expected: "Placa não encontrada ou inválida",
		},
		{
			name:     "message only",
			registry: &stubRegistry{result: &models.LookupResult{Message: "Sem resultados"}},
			expected: "Sem resultados",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			aggregator := &stubAggregator{}
			est := NewValuer(tt.registry, aggregator).ValuePlate(context.Background(), "ABC1234")
			if est.Error != tt.expected {
				t.Fatalf("error=%q, want %q", est.Error, tt.expected)
			}
			if est.Prices != nil || len(aggregator.records) != 0 {
				t.Fatalf("aggregated despite lookup failure")
			}
		})
	}
}

func TestValuePlateWithoutRegistry(t *testing.T) {
	est := NewValuer(nil, &stubAggregator{}).ValuePlate(context.Background(), "ABC1234")
	if est.Error == "" {
		t.Fatalf("expected error without registry")
	}
}

func TestValueRecord(t *testing.T) {
	aggregator := &stubAggregator{}
	est := NewValuer(nil, aggregator).ValueRecord(context.Background(), RecordFromDescriptor("Fiat", "Uno", "2015"))

	if est.Brand != "Fiat" || est.Model != "Uno" || est.Year != "2015" || est.Plate != "" {
		t.Fatalf("estimate=%+v", est)
	}
	if est.Prices == nil {
		t.Fatalf("prices missing")
	}
}
