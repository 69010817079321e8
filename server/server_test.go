package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/registry"
	"github.com/aluiziolira/go-car-prices/scraper"
)

type stubRegistry struct {
	lookup     *models.LookupResult
	lookupErr  error
	balance    *registry.BalanceResult
	balanceErr error
}

func (sr *stubRegistry) Lookup(context.Context, string) (*models.LookupResult, error) {
	return sr.lookup, sr.lookupErr
}

func (sr *stubRegistry) Balance(context.Context) (*registry.BalanceResult, error) {
	return sr.balance, sr.balanceErr
}

type stubAggregator struct {
	records []models.VehicleRecord
	panics  bool
}

func (sa *stubAggregator) Aggregate(_ context.Context, rec models.VehicleRecord) *models.AggregationResult {
	if sa.panics {
		panic("boom")
	}
	sa.records = append(sa.records, rec)
	return &models.AggregationResult{
		Success:    true,
		Provenance: models.ProvenanceLive,
		Prices:     models.NewPrices(),
		Statistics: &models.PriceStatistics{Count: 1, Mean: 27000, Median: 27000, Min: 27000, Max: 27000},
	}
}

func serve(t *testing.T, s *Server, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode %s: %v (%s)", target, err, rec.Body.String())
		}
	}
	return rec, body
}

func TestHealthAndIndex(t *testing.T) {
	s := New(&stubRegistry{}, &stubAggregator{}, nil, nil)

	rec, body := serve(t, s, "/health")
	if rec.Code != http.StatusOK || body["status"] != "OK" {
		t.Fatalf("health: %d %v", rec.Code, body)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatalf("request id header missing")
	}

	rec, body = serve(t, s, "/")
	if rec.Code != http.StatusOK || body["endpoints"] == nil {
		t.Fatalf("index: %d %v", rec.Code, body)
	}
}

func TestLookupPlateAttachesPrices(t *testing.T) {
	reg := &stubRegistry{lookup: &models.LookupResult{
		Success: true,
		Data:    models.VehicleRecord{"MARCA": "VW", "MODELO": "GOL", "ano": "2010"},
	}}
	agg := &stubAggregator{}
	s := New(reg, agg, nil, nil)

	rec, body := serve(t, s, "/api/placas/ABC1234")
	if rec.Code != http.StatusOK || body["success"] != true {
		t.Fatalf("lookup: %d %v", rec.Code, body)
	}
	data := body["data"].(map[string]any)
	prices, ok := data["precosMedio"].(map[string]any)
	if !ok || prices["fonte"] != "OLX/Webmotors" {
		t.Fatalf("precosMedio=%v", data["precosMedio"])
	}
	if data["MARCA"] != "VW" || len(agg.records) != 1 {
		t.Fatalf("data=%v aggregations=%d", data, len(agg.records))
	}
	if _, leaked := reg.lookup.Data["precosMedio"]; leaked {
		t.Fatalf("registry record was mutated")
	}
}

func TestLookupPlateErrors(t *testing.T) {
	tests := []struct {
		name     string
		registry *stubRegistry
		status   int
		errMsg   string
	}{
		{
			name:     "invalid plate",
			registry: &stubRegistry{lookupErr: registry.ErrInvalidPlate},
			status:   http.StatusBadRequest,
			errMsg:   "Placa inválida",
		},
		{
			name:     "transport failure",
			registry: &stubRegistry{lookupErr: errors.New("connection reset")},
			status:   http.StatusBadGateway,
			errMsg:   "Erro ao consultar placa",
		},
		{
			name:     "not found",
			registry: &stubRegistry{lookup: &models.LookupResult{Error: "Placa não encontrada ou inválida", StatusCode: http.StatusNotFound}},
			status:   http.StatusNotFound,
			errMsg:   "Placa não encontrada ou inválida",
		},
		{
			name:     "quota exhausted",
			registry: &stubRegistry{lookup: &models.LookupResult{Error: "Limite de consultas atingido", StatusCode: http.StatusTooManyRequests}},
			status:   http.StatusTooManyRequests,
			errMsg:   "Limite de consultas atingido",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := &stubAggregator{}
			rec, body := serve(t, New(tt.registry, agg, nil, nil), "/api/placas/ABC1234")
			if rec.Code != tt.status || body["error"] != tt.errMsg || body["success"] != false {
				t.Fatalf("got %d %v, want %d %q", rec.Code, body, tt.status, tt.errMsg)
			}
			if len(agg.records) != 0 {
				t.Fatalf("aggregated despite lookup failure")
			}
		})
	}
}

func TestSearchPrices(t *testing.T) {
	agg := &stubAggregator{}
	s := New(&stubRegistry{}, agg, nil, nil)

	rec, body := serve(t, s, "/api/placas/precos/buscar?marca=VW&modelo=GOL&ano=2010")
	if rec.Code != http.StatusOK || body["success"] != true || body["estatisticas"] == nil {
		t.Fatalf("search: %d %v", rec.Code, body)
	}
	if len(agg.records) != 1 || agg.records[0]["marca"] != "VW" || agg.records[0]["ano"] != "2010" {
		t.Fatalf("records=%v", agg.records)
	}

	rec, body = serve(t, s, "/api/placas/precos/buscar?marca=VW&modelo=GOL")
	if rec.Code != http.StatusBadRequest || body["success"] != false {
		t.Fatalf("missing year: %d %v", rec.Code, body)
	}
}

func TestBalance(t *testing.T) {
	s := New(&stubRegistry{balance: &registry.BalanceResult{
		Success: true,
		Payload: map[string]any{"success": true, "data": map[string]any{"saldo": 42.0}},
	}}, &stubAggregator{}, nil, nil)

	rec, body := serve(t, s, "/api/placas/saldo/consultar")
	if rec.Code != http.StatusOK || body["data"].(map[string]any)["saldo"] != 42.0 {
		t.Fatalf("balance: %d %v", rec.Code, body)
	}

	s = New(&stubRegistry{balance: &registry.BalanceResult{Error: "Erro ao consultar saldo", StatusCode: http.StatusPaymentRequired}}, &stubAggregator{}, nil, nil)
	rec, body = serve(t, s, "/api/placas/saldo/consultar")
	if rec.Code != http.StatusPaymentRequired || body["error"] != "Erro ao consultar saldo" {
		t.Fatalf("balance failure: %d %v", rec.Code, body)
	}
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	rec, body := serve(t, New(&stubRegistry{}, &stubAggregator{}, nil, nil), "/api/outra/coisa")
	if rec.Code != http.StatusNotFound || body["error"] != "Rota não encontrada" {
		t.Fatalf("not found: %d %v", rec.Code, body)
	}
}

func TestPanicRecovered(t *testing.T) {
	reg := &stubRegistry{lookup: &models.LookupResult{Success: true, Data: models.VehicleRecord{"MARCA": "VW"}}}
	rec, body := serve(t, New(reg, &stubAggregator{panics: true}, nil, nil), "/api/placas/ABC1234")
	if rec.Code != http.StatusInternalServerError || body["error"] != "Erro interno do servidor" {
		t.Fatalf("panic: %d %v", rec.Code, body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics := scraper.NewMetrics()
	metrics.IncAggregation("FIPE")
	s := New(&stubRegistry{}, &stubAggregator{}, metrics.Registry, nil)

	rec, _ := serve(t, s, "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "pricer_aggregations_total") {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestRequestIDPropagated(t *testing.T) {
	s := New(&stubRegistry{}, &stubAggregator{}, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "fixed-id")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "fixed-id" {
		t.Fatalf("request id=%q, want fixed-id", got)
	}
}
