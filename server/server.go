// Package server exposes plate lookup and price estimation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/pipeline"
	"github.com/aluiziolira/go-car-prices/registry"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the plate registry used by the API.
type Registry interface {
	Lookup(ctx context.Context, plate string) (*models.LookupResult, error)
	Balance(ctx context.Context) (*registry.BalanceResult, error)
}

// Server wires routes to the registry and the price aggregator.
type Server struct {
	registry   Registry
	aggregator pipeline.PriceAggregator
	gatherer   prometheus.Gatherer
	logger     *slog.Logger
	router     *mux.Router
	now        func() time.Time
}

// New builds the API. gatherer may be nil to omit /metrics and a nil logger
// uses slog.Default.
func New(reg Registry, aggregator pipeline.PriceAggregator, gatherer prometheus.Gatherer, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		registry:   reg,
		aggregator: aggregator,
		gatherer:   gatherer,
		logger:     logger,
		router:     mux.NewRouter(),
		now:        time.Now,
	}
	s.setupRoutes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// HTTPServer returns an http.Server listening on addr.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) setupRoutes() {
	s.router.Use(s.requestID, s.accessLog, s.recoverPanic)

	s.router.HandleFunc("/", s.getIndex).Methods(http.MethodGet)
	s.router.HandleFunc("/health", s.getHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/placas").Subrouter()
	api.HandleFunc("/precos/buscar", s.searchPrices).Methods(http.MethodGet)
	api.HandleFunc("/saldo/consultar", s.getBalance).Methods(http.MethodGet)
	api.HandleFunc("/{placa}", s.lookupPlate).Methods(http.MethodGet)

	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	s.router.NotFoundHandler = s.requestID(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Rota não encontrada", "")
	}))
}

type apiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("json encoding failed", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, statusCode int, errMsg, message string) {
	writeJSON(w, statusCode, apiResponse{
		Success: false,
		Error:   errMsg,
		Message: message,
	})
}
