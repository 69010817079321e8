package server

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"strings"
	"time"

	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/pipeline"
	"github.com/aluiziolira/go-car-prices/registry"
	"github.com/gorilla/mux"
)

func (s *Server) getIndex(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "API de Consulta de Placas",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"consultarPlaca": "GET /api/placas/:placa",
			"buscarPrecos":   "GET /api/placas/precos/buscar?marca=XXX&modelo=XXX&ano=XXXX",
			"consultarSaldo": "GET /api/placas/saldo/consultar",
			"health":         "GET /health",
		},
	})
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"message":   "API de consulta de placas está funcionando",
		"timestamp": s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) lookupPlate(w http.ResponseWriter, r *http.Request) {
	plate := mux.Vars(r)["placa"]
	if strings.TrimSpace(plate) == "" {
		writeError(w, http.StatusBadRequest, "Placa é obrigatória", "")
		return
	}

	result, err := s.registry.Lookup(r.Context(), plate)
	if errors.Is(err, registry.ErrInvalidPlate) {
		writeError(w, http.StatusBadRequest, "Placa inválida", err.Error())
		return
	}
	if err != nil {
		s.logger.Error("plate lookup failed", slog.String("plate", plate), slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "Erro ao consultar placa", err.Error())
		return
	}
	if !result.Success {
		status := result.StatusCode
		if status < 400 {
			status = http.StatusNotFound
		}
		errMsg := result.Error
		if errMsg == "" {
			errMsg = "Placa não encontrada"
		}
		message := result.Message
		if message == "" {
			message = "A placa informada não existe ou não foi encontrada na base de dados"
		}
		writeError(w, status, errMsg, message)
		return
	}

	data := maps.Clone(result.Data)
	if data == nil {
		data = models.VehicleRecord{}
	}
	data["precosMedio"] = s.aggregator.Aggregate(r.Context(), result.Data)
	writeJSON(w, http.StatusOK, apiResponse{Success: true, Data: data})
}

func (s *Server) searchPrices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	brand := strings.TrimSpace(query.Get("marca"))
	model := strings.TrimSpace(query.Get("modelo"))
	year := strings.TrimSpace(query.Get("ano"))
	if brand == "" || model == "" || year == "" {
		writeError(w, http.StatusBadRequest, "Parâmetros obrigatórios: marca, modelo e ano", "")
		return
	}

	result := s.aggregator.Aggregate(r.Context(), pipeline.RecordFromDescriptor(brand, model, year))
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	result, err := s.registry.Balance(r.Context())
	if err != nil {
		s.logger.Error("balance lookup failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "Erro ao consultar saldo", err.Error())
		return
	}
	if !result.Success {
		status := result.StatusCode
		if status < 400 {
			status = http.StatusInternalServerError
		}
		writeError(w, status, result.Error, "")
		return
	}
	writeJSON(w, http.StatusOK, result.Payload)
}
