// Package registry looks vehicles up by license plate on the wdapi2 plate
// registry.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aluiziolira/go-car-prices/cache"
	"github.com/aluiziolira/go-car-prices/config"
	"github.com/aluiziolira/go-car-prices/models"
	"github.com/aluiziolira/go-car-prices/parser"
	"golang.org/x/time/rate"
)

// ErrInvalidPlate is returned for plates in neither the legacy nor the
// Mercosul layout.
var ErrInvalidPlate = errors.New("formato de placa inválido, use o formato AAA0X00 ou AAA9999")

const (
	errNotFound    = "Placa não encontrada ou inválida"
	msgNotFound    = "A placa informada não existe ou não foi encontrada na base de dados"
	errBalance     = "Erro ao consultar saldo"
	noVehicleToken = "Nenhum veículo"
)

var statusMessages = map[int]string{
	http.StatusBadRequest:      "URL incorreta",
	http.StatusUnauthorized:    "Placa inválida",
	http.StatusPaymentRequired: "Token inválido",
	http.StatusNotAcceptable:   "Sem resultados",
	http.StatusTooManyRequests: "Limite de consultas atingido",
}

// Client queries the registry. Found vehicles are cached by normalized
// plate when a store is configured.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	cache   cache.Store
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient builds a client. store may be nil to disable caching and a nil
// logger uses slog.Default.
func NewClient(cfg *config.Config, store cache.Store, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimSuffix(cfg.RegistryBaseURL, "/"),
		token:   cfg.RegistryToken,
		http:    &http.Client{Timeout: cfg.RegistryTimeout},
		cache:   store,
		limiter: rate.NewLimiter(rate.Limit(cfg.RegistryRPS), 1),
		logger:  logger,
	}
}

// WithTransport replaces the HTTP transport used for registry calls.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.http.Transport = rt
}

// Lookup resolves plate to a vehicle record. Registry-side negatives (not
// found, quota, bad token) come back as an unsuccessful result; the error is
// reserved for invalid plates and transport failures.
func (c *Client) Lookup(ctx context.Context, plate string) (*models.LookupResult, error) {
	normalized := parser.NormalizePlate(plate)
	if !parser.ValidPlate(normalized) {
		return nil, ErrInvalidPlate
	}

	if rec, ok := c.cached(ctx, normalized); ok {
		c.logger.Debug("registry cache hit", slog.String("plate", normalized))
		return &models.LookupResult{Success: true, Data: rec, StatusCode: http.StatusOK}, nil
	}

	var data models.VehicleRecord
	status, err := c.getJSON(ctx, "/consulta/"+normalized+"/"+c.token, &data)
	if err != nil {
		return nil, fmt.Errorf("consulta placa %s: %w", normalized, err)
	}

	result := mapLookup(status, data)
	c.logger.Info("registry lookup",
		slog.String("plate", normalized),
		slog.Int("status", status),
		slog.Bool("found", result.Success),
	)
	if result.Success {
		c.store(ctx, normalized, data)
	}
	return result, nil
}

func mapLookup(status int, data models.VehicleRecord) *models.LookupResult {
	if status != http.StatusOK {
		msg, ok := statusMessages[status]
		if !ok {
			msg = "Erro desconhecido"
		}
		return &models.LookupResult{Error: msg, StatusCode: status}
	}
	if data == nil {
		return notFound("")
	}

	message, _ := data["message"].(string)
	if success, ok := data["success"].(bool); ok && !success {
		return notFound(message)
	}
	_, hasStatus := data["status"]
	hasBrand := nonEmpty(data["marca"]) || nonEmpty(data["MARCA"])
	if isStatus(data["status"], http.StatusNotFound) || strings.Contains(message, noVehicleToken) || (!hasBrand && hasStatus) {
		return notFound(message)
	}
	if hasBrand {
		return &models.LookupResult{Success: true, Data: data, StatusCode: http.StatusOK}
	}
	return notFound(message)
}

func notFound(message string) *models.LookupResult {
	if message == "" {
		message = msgNotFound
	}
	return &models.LookupResult{Error: errNotFound, Message: message, StatusCode: http.StatusNotFound}
}

func nonEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	default:
		return true
	}
}

func isStatus(v any, code int) bool {
	switch val := v.(type) {
	case float64:
		return int(val) == code
	case string:
		return val == fmt.Sprint(code)
	default:
		return false
	}
}

// BalanceResult is the registry's remaining query quota.
type BalanceResult struct {
	Success    bool
	Payload    map[string]any
	Error      string
	StatusCode int
}

// Balance returns the remaining query quota as reported by the registry.
func (c *Client) Balance(ctx context.Context) (*BalanceResult, error) {
	var payload map[string]any
	status, err := c.getJSON(ctx, "/saldo/"+c.token, &payload)
	if err != nil {
		return nil, fmt.Errorf("consulta saldo: %w", err)
	}
	if status != http.StatusOK || payload == nil {
		return &BalanceResult{Error: errBalance, StatusCode: status}, nil
	}
	return &BalanceResult{Success: true, Payload: payload, StatusCode: status}, nil
}

// getJSON issues a rate-limited GET and decodes a JSON body into out. A
// body that is not JSON leaves out untouched when the status is not 200.
func (c *Client) getJSON(ctx context.Context, path string, out any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode == http.StatusOK {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func (c *Client) cached(ctx context.Context, plate string) (models.VehicleRecord, bool) {
	if c.cache == nil {
		return nil, false
	}
	raw, ok, err := c.cache.Get(ctx, plate)
	if err != nil {
		c.logger.Warn("registry cache read failed", slog.String("plate", plate), slog.Any("error", err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var rec models.VehicleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		c.logger.Warn("registry cache entry unreadable", slog.String("plate", plate), slog.Any("error", err))
		return nil, false
	}
	return rec, true
}

func (c *Client) store(ctx context.Context, plate string, rec models.VehicleRecord) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("registry cache encode failed", slog.String("plate", plate), slog.Any("error", err))
		return
	}
	if err := c.cache.Set(ctx, plate, raw); err != nil {
		c.logger.Warn("registry cache write failed", slog.String("plate", plate), slog.Any("error", err))
	}
}
