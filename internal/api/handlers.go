package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/stockbot/market-data-service/internal/alpaca"
	"github.com/stockbot/market-data-service/internal/logging"
	"github.com/stockbot/market-data-service/internal/marketdata"
	"github.com/stockbot/market-data-service/internal/models"
)

// MarketData is what the handlers need from the market data service.
// *marketdata.Service satisfies it.
type MarketData interface {
	SearchAssets(ctx context.Context, query string) ([]models.Asset, error)
	GetPrice(ctx context.Context, symbol string) (*models.PriceQuote, error)
	GetPrices(ctx context.Context, symbols []string) (map[string]*models.PriceQuote, error)
	GetHistory(ctx context.Context, symbol, period string) ([]*models.PriceBar, error)
	GetNews(ctx context.Context, symbol string, limit int) ([]*models.NewsArticle, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	service MarketData
	logger  *logging.Logger
}

// NewHandler creates a new Handler
func NewHandler(service MarketData, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewSilent()
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// SearchAssets handles GET /api/v1/assets/search?q=
func (h *Handler) SearchAssets(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		respondError(w, http.StatusBadRequest, "missing_query", "query parameter q is required")
		return
	}

	assets, err := h.service.SearchAssets(r.Context(), query)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, assets)
}

// GetPrice handles GET /api/v1/stocks/{symbol}/price
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	quote, err := h.service.GetPrice(r.Context(), symbol)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quote)
}

// GetPrices handles GET /api/v1/stocks/prices?symbols=A,B,C
func (h *Handler) GetPrices(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		respondError(w, http.StatusBadRequest, "missing_symbols", "query parameter symbols is required")
		return
	}

	quotes, err := h.service.GetPrices(r.Context(), symbols)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, quotes)
}

// GetHistory handles GET /api/v1/stocks/{symbol}/history?period=1M
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	period := r.URL.Query().Get("period")
	if period == "" {
		period = "1M"
	}

	bars, err := h.service.GetHistory(r.Context(), symbol, period)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, toHistoryResponse(bars))
}

// GetNews handles GET /api/v1/stocks/{symbol}/news?limit=20
func (h *Handler) GetNews(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	articles, err := h.service.GetNews(r.Context(), symbol, limit)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, articles)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// historyBar renders a stored bar with its date as a plain YYYY-MM-DD
// string instead of a full timestamp
type historyBar struct {
	Date   string           `json:"date"`
	Open   decimal.Decimal  `json:"open"`
	High   decimal.Decimal  `json:"high"`
	Low    decimal.Decimal  `json:"low"`
	Close  decimal.Decimal  `json:"close"`
	Volume int64            `json:"volume"`
	VWAP   *decimal.Decimal `json:"vwap,omitempty"`
}

func toHistoryResponse(bars []*models.PriceBar) []historyBar {
	out := make([]historyBar, 0, len(bars))
	for _, b := range bars {
		out = append(out, historyBar{
			Date:   b.Date.Format("2006-01-02"),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
			VWAP:   b.VWAP,
		})
	}
	return out
}

// respondServiceError translates service errors into stable API error
// codes
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, marketdata.ErrSymbolNotFound):
		respondError(w, http.StatusNotFound, "unknown_symbol", err.Error())
	case errors.Is(err, marketdata.ErrInvalidPeriod):
		respondError(w, http.StatusBadRequest, "invalid_period", err.Error())
	case errors.Is(err, alpaca.ErrAccessDenied):
		respondError(w, http.StatusBadGateway, "provider_access_denied", "market data provider denied access")
	default:
		h.logger.Error().Err(err).Msg("request failed")
		respondError(w, http.StatusServiceUnavailable, "provider_unavailable", "market data temporarily unavailable")
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: code, Message: message})
}

func splitSymbols(raw string) []string {
	var symbols []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	return symbols
}
