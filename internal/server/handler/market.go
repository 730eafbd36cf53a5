package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/streakvault/streakvault/internal/domain"
)

// MarketService defines the methods that the market handler requires.
type MarketService interface {
	CreateMarket(ctx context.Context, creator, subject string, bettingWindowSeconds int64) (domain.Market, error)
	TriggerResolution(ctx context.Context, marketID string) (domain.Market, error)
	CloseMarket(ctx context.Context, caller, marketID string) error
	GetMarket(ctx context.Context, marketID string) (domain.Market, error)
	ListBySubject(ctx context.Context, subject string) ([]domain.Market, error)
	ListDue(ctx context.Context, now int64) ([]domain.Market, error)
}

// MarketHandler serves market-related HTTP endpoints. Reads go through the
// cache when one is configured; writes refresh or invalidate it.
type MarketHandler struct {
	markets MarketService
	cache   domain.MarketCache // may be nil
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, cache domain.MarketCache, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		cache:   cache,
		logger:  logger,
	}
}

// CreateMarket opens a prediction market on another user's current task cycle.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Creator              string `json:"creator"`
		Subject              string `json:"subject"`
		BettingWindowSeconds int64  `json:"betting_window_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Creator == "" || req.Subject == "" {
		writeError(w, http.StatusBadRequest, "creator and subject are required")
		return
	}

	market, err := h.markets.CreateMarket(r.Context(), req.Creator, req.Subject, req.BettingWindowSeconds)
	if err != nil {
		h.fail(w, r, "create market", err)
		return
	}

	h.cacheSet(r.Context(), market)
	writeJSON(w, http.StatusCreated, market)
}

// TriggerResolution advances a market through the two-phase resolution.
// POST /api/markets/{id}/resolve
func (h *MarketHandler) TriggerResolution(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	market, err := h.markets.TriggerResolution(r.Context(), id)
	if err != nil {
		h.fail(w, r, "trigger resolution", err)
		return
	}

	h.cacheSet(r.Context(), market)
	writeJSON(w, http.StatusOK, market)
}

// CloseMarket reclaims a fully settled market's records.
// POST /api/markets/{id}/close
func (h *MarketHandler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req struct {
		Caller string `json:"caller"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Caller == "" {
		writeError(w, http.StatusBadRequest, "caller is required")
		return
	}

	if err := h.markets.CloseMarket(r.Context(), req.Caller, id); err != nil {
		h.fail(w, r, "close market", err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), id); err != nil {
			h.logger.WarnContext(r.Context(), "handler: cache invalidate failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetMarket returns a market by ID, trying the cache first.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	if h.cache != nil {
		if market, err := h.cache.Get(r.Context(), id); err == nil {
			writeJSON(w, http.StatusOK, market)
			return
		} else if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "handler: cache get failed",
				slog.String("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	market, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get market", err)
		return
	}

	h.cacheSet(r.Context(), market)
	writeJSON(w, http.StatusOK, market)
}

// listMarketsResponse wraps market list responses.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
}

// ListMarkets returns markets for a subject, or markets due for resolution.
// GET /api/markets?subject=alice
// GET /api/markets?due=true
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	subject := q.Get("subject")
	due := q.Get("due")

	if subject == "" && due == "" {
		writeError(w, http.StatusBadRequest, "subject or due query parameter required")
		return
	}

	var markets []domain.Market
	var err error

	if subject != "" {
		markets, err = h.markets.ListBySubject(r.Context(), subject)
	} else {
		markets, err = h.markets.ListDue(r.Context(), time.Now().Unix())
	}
	if err != nil {
		h.fail(w, r, "list markets", err)
		return
	}

	if markets == nil {
		markets = []domain.Market{}
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: markets})
}

func (h *MarketHandler) cacheSet(ctx context.Context, market domain.Market) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Set(ctx, market); err != nil {
		h.logger.WarnContext(ctx, "handler: cache set failed",
			slog.String("market_id", market.ID),
			slog.String("error", err.Error()),
		)
	}
}

func (h *MarketHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if writeDomainError(w, err) {
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}
