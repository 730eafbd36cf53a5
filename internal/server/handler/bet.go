package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/streakvault/streakvault/internal/domain"
)

// BetService defines the methods that the bet handler requires.
type BetService interface {
	PlaceBet(ctx context.Context, bettor, marketID string, amount uint64, isLong bool) (domain.Bet, error)
	ClaimWinnings(ctx context.Context, caller, marketID, bettor string) (uint64, error)
	GetBet(ctx context.Context, marketID, bettor string) (domain.Bet, error)
	ListByMarket(ctx context.Context, marketID string) ([]domain.Bet, error)
}

// BetHandler serves bet-related HTTP endpoints.
type BetHandler struct {
	bets   BetService
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler with the given service and logger.
func NewBetHandler(bets BetService, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		bets:   bets,
		logger: logger,
	}
}

// PlaceBet stakes funds on one side of an open market.
// POST /api/markets/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	var req struct {
		Bettor string `json:"bettor"`
		Amount uint64 `json:"amount"`
		IsLong bool   `json:"is_long"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Bettor == "" {
		writeError(w, http.StatusBadRequest, "bettor is required")
		return
	}

	bet, err := h.bets.PlaceBet(r.Context(), req.Bettor, marketID, req.Amount, req.IsLong)
	if err != nil {
		h.fail(w, r, "place bet", err)
		return
	}

	writeJSON(w, http.StatusCreated, bet)
}

// claimResponse carries the payout of a winnings claim.
type claimResponse struct {
	Payout uint64 `json:"payout"`
}

// ClaimWinnings pays out a bettor's share of a resolved market.
// POST /api/markets/{id}/bets/{bettor}/claim
func (h *BetHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	bettor := pathParam(r, "bettor")

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

	payout, err := h.bets.ClaimWinnings(r.Context(), req.Caller, marketID, bettor)
	if err != nil {
		h.fail(w, r, "claim winnings", err)
		return
	}

	writeJSON(w, http.StatusOK, claimResponse{Payout: payout})
}

// GetBet returns a single bet.
// GET /api/markets/{id}/bets/{bettor}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")
	bettor := pathParam(r, "bettor")

	bet, err := h.bets.GetBet(r.Context(), marketID, bettor)
	if err != nil {
		h.fail(w, r, "get bet", err)
		return
	}

	writeJSON(w, http.StatusOK, bet)
}

// listBetsResponse wraps the list bets response.
type listBetsResponse struct {
	Bets []domain.Bet `json:"bets"`
}

// ListBets returns all bets on a market.
// GET /api/markets/{id}/bets
func (h *BetHandler) ListBets(w http.ResponseWriter, r *http.Request) {
	marketID := pathParam(r, "id")

	bets, err := h.bets.ListByMarket(r.Context(), marketID)
	if err != nil {
		h.fail(w, r, "list bets", err)
		return
	}

	if bets == nil {
		bets = []domain.Bet{}
	}
	writeJSON(w, http.StatusOK, listBetsResponse{Bets: bets})
}

func (h *BetHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if writeDomainError(w, err) {
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}
