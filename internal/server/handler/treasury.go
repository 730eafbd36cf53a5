package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// TreasuryService defines the methods that the treasury handler requires.
type TreasuryService interface {
	TreasuryTotal(ctx context.Context) (uint64, error)
}

// TreasuryHandler serves the platform treasury endpoint.
type TreasuryHandler struct {
	treasury TreasuryService
	logger   *slog.Logger
}

// NewTreasuryHandler creates a TreasuryHandler with the given service and logger.
func NewTreasuryHandler(treasury TreasuryService, logger *slog.Logger) *TreasuryHandler {
	return &TreasuryHandler{
		treasury: treasury,
		logger:   logger,
	}
}

// GetTreasury returns the cumulative platform revenue counter.
// GET /api/treasury
func (h *TreasuryHandler) GetTreasury(w http.ResponseWriter, r *http.Request) {
	total, err := h.treasury.TreasuryTotal(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: get treasury failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get treasury")
		return
	}

	writeJSON(w, http.StatusOK, map[string]uint64{"fees_collected": total})
}
