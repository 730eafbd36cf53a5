package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/streakvault/streakvault/internal/domain"
)

// PositionService defines the methods that the position handler requires.
type PositionService interface {
	CreatePosition(ctx context.Context, user string) (domain.UserPosition, error)
	Deposit(ctx context.Context, user string, amount uint64) (domain.UserPosition, error)
	StartCourse(ctx context.Context, user string, lockInDays uint32) (domain.UserPosition, domain.Market, error)
	CompleteTask(ctx context.Context, user string) (domain.UserPosition, error)
	Withdraw(ctx context.Context, user string) (uint64, error)
	EarlyWithdraw(ctx context.Context, user string) (penalty, returned uint64, err error)
	GetPosition(ctx context.Context, user string) (domain.UserPosition, error)
}

// PositionHandler serves savings-position HTTP endpoints.
type PositionHandler struct {
	positions PositionService
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(positions PositionService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// CreatePosition initialises an empty savings position for a user.
// POST /api/positions
func (h *PositionHandler) CreatePosition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	pos, err := h.positions.CreatePosition(r.Context(), req.User)
	if err != nil {
		h.fail(w, r, "create position", err)
		return
	}

	writeJSON(w, http.StatusCreated, pos)
}

// Deposit adds funds to a position that has not started its course yet.
// POST /api/positions/{user}/deposit
func (h *PositionHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")

	var req struct {
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pos, err := h.positions.Deposit(r.Context(), user, req.Amount)
	if err != nil {
		h.fail(w, r, "deposit", err)
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// startCourseResponse pairs the started position with its first market.
type startCourseResponse struct {
	Position domain.UserPosition `json:"position"`
	Market   domain.Market       `json:"market"`
}

// StartCourse locks the deposit for the given number of days and opens the
// first task market.
// POST /api/positions/{user}/start
func (h *PositionHandler) StartCourse(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")

	var req struct {
		LockInDays uint32 `json:"lock_in_days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pos, market, err := h.positions.StartCourse(r.Context(), user, req.LockInDays)
	if err != nil {
		h.fail(w, r, "start course", err)
		return
	}

	writeJSON(w, http.StatusOK, startCourseResponse{Position: pos, Market: market})
}

// CompleteTask records that the user did their daily task.
// POST /api/positions/{user}/tasks
func (h *PositionHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")

	pos, err := h.positions.CompleteTask(r.Context(), user)
	if err != nil {
		h.fail(w, r, "complete task", err)
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

// withdrawResponse carries the amount paid out by a withdrawal.
type withdrawResponse struct {
	Payout   uint64 `json:"payout"`
	Penalty  uint64 `json:"penalty,omitempty"`
	Returned uint64 `json:"returned,omitempty"`
}

// Withdraw pays out deposit plus yield after the lock-in has ended.
// POST /api/positions/{user}/withdraw
func (h *PositionHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")

	payout, err := h.positions.Withdraw(r.Context(), user)
	if err != nil {
		h.fail(w, r, "withdraw", err)
		return
	}

	writeJSON(w, http.StatusOK, withdrawResponse{Payout: payout})
}

// EarlyWithdraw exits before the lock-in ends, forfeiting half the deposit.
// POST /api/positions/{user}/early-withdraw
func (h *PositionHandler) EarlyWithdraw(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")

	penalty, returned, err := h.positions.EarlyWithdraw(r.Context(), user)
	if err != nil {
		h.fail(w, r, "early withdraw", err)
		return
	}

	writeJSON(w, http.StatusOK, withdrawResponse{
		Payout:   returned,
		Penalty:  penalty,
		Returned: returned,
	})
}

// GetPosition returns the user's current position.
// GET /api/positions/{user}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")

	pos, err := h.positions.GetPosition(r.Context(), user)
	if err != nil {
		h.fail(w, r, "get position", err)
		return
	}

	writeJSON(w, http.StatusOK, pos)
}

func (h *PositionHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if writeDomainError(w, err) {
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}
