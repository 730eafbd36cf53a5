package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/streakvault/streakvault/internal/domain"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps known domain errors to HTTP status codes and writes
// the response. Unknown errors are logged by the caller and reported as 500.
func writeDomainError(w http.ResponseWriter, err error) bool {
	var status int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrZeroAmount),
		errors.Is(err, domain.ErrCannotBetOnSelf),
		errors.Is(err, domain.ErrBettingWindowTooLong):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotOwner),
		errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyExists),
		errors.Is(err, domain.ErrAlreadyStarted),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrNotStarted),
		errors.Is(err, domain.ErrNoDeposit),
		errors.Is(err, domain.ErrLockInNotEnded),
		errors.Is(err, domain.ErrLockInAlreadyEnded),
		errors.Is(err, domain.ErrSubjectNotStarted),
		errors.Is(err, domain.ErrNotOpenForBets),
		errors.Is(err, domain.ErrWindowClosed),
		errors.Is(err, domain.ErrNotReadyForResolution),
		errors.Is(err, domain.ErrGracePeriodNotOver),
		errors.Is(err, domain.ErrFeeNotClaimed),
		errors.Is(err, domain.ErrMarketNotSettled),
		errors.Is(err, domain.ErrUserStateMismatch),
		errors.Is(err, domain.ErrInsufficientFunds):
		status = http.StatusConflict
	default:
		return false
	}

	writeError(w, status, rootCause(err).Error())
	return true
}

// rootCause walks the error chain down to the sentinel.
func rootCause(err error) error {
	for {
		u := errors.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
}

// parseLimit extracts a "limit" query parameter with a default and cap.
func parseLimit(r *http.Request, def, max int) int {
	limit := def
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// logHandler is a convenience to attach slog fields in handler code.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
