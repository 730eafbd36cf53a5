package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/streakvault/streakvault/internal/domain"
)

// AdminService defines the operator-only methods the admin handler requires.
type AdminService interface {
	CreditBalance(ctx context.Context, user string, amount uint64) error
	Balance(ctx context.Context, user string) (uint64, error)
}

// AdminHandler serves operator endpoints: account funding, audit inspection,
// and settlement archive access. These routes sit behind HMAC auth.
type AdminHandler struct {
	admin    AdminService
	audit    domain.AuditStore
	archives domain.BlobReader // may be nil when no object store is configured
	logger   *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(admin AdminService, audit domain.AuditStore, archives domain.BlobReader, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		admin:    admin,
		audit:    audit,
		archives: archives,
		logger:   logger,
	}
}

// CreditBalance funds a user's spendable account.
// POST /api/admin/credits
func (h *AdminHandler) CreditBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User   string `json:"user"`
		Amount uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.User == "" {
		writeError(w, http.StatusBadRequest, "user is required")
		return
	}

	if err := h.admin.CreditBalance(r.Context(), req.User, req.Amount); err != nil {
		h.fail(w, r, "credit balance", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetBalance returns a user's spendable balance.
// GET /api/admin/balances/{user}
func (h *AdminHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	user := pathParam(r, "user")

	balance, err := h.admin.Balance(r.Context(), user)
	if err != nil {
		h.fail(w, r, "get balance", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":    user,
		"balance": balance,
	})
}

// ListAudit returns the most recent audit entries.
// GET /api/admin/audit?limit=100
func (h *AdminHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 1000)

	entries, err := h.audit.List(r.Context(), limit)
	if err != nil {
		h.fail(w, r, "list audit", err)
		return
	}

	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// ListArchives lists settlement snapshots under a prefix.
// GET /api/admin/archives?prefix=archive/settlements/2026-08
func (h *AdminHandler) ListArchives(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotImplemented, "object storage not configured")
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "archive/settlements/"
	}

	infos, err := h.archives.List(r.Context(), prefix)
	if err != nil {
		h.fail(w, r, "list archives", err)
		return
	}

	if infos == nil {
		infos = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": infos})
}

// GetArchive streams one settlement snapshot.
// GET /api/admin/archives/{path...}
func (h *AdminHandler) GetArchive(w http.ResponseWriter, r *http.Request) {
	if h.archives == nil {
		writeError(w, http.StatusNotImplemented, "object storage not configured")
		return
	}

	path := pathParam(r, "path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "missing archive path")
		return
	}

	body, err := h.archives.Get(r.Context(), path)
	if err != nil {
		h.fail(w, r, "get archive", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "handler: archive stream interrupted",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func (h *AdminHandler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if writeDomainError(w, err) {
		return
	}
	h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "failed to "+op)
}
