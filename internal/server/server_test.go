package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streakvault/streakvault/internal/crypto"
	"github.com/streakvault/streakvault/internal/domain"
	"github.com/streakvault/streakvault/internal/engine"
	"github.com/streakvault/streakvault/internal/server/handler"
	"github.com/streakvault/streakvault/internal/store/memory"
)

// apiFixture runs the full HTTP stack against the in-memory gateway with a
// manually advanced clock.
type apiFixture struct {
	now   int64
	ts    *httptest.Server
	admin *crypto.HMACAuth
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{now: 1_000_000}
	gw := memory.NewGateway(func() int64 { return f.now })
	bus := memory.NewSignalBus()
	audit := memory.NewAuditStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	params := engine.Params{
		TaskCycleSeconds:         100,
		GracePeriodSeconds:       10,
		DefaultFeeBps:            200,
		AutoBettingWindowSeconds: 40,
	}
	markets := engine.NewMarketEngine(gw, params, bus, audit, logger)
	positions := engine.NewPositionService(gw, markets, params, bus, audit, logger)
	bets := engine.NewBetService(gw, params, bus, audit, logger)
	admin := engine.NewAdminService(gw, bus, audit, logger)

	f.admin = &crypto.HMACAuth{Key: "ops", Secret: "test-secret"}

	srv := NewServer(Config{
		Port:      0,
		AdminAuth: f.admin,
	}, Handlers{
		Health:    handler.NewHealthHandler(nil, logger),
		Positions: handler.NewPositionHandler(positions, logger),
		Markets:   handler.NewMarketHandler(markets, nil, logger),
		Bets:      handler.NewBetHandler(bets, logger),
		Treasury:  handler.NewTreasuryHandler(bets, logger),
		Admin:     handler.NewAdminHandler(admin, audit, nil, logger),
	}, nil, logger)

	f.ts = httptest.NewServer(srv.httpServer.Handler)
	t.Cleanup(f.ts.Close)
	return f
}

// do issues a JSON request and decodes the JSON response body into out (when
// out is non-nil).
func (f *apiFixture) do(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.ts.URL+path, &buf)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// doAdmin issues an HMAC-signed operator request.
func (f *apiFixture) doAdmin(t *testing.T, method, path string, body any, out any) *http.Response {
	t.Helper()

	payload := ""
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		payload = string(data)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, bytes.NewReader([]byte(payload)))
	require.NoError(t, err)
	for k, v := range f.admin.Headers(method, path, payload) {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

// credit funds a user via the operator endpoint.
func (f *apiFixture) credit(t *testing.T, user string, amount uint64) {
	t.Helper()
	resp := f.doAdmin(t, http.MethodPost, "/api/admin/credits",
		map[string]any{"user": user, "amount": amount}, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_PositionLifecycle(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.do(t, http.MethodPost, "/api/positions", map[string]any{"user": "alice"}, nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	// Duplicate creation conflicts.
	resp = f.do(t, http.MethodPost, "/api/positions", map[string]any{"user": "alice"}, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.credit(t, "alice", 1_000)

	var pos domain.UserPosition
	resp = f.do(t, http.MethodPost, "/api/positions/alice/deposit", map[string]any{"amount": 1_000}, &pos)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(1_000), pos.DepositAmount)

	var started struct {
		Position domain.UserPosition `json:"position"`
		Market   domain.Market       `json:"market"`
	}
	resp = f.do(t, http.MethodPost, "/api/positions/alice/start", map[string]any{"lock_in_days": 2}, &started)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, started.Position.Started())
	assert.Equal(t, domain.MarketStatusOpen, started.Market.Status)

	resp = f.do(t, http.MethodPost, "/api/positions/alice/tasks", nil, &pos)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint32(1), pos.CurrentStreak)

	resp = f.do(t, http.MethodGet, "/api/positions/alice", nil, &pos)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", pos.Owner)

	// Withdrawal before the lock-in end conflicts.
	resp = f.do(t, http.MethodPost, "/api/positions/alice/withdraw", nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.now += 2 * 100 // two lock-in cycles
	var wd struct {
		Payout uint64 `json:"payout"`
	}
	resp = f.do(t, http.MethodPost, "/api/positions/alice/withdraw", nil, &wd)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(1_000), wd.Payout)
}

func TestAPI_Validation(t *testing.T) {
	f := newAPIFixture(t)

	// Unknown user.
	resp := f.do(t, http.MethodGet, "/api/positions/ghost", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Missing user field.
	resp = f.do(t, http.MethodPost, "/api/positions", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Zero amount.
	f.do(t, http.MethodPost, "/api/positions", map[string]any{"user": "bob"}, nil)
	resp = f.do(t, http.MethodPost, "/api/positions/bob/deposit", map[string]any{"amount": 0}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_MarketAndBets(t *testing.T) {
	f := newAPIFixture(t)

	// Subject starts a course, which opens the first market.
	f.do(t, http.MethodPost, "/api/positions", map[string]any{"user": "alice"}, nil)
	f.credit(t, "alice", 500)
	f.do(t, http.MethodPost, "/api/positions/alice/deposit", map[string]any{"amount": 500}, nil)
	var started struct {
		Market domain.Market `json:"market"`
	}
	resp := f.do(t, http.MethodPost, "/api/positions/alice/start", map[string]any{"lock_in_days": 5}, &started)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	marketID := started.Market.ID

	var market domain.Market
	resp = f.do(t, http.MethodGet, "/api/markets/"+marketID, nil, &market)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", market.Subject)

	// Bettors stake on both sides.
	f.credit(t, "bob", 100)
	f.credit(t, "carol", 300)
	var bet domain.Bet
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/bets", marketID),
		map[string]any{"bettor": "bob", "amount": 100, "is_long": true}, &bet)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, bet.IsLong)

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/bets", marketID),
		map[string]any{"bettor": "carol", "amount": 300, "is_long": false}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// The subject may not bet on themselves.
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/bets", marketID),
		map[string]any{"bettor": "alice", "amount": 10, "is_long": true}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Resolution: close betting, then decide after the grace period. The
	// subject never completes the task, so shorts win.
	f.now = market.BettingEndsAt
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/resolve", marketID), nil, &market)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.MarketStatusAwaitingResolution, market.Status)

	// Too early for phase two.
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/resolve", marketID), nil, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	f.now = market.ResolutionAt
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/resolve", marketID), nil, &market)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.MarketStatusResolvedShortsWin, market.Status)

	// Winner claims 98% of the pool; treasury keeps the 2% fee.
	var claim struct {
		Payout uint64 `json:"payout"`
	}
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/bets/carol/claim", marketID),
		map[string]any{"caller": "carol"}, &claim)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(392), claim.Payout)

	// Claiming someone else's bet is forbidden.
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/bets/bob/claim", marketID),
		map[string]any{"caller": "carol"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/bets/bob/claim", marketID),
		map[string]any{"caller": "bob"}, &claim)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(0), claim.Payout)

	var treasury struct {
		FeesCollected uint64 `json:"fees_collected"`
	}
	resp = f.do(t, http.MethodGet, "/api/treasury", nil, &treasury)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(8), treasury.FeesCollected)

	// Close and reclaim.
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/markets/%s/close", marketID),
		map[string]any{"caller": "alice"}, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/markets/"+marketID, nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_AdminAuth(t *testing.T) {
	f := newAPIFixture(t)

	// Unsigned operator requests are rejected.
	resp := f.do(t, http.MethodPost, "/api/admin/credits",
		map[string]any{"user": "alice", "amount": 10}, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	f.credit(t, "alice", 10)

	var bal struct {
		Balance uint64 `json:"balance"`
	}
	resp = f.doAdmin(t, http.MethodGet, "/api/admin/balances/alice", nil, &bal)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, uint64(10), bal.Balance)

	// Audit entries exist for the credit.
	var audit struct {
		Entries []domain.AuditEntry `json:"entries"`
	}
	resp = f.doAdmin(t, http.MethodGet, "/api/admin/audit", nil, &audit)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, audit.Entries)

	// Archive endpoints report not-configured without object storage.
	resp = f.doAdmin(t, http.MethodGet, "/api/admin/archives", nil, nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestAPI_Health(t *testing.T) {
	f := newAPIFixture(t)

	var health struct {
		Status string `json:"status"`
	}
	resp := f.do(t, http.MethodGet, "/api/health", nil, &health)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", health.Status)
}
