package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papertrade/dogebot/internal/domain"
	"github.com/papertrade/dogebot/internal/ledger"
	"github.com/papertrade/dogebot/internal/store/jsonfile"
	"github.com/papertrade/dogebot/internal/tracker"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracker(t *testing.T) *tracker.Tracker {
	t.Helper()

	store, err := jsonfile.New(t.TempDir(), testLogger())
	require.NoError(t, err)

	opts := tracker.Options{
		Risk: map[string]tracker.RiskParams{
			"conservative": {StopLossPct: 2, TakeProfitPct: 3, FeeRate: 0.00075, Quantity: 100},
		},
		Default: tracker.RiskParams{FeeRate: 0.00075, Quantity: 100},
	}
	return tracker.New(opts, ledger.New(1000), store, nil, nil, testLogger())
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	h := NewHealthHandler("track")

	rr := httptest.NewRecorder()
	h.HealthCheck(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "track", body["mode"])
}

func TestListPositions(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	_, err := tr.Update(context.Background(), "conservative", domain.SignalBuy, 0.89, 0)
	require.NoError(t, err)

	h := NewPositionHandler(tr, testLogger())

	// Filtered by strategy.
	rr := httptest.NewRecorder()
	h.ListPositions(rr, httptest.NewRequest(http.MethodGet, "/api/positions?strategy=conservative", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var filtered listPositionsResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &filtered))
	require.Len(t, filtered.Positions, 1)
	assert.Equal(t, domain.SideBuy, filtered.Positions[0].Side)

	// Unknown strategy returns an empty list, not null.
	rr = httptest.NewRecorder()
	h.ListPositions(rr, httptest.NewRequest(http.MethodGet, "/api/positions?strategy=nope", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"positions":[]`)
}

func TestGetPosition(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	ctx := context.Background()
	_, err := tr.Open(ctx, "conservative", domain.SideBuy, 0.89, 10)
	require.NoError(t, err)
	latest, err := tr.Open(ctx, "conservative", domain.SideBuy, 0.91, 10)
	require.NoError(t, err)

	h := NewPositionHandler(tr, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/positions/conservative", nil)
	req.SetPathValue("strategy", "conservative")
	rr := httptest.NewRecorder()
	h.GetPosition(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var p domain.Position
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	assert.Equal(t, latest.ID, p.ID)

	req = httptest.NewRequest(http.MethodGet, "/api/positions/nope", nil)
	req.SetPathValue("strategy", "nope")
	rr = httptest.NewRecorder()
	h.GetPosition(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestListHistoryPagination(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		p, err := tr.Open(ctx, "conservative", domain.SideBuy, 1.00, 10)
		require.NoError(t, err)
		_, err = tr.ClosePosition(ctx, p.ID, 1.01, domain.CloseReasonManual)
		require.NoError(t, err)
	}

	h := NewHistoryHandler(tr, testLogger())

	rr := httptest.NewRecorder()
	h.ListHistory(rr, httptest.NewRequest(http.MethodGet, "/api/history?page=2&page_size=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var page domain.HistoryPage
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	assert.Len(t, page.Items, 10)

	// A hostile page number must come back as an empty page, not a panic.
	rr = httptest.NewRecorder()
	h.ListHistory(rr, httptest.NewRequest(http.MethodGet,
		"/api/history?page=9223372036854775807&page_size=200", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Empty(t, page.Items)
	assert.Equal(t, 25, page.Total)
}

func TestInjectSignal(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	h := NewSignalHandler(tr, testLogger())

	body := `{"strategy":"conservative","signal":"buy","price":0.89}`
	rr := httptest.NewRecorder()
	h.InjectSignal(rr, httptest.NewRequest(http.MethodPost, "/api/signal", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp injectSignalResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, domain.SignalBuy, resp.Signal)
	assert.Empty(t, resp.Closed)
	assert.Len(t, tr.OpenPositions("conservative"), 1)
}

func TestInjectSignalValidation(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	h := NewSignalHandler(tr, testLogger())

	tests := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing strategy", `{"signal":"BUY","price":1}`},
		{"unknown signal", `{"strategy":"conservative","signal":"YOLO","price":1}`},
		{"non-positive price", `{"strategy":"conservative","signal":"BUY","price":0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.InjectSignal(rr, httptest.NewRequest(http.MethodPost, "/api/signal", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}

	assert.Empty(t, tr.OpenPositions("conservative"))
}

func TestBotStartStop(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	h := NewBotHandler(tr, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/bots/conservative/start", nil)
	req.SetPathValue("id", "conservative")
	rr := httptest.NewRecorder()
	h.StartBot(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, tr.BotActive("conservative"))

	req = httptest.NewRequest(http.MethodPost, "/api/bots/conservative/stop", nil)
	req.SetPathValue("id", "conservative")
	rr = httptest.NewRecorder()
	h.StopBot(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, tr.BotActive("conservative"))
}

func TestGetAccount(t *testing.T) {
	t.Parallel()

	tr := newTestTracker(t)
	h := NewReportHandler(tr, testLogger())

	rr := httptest.NewRecorder()
	h.GetAccount(rr, httptest.NewRequest(http.MethodGet, "/api/account", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var acct domain.AccountSummary
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &acct))
	assert.InDelta(t, 1000.0, acct.InitialBalance, 1e-9)
	assert.InDelta(t, 1000.0, acct.CurrentBalance, 1e-9)
}

func TestParsePageOpts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query        string
		wantPage     int
		wantPageSize int
	}{
		{"", 1, 20},
		{"page=3&page_size=50", 3, 50},
		{"page=-1&page_size=0", 1, 20},
		{"page_size=9999", 1, 200},
		{"page=abc", 1, 20},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/history?"+tt.query, nil)
		page, size := parsePageOpts(r)
		assert.Equal(t, tt.wantPage, page, "query=%q", tt.query)
		assert.Equal(t, tt.wantPageSize, size, "query=%q", tt.query)
	}
}
