package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/eaanalyzer/internal/analytics"
	"github.com/rewired-gh/eaanalyzer/internal/dashboard"
	"github.com/rewired-gh/eaanalyzer/internal/models"
)

var testNow = time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)

type fakeDashboard struct {
	view       dashboard.View
	refreshErr error
	setErr     error
	triggers   []dashboard.Trigger
	criteria   []models.FilterCriteria
}

func (f *fakeDashboard) Current() dashboard.View { return f.view }

func (f *fakeDashboard) Refresh(_ context.Context, trigger dashboard.Trigger) (*dashboard.View, error) {
	f.triggers = append(f.triggers, trigger)
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &f.view, nil
}

func (f *fakeDashboard) SetCriteria(_ context.Context, c models.FilterCriteria) (*dashboard.View, error) {
	f.criteria = append(f.criteria, c)
	if f.setErr != nil {
		return nil, f.setErr
	}
	f.view.Criteria = c.Normalize()
	return &f.view, nil
}

type fakeHistory struct {
	limits []int
}

func (f *fakeHistory) RecentSnapshots(k int) ([]models.SnapshotSummary, error) {
	f.limits = append(f.limits, k)
	return []models.SnapshotSummary{{ID: "a", Trigger: "timer", NetProfit: 10}}, nil
}

type fakeTerminal struct {
	connectErr error
}

func (f *fakeTerminal) Status(context.Context) (*models.TerminalStatus, error) {
	return &models.TerminalStatus{Connected: true, TerminalInfo: map[string]any{"company": "XP"}}, nil
}

func (f *fakeTerminal) Connect(context.Context) error { return f.connectErr }

func sampleView() dashboard.View {
	deals := []models.Deal{
		{Ticket: 1, Time: time.Date(2024, 5, 6, 10, 0, 0, 0, time.UTC), NetProfit: 100, Symbol: "WINM24", EAID: "EA 1"},
		{Ticket: 2, Time: time.Date(2024, 5, 7, 11, 0, 0, 0, time.UTC), NetProfit: -40, Symbol: "WDOM24", EAID: "EA 2"},
	}
	criteria := models.DefaultCriteria(testNow)
	return dashboard.View{
		Snapshot:  analytics.Compute(deals, criteria),
		Criteria:  criteria,
		UpdatedAt: testNow,
		Trigger:   dashboard.TriggerTimer,
	}
}

func newTestRouter(deps Dependencies) http.Handler {
	return NewRouter(deps, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestReadEndpoints(t *testing.T) {
	router := newTestRouter(Dependencies{Dashboard: &fakeDashboard{view: sampleView()}})

	rec := do(t, router, http.MethodGet, "/api/v1/snapshot", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	view := decode[map[string]any](t, rec)
	assert.Equal(t, "timer", view["trigger"])

	general := decode[analytics.GeneralMetrics](t, do(t, router, http.MethodGet, "/api/v1/metrics/general", ""))
	assert.Equal(t, 60.0, general.NetProfit)
	assert.Equal(t, 2, general.TotalTrades)

	equity := decode[[]analytics.EquityPoint](t, do(t, router, http.MethodGet, "/api/v1/equity", ""))
	require.Len(t, equity, 2)
	assert.Equal(t, 60.0, equity[1].Balance)

	daily := decode[[]analytics.DailyPoint](t, do(t, router, http.MethodGet, "/api/v1/daily", ""))
	require.Len(t, daily, 2)
	assert.Equal(t, "2024-05-06", daily[0].Date)

	heatmap := decode[map[string]any](t, do(t, router, http.MethodGet, "/api/v1/heatmap", ""))
	assert.Contains(t, heatmap, "days")

	ranking := decode[rankingResponse](t, do(t, router, http.MethodGet, "/api/v1/ranking", ""))
	require.Len(t, ranking.Ranking, 2)
	require.NotNil(t, ranking.TopEA)
	assert.Equal(t, "EA 1", ranking.TopEA.EAID)

	recent := decode[[]models.Deal](t, do(t, router, http.MethodGet, "/api/v1/trades/recent", ""))
	require.Len(t, recent, 2)
	assert.Equal(t, int64(2), recent[0].Ticket, "most recent first")

	extremes := decode[extremesResponse](t, do(t, router, http.MethodGet, "/api/v1/trades/extremes", ""))
	assert.Equal(t, analytics.Extremes{MaxProfit: 100, MaxLoss: -40}, extremes.Extremes)
	require.Len(t, extremes.Best, 2)
	assert.Equal(t, int64(1), extremes.Best[0].Ticket)
	require.Len(t, extremes.Worst, 2)
	assert.Equal(t, int64(2), extremes.Worst[0].Ticket)

	opts := decode[optionsResponse](t, do(t, router, http.MethodGet, "/api/v1/options", ""))
	assert.Equal(t, []string{"WDOM24", "WINM24"}, opts.Assets)
	assert.Equal(t, []string{"EA 1", "EA 2"}, opts.EAs)
	assert.Len(t, opts.Days, 7)

	filters := decode[models.FilterCriteria](t, do(t, router, http.MethodGet, "/api/v1/filters", ""))
	assert.Equal(t, []string{models.All}, filters.SelectedAssets)
}

func TestPutFilters(t *testing.T) {
	dash := &fakeDashboard{view: sampleView()}
	router := newTestRouter(Dependencies{Dashboard: dash})

	body := `{"date_from":"2024-05-01T00:00:00Z","date_to":"2024-05-10T23:59:59Z",
		"selected_assets":["WINM24"],"selected_eas":[],"selected_days":["Mon","Tue"],
		"selected_hours":[10,9],"resync_minutes":5}`
	rec := do(t, router, http.MethodPut, "/api/v1/filters", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, dash.criteria, 1)
	assert.Equal(t, []string{"WINM24"}, dash.criteria[0].SelectedAssets)
	assert.Equal(t, 5, dash.criteria[0].ResyncMinutes)

	view := decode[dashboard.View](t, rec)
	assert.Equal(t, []int{9, 10}, view.Criteria.SelectedHours)
	assert.Equal(t, []string{models.All}, view.Criteria.SelectedEAs)
}

func TestPutFilters_BadRequest(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"date_from":`},
		{"unknown field", `{"date_from":"2024-05-01T00:00:00Z","date_to":"2024-05-10T00:00:00Z","bogus":1}`},
		{"reversed window", `{"date_from":"2024-05-10T00:00:00Z","date_to":"2024-05-01T00:00:00Z"}`},
		{"bad weekday", `{"date_from":"2024-05-01T00:00:00Z","date_to":"2024-05-10T00:00:00Z","selected_days":["Seg"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dash := &fakeDashboard{view: sampleView()}
			rec := do(t, newTestRouter(Dependencies{Dashboard: dash}), http.MethodPut, "/api/v1/filters", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, "invalid filter criteria", resp.Error)
			assert.NotEmpty(t, resp.Details)
			assert.Empty(t, dash.criteria)
		})
	}
}

func TestRefresh(t *testing.T) {
	dash := &fakeDashboard{view: sampleView()}
	router := newTestRouter(Dependencies{Dashboard: dash})

	rec := do(t, router, http.MethodPost, "/api/v1/refresh", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []dashboard.Trigger{dashboard.TriggerManual}, dash.triggers)

	dash.refreshErr = errors.New("bridge unreachable")
	rec = do(t, router, http.MethodPost, "/api/v1/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "refresh failed", resp.Error)
	assert.Equal(t, "bridge unreachable", resp.Details)
}

func TestHistory(t *testing.T) {
	hist := &fakeHistory{}
	router := newTestRouter(Dependencies{Dashboard: &fakeDashboard{}, History: hist})

	rec := do(t, router, http.MethodGet, "/api/v1/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[[]models.SnapshotSummary](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)

	do(t, router, http.MethodGet, "/api/v1/history?limit=5000", "")
	assert.Equal(t, []int{defaultHistoryLimit, maxHistoryLimit}, hist.limits)

	rec = do(t, router, http.MethodGet, "/api/v1/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	noStore := newTestRouter(Dependencies{Dashboard: &fakeDashboard{}})
	rec = do(t, noStore, http.MethodGet, "/api/v1/history", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestTerminal(t *testing.T) {
	term := &fakeTerminal{}
	router := newTestRouter(Dependencies{Dashboard: &fakeDashboard{}, Terminal: term})

	rec := do(t, router, http.MethodGet, "/api/v1/terminal", "")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[models.TerminalStatus](t, rec)
	assert.True(t, status.Connected)

	rec = do(t, router, http.MethodPost, "/api/v1/terminal/connect", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	term.connectErr = errors.New("Failed to connect to MT5")
	rec = do(t, router, http.MethodPost, "/api/v1/terminal/connect", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestHealthzAndFallbacks(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("eaanalyzer_refresh_total 1\n"))
	})
	router := newTestRouter(Dependencies{Dashboard: &fakeDashboard{}, Metrics: metrics})

	assert.Equal(t, http.StatusOK, do(t, router, http.MethodGet, "/healthz", "").Code)
	assert.Contains(t, do(t, router, http.MethodGet, "/metrics", "").Body.String(), "eaanalyzer_refresh_total")

	rec := do(t, router, http.MethodGet, "/api/v1/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[ErrorResponse](t, rec).Error)

	rec = do(t, router, http.MethodDelete, "/api/v1/filters", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORS(t *testing.T) {
	router := NewRouter(Dependencies{Dashboard: &fakeDashboard{}}, []string{"http://localhost:5173"})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/filters", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PUT")

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://evil.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecovery(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec := httptest.NewRecorder()
	recovery(panicky).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal server error", decode[ErrorResponse](t, rec).Error)
}
