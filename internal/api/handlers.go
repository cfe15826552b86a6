package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rewired-gh/eaanalyzer/internal/analytics"
	"github.com/rewired-gh/eaanalyzer/internal/dashboard"
	"github.com/rewired-gh/eaanalyzer/internal/logger"
	"github.com/rewired-gh/eaanalyzer/internal/models"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 1000
	maxBodyBytes        = 1 << 20
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type rankingResponse struct {
	Ranking []analytics.EAStat `json:"ea_ranking"`
	TopEA   *analytics.EAStat  `json:"top_ea"`
}

type extremesResponse struct {
	Extremes analytics.Extremes `json:"extremes"`
	Best     []models.Deal      `json:"best_trades"`
	Worst    []models.Deal      `json:"worst_trades"`
}

type optionsResponse struct {
	Assets []string `json:"assets"`
	EAs    []string `json:"eas"`
	Days   []string `json:"days"`
}

type handlers struct {
	deps Dependencies
}

func (h *handlers) snapshot() analytics.Snapshot {
	return h.deps.Dashboard.Current().Snapshot
}

func (h *handlers) getSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Dashboard.Current())
}

func (h *handlers) getGeneral(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot().General)
}

func (h *handlers) getEquity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot().Equity)
}

func (h *handlers) getDaily(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot().Daily)
}

func (h *handlers) getHeatmap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot().Heatmap)
}

func (h *handlers) getRanking(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot()
	writeJSON(w, http.StatusOK, rankingResponse{Ranking: snap.Ranking, TopEA: snap.TopEA})
}

func (h *handlers) getRecentTrades(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.snapshot().RecentTrades)
}

func (h *handlers) getExtremes(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot()
	writeJSON(w, http.StatusOK, extremesResponse{Extremes: snap.Extremes, Best: snap.BestTrades, Worst: snap.WorstTrades})
}

func (h *handlers) getOptions(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot()
	writeJSON(w, http.StatusOK, optionsResponse{Assets: snap.Assets, EAs: snap.EAs, Days: models.Weekdays})
}

func (h *handlers) getFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Dashboard.Current().Criteria)
}

func (h *handlers) putFilters(w http.ResponseWriter, r *http.Request) {
	var c models.FilterCriteria
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter criteria", err)
		return
	}
	if err := c.Normalize().Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid filter criteria", err)
		return
	}

	view, err := h.deps.Dashboard.SetCriteria(r.Context(), c)
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to apply filters", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) postRefresh(w http.ResponseWriter, r *http.Request) {
	view, err := h.deps.Dashboard.Refresh(r.Context(), dashboard.TriggerManual)
	if err != nil {
		writeError(w, http.StatusBadGateway, "refresh failed", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	if h.deps.History == nil {
		writeError(w, http.StatusServiceUnavailable, "history storage disabled", nil)
		return
	}

	limit := defaultHistoryLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer", nil)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	summaries, err := h.deps.History.RecentSnapshots(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (h *handlers) getTerminal(w http.ResponseWriter, r *http.Request) {
	if h.deps.Terminal == nil {
		writeError(w, http.StatusServiceUnavailable, "terminal bridge not configured", nil)
		return
	}
	status, err := h.deps.Terminal.Status(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "failed to fetch terminal status", err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *handlers) postTerminalConnect(w http.ResponseWriter, r *http.Request) {
	if h.deps.Terminal == nil {
		writeError(w, http.StatusServiceUnavailable, "terminal bridge not configured", nil)
		return
	}
	if err := h.deps.Terminal.Connect(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "failed to connect terminal", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "connected"})
}

func writeJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Warn("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, code, resp)
}
