// Package api serves the dashboard over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rewired-gh/eaanalyzer/internal/dashboard"
	"github.com/rewired-gh/eaanalyzer/internal/logger"
	"github.com/rewired-gh/eaanalyzer/internal/models"
)

// Dashboard is the state the API reads and mutates.
type Dashboard interface {
	Current() dashboard.View
	Refresh(ctx context.Context, trigger dashboard.Trigger) (*dashboard.View, error)
	SetCriteria(ctx context.Context, c models.FilterCriteria) (*dashboard.View, error)
}

// History lists persisted snapshot summaries.
type History interface {
	RecentSnapshots(k int) ([]models.SnapshotSummary, error)
}

// Terminal is the bridge's terminal control surface.
type Terminal interface {
	Status(ctx context.Context) (*models.TerminalStatus, error)
	Connect(ctx context.Context) error
}

// Dependencies wires the API. Only Dashboard is required.
type Dependencies struct {
	Dashboard Dashboard
	History   History
	Terminal  Terminal
	Stream    http.Handler
	Metrics   http.Handler
}

// Options configures the HTTP server.
type Options struct {
	ListenAddr     string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
}

// Server is the HTTP front of the dashboard.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds the route table wrapped in recovery, logging and CORS.
func NewRouter(deps Dependencies, allowedOrigins []string) http.Handler {
	h := &handlers{deps: deps}
	router := mux.NewRouter()

	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/snapshot", h.getSnapshot).Methods(http.MethodGet)
	v1.HandleFunc("/metrics/general", h.getGeneral).Methods(http.MethodGet)
	v1.HandleFunc("/equity", h.getEquity).Methods(http.MethodGet)
	v1.HandleFunc("/daily", h.getDaily).Methods(http.MethodGet)
	v1.HandleFunc("/heatmap", h.getHeatmap).Methods(http.MethodGet)
	v1.HandleFunc("/ranking", h.getRanking).Methods(http.MethodGet)
	v1.HandleFunc("/trades/recent", h.getRecentTrades).Methods(http.MethodGet)
	v1.HandleFunc("/trades/extremes", h.getExtremes).Methods(http.MethodGet)
	v1.HandleFunc("/options", h.getOptions).Methods(http.MethodGet)
	v1.HandleFunc("/filters", h.getFilters).Methods(http.MethodGet)
	v1.HandleFunc("/filters", h.putFilters).Methods(http.MethodPut)
	v1.HandleFunc("/refresh", h.postRefresh).Methods(http.MethodPost)
	v1.HandleFunc("/history", h.getHistory).Methods(http.MethodGet)
	v1.HandleFunc("/terminal", h.getTerminal).Methods(http.MethodGet)
	v1.HandleFunc("/terminal/connect", h.postTerminalConnect).Methods(http.MethodPost)

	if deps.Stream != nil {
		router.Handle("/ws", deps.Stream)
	}
	if deps.Metrics != nil {
		router.Handle("/metrics", deps.Metrics).Methods(http.MethodGet)
	}
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found", nil)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return recovery(logging(cors(allowedOrigins)(router)))
}

// NewServer creates a server for deps.
func NewServer(deps Dependencies, opts Options) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         opts.ListenAddr,
			Handler:      NewRouter(deps, opts.AllowedOrigins),
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
		},
	}
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		logger.Info("HTTP API listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed: %v", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
