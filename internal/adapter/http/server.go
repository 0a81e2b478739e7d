package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/weather-briefing-service/internal/domain"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// LatestProvider returns the most recent briefing, if one has been built.
type LatestProvider interface {
	Latest() (domain.Briefing, bool)
}

// History reads archived briefings.
type History interface {
	List(ctx context.Context, limit int) ([]domain.ArchiveEntry, error)
	Get(ctx context.Context, runID string) (domain.Briefing, bool, error)
}

// maxHistoryLimit caps the limit query parameter of /briefings.
const maxHistoryLimit = 200

// Server exposes briefing, health, readiness, and metrics HTTP endpoints.
type Server struct {
	httpServer *http.Server
	latest     LatestProvider
	history    History
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /briefing/latest, /briefings,
// /healthz, /readyz, and /metrics routes. history may be nil when no archive
// is configured; the /briefings routes then answer 404.
func NewServer(addr string, ready ReadinessChecker, latest LatestProvider, history History, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      accessLog(mux, logger),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		latest:  latest,
		history: history,
		logger:  logger,
	}

	mux.HandleFunc("GET /briefing/latest", s.handleLatest)
	mux.HandleFunc("GET /briefing/latest/regions/{id}", s.handleRegion)
	mux.HandleFunc("GET /briefings", s.handleHistory)
	mux.HandleFunc("GET /briefings/{runId}", s.handleArchived)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleLatest(w http.ResponseWriter, _ *http.Request) {
	b, ok := s.latest.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no briefing yet"})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	b, ok := s.latest.Latest()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no briefing yet"})
		return
	}
	id := r.PathValue("id")
	for _, region := range b.Regions {
		if region.ParentID == id {
			writeJSON(w, http.StatusOK, region)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown region " + id})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "briefing archive disabled"})
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list archived briefings", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArchived(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "briefing archive disabled"})
		return
	}
	runID := r.PathValue("runId")
	b, ok, err := s.history.Get(r.Context(), runID)
	if err != nil {
		s.logger.Error("get archived briefing", "run_id", runID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "archive unavailable"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown briefing " + runID})
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// accessLog logs each request. Probes and scrapes are logged at debug.
func accessLog(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		switch r.URL.Path {
		case "/healthz", "/readyz", "/metrics":
			level = slog.LevelDebug
		}
		logger.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
