package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	memqueue "github.com/JakeFAU/catalog-scraper/internal/queue/memory"
)

// StatsSource reports queue progress. The in-memory queue satisfies it.
type StatsSource interface {
	Stats() memqueue.Stats
}

type requestIDKey struct{}

// Server serves run status while a scrape is in progress.
type Server struct {
	router chi.Router
	runID  string
	site   string
	stats  atomic.Pointer[StatsSource]
	logger *zap.Logger
}

// NewServer builds the router. reg backs /metrics and the request metrics.
func NewServer(runID uuid.UUID, site string, reg *prometheus.Registry, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		return nil, errors.New("api server requires a prometheus registry")
	}
	httpMetrics, err := newRequestMetrics(reg)
	if err != nil {
		return nil, err
	}
	s := &Server{
		runID:  runID.String(),
		site:   site,
		logger: logger.Named("api"),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(s.logger))
	r.Use(recoverMiddleware(s.logger))
	r.Use(httpMetrics.middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Get("/stats", s.statsHandler)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetStats attaches the queue once discovery has produced one.
func (s *Server) SetStats(src StatsSource) {
	if src == nil {
		return
	}
	s.stats.Store(&src)
}

// ListenAndServe serves on addr until ctx is done, then shuts down within
// grace.
func (s *Server) ListenAndServe(ctx context.Context, addr string, grace time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown status server: %w", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.stats.Load() == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "discovering"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statsResponse struct {
	RunID          string         `json:"run_id"`
	Site           string         `json:"site"`
	Stats          memqueue.Stats `json:"stats"`
	ElapsedSeconds float64        `json:"elapsed_seconds"`
}

func (s *Server) statsHandler(w http.ResponseWriter, _ *http.Request) {
	src := s.stats.Load()
	if src == nil {
		writeError(w, http.StatusServiceUnavailable, "queue not ready")
		return
	}
	stats := (*src).Stats()
	writeJSON(w, http.StatusOK, statsResponse{
		RunID:          s.runID,
		Site:           s.site,
		Stats:          stats,
		ElapsedSeconds: stats.Elapsed.Seconds(),
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Warn("write json response failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
