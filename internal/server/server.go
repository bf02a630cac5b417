// Package server implements the HTTP API in front of the matchd agent
// pipeline. It exposes message processing, pipeline status, health and
// readiness probes, and Prometheus metrics.
// The server is started by the `matchd serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/merchantnet/matchd-go/internal/logging"
	"github.com/merchantnet/matchd-go/internal/orchestrator"
)

// New constructs a Server from the provided pipeline and config.
func New(pipe pipeline, cfg *Config) (*Server, error) {
	if pipe == nil {
		return nil, errors.New("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover a full pipeline run, which can involve
		// several model round-trips.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		pipe:    pipe,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	if cfg.APIKey == "" {
		s.log.Warn("API key not set, authentication disabled")
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/message",
		authMiddleware(cfg.APIKey, rl.middleware(s.instrument("message", s.handleMessage))))
	mux.Handle("GET /api/status",
		authMiddleware(cfg.APIKey, s.instrument("status", s.handleStatus)))
	mux.Handle("GET /api/health", s.instrument("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrument("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Handler returns the fully wired HTTP handler. Exposed for tests that drive
// the server through httptest without opening a socket.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()

	errCh := make(chan error, 1)

	go func() {
		s.log.Info("listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleMessage handles POST /api/message. The body decodes directly into an
// [orchestrator.Input]; the response is the full [orchestrator.Output]
// including the agent workflow trace.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var in orchestrator.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.Message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	if in.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	start := time.Now()
	out, err := s.pipe.Run(r.Context(), in)
	if err != nil {
		s.metrics.messageRequestsTotal.WithLabelValues(outcomeForError(r.Context(), err)).Inc()
		log.Error("pipeline run failed", slog.Any("error", err))
		http.Error(w, "message processing failed", http.StatusInternalServerError)
		return
	}
	s.metrics.messageRequestsTotal.WithLabelValues("ok").Inc()
	s.metrics.messageDurationSeconds.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	for _, step := range out.Workflow {
		if step.Classification != "" {
			s.metrics.classificationsTotal.WithLabelValues(step.Classification).Inc()
		}
		if step.ModerationAction != "" {
			s.metrics.moderationActionsTotal.WithLabelValues(step.ModerationAction).Inc()
		}
	}

	writeJSON(w, log, http.StatusOK, out)
}

// handleStatus handles GET /api/status, reporting the registered agents and
// the per-user feedback memory counters.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	st, err := s.pipe.Status(r.Context())
	if err != nil {
		log.Error("status failed", slog.Any("error", err))
		http.Error(w, "status unavailable", http.StatusInternalServerError)
		return
	}

	writeJSON(w, log, http.StatusOK, st)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, logging.FromContext(r.Context()), http.StatusOK, map[string]string{"status": "ok"})
}

// instrument wraps a handler func with the shared HTTP request counter and
// latency histogram, labelled by the logical endpoint name.
func (s *Server) instrument(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		h(rw, r)
		s.metrics.httpRequestsTotal.WithLabelValues(r.Method, name, fmt.Sprintf("%d", rw.status)).Inc()
		s.metrics.httpDurationSeconds.WithLabelValues(r.Method, name).Observe(time.Since(start).Seconds())
	})
}

// outcomeForError maps a pipeline error to a metric outcome label.
func outcomeForError(ctx context.Context, err error) string {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return "timeout"
	}
	return "error"
}

// writeJSON encodes v as the JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}
