package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/merchantnet/matchd-go/internal/orchestrator"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry is the Prometheus registry metrics are registered into.
	// If nil, a new private registry is created. /metrics always serves
	// whichever registry ends up in use.
	Registry *prometheus.Registry
}

// pipeline is the interface handleMessage and handleStatus call into.
// *orchestrator.Orchestrator satisfies it; tests inject a fake.
type pipeline interface {
	// Run processes one merchant message through the full agent workflow.
	Run(ctx context.Context, in orchestrator.Input) (orchestrator.Output, error)

	// Status reports the registered agents and the feedback memory counters.
	Status(ctx context.Context) (orchestrator.Status, error)
}

// Server is the HTTP server that exposes the matchmaking pipeline.
type Server struct {
	// pipe is the orchestrator handling all message requests.
	pipe pipeline
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}
