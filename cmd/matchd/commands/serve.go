package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/merchantnet/matchd-go/internal/index"
	"github.com/merchantnet/matchd-go/internal/logging"
	"github.com/merchantnet/matchd-go/internal/server"
	"github.com/merchantnet/matchd-go/internal/tracing"
)

// NewServeCmd constructs the `matchd serve` command, which starts the HTTP
// API server.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the matchd HTTP API server",
		Long: `Start the matchd HTTP server on localhost.

The server exposes POST /api/message for message processing, GET /api/status
for pipeline state, liveness and readiness probes, and Prometheus metrics
on /metrics.

Examples:
  matchd serve
  matchd serve --port 9090
  MODEL_PROVIDER=openai VECTOR_BACKEND=qdrant matchd serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			deps, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.Cleanup()

			pingers := buildPingers(deps)

			srv, err := server.New(deps.Orch, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("MATCHD_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}

// buildPingers assembles the readiness probes for the configured backends.
// The chat model is always probed; a remote vector index adds its own probe.
func buildPingers(deps *pipelineDeps) []server.Pinger {
	pingers := []server.Pinger{
		server.NewLLMPinger(deps.ChatModel, getEnvOrDefault("MODEL_PROVIDER", "ollama")),
	}

	switch v := deps.Index.(type) {
	case *index.QdrantIndex:
		pingers = append(pingers, server.NewIndexPinger(v, "qdrant"))
	case *index.PostgresIndex:
		pingers = append(pingers, server.NewIndexPinger(v, "postgres"))
	}

	return pingers
}
