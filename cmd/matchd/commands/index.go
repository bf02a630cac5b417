package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/merchantnet/matchd-go/internal/embedder"
	"github.com/merchantnet/matchd-go/internal/index"
	"github.com/merchantnet/matchd-go/internal/indexer"
	"github.com/merchantnet/matchd-go/internal/logging"
)

// NewIndexCmd constructs the `matchd index` command, which embeds the
// merchant dataset into the configured vector backend.
func NewIndexCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed the merchant dataset into the vector backend",
		Long: `Embed every merchant message in the dataset and upsert the vectors into
the configured vector backend.

This is a one-time (re-runnable) setup step for the server-side backends.
Re-running replaces existing vectors in place, so it is safe after dataset
updates.

Required environment variables:
  VECTOR_BACKEND       qdrant or postgres (the flat backend is seeded
                       automatically at serve time and needs no indexing)
  MATCHD_MERCHANT_DATA Merchant CSV path (default: data/merchants.csv)
  EMBEDDING_*          Embedding provider overrides (see README)

Examples:
  VECTOR_BACKEND=qdrant matchd index
  VECTOR_BACKEND=postgres POSTGRES_DSN=postgres://... matchd index --batch 64`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			backend := index.Backend(getEnvOrDefault("VECTOR_BACKEND", string(index.BackendFlat)))
			if backend != index.BackendQdrant && backend != index.BackendPostgres {
				return fmt.Errorf("index: backend %q does not need offline indexing; set VECTOR_BACKEND to qdrant or postgres", backend)
			}

			if err := embedder.ValidateForSearch(log); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("index: failed to initialise embedder: %w", err)
			}

			idx, err := index.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("index: failed to connect to vector backend: %w", err)
			}
			defer func() { _ = idx.Close() }()
			log.Info("vector backend ready", slog.String("backend", string(backend)))

			store, err := loadStore()
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			log.Info("merchant dataset loaded", slog.Int("records", store.Len()))

			pipe, err := indexer.NewPipeline(emb, idx, &indexer.Config{BatchSize: batchSize})
			if err != nil {
				return fmt.Errorf("index: failed to create pipeline: %w", err)
			}

			n, err := pipe.Index(ctx, store, func(msg string) {
				log.Info(msg)
			})
			if err != nil {
				return fmt.Errorf("index: pipeline failed after %d merchants: %w", n, err)
			}

			log.Info("indexing complete", slog.Int("merchants", n))
			return nil
		},
	}

	cmd.Flags().IntVarP(&batchSize, "batch", "b", 0, "Embedding batch size (default: 32)")

	return cmd
}
