package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/merchantnet/matchd-go/internal/embedder"
	"github.com/merchantnet/matchd-go/internal/index"
	"github.com/merchantnet/matchd-go/internal/logging"
	"github.com/merchantnet/matchd-go/internal/provider"
	"github.com/merchantnet/matchd-go/internal/server"
)

// diagnoseTimeout bounds each individual dependency check.
const diagnoseTimeout = 10 * time.Second

// NewDiagnoseCmd constructs the `matchd diagnose` command, which checks the
// configured dependencies and reports what is reachable.
func NewDiagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose",
		Short: "Check configuration and dependency reachability",
		Long: `Verify the matchd configuration end to end: dataset presence, model
provider settings, embedding settings, and the vector backend connection.
Each check reports pass/fail with the failure reason, so a broken deployment
can be narrowed down without starting the server.

Examples:
  matchd diagnose
  VECTOR_BACKEND=qdrant matchd diagnose`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			failed := 0
			check := func(name string, fn func() error) {
				if err := fn(); err != nil {
					failed++
					fmt.Printf("✗ %-16s %v\n", name, err)
					return
				}
				fmt.Printf("✓ %-16s ok\n", name)
			}

			check("dataset", func() error {
				store, err := loadStore()
				if err != nil {
					return err
				}
				fmt.Printf("  %-16s %d merchants\n", "", store.Len())
				return nil
			})

			check("model config", func() error {
				return provider.ConfigFromEnv().Validate()
			})

			check("model backend", func() error {
				probeCtx, cancel := context.WithTimeout(ctx, diagnoseTimeout)
				defer cancel()
				chatModel, err := provider.NewFromEnv(probeCtx)
				if err != nil {
					return err
				}
				pinger := server.NewLLMPinger(chatModel, getEnvOrDefault("MODEL_PROVIDER", "ollama"))
				return pinger.Ping(probeCtx)
			})

			check("embedding", func() error {
				if getEnvOrDefault("VECTOR_BACKEND", "flat") == string(index.BackendNone) {
					return nil
				}
				if err := embedder.ValidateForSearch(log); err != nil {
					return err
				}
				_, err := embedder.NewFromEnv()
				return err
			})

			check("vector backend", func() error {
				probeCtx, cancel := context.WithTimeout(ctx, diagnoseTimeout)
				defer cancel()
				idx, err := index.NewFromEnv(probeCtx)
				if err != nil {
					return err
				}
				if idx != nil {
					_ = idx.Close()
				}
				return nil
			})

			if failed > 0 {
				return fmt.Errorf("diagnose: %d check(s) failed", failed)
			}
			fmt.Println("\nall checks passed")
			return nil
		},
	}
}
