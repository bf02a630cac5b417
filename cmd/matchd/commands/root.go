// Package commands defines all Cobra CLI commands for the matchd binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/merchantnet/matchd-go/internal/audit"
	"github.com/merchantnet/matchd-go/internal/config"
	"github.com/merchantnet/matchd-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "matchd",
		Short: "matchd routes merchant messages and suggests partner connections",
		Long: `matchd is a message-routing and partner-matchmaking service for merchant
networks. Incoming messages are classified, moderated, and then either matched
against nearby merchants or escalated to a human operator. Matching can run
against a vector index (Qdrant or Postgres/pgvector) or a built-in heuristic
scorer, and learns from per-merchant feedback over time.

Model provider is selected via the MODEL_PROVIDER environment variable
or a YAML config file (~/.matchd/config.yaml).
See 'matchd --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.matchd/config.yaml)")

	root.AddCommand(
		NewMessageCmd(),
		NewServeCmd(),
		NewIndexCmd(),
		NewDiagnoseCmd(),
		NewVersionCmd(),
	)

	return root
}
