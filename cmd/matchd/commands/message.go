package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/merchantnet/matchd-go/internal/logging"
	"github.com/merchantnet/matchd-go/internal/orchestrator"
)

// NewMessageCmd constructs the `matchd message` command, which runs a single
// merchant message through the full pipeline and prints the result.
func NewMessageCmd() *cobra.Command {
	var userID string
	var fb string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "message [text]",
		Short: "Process one merchant message through the pipeline",
		Long: `Run a single merchant message through classification, moderation, and
matchmaking, then print the response.

The --user flag identifies the sending merchant in the dataset; matchmaking
and feedback memory are keyed on it. The optional --feedback flag records a
verdict ("positive" or "negative") on the previous suggestion for this
merchant before the message is processed.

Examples:
  matchd message --user 123 "procuro parceiros para entrega de doces"
  matchd message --user 456 --feedback positive "obrigado!"
  matchd message --user 123 --json "quero divulgar minha loja"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if userID == "" {
				return fmt.Errorf("message: --user is required")
			}

			deps, err := buildPipeline(ctx, log)
			if err != nil {
				return fmt.Errorf("message: %w", err)
			}
			defer deps.Cleanup()

			out, err := deps.Orch.Run(ctx, orchestrator.Input{
				Message:  args[0],
				UserID:   userID,
				Feedback: fb,
			})
			if err != nil {
				return fmt.Errorf("message: %w", err)
			}

			if jsonOut {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(out); err != nil {
					return fmt.Errorf("message: encode output: %w", err)
				}
				return nil
			}

			fmt.Println(out.Response)
			if out.SourceAgentResponse != "" && out.SourceAgentResponse != out.Response {
				fmt.Printf("\nsource: %s\n", out.SourceAgentResponse)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "Merchant id of the message sender (required)")
	cmd.Flags().StringVarP(&fb, "feedback", "f", "", "Verdict on the previous suggestion (positive, negative)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the full workflow response as JSON")

	return cmd
}
