package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand: a single monitoring cycle across
// every configured source, then exit.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [source]",
		Short: "Run one monitoring cycle and exit",
		Long: `Checks every configured source once, stores anything new, and dispatches
queued alerts. Pass a source name to check just that source without
dispatching.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runOnce,
	}
	return cmd
}

func runOnce(cmd *cobra.Command, args []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) == 1 {
		docs, err := appInstance.Pipeline.RunSource(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("check source %s: %w", args[0], err)
		}
		appInstance.Logger.Info("source check finished",
			zap.String("source", args[0]),
			zap.Int("new_documents", len(docs)),
		)
		return nil
	}

	result, err := appInstance.Pipeline.RunCycle(cmd.Context())
	if err != nil {
		return fmt.Errorf("run cycle: %w", err)
	}
	for _, doc := range result.Alerted {
		appInstance.Logger.Info("alerted document",
			zap.String("title", doc.Title),
			zap.String("level", string(doc.Tier)),
		)
	}
	appInstance.Logger.Info("cycle finished",
		zap.Int("new_documents", len(result.NewDocuments)),
		zap.Int("alerted", len(result.Alerted)),
		zap.Bool("alerts_dispatched", result.Dispatched),
	)
	return nil
}
