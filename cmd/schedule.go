package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// newScheduleCmd creates the 'schedule' subcommand: the long-running monitor
// loop driven by per-source intervals.
func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the monitor continuously on its configured intervals",
		Long: `Runs an immediate full cycle, then keeps checking each source on its
configured interval until interrupted. Overlapping checks of the same
source are skipped.`,
		RunE: runSchedule,
	}
	return cmd
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	appInstance.Logger.Info("scheduler starting")
	appInstance.Scheduler.Run(ctx)
	appInstance.Logger.Info("scheduler stopped")
	return nil
}
