package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/parlwatch/parliament-monitor/internal/api"
)

// newServeCmd creates the 'serve' subcommand: the HTTP API with the
// monitoring scheduler running alongside it.
func newServeCmd() *cobra.Command {
	var withScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run the monitor",
		Long: `Exposes the stored documents, alerts and stats over HTTP, along with
health and Prometheus metrics endpoints, while the monitoring loop runs
in the same process. Pass --scheduler=false for an API-only replica.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, withScheduler)
		},
	}
	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "run the monitoring scheduler in this process")
	return cmd
}

func runServe(cmd *cobra.Command, withScheduler bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := appInstance.Config
	server := api.NewServer(appInstance.Store, appInstance.Pipeline, api.Config{
		AuthEnabled: cfg.Server.Auth.Enabled,
		APIKey:      cfg.Server.Auth.APIKey,
	}, appInstance.Logger)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	schedulerDone := make(chan struct{})
	if withScheduler {
		go func() {
			defer close(schedulerDone)
			appInstance.Scheduler.Run(ctx)
		}()
	} else {
		close(schedulerDone)
	}

	serveErr := make(chan error, 1)
	go func() {
		appInstance.Logger.Info("http server listening", zap.Int("port", cfg.Server.Port))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appInstance.Logger.Warn("http server shutdown", zap.Error(err))
	}
	<-schedulerDone

	appInstance.Logger.Info("server stopped")
	return nil
}
