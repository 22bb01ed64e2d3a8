package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"github.com/use-agent/harvest/api"
	"github.com/use-agent/harvest/browser"
	"github.com/use-agent/harvest/jobs"
	"github.com/use-agent/harvest/metrics"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the harvest job API, running queued jobs one at a time on a shared browser.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		slog.Info("harvest server starting",
			"host", cfg.Server.Host,
			"port", cfg.Server.Port,
			"mode", cfg.Server.Mode,
			"queueSize", cfg.Jobs.QueueSize,
		)

		// ── Browser ─────────────────────────────────────────────────
		b, err := browser.Launch(cfg.Browser)
		if err != nil {
			return err
		}
		defer func() {
			if err := b.Close(); err != nil {
				slog.Warn("failed to close browser", "error", err)
			}
		}()

		// ── Job runner ──────────────────────────────────────────────
		m := metrics.New()
		runner := jobs.NewRunner(
			newOrchestrator(cfg.Harvest, m),
			sessionFactory(b, rodOptions(cfg)),
			jobs.NewStore(cfg.Jobs.MaxRetained, cfg.Jobs.Retention),
			jobs.Options{
				QueueSize:     cfg.Jobs.QueueSize,
				OutputDir:     cfg.Output.Dir,
				WebhookSecret: cfg.Webhook.Secret,
				Metrics:       m,
			},
		)
		runner.Start()
		defer runner.Stop()

		// ── HTTP server ─────────────────────────────────────────────
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		srv := &http.Server{
			Addr:    addr,
			Handler: api.NewRouter(runner, m, cfg, time.Now()),
		}

		serveErr := make(chan error, 1)
		go func() {
			slog.Info("HTTP server listening", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
			close(serveErr)
		}()

		select {
		case err := <-serveErr:
			if err != nil {
				return fmt.Errorf("http server: %w", err)
			}
		case <-ctx.Done():
			slog.Info("shutdown signal received")
		}

		// Give in-flight requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server forced shutdown", "error", err)
		} else {
			slog.Info("HTTP server drained gracefully")
		}

		slog.Info("harvest server stopped")
		return nil
	},
}
