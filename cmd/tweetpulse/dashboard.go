// cmd/tweetpulse/dashboard.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tweetpulse/internal/adapter/events"
	"tweetpulse/internal/adapter/storage"
	"tweetpulse/internal/config"
	"tweetpulse/internal/logging"
	"tweetpulse/internal/server"
	"tweetpulse/internal/server/handlers"
)

func dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the read-only results dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLoggerWithService("dashboard")

			cfg, err := loadConfig(logger, config.Config.ValidateDashboard)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runDashboard(ctx, cfg, logger)
		},
	}
}

func runDashboard(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	deps := server.Deps{
		Results: storage.NewSentimentStore(db),
		Checks: map[string]handlers.HealthCheck{
			"database": db.PingContext,
		},
		Metrics: promhttp.HandlerFor(newRegistry(), promhttp.HandlerOpts{}),
		Logger:  logger,
	}

	if cfg.NATS.URL != "" {
		natsConn, err := events.Connect(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer natsConn.Close()

		deps.Feed = events.NewSubscriber(natsConn, cfg.NATS.Subject, logger)
		deps.Checks["nats"] = natsCheck(natsConn)
	}

	httpServer := server.NewServer(cfg.Server, deps)

	g, gctx := errgroup.WithContext(ctx)

	// Start HTTP server
	g.Go(func() error {
		logger.WithField("addr", httpServer.Addr()).Info("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Shut down on signal or server failure
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP server shutdown error")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
