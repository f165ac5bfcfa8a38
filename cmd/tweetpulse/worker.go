// cmd/tweetpulse/worker.go

package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"tweetpulse/internal/adapter/events"
	"tweetpulse/internal/adapter/storage"
	"tweetpulse/internal/adapter/textanalytics"
	"tweetpulse/internal/adapter/twitter"
	"tweetpulse/internal/config"
	"tweetpulse/internal/domain/sentiment"
	"tweetpulse/internal/logging"
	"tweetpulse/internal/server"
	"tweetpulse/internal/server/handlers"
	"tweetpulse/internal/service/listening"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the stream worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLoggerWithService("worker")

			cfg, err := loadConfig(logger, config.Config.ValidateWorker)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runWorker(ctx, cfg, logger)
		},
	}
}

func runWorker(ctx context.Context, cfg config.Config, logger logging.Logger) error {
	// Initialize dependencies
	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	analyzer, err := textanalytics.NewClient(textanalytics.Config{
		Endpoint:   cfg.TextAnalytics.Endpoint,
		Key:        cfg.TextAnalytics.Key,
		Language:   cfg.TextAnalytics.Language,
		Timeout:    cfg.TextAnalytics.Timeout,
		MaxRetries: cfg.TextAnalytics.MaxRetries,
	})
	if err != nil {
		return err
	}

	platform, err := twitter.NewPlatform(twitter.Config{
		APIKey:       cfg.Twitter.APIKey,
		APISecret:    cfg.Twitter.APISecret,
		AccessToken:  cfg.Twitter.AccessToken,
		AccessSecret: cfg.Twitter.AccessSecret,
		BearerToken:  cfg.Twitter.BearerToken,
		Host:         cfg.Twitter.Host,
		AccountID:    cfg.Twitter.AccountID,

		ReactionInterval: cfg.Twitter.ReactionInterval,
	}, logger)
	if err != nil {
		return err
	}

	var publisher sentiment.Publisher
	var natsConn *nats.Conn
	if cfg.NATS.URL != "" {
		natsConn, err = events.Connect(cfg.NATS, logger)
		if err != nil {
			return err
		}
		defer natsConn.Close()
		publisher = events.NewPublisher(natsConn, cfg.NATS.Subject)
	}

	reg := newRegistry()
	reg.MustRegister(platform.Collectors()...)
	metrics := listening.NewMetrics(reg)

	// Initialize services
	reactor := listening.NewReactor(platform, cfg.Twitter.ReactionTimeout, metrics, logger)

	pipeline := listening.NewPipeline(listening.PipelineDeps{
		Filter: listening.NewFilter(listening.FilterConfig{
			MinFollowers:        cfg.Filter.MinFollowers,
			MinAccountAgeMonths: cfg.Filter.MinAccountAgeMonth,
		}),
		Normalizer: listening.NewNormalizer(cfg.Stream.Keywords),
		Analyzer:   analyzer,
		Store:      storage.NewSentimentStore(db),
		Reactor:    reactor,
		Publisher:  publisher,
		Metrics:    metrics,
		Logger:     logger,
	})

	supervisor := listening.NewSupervisor(platform, pipeline, metrics, logger, listening.SupervisorConfig{
		Keywords:     cfg.Stream.Keywords,
		Usernames:    cfg.Stream.Users,
		Language:     cfg.Stream.Language,
		FilterLevel:  cfg.Stream.FilterLevel,
		RestartDelay: cfg.Stream.RestartDelay,
	})

	var metricsServer *server.Server
	if cfg.Worker.MetricsAddr != "" {
		metricsServer = server.NewMetricsServer(
			cfg.Worker.MetricsAddr,
			promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			workerChecks(db, supervisor, natsConn),
			logger,
		)
		go func() {
			logger.WithField("addr", metricsServer.Addr()).Info("Starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.WithError(err).Error("Metrics server error")
			}
		}()
	}

	// Start the stream
	if err := supervisor.Start(ctx); err != nil {
		return err
	}

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()

	if err := supervisor.Stop(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Stream supervisor shutdown error")
	}
	if err := reactor.Wait(shutdownCtx); err != nil {
		logger.WithError(err).Warn("Pending reactions abandoned")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Metrics server shutdown error")
		}
	}

	logger.Info("Shutdown complete")
	return nil
}

func workerChecks(db *sql.DB, supervisor *listening.Supervisor, natsConn *nats.Conn) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": db.PingContext,
		"stream": func(ctx context.Context) error {
			if supervisor.State() != listening.StateConnected {
				return errors.New("stream is not connected")
			}
			return nil
		},
	}
	if natsConn != nil {
		checks["nats"] = natsCheck(natsConn)
	}
	return checks
}

func natsCheck(nc *nats.Conn) handlers.HealthCheck {
	return func(ctx context.Context) error {
		if !nc.IsConnected() {
			return errors.New("nats is " + nc.Status().String())
		}
		return nil
	}
}
