// cmd/tweetpulse/main.go

package main

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"tweetpulse/internal/config"
	"tweetpulse/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logging.NewLogger().WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tweetpulse",
		Short:         "Stream matching posts, score their sentiment and react to the positive ones",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(migrateCmd())

	return rootCmd
}

// loadConfig reads .env files and the environment, then applies the command's validation
func loadConfig(logger logging.Logger, validate func(config.Config) error) (config.Config, error) {
	loaded, err := config.LoadEnvFiles()
	if err != nil {
		return config.Config{}, err
	}
	if len(loaded) > 0 {
		logger.WithField("files", loaded).Debug("Loaded env files")
	}

	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if err := validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// newRegistry returns a registry with the runtime collectors installed
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}
