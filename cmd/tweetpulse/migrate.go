// cmd/tweetpulse/migrate.go

package main

import (
	"github.com/spf13/cobra"

	"tweetpulse/internal/adapter/storage"
	"tweetpulse/internal/config"
	"tweetpulse/internal/logging"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the result tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.NewLoggerWithService("migrate")

			cfg, err := loadConfig(logger, config.Config.ValidateDashboard)
			if err != nil {
				return err
			}

			db, err := storage.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := storage.Migrate(cmd.Context(), db); err != nil {
				return err
			}

			logger.Info("Schema applied")
			return nil
		},
	}
}
