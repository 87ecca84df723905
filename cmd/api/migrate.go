package main

import (
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/kokorotts/internal/config"
	"github.com/nikhilbhutani/kokorotts/internal/database"
)

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			pool, err := database.NewPool(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.RunMigrations(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info("migrations applied", "database", config.RedactedDatabaseURL(cfg.Database.URL))
			return nil
		},
	}
}
