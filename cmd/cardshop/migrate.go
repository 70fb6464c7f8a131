package main

import (
	"cardshop/internal/config"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	var down int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations, or roll back with --down",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			db, err := connectDatabase(cfg.DSN(), logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if down > 0 {
				return rollbackMigrations(db, cfg.MigrationsPath, down, logger)
			}
			return runMigrations(db, cfg.MigrationsPath, logger)
		},
	}
	cmd.Flags().IntVar(&down, "down", 0, "number of migrations to roll back")
	return cmd
}
