package main

import (
	"billflow/internal/config"
	"billflow/internal/database"
	"billflow/internal/logger"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		log := logger.New(cfg.Log)
		defer log.Sync()

		db, err := database.New(&cfg.Database, log)
		if err != nil {
			return err
		}
		defer db.Close()

		return db.Migrate()
	},
}
