package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/geneticconstructor/constructor-store/internal/config"
	"github.com/geneticconstructor/constructor-store/internal/infra/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		conf, err := config.Load(configPath)
		if err != nil {
			return err
		}

		db, err := database.NewPostgres(conf.Server.PostgresDsn)
		if err != nil {
			return err
		}

		if err := database.Migrate(db); err != nil {
			return err
		}
		slog.Info("migration complete", slog.String("module", "main"))
		return nil
	},
}
