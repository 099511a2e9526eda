package main

import (
	"github.com/Maddyahamco00/Nigeria-bece-sub000/config"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/database"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/logger"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the payment, candidate and reference tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.AppEnv, nil)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			db, err := database.ConnectPostgres(cfg.PostgresDSN(), log)
			if err != nil {
				return err
			}
			defer database.Close(db) //nolint:errcheck

			if err := database.Migrate(db); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "Migrated %d tables\n", len(database.Models()))
			return nil
		},
	}
}
