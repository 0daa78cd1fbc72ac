package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/database"
	"github.com/prajwal851851/QRCODE-PROJECT/internal/adapters/postgres"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [command] [args]",
		Short: "Apply or inspect the embedded database migrations",
		Long: `Run a goose command against the embedded SQL migrations.

Commands:
  up          Migrate the DB to the most recent version available
  up-to V     Migrate the DB to a specific VERSION
  down        Roll back the version by 1
  down-to V   Roll back to a specific VERSION
  redo        Re-run the latest migration
  reset       Roll back all migrations
  status      Dump the migration status for the current DB
  version     Print the current version of the database

Examples:
  billingctl migrate up
  billingctl migrate status`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			dbCfg := database.DefaultPostgreSQLConfig(cfg.Database.ConnectionString())
			dbCfg.MaxConns = 2
			dbCfg.MinConns = 0
			db, err := database.NewPostgreSQLAdapter(cmd.Context(), dbCfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := postgres.Migrate(cmd.Context(), db.Pool(), args[0], args[1:]...); err != nil {
				return err
			}
			logger.Info("Migration command finished", zap.String("command", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: ok\n", args[0])
			return nil
		},
	}
}
