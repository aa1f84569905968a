package main

import (
	"github.com/spf13/cobra"

	"github.com/jmountifield/graph-cisco-meraki/pkg/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the run history schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := a.cfg
			if folder == "" {
				folder = cfg.DatabaseMigrationFolderPath
			}

			db, err := database.Connect(cmd.Context(), databaseConfig(cfg), a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			svc := database.NewMigrationService(a.logger, &database.MigrationConfig{
				MigrationFolderPath: folder,
				Version:             uint(cfg.DatabaseMigrationVersion),
				Force:               cfg.DatabaseMigrationForce,
				AutoRollback:        cfg.DatabaseMigrationAutoRollback,
			})
			return svc.MigratePostgres(db.DB, cfg.DatabaseName)
		},
	}

	cmd.Flags().StringVar(&folder, "path", "", "Migration folder (default DB_MIGRATION_FOLDER_PATH)")
	return cmd
}
