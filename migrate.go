package main

import (
	"context"
	"fmt"

	"ms-attendance/internal/config"
	"ms-attendance/internal/database"
	"ms-attendance/internal/database/migrations"
	"ms-attendance/internal/logger"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m migrations.Migrator, log *logger.Logger) error {
					if err := m.MigrateUp(); err != nil {
						return err
					}
					log.Info("MIGRATION", "Migrations completed successfully")
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back every migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m migrations.Migrator, log *logger.Logger) error {
					runner, ok := m.(*migrations.Runner)
					if !ok {
						return fmt.Errorf("migrate down is only supported for %s", config.DriverPostgres)
					}
					return runner.MigrateDown()
				})
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(m migrations.Migrator, log *logger.Logger) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(ctx context.Context, fn func(migrations.Migrator, *logger.Logger) error) error {
	cfg, log := bootstrap()
	defer log.Close()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer bunDB.Close()

	m := newMigrator(bunDB, cfg.Database, log)
	if runner, ok := m.(*migrations.Runner); ok {
		defer runner.Close()
	}
	return fn(m, log)
}

func newMigrator(bunDB *bun.DB, cfg config.DatabaseConfig, log *logger.Logger) migrations.Migrator {
	if cfg.Driver == config.DriverSQLite {
		return migrations.SchemaMigrator{DB: bunDB}
	}
	return migrations.NewRunner(bunDB, migrations.MigrateOptions{MigrationsDir: cfg.MigrationsDir}, log)
}
