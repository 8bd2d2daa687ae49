package migrations

import (
	"context"
	"errors"
	"fmt"
	"os"

	attendancedb "ms-attendance/internal/attendance/db"
	"ms-attendance/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/uptrace/bun"
)

// Migrator applies pending schema changes and reports the current version.
type Migrator interface {
	MigrateUp() error
	Version() (version uint, dirty bool, err error)
}

// MigrateOptions defines configuration options for migration
type MigrateOptions struct {
	// MigrationsDir is the directory containing migration files
	MigrationsDir string
}

// DefaultOptions returns the default migration options
func DefaultOptions() MigrateOptions {
	return MigrateOptions{MigrationsDir: "./migrations"}
}

// Runner applies the SQL files in MigrationsDir to a Postgres database.
type Runner struct {
	bunDB    *bun.DB
	options  MigrateOptions
	migrator *migrate.Migrate
	logger   *logger.Logger
}

func NewRunner(bunDB *bun.DB, opts MigrateOptions, log *logger.Logger) *Runner {
	return &Runner{
		bunDB:   bunDB,
		options: opts,
		logger:  log,
	}
}

// Initialize prepares the migration system
func (r *Runner) Initialize() error {
	driver, err := postgres.WithInstance(r.bunDB.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create postgres migration driver: %w", err)
	}

	if _, err := os.Stat(r.options.MigrationsDir); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", r.options.MigrationsDir)
	}

	migrator, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", r.options.MigrationsDir),
		"postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	r.migrator = migrator
	return nil
}

func (r *Runner) ensure() error {
	if r.migrator != nil {
		return nil
	}
	return r.Initialize()
}

// MigrateUp runs all pending migrations. A dirty database is forced back to
// its recorded version first so a failed deploy can be retried.
func (r *Runner) MigrateUp() error {
	if err := r.ensure(); err != nil {
		return err
	}

	version, dirty, err := r.migrator.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to get migration version: %w", err)
	}
	if dirty {
		r.logger.Warn("MIGRATION", fmt.Sprintf("Detected dirty migration at version %d, forcing before retry", version))
		if err := r.migrator.Force(int(version)); err != nil {
			return fmt.Errorf("failed to fix dirty migration: %w", err)
		}
	}

	if err := r.migrator.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			r.logger.Info("MIGRATION", "Schema already up to date")
			return nil
		}
		return fmt.Errorf("migration up failed: %w", err)
	}

	if version, _, err := r.migrator.Version(); err == nil {
		r.logger.LogDatabase("MIGRATE", "schema_migrations", fmt.Sprintf("Current schema version: %d", version))
	}
	return nil
}

// MigrateDown rolls back all migrations
func (r *Runner) MigrateDown() error {
	if err := r.ensure(); err != nil {
		return err
	}

	if err := r.migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	r.logger.LogDatabase("MIGRATE", "schema_migrations", "All migrations rolled back")
	return nil
}

// Version reports the applied version. A database without migrations
// reports version 0.
func (r *Runner) Version() (uint, bool, error) {
	if err := r.ensure(); err != nil {
		return 0, false, err
	}

	version, dirty, err := r.migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Close frees resources associated with the migrator
func (r *Runner) Close() error {
	if r.migrator != nil {
		sourceErr, databaseErr := r.migrator.Close()
		if sourceErr != nil {
			return fmt.Errorf("error closing migrator source: %w", sourceErr)
		}
		if databaseErr != nil {
			return fmt.Errorf("error closing migrator database: %w", databaseErr)
		}
	}
	return nil
}

// SchemaMigrator keeps a SQLite database current by creating any missing
// tables from the bun models. It has no version history.
type SchemaMigrator struct {
	DB *bun.DB
}

func (s SchemaMigrator) MigrateUp() error {
	return attendancedb.CreateSchema(context.Background(), s.DB)
}

func (s SchemaMigrator) Version() (uint, bool, error) {
	return 0, false, nil
}
