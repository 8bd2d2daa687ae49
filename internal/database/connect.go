// Package database opens the configured store and keeps its schema current.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	attendancedb "ms-attendance/internal/attendance/db"
	"ms-attendance/internal/config"
	"ms-attendance/internal/logger"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	connectAttempts = 5
	connectBackoff  = 2 * time.Second
)

// Open connects to Postgres or SQLite according to cfg. Postgres is retried
// while the server comes up. SQLite databases get their tables created from
// the bun models since the SQL migrations target Postgres.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, log)
	case config.DriverSQLite:
		return openSQLite(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	var (
		sqldb *sql.DB
		err   error
	)
	for i := 0; i < connectAttempts; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, connectAttempts))
		sqldb, err = sql.Open("postgres", cfg.DSN)
		if err == nil {
			if err = sqldb.PingContext(ctx); err == nil {
				break
			}
			sqldb.Close()
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < connectAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(connectBackoff):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectAttempts, err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*bun.DB, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; a single connection keeps transactions serial.
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := attendancedb.CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("DATABASE", fmt.Sprintf("SQLite database ready at %s", cfg.DSN))
	return db, nil
}
