// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	attendancedb "ms-attendance/internal/attendance/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// NewSQLiteDB opens a private in-memory SQLite database with the full schema.
// A single connection keeps the shared-cache database alive and serialises
// writers the way a real transaction would.
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err, "open in-memory database")
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, attendancedb.CreateSchema(context.Background(), bunDB), "create schema")
	return bunDB
}
