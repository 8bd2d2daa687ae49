package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := Load()

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "./migrations", cfg.Database.MigrationsDir)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "file:attendance.db")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("ATTENDANCE_LOCK_TTL", "45s")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg := Load()

	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "file:attendance.db", cfg.Database.DSN)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 45*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.Database.Driver = "mysql"
	cfg.Auth.SessionSecret = ""
	cfg.Auth.AdminPassword = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported DB_DRIVER")
	assert.Contains(t, err.Error(), "SESSION_SECRET")
	assert.Contains(t, err.Error(), "ADMIN_PASSWORD")

	cfg.Database.Driver = DriverSQLite
	cfg.Auth.SessionSecret = "secret"
	cfg.Auth.AdminPassword = "pw"
	assert.NoError(t, cfg.Validate())
}
