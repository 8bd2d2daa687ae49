package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	attendance "ms-attendance/internal/attendance/service"
	"ms-attendance/internal/config"
	"ms-attendance/internal/database/migrations"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/metrics"
	"ms-attendance/internal/testutil"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Load()
	cfg.Auth.AdminUsername = "admin"
	cfg.Auth.AdminPassword = "pw"
	cfg.Auth.SessionSecret = "session-secret"
	cfg.Auth.SessionTTL = time.Hour
	cfg.Auth.MigrationSecret = "migrate-secret"

	bunDB := testutil.NewSQLiteDB(t)
	log := logger.NewNop()
	m := metrics.New(prometheus.NewRegistry())
	s := &server{
		cfg:      cfg,
		log:      log,
		db:       bunDB,
		metrics:  m,
		migrator: migrations.SchemaMigrator{DB: bunDB},
		options:  []attendance.Option{attendance.WithLogger(log), attendance.WithMetrics(m)},
	}
	return s.routes()
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"pw"}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth-token" {
			return c
		}
	}
	t.Fatal("login did not set the session cookie")
	return nil
}

func TestRoutes_Public(t *testing.T) {
	h := testServer(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "attendance_imports_total")
}

func TestRoutes_RequireSession(t *testing.T) {
	h := testServer(t)

	for _, path := range []string{"/api/overview", "/api/blocklist/volunteers", "/api/export/blocklist"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"username":"admin","password":"nope"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRoutes_WithSession(t *testing.T) {
	h := testServer(t)
	cookie := login(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/overview", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var overview map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	assert.Contains(t, overview, "summary")
	assert.JSONEq(t, `[]`, string(overview["eventHistory"]))

	req = httptest.NewRequest(http.MethodPost, "/api/blocklist/volunteers", bytes.NewBufferString(`{"name":"Grace"}`))
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/events/import", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutes_Migrate(t *testing.T) {
	h := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/migrate", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/migrate", nil)
	req.Header.Set("Authorization", "Bearer migrate-secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Migrations completed successfully")
}
