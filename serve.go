package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ms-attendance/internal/analytics"
	analytics_api "ms-attendance/internal/analytics/api"
	"ms-attendance/internal/attendance/attendance_api"
	attendancedb "ms-attendance/internal/attendance/db"
	attendanceredis "ms-attendance/internal/attendance/redis"
	attendance "ms-attendance/internal/attendance/service"
	"ms-attendance/internal/auth"
	"ms-attendance/internal/config"
	"ms-attendance/internal/database"
	"ms-attendance/internal/database/migrations"
	"ms-attendance/internal/kafka"
	"ms-attendance/internal/logger"
	"ms-attendance/internal/metrics"
	"ms-attendance/internal/utils"
	"ms-attendance/internal/volunteers"
	"ms-attendance/internal/volunteers/volunteer_api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

const shutdownTimeout = 10 * time.Second

// server holds everything the HTTP routes depend on.
type server struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *bun.DB
	metrics  *metrics.Metrics
	migrator migrations.Migrator
	options  []attendance.Option
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, log := bootstrap()
	defer log.Close()

	log.Info("APP", "Starting attendance service initialization")
	if err := cfg.Validate(); err != nil {
		log.Error("CONFIG", fmt.Sprintf("Invalid configuration: %v", err))
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Error("DATABASE", err.Error())
		return err
	}
	defer bunDB.Close()

	migrator := newMigrator(bunDB, cfg.Database, log)
	if cfg.Database.AutoMigrate {
		log.Info("MIGRATION", "DB_AUTO_MIGRATE set, applying migrations")
		if err := migrator.MigrateUp(); err != nil {
			log.Error("MIGRATION", fmt.Sprintf("Startup migration failed: %v", err))
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	s := &server{cfg: cfg, log: log, db: bunDB, metrics: m, migrator: migrator}
	s.options = []attendance.Option{attendance.WithLogger(log), attendance.WithMetrics(m)}

	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Error("REDIS", fmt.Sprintf("Redis connection error: %v", err))
			return err
		}
		defer redisClient.Close()
		log.Info("REDIS", fmt.Sprintf("Redis connection successful to %s, attendance uploads are locked per event", cfg.Redis.Addr))
		s.options = append(s.options, attendance.WithLocker(attendanceredis.NewLocker(redisClient, cfg.Redis.LockTTL, log)))
	}

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(ctx, cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}, log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
		defer producer.Close()
		log.Info("KAFKA", fmt.Sprintf("Publishing attendance events to %s", cfg.Kafka.Topic))
		s.options = append(s.options, attendance.WithPublisher(producer))
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      s.routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP", fmt.Sprintf("Attendance service running on %s", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("HTTP", fmt.Sprintf("HTTP server error: %v", err))
			return err
		}
	case <-ctx.Done():
		log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
		return err
	}
	log.Info("HTTP", "Attendance service shutdown complete")
	return nil
}

func (s *server) routes() http.Handler {
	sessions := auth.NewSessions(s.cfg.Auth.SessionSecret, s.cfg.Auth.SessionTTL)
	authHandler := auth.NewHandler(sessions, auth.Credentials{
		Username: s.cfg.Auth.AdminUsername,
		Password: s.cfg.Auth.AdminPassword,
	}, s.cfg.Auth.SecureCookie, s.log)

	workflow := attendance.NewAttendanceService(attendancedb.New(s.db), s.options...)
	attendanceHandler := attendance_api.NewHandler(workflow, s.log)
	analyticsHandler := analytics_api.NewHandler(analytics.NewService(s.db), s.log)
	volunteerHandler := volunteer_api.NewHandler(volunteers.NewService(s.db), s.log)
	migrateHandler := migrations.NewHandler(s.migrator, s.log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.With(auth.RequireSecret(s.cfg.Auth.MigrationSecret, s.log)).Post("/migrate", migrateHandler.Migrate)

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(sessions, s.log))
			attendanceHandler.RegisterRoutes(r)
			analyticsHandler.RegisterRoutes(r)
			volunteerHandler.RegisterRoutes(r)
		})
	})
	s.log.Info("ROUTER", "Routes registered under /api")
	return r
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		s.log.Error("HEALTH", fmt.Sprintf("Database ping failed: %v", err))
		_ = utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database unavailable", ""))
		return
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", nil))
}

// requestLogger records method, path, status and latency of every request.
func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.LogAPI(r.Method, r.URL.Path, strconv.Itoa(status), time.Since(start).String())
		})
	}
}
