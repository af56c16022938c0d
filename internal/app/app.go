// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/config"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/domain"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/identity/jwt"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/ctxlog"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/httputil"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/metrics"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/pkg/postgres"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

// App represents the long-running notifier instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	redis         *redis.Client
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
	scheduler     *notifications.Scheduler
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	if cfg.JWT.SecretKey == "" {
		return nil, errors.New("jwt.secret_key is required")
	}

	logger := initLogger(cfg.Log)

	db, redisClient, err := connect(cfg)
	if err != nil {
		return nil, err
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		redis:         redisClient,
		metricsCancel: metricsCancel,
	}

	stack := newNotificationStack(cfg, db, redisClient)
	app.scheduler = stack.scheduler

	go app.collectDBMetrics(metricsCtx)
	go app.collectScheduledMetrics(metricsCtx, stack.repo)

	if cfg.Scheduler.Enabled {
		app.scheduler.Start(metricsCtx)
	} else {
		slog.Warn("scheduler is disabled: scheduled notifications will not be processed by this instance")
	}

	router := app.setupRouter(stack)

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// RunScheduledOnce performs a single scheduler pass and releases all resources.
// Per-record delivery failures are part of the report, not the error.
func RunScheduledOnce(ctx context.Context, cfg *config.Config) (notifications.RunReport, error) {
	initLogger(cfg.Log)

	db, redisClient, err := connect(cfg)
	if err != nil {
		return notifications.RunReport{}, err
	}
	defer func() {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		db.Close()
	}()

	stack := newNotificationStack(cfg, db, redisClient)
	return stack.scheduler.RunOnce(ctx)
}

// connect opens the database (migrating it when configured) and the optional Redis client.
func connect(cfg *config.Config) (*pgxpool.Pool, *redis.Client, error) {
	if cfg.Database.AutoMigrate {
		if err := postgres.Migrate(cfg.Database.URL, cfg.Database.MigrationsPath); err != nil {
			return nil, nil, fmt.Errorf("migrate database: %w", err)
		}
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), cfg.Database.ConnectTimeout)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxOpenConns,
		MinConns:        cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		AppName:         "distributor-notifier",
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	redisClient, err := connectRedis(connectCtx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	return db, redisClient, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	// Start metrics server in background
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown stops the scheduler, drains both servers and closes storage.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down")

	// An in-flight scheduler pass needs the database until it returns.
	var schedulerErr error
	if a.config.Scheduler.Enabled {
		schedulerErr = a.scheduler.Shutdown(ctx)
	}
	a.metricsCancel()

	var g errgroup.Group
	g.Go(func() error {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	})
	serverErr := g.Wait()

	var redisErr error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			redisErr = fmt.Errorf("close redis: %w", err)
		}
	}
	a.db.Close()

	return errors.Join(schedulerErr, serverErr, redisErr)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordPoolStats(a.db.Stat())

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordPoolStats(a.db.Stat())
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) collectScheduledMetrics(ctx context.Context, repo notifications.ScheduledRepository) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats, err := repo.GetScheduledStats(ctx)
			if err != nil {
				slog.Error("failed to get scheduled notification stats", "error", err)
				continue
			}
			notifications.RecordScheduledStats(stats)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

// Scheduler returns the scheduler instance. Used in tests.
func (a *App) Scheduler() *notifications.Scheduler {
	return a.scheduler
}

func (a *App) setupRouter(stack *notificationStack) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	r.Use(httputil.CORSMiddleware(a.config.CORS.AllowedOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	r.Get("/api/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-yaml")
		http.ServeFile(w, r, "api/openapi/openapi.yaml")
	})

	validator := jwt.NewValidator(jwt.Config{
		SecretKey: a.config.JWT.SecretKey,
		Issuer:    a.config.JWT.Issuer,
	})
	handler := notifications.NewHandler(stack.service)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.AuthMiddleware(validator))
		r.Use(httputil.RequirePermission(domain.PermissionManageNotifications))
		handler.RegisterRoutes(r)
	})

	return r
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Info())
}

// initLogger builds the logger and installs it as the slog default.
// Unknown levels fall back to info.
func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(handler).With("service", "distributor-notifier")
	slog.SetDefault(logger)
	return logger
}
