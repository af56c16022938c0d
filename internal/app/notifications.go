package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/config"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications/fcm"
	"github.com/kevinmanvar27/distributor-app-sub002/internal/notifications/fcm/rediscache"
	notificationspostgres "github.com/kevinmanvar27/distributor-app-sub002/internal/notifications/postgres"
	"github.com/redis/go-redis/v9"
)

// notificationStack wires the notification components shared by the daemon
// and the one-shot scheduler command.
type notificationStack struct {
	repo       *notificationspostgres.Repository
	dispatcher *notifications.Dispatcher
	scheduler  *notifications.Scheduler
	service    *notifications.Service
}

func newNotificationStack(cfg *config.Config, db *pgxpool.Pool, redisClient *redis.Client) *notificationStack {
	fcmConfig := fcmConfigFrom(cfg.Firebase)

	var cache fcm.TokenCache = fcm.NewMemoryCache()
	if redisClient != nil {
		cache = rediscache.New(redisClient, cfg.Redis.KeyPrefix)
	}

	if !fcmConfig.IsConfigured() {
		slog.Warn("firebase is not configured: push delivery is disabled, in-app notifications are still saved")
	}

	tokens := fcm.NewTokenProvider(fcmConfig, cache)
	sender := fcm.NewSender(fcmConfig, tokens)

	repo := notificationspostgres.NewRepository(db)

	dispatcher := notifications.NewDispatcher(notifications.DispatcherConfig{
		PageSize:    cfg.Scheduler.PageSize,
		Concurrency: cfg.Scheduler.FanoutConcurrency,
	}, repo, notifications.NewInboxWriter(repo), sender)

	scheduler := notifications.NewScheduler(notifications.SchedulerConfig{
		Interval:          cfg.Scheduler.Interval,
		Retention:         cfg.Scheduler.Retention,
		LeaseDuration:     cfg.Scheduler.LeaseDuration,
		HeartbeatInterval: cfg.Scheduler.HeartbeatInterval,
	}, repo, dispatcher)

	return &notificationStack{
		repo:       repo,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		service:    notifications.NewService(repo, dispatcher),
	}
}

func fcmConfigFrom(cfg config.FirebaseConfig) fcm.Config {
	return fcm.Config{
		ProjectID:   cfg.ProjectID,
		ClientEmail: cfg.ClientEmail,
		PrivateKey:  cfg.PrivateKey,
		TokenURL:    cfg.TokenURL,
		APIBaseURL:  cfg.APIBaseURL,
		Timeout:     cfg.Timeout,
		RateLimit:   cfg.RateLimit,
	}
}

// connectRedis returns nil when Redis is not configured.
func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	if !cfg.Enabled() {
		return nil, nil
	}

	client, err := rediscache.Connect(ctx, cfg.Addr, cfg.Password, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	slog.Info("firebase token cache uses redis", "addr", cfg.Addr)
	return client, nil
}
