package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"callpilot_backend/internal/calendarsvc"
	"callpilot_backend/internal/campaign"
	"callpilot_backend/internal/campaign/ports"
	"callpilot_backend/internal/campaign/store"
	"callpilot_backend/internal/directory"
	"callpilot_backend/internal/events"
	apphttp "callpilot_backend/internal/http"
	"callpilot_backend/internal/http/router"
	"callpilot_backend/internal/notification"
	"callpilot_backend/internal/scheduler"
	"callpilot_backend/internal/voice"
	"callpilot_backend/internal/webhook"
	"callpilot_backend/platform/config"
	"callpilot_backend/platform/logger"
	"callpilot_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	groupStore, health, closeStore := initStore(ctx, cfg, log)
	if closeStore != nil {
		defer closeStore()
	}

	eventBus := events.NewInMemoryBus(log)

	reminderScheduler, closeScheduler := initReminderScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	val := validator.New()

	// ========================================================================
	// Outbound Collaborators
	// ========================================================================

	directorySvc := directory.NewService(cfg, log)
	voiceSvc := voice.NewService(cfg, log)
	if cfg.VoiceAPIKey == "" {
		log.Warn("VOICE_API_KEY not configured; outbound calls will fail")
	}

	var calendar ports.Calendar
	if calSvc := calendarsvc.NewService(cfg, log); calSvc != nil {
		calendar = calSvc
		log.Info("calendar collaborator enabled", "url", cfg.CalendarAPIURL)
	} else {
		log.Warn("calendar not configured; using availability fallback")
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	emailSender := notification.NewSender(cfg)
	notificationModule := notification.NewModule(eventBus, emailSender, reminderScheduler, log)
	defer notificationModule.SSE().Close()

	campaignModule := campaign.NewModule(groupStore, directorySvc, voiceSvc, calendar, eventBus, cfg, log, val)
	webhookModule := webhook.NewModule(campaignModule.Service(), log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   health,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			campaignModule,
			webhookModule,
			notificationModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// redisHealth adapts a redis client to the readiness check.
type redisHealth struct {
	rdb *redis.Client
}

func (h redisHealth) Ping(ctx context.Context) error {
	return h.rdb.Ping(ctx).Err()
}

// initStore picks the Redis-backed store when enabled, falling back to the
// in-process store otherwise. The in-memory store needs no health check.
func initStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.GroupStore, apphttp.HealthChecker, func()) {
	if !cfg.IsRedisStoreEnabled() {
		log.Info("using in-memory group store")
		return store.NewMemoryStore(), nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Error("invalid REDIS_URL", "error", err)
		panic("invalid REDIS_URL: " + err.Error())
	}
	rdb := redis.NewClient(opt)

	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		return rdb.Ping(ctx).Err()
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	log.Info("redis connection established")

	return store.NewRedisStore(rdb), redisHealth{rdb: rdb}, func() { _ = rdb.Close() }
}

func initReminderScheduler(cfg config.SchedulerConfig, log *logger.Logger) (scheduler.ReminderScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; booking reminders disabled")
		return nil, nil
	}

	reminderClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize reminder scheduler client", "error", err)
		return nil, nil
	}

	return reminderClient, func() {
		_ = reminderClient.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
