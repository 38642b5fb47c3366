// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/bbigmic/dziennik-pracy/internal/access"
	"github.com/bbigmic/dziennik-pracy/internal/admin"
	"github.com/bbigmic/dziennik-pracy/internal/assistant"
	"github.com/bbigmic/dziennik-pracy/internal/auth"
	"github.com/bbigmic/dziennik-pracy/internal/billing"
	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/health"
	"github.com/bbigmic/dziennik-pracy/internal/journal"
	"github.com/bbigmic/dziennik-pracy/internal/mailer"
	"github.com/bbigmic/dziennik-pracy/internal/metrics"
	"github.com/bbigmic/dziennik-pracy/internal/middleware"
	"github.com/bbigmic/dziennik-pracy/internal/migrations"
	"github.com/bbigmic/dziennik-pracy/internal/notify"
	"github.com/bbigmic/dziennik-pracy/internal/push"
	"github.com/bbigmic/dziennik-pracy/internal/server"
	"github.com/bbigmic/dziennik-pracy/internal/storage"
	"github.com/bbigmic/dziennik-pracy/internal/task"
	"github.com/bbigmic/dziennik-pracy/internal/user"
	"github.com/bbigmic/dziennik-pracy/internal/voice"
)

const (
	drainDelay           = 5 * time.Second
	sessionPruneInterval = time.Hour
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	_ = godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := migrations.Run(db.DB.DB); err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	signer, err := auth.NewSigner(cfg.JWT)
	if err != nil {
		return err
	}
	logger.Info("token signer ready",
		"algorithm", "ES256",
		"key_id", signer.KeyID(),
	)

	loc, err := cfg.Notify.Location()
	if err != nil {
		return err
	}

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo, cfg.Access.TrialDuration)
	userHandler := user.NewHandler(userSvc)

	authOpts := []auth.ServiceOption{auth.WithLogger(logger)}
	if cfg.Mail.Enabled() {
		authOpts = append(authOpts, auth.WithWelcomer(mailer.New(cfg.Mail, cfg.App.PublicURL)))
		logger.Info("welcome emails enabled", "from", cfg.Mail.FromEmail)
	}

	authRepo := auth.NewRepository(db.DB)
	authSvc := auth.NewService(authRepo, signer, userSvc, redis.Client, authOpts...)
	authHandler := auth.NewHandler(authSvc)

	resolver := access.NewResolver(
		userRepo,
		cfg.Access.ActivationCode,
		cfg.Access.ActivationDuration,
	)
	accessHandler := access.NewHandler(resolver)

	taskRepo := task.NewRepository(db.DB)
	taskSvc := task.NewService(taskRepo, resolver)
	taskHandler := task.NewHandler(taskSvc)

	journalRepo := journal.NewRepository(db.DB)
	journalSvc := journal.NewService(journalRepo, resolver)
	journalHandler := journal.NewHandler(journalSvc)

	recordings, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	logger.Info("recording store ready", "driver", cfg.Storage.Driver)

	voiceDeps := voice.Deps{
		Tasks:      taskSvc,
		Entries:    journalSvc,
		Gate:       resolver,
		Recordings: recordings,
		Location:   loc,
		Logger:     logger,
	}

	gemini, err := assistant.NewGemini(ctx, cfg.AI)
	switch {
	case err == nil:
		voiceDeps.Transcriber = gemini
		voiceDeps.Generator = gemini
		logger.Info("voice assistant enabled", "model", cfg.AI.Model)
	case errors.Is(err, core.ErrNotConfigured):
		logger.Warn("GEMINI_API_KEY not set, voice features disabled")
	default:
		return err
	}

	voiceHandler := voice.NewHandler(voice.NewService(voiceDeps), cfg.AI.MaxAudioSize)

	pushRepo := push.NewRepository(db.DB)
	sender := push.NewSender(cfg.Push)
	pushHandler := push.NewHandler(push.NewService(pushRepo, sender.PublicKey()))

	if !cfg.Push.Enabled() {
		logger.Warn("VAPID keys not configured, deadline reminders disabled")
	}

	dispatcher := notify.NewDispatcher(
		taskRepo,
		pushRepo,
		sender,
		notify.NewRedisLock(redis.Client),
		notify.Options{
			Enabled:  cfg.Push.Enabled(),
			Location: loc,
			Window: notify.Window{
				MinLead: cfg.Notify.MinLead,
				MaxLead: cfg.Notify.MaxLead,
			},
			LockTTL: cfg.Notify.LockTTL,
			Logger:  logger,
		},
	)
	notifyHandler := notify.NewHandler(
		dispatcher,
		cfg.Notify.CronSecret,
		cfg.Notify.TrustCronHeader,
	)

	var provider billing.Provider
	if cfg.Billing.Enabled() {
		provider = billing.NewStripeProvider(cfg.Billing)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set, billing disabled")
	}
	billingHandler := billing.NewHandler(billing.NewService(provider, userRepo, billing.Options{
		PriceID:     cfg.Billing.StripePriceID,
		PublicURL:   cfg.App.PublicURL,
		SuccessPath: cfg.Billing.SuccessPath,
		CancelPath:  cfg.Billing.CancelPath,
		Logger:      logger,
	}))

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis, Optional: true},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		Users:      userRepo,
		Tasks:      taskRepo,
		Journal:    journalRepo,
		Devices:    pushRepo,
		Sessions:   authSvc,
		DBStats:    db.Stats,
		RedisStats: redis.PoolStats,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics)
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen: true,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.App.Environment == "production"))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, metrics.Handler())
	}

	router.Get("/.well-known/jwks.json", signer.JWKSHandler())

	authenticator := middleware.Authenticator(authSvc)
	optionalAuth := middleware.OptionalAuth(authSvc)
	adminOnly := middleware.RequireAdmin

	voiceLimiter := middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.PerHour(cfg.AI.HourlyLimit, cfg.AI.HourlyLimit),
		KeyFunc:  middleware.KeyByUserAndEndpoint,
		FailOpen: true,
	}).Handler

	router.Route("/v1", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)

		accessHandler.RegisterRoutes(r, authenticator)
		billingHandler.RegisterRoutes(r, authenticator)

		taskHandler.RegisterRoutes(r, authenticator)
		journalHandler.RegisterRoutes(r, authenticator)
		voiceHandler.RegisterRoutes(r, authenticator, voiceLimiter)

		r.Route("/push", func(r chi.Router) {
			pushHandler.RegisterRoutes(r, authenticator)
			notifyHandler.RegisterRoutes(r, optionalAuth)
		})
	})

	go pruneSessions(ctx, authRepo, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if gemini != nil {
		if err := gemini.Close(); err != nil {
			logger.Error("gemini close error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

type sessionPruner interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func pruneSessions(ctx context.Context, repo sessionPruner, logger *slog.Logger) {
	ticker := time.NewTicker(sessionPruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.DeleteExpired(ctx)
			if err != nil {
				logger.Error("session prune failed", "error", err)
				continue
			}
			if removed > 0 {
				logger.Info("expired sessions removed", "count", removed)
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
