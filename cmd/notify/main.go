// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/bbigmic/dziennik-pracy/internal/config"
	"github.com/bbigmic/dziennik-pracy/internal/core"
	"github.com/bbigmic/dziennik-pracy/internal/notify"
	"github.com/bbigmic/dziennik-pracy/internal/push"
	"github.com/bbigmic/dziennik-pracy/internal/task"
)

// notify runs a single deadline dispatch and exits. It is meant for
// schedulers that invoke a binary instead of calling the HTTP endpoint.
func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("notify run failed", "error", err)
		os.Exit(1)
	}
}

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

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	loc, err := cfg.Notify.Location()
	if err != nil {
		return err
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var locker notify.Locker
	if redis, redisErr := core.NewRedis(ctx, cfg.Redis); redisErr != nil {
		logger.Warn("redis unavailable, running without dispatch lock",
			"error", redisErr,
		)
	} else {
		defer func() { _ = redis.Close() }()
		locker = notify.NewRedisLock(redis.Client)
	}

	pushRepo := push.NewRepository(db.DB)

	dispatcher := notify.NewDispatcher(
		task.NewRepository(db.DB),
		pushRepo,
		push.NewSender(cfg.Push),
		locker,
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

	result, err := dispatcher.Run(ctx, time.Now())
	if err != nil {
		return err
	}

	logger.Info("notify run finished",
		"tasks_found", result.TasksFound,
		"notifications_sent", result.NotificationsSent,
		"errors", result.Errors,
		"message", result.Message,
	)
	return nil
}
