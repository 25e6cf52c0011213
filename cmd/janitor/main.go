package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tillpoint/tillsync/internal/devices"
	"github.com/tillpoint/tillsync/internal/janitor"
	"github.com/tillpoint/tillsync/internal/store"
	"github.com/tillpoint/tillsync/pkg/config"
	"github.com/tillpoint/tillsync/pkg/db"
	"github.com/tillpoint/tillsync/pkg/logger"
	"github.com/tillpoint/tillsync/pkg/metrics"
	"github.com/tillpoint/tillsync/pkg/migrate"
	"github.com/tillpoint/tillsync/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "janitor"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "janitor",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	deviceService, err := devices.NewService(devices.ServiceParams{
		Logger:     logg,
		Repo:       devices.NewRepository(dbClient.DB()),
		Liveness:   redisClient,
		StaleAfter: cfg.Session.StaleAfter(),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create device service", err)
		os.Exit(1)
	}

	previewJob, err := janitor.NewPreviewCleanupJob(janitor.PreviewCleanupJobParams{
		Logger:     logg,
		Repository: store.NewRepository(dbClient.DB()),
		Retention:  cfg.Preview.StaleAfter,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create preview cleanup job", err)
		os.Exit(1)
	}
	sessionJob, err := janitor.NewSessionSweepJob(janitor.SessionSweepJobParams{
		Logger:   logg,
		Sessions: deviceService,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session sweep job", err)
		os.Exit(1)
	}

	lock, err := janitor.NewRedisLock(redisClient, redisClient.LockKey("janitor"), cfg.Janitor.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create janitor lock", err)
		os.Exit(1)
	}

	service, err := janitor.NewService(janitor.ServiceParams{
		Logger:   logg,
		Jobs:     []janitor.Job{previewJob, sessionJob},
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Janitor.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create janitor service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)
	logg.Info(ctx, "starting janitor")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "janitor stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "janitor shutting down gracefully")
}
