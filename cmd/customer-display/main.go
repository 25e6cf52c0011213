package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tillpoint/tillsync/internal/devices"
	"github.com/tillpoint/tillsync/internal/display"
	"github.com/tillpoint/tillsync/internal/store"
	"github.com/tillpoint/tillsync/pkg/config"
	"github.com/tillpoint/tillsync/pkg/db"
	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	"github.com/tillpoint/tillsync/pkg/logger"
	"github.com/tillpoint/tillsync/pkg/metrics"
	"github.com/tillpoint/tillsync/pkg/redis"
)

// logScreen stands in for the kiosk renderer.
type logScreen struct {
	logg *logger.Logger
}

func (s *logScreen) ShowOrder(screen enums.DisplayScreen, order *models.Order) {
	ctx := s.logg.WithOrderID(context.Background(), order.ID.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"screen":      screen.String(),
		"total_cents": order.TotalCents,
	}), "display rendering order")
}

func (s *logScreen) ShowIdle() {
	s.logg.Info(context.Background(), "display idle")
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "customer-display"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "customer-display",
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

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)

	poller, err := display.NewPoller(display.PollerParams{
		Logger:            logg,
		Store:             store.NewRepository(dbClient.DB()),
		Screen:            &logScreen{logg: logg},
		Metrics:           syncMetrics,
		MerchantID:        cfg.Station.MerchantID,
		StationID:         cfg.Station.StationID,
		Interval:          cfg.Poll.DisplayInterval,
		CompletedIdleWait: cfg.Poll.CompletedIdleDelay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create display poller", err)
		os.Exit(1)
	}

	sessionClient, err := devices.NewClient(cfg.Session.APIBaseURL)
	if err != nil {
		logg.Error(context.Background(), "failed to create session client", err)
		os.Exit(1)
	}
	tracker, err := devices.NewTracker(devices.TrackerParams{
		Logger: logg,
		API:    sessionClient,
		Identity: devices.RegisterInput{
			MerchantID:  cfg.Station.MerchantID,
			DeviceType:  enums.DeviceTypeCustomerDisplay,
			DeviceName:  cfg.Station.DeviceName,
			StationID:   cfg.Station.StationID,
			StationName: cfg.Station.StationName,
		},
		Interval: cfg.Session.HeartbeatInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create session tracker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithStationID(ctx, cfg.Station.StationID)
	logg.Info(ctx, "starting customer display sync agent")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		tracker.Run(ctx)
	}()
	wg.Wait()

	logg.Info(ctx, "customer display sync agent shut down")
}
