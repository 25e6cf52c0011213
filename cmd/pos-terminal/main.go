package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tillpoint/tillsync/internal/checkout"
	"github.com/tillpoint/tillsync/internal/devices"
	"github.com/tillpoint/tillsync/internal/posterm"
	"github.com/tillpoint/tillsync/internal/preview"
	"github.com/tillpoint/tillsync/internal/store"
	"github.com/tillpoint/tillsync/internal/totals"
	"github.com/tillpoint/tillsync/pkg/config"
	"github.com/tillpoint/tillsync/pkg/db"
	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	"github.com/tillpoint/tillsync/pkg/logger"
	"github.com/tillpoint/tillsync/pkg/metrics"
	"github.com/tillpoint/tillsync/pkg/redis"
)

// registerListener reacts to observed order changes on behalf of the
// register. The UI layer sits on top of this: it renders the payment dialog
// and drives the cashier-side checkout actions through the machine.
type registerListener struct {
	logg    *logger.Logger
	machine *checkout.Machine
	tracker *devices.Tracker
}

func (l *registerListener) PaymentRequired(order *models.Order) {
	ctx := l.logg.WithOrderID(context.Background(), order.ID.String())
	l.logg.Info(l.logg.WithField(ctx, "payment_method", order.PaymentMethod.String()), "payment requires register action")
}

func (l *registerListener) CustomerInteracting(order *models.Order) {
	ctx := l.logg.WithOrderID(context.Background(), order.ID.String())
	l.logg.Info(l.logg.WithField(ctx, "status", order.Status.String()), "customer interacting on display")
}

func (l *registerListener) Completed(order *models.Order) {
	ctx := l.logg.WithOrderID(context.Background(), order.ID.String())
	l.logg.Info(ctx, "order completed")
	if !order.SentToKitchen {
		if _, err := l.machine.MarkSentToKitchen(ctx, order.ID); err != nil {
			l.logg.Error(ctx, "marking order sent to kitchen failed", err)
		}
	}
	l.tracker.SetActiveOrder(nil, nil)
}

func (l *registerListener) Cancelled(orderID uuid.UUID) {
	l.logg.Info(l.logg.WithOrderID(context.Background(), orderID.String()), "order cancelled")
	l.tracker.SetActiveOrder(nil, nil)
}

func (l *registerListener) StatusChanged(order *models.Order, previous enums.OrderStatus) {
	ctx := l.logg.WithOrderID(context.Background(), order.ID.String())
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"from": previous.String(),
		"to":   order.Status.String(),
	}), "order status changed")
}

// pricingSettings maps the station's merchant pricing config onto the totals
// settings every preview publish uses.
func pricingSettings(cfg *config.Config, logg *logger.Logger) totals.Settings {
	mode, err := enums.ParsePricingMode(cfg.Pricing.PricingMode)
	if err != nil {
		logg.Warn(context.Background(), "unknown pricing mode, defaulting to surcharge")
		mode = enums.PricingModeSurcharge
	}
	return totals.Settings{
		TaxRate: cfg.Pricing.TaxRate,
		DualPricing: totals.DualPricing{
			Enabled:            cfg.Pricing.DualPricingEnabled,
			FlatFeeCents:       cfg.Pricing.FlatFeeCents,
			CCSurchargePercent: cfg.Pricing.CCSurchargePercent,
			Region:             cfg.Pricing.Region,
			Mode:               mode,
		},
	}
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "pos-terminal"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pos-terminal",
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
	ordersRepo := store.NewRepository(dbClient.DB())

	machine, err := checkout.NewMachine(checkout.MachineParams{
		Logger: logg,
		Store:  ordersRepo,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout machine", err)
		os.Exit(1)
	}

	publisher, err := preview.NewPublisher(preview.PublisherParams{
		Logger:         logg,
		Store:          ordersRepo,
		Numbers:        store.NewNumberAllocator(redisClient, cfg.Preview.NumberKeyPrefix),
		Metrics:        syncMetrics,
		MerchantID:     cfg.Station.MerchantID,
		StationID:      cfg.Station.StationID,
		StationName:    cfg.Station.StationName,
		Debounce:       cfg.Preview.Debounce,
		EmptyCartDelay: cfg.Preview.EmptyCartDelay,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create preview publisher", err)
		os.Exit(1)
	}
	defer publisher.Close()

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
			DeviceType:  enums.DeviceTypePOS,
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

	poller, err := posterm.NewPoller(posterm.PollerParams{
		Logger:   logg,
		Store:    ordersRepo,
		Listener: &registerListener{logg: logg, machine: machine, tracker: tracker},
		Metrics:  syncMetrics,
		Interval: cfg.Poll.POSInterval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pos poller", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithStationID(ctx, cfg.Station.StationID)
	logg.Info(ctx, "starting pos terminal sync agent")

	settings := pricingSettings(cfg, logg)
	// resume watching an order left open by a previous run; without one,
	// publish an empty cart so a stale preview left by a crash gets cleared
	if open, err := ordersRepo.FindOpenForStation(ctx, cfg.Station.MerchantID, cfg.Station.StationID); err == nil {
		poller.SetOrder(open.ID, open.Status, open.PaymentMethod)
		number := open.OrderNumber
		tracker.SetActiveOrder(&open.ID, &number)
	} else {
		publisher.Publish(preview.CartSnapshot{Settings: settings})
	}

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

	logg.Info(ctx, "pos terminal sync agent shut down")
}
