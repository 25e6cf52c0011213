package display

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/internal/store"
	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
	"github.com/tillpoint/tillsync/pkg/logger"
	"github.com/tillpoint/tillsync/pkg/metrics"
)

const (
	defaultPollInterval      = 1500 * time.Millisecond
	defaultCompletedIdleWait = 8 * time.Second

	loopName = "display"
)

type orderStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Filter(ctx context.Context, filter store.OrderFilter) ([]models.Order, error)
	ClaimForDisplay(ctx context.Context, id uuid.UUID) (bool, error)
}

// Screen renders customer-facing content. ShowOrder receives the order that
// owns the screen; ShowIdle clears it back to the attract loop.
type Screen interface {
	ShowOrder(screen enums.DisplayScreen, order *models.Order)
	ShowIdle()
}

// PollerParams configure the customer-display order watcher.
type PollerParams struct {
	Logger            *logger.Logger
	Store             orderStore
	Screen            Screen
	Metrics           *metrics.SyncMetrics
	MerchantID        string
	StationID         string
	Interval          time.Duration
	CompletedIdleWait time.Duration

	// Now is injectable for tests.
	Now func() time.Time
}

// Poller drives the customer display: it claims the station's next order when
// idle and tracks the claimed order's status until it settles, then returns
// to idle.
type Poller struct {
	logg    *logger.Logger
	store   orderStore
	screen  Screen
	metrics *metrics.SyncMetrics

	merchantID        string
	stationID         string
	interval          time.Duration
	completedIdleWait time.Duration
	now               func() time.Time

	busy atomic.Bool

	mu          sync.Mutex
	orderID     *uuid.UUID
	lastScreen  enums.DisplayScreen
	completedAt *time.Time
}

// NewPoller builds a display poller for one station.
func NewPoller(params PollerParams) (*Poller, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Screen == nil {
		return nil, fmt.Errorf("screen required")
	}
	if params.MerchantID == "" || params.StationID == "" {
		return nil, fmt.Errorf("merchant and station ids required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	idleWait := params.CompletedIdleWait
	if idleWait <= 0 {
		idleWait = defaultCompletedIdleWait
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Poller{
		logg:              params.Logger,
		store:             params.Store,
		screen:            params.Screen,
		metrics:           params.Metrics,
		merchantID:        params.MerchantID,
		stationID:         params.StationID,
		interval:          interval,
		completedIdleWait: idleWait,
		now:               now,
		lastScreen:        enums.DisplayScreenIdle,
	}, nil
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	ctx = p.logg.WithStationID(ctx, p.stationID)
	p.logg.Info(ctx, "display poller started")
	for {
		select {
		case <-ctx.Done():
			p.logg.Info(ctx, "display poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle: claim when idle, otherwise track the claimed
// order. Overlapping ticks are skipped.
func (p *Poller) Tick(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		return
	}
	defer p.busy.Store(false)

	p.metrics.IncPollTick(loopName)

	p.mu.Lock()
	watched := p.orderID
	p.mu.Unlock()

	if watched == nil {
		p.claim(ctx)
		return
	}
	p.track(ctx, *watched)
}

// claim looks for the station's newest unclaimed order awaiting the customer
// and takes it with a conditional update, so two displays never show the same
// order.
func (p *Poller) claim(ctx context.Context) {
	unclaimed := false
	orders, err := p.store.Filter(ctx, store.OrderFilter{
		MerchantID:            p.merchantID,
		StationID:             p.stationID,
		Statuses:              enums.DisplayClaimableStatuses(),
		SentToCustomerDisplay: &unclaimed,
		SortNewestFirst:       true,
		Limit:                 1,
	})
	if err != nil {
		p.metrics.IncPollError(loopName)
		p.logg.Error(ctx, "listing claimable orders failed", err)
		return
	}
	if len(orders) == 0 {
		return
	}

	order := orders[0]
	ctx = p.logg.WithOrderID(ctx, order.ID.String())
	claimed, err := p.store.ClaimForDisplay(ctx, order.ID)
	if err != nil {
		p.metrics.IncPollError(loopName)
		p.logg.Error(ctx, "claiming order failed", err)
		return
	}
	if !claimed {
		// another display won the race
		return
	}
	p.metrics.IncDisplayClaim()
	p.logg.Info(ctx, "order claimed for display")

	p.mu.Lock()
	id := order.ID
	p.orderID = &id
	p.completedAt = nil
	p.mu.Unlock()
	p.render(enums.ScreenForStatus(order.Status), &order)
}

// track follows the claimed order until it completes, is cancelled, or its
// record disappears, then releases the screen.
func (p *Poller) track(ctx context.Context, id uuid.UUID) {
	ctx = p.logg.WithOrderID(ctx, id.String())

	p.mu.Lock()
	completedAt := p.completedAt
	p.mu.Unlock()
	if completedAt != nil {
		if p.now().Sub(*completedAt) >= p.completedIdleWait {
			p.release()
		}
		return
	}

	order, err := p.store.Get(ctx, id)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			p.release()
			return
		}
		p.metrics.IncPollError(loopName)
		p.logg.Error(ctx, "fetching claimed order failed", err)
		return
	}

	switch order.Status {
	case enums.OrderStatusCancelled:
		p.release()
	case enums.OrderStatusCompleted:
		at := p.now()
		p.mu.Lock()
		p.completedAt = &at
		p.mu.Unlock()
		p.render(enums.DisplayScreenSuccess, order)
	default:
		p.render(enums.ScreenForStatus(order.Status), order)
	}
}

// render always repaints, even on an unchanged screen, so totals stay fresh.
func (p *Poller) render(screen enums.DisplayScreen, order *models.Order) {
	p.mu.Lock()
	p.lastScreen = screen
	p.mu.Unlock()
	p.screen.ShowOrder(screen, order)
}

func (p *Poller) release() {
	p.mu.Lock()
	p.orderID = nil
	p.completedAt = nil
	p.lastScreen = enums.DisplayScreenIdle
	p.mu.Unlock()
	p.screen.ShowIdle()
}
