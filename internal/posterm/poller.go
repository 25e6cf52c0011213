package posterm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
	"github.com/tillpoint/tillsync/pkg/logger"
	"github.com/tillpoint/tillsync/pkg/metrics"
)

const (
	defaultPollInterval = 2 * time.Second

	loopName = "pos"
)

type orderStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

// Listener receives order lifecycle callbacks as the poller observes changes
// made by the other terminal. Callbacks run on the poll goroutine.
type Listener interface {
	// PaymentRequired fires when the customer picked a payment method that
	// the register must run (cash drawer, EBT terminal, split tender).
	PaymentRequired(order *models.Order)
	// CustomerInteracting fires when the customer display takes over the
	// flow (tip selection, self-serve payment).
	CustomerInteracting(order *models.Order)
	// Completed fires once when the watched order reaches completed.
	Completed(order *models.Order)
	// Cancelled fires once when the watched order is cancelled or its
	// record disappears.
	Cancelled(orderID uuid.UUID)
	// StatusChanged fires on every observed status change, after any of
	// the more specific callbacks above.
	StatusChanged(order *models.Order, previous enums.OrderStatus)
}

// PollerParams configure the register-side order watcher.
type PollerParams struct {
	Logger   *logger.Logger
	Store    orderStore
	Listener Listener
	Metrics  *metrics.SyncMetrics
	Interval time.Duration
}

// Poller watches the register's active order and surfaces changes driven by
// the customer display. One poller runs per register process.
type Poller struct {
	logg     *logger.Logger
	store    orderStore
	listener Listener
	metrics  *metrics.SyncMetrics
	interval time.Duration

	busy atomic.Bool

	mu         sync.Mutex
	orderID    *uuid.UUID
	lastStatus enums.OrderStatus
	lastMethod enums.PaymentMethod
}

// NewPoller builds a POS order poller.
func NewPoller(params PollerParams) (*Poller, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Listener == nil {
		return nil, fmt.Errorf("listener required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &Poller{
		logg:     params.Logger,
		store:    params.Store,
		listener: params.Listener,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// SetOrder starts watching the given order. Replaces any previous watch.
func (p *Poller) SetOrder(id uuid.UUID, status enums.OrderStatus, method enums.PaymentMethod) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderID = &id
	p.lastStatus = status
	p.lastMethod = method
}

// ClearOrder stops watching without firing callbacks.
func (p *Poller) ClearOrder() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderID = nil
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logg.Info(ctx, "pos poller started")
	for {
		select {
		case <-ctx.Done():
			p.logg.Info(ctx, "pos poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle. Overlapping ticks are skipped so a slow fetch
// never stacks requests.
func (p *Poller) Tick(ctx context.Context) {
	if !p.busy.CompareAndSwap(false, true) {
		return
	}
	defer p.busy.Store(false)

	p.mu.Lock()
	watched := p.orderID
	p.mu.Unlock()
	if watched == nil {
		return
	}
	p.metrics.IncPollTick(loopName)

	id := *watched
	ctx = p.logg.WithOrderID(ctx, id.String())
	order, err := p.store.Get(ctx, id)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			// record gone, most likely the display or a sweep cancelled it
			p.dropOrder(id)
			p.listener.Cancelled(id)
			return
		}
		p.metrics.IncPollError(loopName)
		p.logg.Error(ctx, "fetching watched order failed", err)
		return
	}

	p.mu.Lock()
	if p.orderID == nil || *p.orderID != id {
		// watch changed mid-fetch
		p.mu.Unlock()
		return
	}
	prevStatus := p.lastStatus
	prevMethod := p.lastMethod
	p.lastStatus = order.Status
	p.lastMethod = order.PaymentMethod
	p.mu.Unlock()

	if order.Status == prevStatus && order.PaymentMethod == prevMethod {
		return
	}
	p.dispatch(order, prevStatus, prevMethod)
}

func (p *Poller) dropOrder(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.orderID != nil && *p.orderID == id {
		p.orderID = nil
	}
}

func (p *Poller) dispatch(order *models.Order, prevStatus enums.OrderStatus, prevMethod enums.PaymentMethod) {
	switch order.Status {
	case enums.OrderStatusCompleted:
		p.dropOrder(order.ID)
		p.listener.Completed(order)
	case enums.OrderStatusCancelled:
		p.dropOrder(order.ID)
		p.listener.Cancelled(order.ID)
	case enums.OrderStatusPaymentInProgress:
		// Card and crypto payments are confirmed on the customer display, so
		// only cash, EBT, and splits raise the register's payment dialog.
		if order.PaymentMethod.RoutesThroughPOS() &&
			(order.Status != prevStatus || order.PaymentMethod != prevMethod) {
			p.listener.PaymentRequired(order)
		} else if order.Status != prevStatus {
			p.listener.CustomerInteracting(order)
		}
	case enums.OrderStatusTipSelection:
		if order.Status != prevStatus {
			p.listener.CustomerInteracting(order)
		}
	}
	if order.Status != prevStatus {
		p.listener.StatusChanged(order, prevStatus)
	}
}
