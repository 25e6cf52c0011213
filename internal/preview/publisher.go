package preview

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/internal/store"
	"github.com/tillpoint/tillsync/internal/totals"
	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	"github.com/tillpoint/tillsync/pkg/logger"
	"github.com/tillpoint/tillsync/pkg/metrics"
)

const (
	defaultDebounce       = 500 * time.Millisecond
	defaultEmptyCartDelay = time.Second
)

type orderStore interface {
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Order, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Filter(ctx context.Context, filter store.OrderFilter) ([]models.Order, error)
}

type numberAllocator interface {
	Next(ctx context.Context, stationName string) string
}

// CartSnapshot captures everything the POS mirrors into the preview record.
type CartSnapshot struct {
	Items        models.LineItems
	Settings     totals.Settings
	CustomerID   *string
	CustomerName *string
}

// PublisherParams configure the preview publisher.
type PublisherParams struct {
	Logger         *logger.Logger
	Store          orderStore
	Numbers        numberAllocator
	Metrics        *metrics.SyncMetrics
	MerchantID     string
	StationID      string
	StationName    string
	Debounce       time.Duration
	EmptyCartDelay time.Duration
}

// Publisher mirrors the in-progress cart to the record store as the single
// preview order for its station. Writes are debounced and best-effort: a
// failed publish is logged and swallowed, never surfaced to cart editing.
type Publisher struct {
	logg    *logger.Logger
	store   orderStore
	numbers numberAllocator
	metrics *metrics.SyncMetrics

	merchantID  string
	stationID   string
	stationName string

	debounce       time.Duration
	emptyCartDelay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *CartSnapshot
	closed  bool
}

// NewPublisher builds a preview publisher for one station.
func NewPublisher(params PublisherParams) (*Publisher, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Numbers == nil {
		return nil, fmt.Errorf("number allocator required")
	}
	if params.MerchantID == "" || params.StationID == "" {
		return nil, fmt.Errorf("merchant and station ids required")
	}
	debounce := params.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	emptyDelay := params.EmptyCartDelay
	if emptyDelay <= 0 {
		emptyDelay = defaultEmptyCartDelay
	}
	return &Publisher{
		logg:           params.Logger,
		store:          params.Store,
		numbers:        params.Numbers,
		metrics:        params.Metrics,
		merchantID:     params.MerchantID,
		stationID:      params.StationID,
		stationName:    params.StationName,
		debounce:       debounce,
		emptyCartDelay: emptyDelay,
	}, nil
}

// Publish schedules a preview upsert for the snapshot. Rapid successive calls
// collapse into a single write once the debounce window closes. An empty cart
// schedules deletion of the station's preview records instead, after a short
// grace period.
func (p *Publisher) Publish(snapshot CartSnapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	p.pending = &snapshot
	delay := p.debounce
	if len(snapshot.Items) == 0 {
		delay = p.emptyCartDelay
	}

	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(delay, p.fire)
}

// Close cancels any pending publish. The publisher accepts no further work.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = nil
}

func (p *Publisher) fire() {
	p.mu.Lock()
	snapshot := p.pending
	p.pending = nil
	closed := p.closed
	p.mu.Unlock()
	if closed || snapshot == nil {
		return
	}

	ctx := p.logg.WithStationID(context.Background(), p.stationID)
	if len(snapshot.Items) == 0 {
		if err := p.deleteAll(ctx); err != nil {
			p.metrics.IncPreviewFailure()
			p.logg.Error(ctx, "deleting empty-cart previews failed", err)
		}
		return
	}
	if err := p.flush(ctx, snapshot); err != nil {
		p.metrics.IncPreviewFailure()
		p.logg.Error(ctx, "preview publish failed", err)
		return
	}
	p.metrics.IncPreviewPublish()
}

// flush upserts the station's single preview order: update the first match,
// delete any duplicates left behind by a racing double-create, create when
// none exists.
func (p *Publisher) flush(ctx context.Context, snapshot *CartSnapshot) error {
	computed, err := totals.Compute(snapshot.Items, snapshot.Settings)
	if err != nil {
		return err
	}

	existing, err := p.store.Filter(ctx, store.OrderFilter{
		MerchantID: p.merchantID,
		StationID:  p.stationID,
		Statuses:   []enums.OrderStatus{enums.OrderStatusPreview},
	})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		order := p.buildOrder(ctx, snapshot, computed)
		_, err := p.store.Create(ctx, order)
		return err
	}

	if _, err := p.store.Update(ctx, existing[0].ID, p.buildUpdates(snapshot, computed)); err != nil {
		return err
	}
	for _, dup := range existing[1:] {
		if err := p.store.Delete(ctx, dup.ID); err != nil {
			p.logg.Error(p.logg.WithOrderID(ctx, dup.ID.String()), "deleting duplicate preview failed", err)
		}
	}
	return nil
}

func (p *Publisher) deleteAll(ctx context.Context) error {
	existing, err := p.store.Filter(ctx, store.OrderFilter{
		MerchantID: p.merchantID,
		StationID:  p.stationID,
		Statuses:   []enums.OrderStatus{enums.OrderStatusPreview},
	})
	if err != nil {
		return err
	}
	for _, order := range existing {
		if err := p.store.Delete(ctx, order.ID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Publisher) buildOrder(ctx context.Context, snapshot *CartSnapshot, computed totals.Totals) *models.Order {
	order := &models.Order{
		OrderNumber: p.numbers.Next(ctx, p.stationName),
		MerchantID:  p.merchantID,
		StationID:   p.stationID,
		StationName: p.stationName,
		Status:      enums.OrderStatusPreview,
	}
	applySnapshot(order, snapshot, computed)
	return order
}

func (p *Publisher) buildUpdates(snapshot *CartSnapshot, computed totals.Totals) map[string]any {
	return map[string]any{
		"items":              snapshot.Items,
		"subtotal_cents":     computed.SubtotalCents,
		"discount_cents":     computed.DiscountCents + computed.RewardDiscountCents,
		"tax_cents":          computed.TaxCents,
		"surcharge_cents":    computed.SurchargeCents,
		"surcharge_label":    computed.SurchargeLabel,
		"ebt_eligible_cents": computed.EBTEligibleCents,
		"total_cents":        computed.CashTotalCents,
		"customer_id":        snapshot.CustomerID,
		"customer_name":      snapshot.CustomerName,
		// previews are never claimable by the display
		"sent_to_customer_display": false,
	}
}

func applySnapshot(order *models.Order, snapshot *CartSnapshot, computed totals.Totals) {
	order.Items = snapshot.Items
	order.SubtotalCents = computed.SubtotalCents
	order.DiscountCents = computed.DiscountCents + computed.RewardDiscountCents
	order.TaxCents = computed.TaxCents
	order.SurchargeCents = computed.SurchargeCents
	order.SurchargeLabel = computed.SurchargeLabel
	order.EBTEligibleCents = computed.EBTEligibleCents
	order.TotalCents = computed.CashTotalCents
	order.CustomerID = snapshot.CustomerID
	order.CustomerName = snapshot.CustomerName
	order.SentToCustomerDisplay = false
}
