package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tillpoint/tillsync/pkg/db/models"
	"github.com/tillpoint/tillsync/pkg/enums"
	pkgerrors "github.com/tillpoint/tillsync/pkg/errors"
	"github.com/tillpoint/tillsync/pkg/logger"

	"github.com/tillpoint/tillsync/internal/totals"
)

type orderStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Order, error)
}

// MachineParams configure the checkout machine.
type MachineParams struct {
	Logger *logger.Logger
	Store  orderStore
}

// Machine performs the checkout transition writes against the shared order
// record. Either terminal may drive it; each write touches only the fields
// the transition owns so that last-write-wins stays benign.
type Machine struct {
	logg  *logger.Logger
	store orderStore
}

// NewMachine builds a checkout machine.
func NewMachine(params MachineParams) (*Machine, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	return &Machine{logg: params.Logger, store: params.Store}, nil
}

// Initiate moves a preview order into customer approval. Age-restricted items
// require the cashier-side verification to have completed first; verification
// is synchronous and local, never a persisted status.
func (m *Machine) Initiate(ctx context.Context, id uuid.UUID, ageVerified bool) (*models.Order, error) {
	order, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, enums.OrderStatusApproval) {
		return nil, transitionError(order.Status, enums.OrderStatusApproval)
	}
	if order.HasAgeRestrictedItem() && !ageVerified {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "age verification required before checkout")
	}
	if order.TotalCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}
	return m.write(ctx, id, map[string]any{
		"status": enums.OrderStatusApproval,
	})
}

// Approve records the customer's approval. Orders with no tippable line skip
// tip selection entirely.
func (m *Machine) Approve(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := enums.OrderStatusTipSelection
	if !order.HasTippableItem() {
		next = enums.OrderStatusReadyForPayment
	}
	if !CanTransition(order.Status, next) {
		return nil, transitionError(order.Status, next)
	}
	return m.write(ctx, id, map[string]any{
		"status": next,
	})
}

// SelectTip records the customer's tip (an explicit zero counts) and
// recomputes the total in the same write.
func (m *Machine) SelectTip(ctx context.Context, id uuid.UUID, tipCents int64) (*models.Order, error) {
	if tipCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "tip cannot be negative")
	}
	order, err := m.guarded(ctx, id, enums.OrderStatusReadyForPayment)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusTipSelection {
		return nil, transitionError(order.Status, enums.OrderStatusReadyForPayment)
	}
	// replace, don't stack: a re-selected tip backs out the previous one
	total := order.TotalCents - order.TipCents + tipCents
	return m.write(ctx, id, map[string]any{
		"status":      enums.OrderStatusReadyForPayment,
		"tip_cents":   tipCents,
		"total_cents": total,
	})
}

// SelectPaymentMethod moves the order into payment with the chosen method.
// Until now the total carries the cash price; a card-path method folds the
// dual-pricing surcharge in with the same write, so the charged total is
// always subtotal - discount + tax + surcharge + tip for that method.
func (m *Machine) SelectPaymentMethod(ctx context.Context, id uuid.UUID, method enums.PaymentMethod) (*models.Order, error) {
	if !method.IsValid() || method == enums.PaymentMethodPending {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a concrete payment method is required")
	}
	order, err := m.guarded(ctx, id, enums.OrderStatusPaymentInProgress)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, enums.OrderStatusPaymentInProgress) {
		return nil, transitionError(order.Status, enums.OrderStatusPaymentInProgress)
	}
	updates := map[string]any{
		"status":         enums.OrderStatusPaymentInProgress,
		"payment_method": method,
	}
	if method.IncursSurcharge() && order.SurchargeCents > 0 {
		updates["total_cents"] = order.TotalCents + order.SurchargeCents
	}
	return m.write(ctx, id, updates)
}

// SelectEBTSplit moves the order into payment as a split, carving the
// benefit-card portion out of the total.
func (m *Machine) SelectEBTSplit(ctx context.Context, id uuid.UUID, requestedCents int64) (*models.Order, error) {
	order, err := m.guarded(ctx, id, enums.OrderStatusPaymentInProgress)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, enums.OrderStatusPaymentInProgress) {
		return nil, transitionError(order.Status, enums.OrderStatusPaymentInProgress)
	}
	split, err := totals.EBTSplit(requestedCents, order.EBTEligibleCents, order.TotalCents)
	if err != nil {
		return nil, err
	}
	return m.write(ctx, id, map[string]any{
		"status":         enums.OrderStatusPaymentInProgress,
		"payment_method": enums.PaymentMethodSplit,
		"ebt_cents":      split,
	})
}

// CompletePayment finalizes the order once the owning terminal has confirmed
// funds. Crypto settlements must carry the gateway signature.
func (m *Machine) CompletePayment(ctx context.Context, id uuid.UUID, details map[string]any) (*models.Order, error) {
	order, err := m.guarded(ctx, id, enums.OrderStatusCompleted)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, enums.OrderStatusCompleted) {
		return nil, transitionError(order.Status, enums.OrderStatusCompleted)
	}
	if order.PaymentMethod.IsCrypto() && !hasSignature(details) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "crypto settlement requires a gateway signature")
	}
	updates := map[string]any{
		"status": enums.OrderStatusCompleted,
	}
	if len(details) > 0 {
		updates["payment_details"] = order.PaymentDetails.Merge(details)
	}
	return m.write(ctx, id, updates)
}

// RecordDecline sends a declined payment back to method selection so the
// customer can choose again. It never cancels the order.
func (m *Machine) RecordDecline(ctx context.Context, id uuid.UUID, reason string) (*models.Order, error) {
	order, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPaymentInProgress {
		return nil, transitionError(order.Status, enums.OrderStatusReadyForPayment)
	}
	logCtx := m.logg.WithOrderID(ctx, id.String())
	m.logg.Warn(m.logg.WithField(logCtx, "reason", reason), "payment declined; returning to method selection")
	updates := map[string]any{
		"status":         enums.OrderStatusReadyForPayment,
		"payment_method": enums.PaymentMethodPending,
	}
	// back the card-price surcharge out so the next selection starts from
	// the cash price again
	if order.PaymentMethod.IncursSurcharge() && order.SurchargeCents > 0 {
		updates["total_cents"] = order.TotalCents - order.SurchargeCents
	}
	return m.write(ctx, id, updates)
}

// Cancel aborts any open order.
func (m *Machine) Cancel(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(order.Status, enums.OrderStatusCancelled) {
		return nil, transitionError(order.Status, enums.OrderStatusCancelled)
	}
	return m.write(ctx, id, map[string]any{
		"status": enums.OrderStatusCancelled,
	})
}

// MarkSentToKitchen flags the order as routed to kitchen printing.
func (m *Machine) MarkSentToKitchen(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return m.write(ctx, id, map[string]any{
		"sent_to_kitchen": true,
	})
}

func (m *Machine) guarded(ctx context.Context, id uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	order, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	// callers re-check the exact transition; this rejects terminal orders early
	if order.Status.IsTerminal() {
		return nil, transitionError(order.Status, to)
	}
	return order, nil
}

func (m *Machine) write(ctx context.Context, id uuid.UUID, updates map[string]any) (*models.Order, error) {
	return m.store.Update(ctx, id, updates)
}

func transitionError(from, to enums.OrderStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict,
		fmt.Sprintf("cannot transition order from %s to %s", from, to))
}

func hasSignature(details map[string]any) bool {
	if details == nil {
		return false
	}
	for _, key := range []string{"signature", "transaction_signature", "reference"} {
		if v, ok := details[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return true
			}
		}
	}
	return false
}
