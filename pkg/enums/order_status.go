package enums

import "fmt"

// OrderStatus tracks an order's progress through the dual-terminal checkout.
type OrderStatus string

const (
	OrderStatusPreview           OrderStatus = "preview"
	OrderStatusApproval          OrderStatus = "approval"
	OrderStatusTipSelection      OrderStatus = "tip_selection"
	OrderStatusReadyForPayment   OrderStatus = "ready_for_payment"
	OrderStatusPaymentInProgress OrderStatus = "payment_in_progress"
	OrderStatusCompleted         OrderStatus = "completed"
	OrderStatusCancelled         OrderStatus = "cancelled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPreview,
	OrderStatusApproval,
	OrderStatusTipSelection,
	OrderStatusReadyForPayment,
	OrderStatusPaymentInProgress,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// statusRank orders the forward progression of the checkout machine.
// Cancelled carries no rank; it is reachable from any open status.
var statusRank = map[OrderStatus]int{
	OrderStatusPreview:           0,
	OrderStatusApproval:          1,
	OrderStatusTipSelection:      2,
	OrderStatusReadyForPayment:   3,
	OrderStatusPaymentInProgress: 4,
	OrderStatusCompleted:         5,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the order can no longer progress.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// IsOpen reports whether the order still occupies its station.
func (s OrderStatus) IsOpen() bool {
	return s.IsValid() && !s.IsTerminal()
}

// Rank returns the forward position of the status, or -1 for cancelled.
func (s OrderStatus) Rank() int {
	if rank, ok := statusRank[s]; ok {
		return rank
	}
	return -1
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// OpenOrderStatuses returns the non-terminal statuses, newest slice each call.
func OpenOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPreview,
		OrderStatusApproval,
		OrderStatusTipSelection,
		OrderStatusReadyForPayment,
		OrderStatusPaymentInProgress,
	}
}

// DisplayClaimableStatuses are the statuses a customer display may claim.
// Previews are excluded: they mirror an in-progress cart, not a checkout.
func DisplayClaimableStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusApproval,
		OrderStatusTipSelection,
		OrderStatusReadyForPayment,
	}
}
