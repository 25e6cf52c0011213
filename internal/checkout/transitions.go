package checkout

import (
	"github.com/tillpoint/tillsync/pkg/enums"
)

// CanTransition reports whether a status write is legal. The machine only
// moves forward one rank at a time, with two sanctioned exceptions: the
// tip-selection skip when nothing in the cart is tippable, and the decline
// path that sends a failed payment back to method selection.
func CanTransition(from, to enums.OrderStatus) bool {
	if !from.IsValid() || !to.IsValid() || from == to {
		return false
	}
	if to == enums.OrderStatusCancelled {
		return from.IsOpen()
	}
	if from == enums.OrderStatusApproval && to == enums.OrderStatusReadyForPayment {
		return true
	}
	if from == enums.OrderStatusPaymentInProgress && to == enums.OrderStatusReadyForPayment {
		return true
	}
	return from.Rank() >= 0 && to.Rank() == from.Rank()+1
}
