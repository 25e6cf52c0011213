package enums

import "fmt"

// DisplayScreen names the customer-facing screen rendered for an order status.
type DisplayScreen string

const (
	DisplayScreenIdle       DisplayScreen = "idle"
	DisplayScreenApproval   DisplayScreen = "approval"
	DisplayScreenTip        DisplayScreen = "tip"
	DisplayScreenPayment    DisplayScreen = "payment"
	DisplayScreenProcessing DisplayScreen = "processing"
	DisplayScreenSuccess    DisplayScreen = "success"
)

var validDisplayScreens = []DisplayScreen{
	DisplayScreenIdle,
	DisplayScreenApproval,
	DisplayScreenTip,
	DisplayScreenPayment,
	DisplayScreenProcessing,
	DisplayScreenSuccess,
}

// String implements fmt.Stringer.
func (s DisplayScreen) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DisplayScreen.
func (s DisplayScreen) IsValid() bool {
	for _, candidate := range validDisplayScreens {
		if candidate == s {
			return true
		}
	}
	return false
}

// ScreenForStatus maps an order status to the screen the display renders.
func ScreenForStatus(status OrderStatus) DisplayScreen {
	switch status {
	case OrderStatusApproval:
		return DisplayScreenApproval
	case OrderStatusTipSelection:
		return DisplayScreenTip
	case OrderStatusReadyForPayment:
		return DisplayScreenPayment
	case OrderStatusPaymentInProgress:
		return DisplayScreenProcessing
	case OrderStatusCompleted:
		return DisplayScreenSuccess
	}
	return DisplayScreenIdle
}

// ParseDisplayScreen converts raw input into a DisplayScreen.
func ParseDisplayScreen(value string) (DisplayScreen, error) {
	for _, candidate := range validDisplayScreens {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid display screen %q", value)
}
