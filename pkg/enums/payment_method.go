package enums

import "fmt"

// PaymentMethod identifies how the customer settles an order.
type PaymentMethod string

const (
	PaymentMethodPending   PaymentMethod = "pending"
	PaymentMethodCash      PaymentMethod = "cash"
	PaymentMethodCard      PaymentMethod = "card"
	PaymentMethodEBT       PaymentMethod = "ebt"
	PaymentMethodSolanaPay PaymentMethod = "solana_pay"
	PaymentMethodSplit     PaymentMethod = "split"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodPending,
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodEBT,
	PaymentMethodSolanaPay,
	PaymentMethodSplit,
}

// String implements fmt.Stringer.
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid reports whether the value is a known PaymentMethod.
func (m PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// RoutesThroughPOS reports whether the cashier terminal owns the gateway
// interaction for this method. Cash, EBT, and splits never reach the
// customer display's payment screen.
func (m PaymentMethod) RoutesThroughPOS() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodEBT, PaymentMethodSplit:
		return true
	}
	return false
}

// IncursSurcharge reports whether the method pays the card price under dual
// pricing. Cash, EBT, and splits settle at the cash price; card and crypto
// carry the surcharge.
func (m PaymentMethod) IncursSurcharge() bool {
	return m == PaymentMethodCard || m == PaymentMethodSolanaPay
}

// IsCrypto reports whether the method settles through a crypto gateway.
func (m PaymentMethod) IsCrypto() bool {
	return m == PaymentMethodSolanaPay
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
