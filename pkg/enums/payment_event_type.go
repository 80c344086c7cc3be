package enums

import "fmt"

// PaymentEventType records gateway callbacks stored against an order.
type PaymentEventType string

const (
	PaymentEventSuccess  PaymentEventType = "PAYMENT_SUCCESS"
	PaymentEventCaptured PaymentEventType = "PAYMENT_CAPTURED"
	PaymentEventRefund   PaymentEventType = "REFUND_PROCESSED"
)

var validPaymentEventTypes = []PaymentEventType{
	PaymentEventSuccess,
	PaymentEventCaptured,
	PaymentEventRefund,
}

// String implements fmt.Stringer.
func (p PaymentEventType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentEventType.
func (p PaymentEventType) IsValid() bool {
	for _, candidate := range validPaymentEventTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentEventType converts raw input into a PaymentEventType.
func ParsePaymentEventType(value string) (PaymentEventType, error) {
	for _, candidate := range validPaymentEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment event type %q", value)
}
