package enums

import "fmt"

// IdempotencyScope namespaces claimed idempotency keys by event family.
type IdempotencyScope string

const (
	ScopeDeliveryEvent   IdempotencyScope = "DELIVERY_EVENT"
	ScopePaymentCaptured IdempotencyScope = "PAYMENT_CAPTURED"
	ScopeRefundEvent     IdempotencyScope = "REFUND_EVENT"
)

var validIdempotencyScopes = []IdempotencyScope{
	ScopeDeliveryEvent,
	ScopePaymentCaptured,
	ScopeRefundEvent,
}

// String implements fmt.Stringer.
func (i IdempotencyScope) String() string {
	return string(i)
}

// IsValid reports whether the value is a known IdempotencyScope.
func (i IdempotencyScope) IsValid() bool {
	for _, candidate := range validIdempotencyScopes {
		if candidate == i {
			return true
		}
	}
	return false
}

// ParseIdempotencyScope converts raw input into a IdempotencyScope.
func ParseIdempotencyScope(value string) (IdempotencyScope, error) {
	for _, candidate := range validIdempotencyScopes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid idempotency scope %q", value)
}
