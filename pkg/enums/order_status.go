package enums

import "fmt"

// OrderStatus tracks an order through checkout, routing and delivery.
type OrderStatus string

const (
	OrderStatusPlaced           OrderStatus = "PLACED"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusRTO              OrderStatus = "RTO"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
	OrderStatusPendingLogistics OrderStatus = "PENDING_LOGISTICS"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusRTO,
	OrderStatusCancelled,
	OrderStatusPendingLogistics,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into a OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}

// IsTerminal reports whether no further transitions are accepted.
func (o OrderStatus) IsTerminal() bool {
	switch o {
	case OrderStatusDelivered, OrderStatusRTO, OrderStatusCancelled, OrderStatusPendingLogistics:
		return true
	}
	return false
}

// IsAdvanceable reports whether callers may request this status directly.
// PENDING_LOGISTICS is only reachable through courier routing.
func (o OrderStatus) IsAdvanceable() bool {
	return o.IsValid() && o != OrderStatusPendingLogistics
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:  {OrderStatusShipped, OrderStatusCancelled, OrderStatusPendingLogistics},
	OrderStatusShipped: {OrderStatusDelivered, OrderStatusRTO, OrderStatusCancelled},
}

// CanTransitionTo reports whether next is reachable from o in one step.
func (o OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range orderTransitions[o] {
		if candidate == next {
			return true
		}
	}
	return false
}
