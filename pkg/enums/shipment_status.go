package enums

import "fmt"

// ShipmentStatus mirrors the carrier-reported delivery state of a shipment.
type ShipmentStatus string

const (
	ShipmentStatusCreated        ShipmentStatus = "CREATED"
	ShipmentStatusPickedUp       ShipmentStatus = "PICKED_UP"
	ShipmentStatusInTransit      ShipmentStatus = "IN_TRANSIT"
	ShipmentStatusOutForDelivery ShipmentStatus = "OUT_FOR_DELIVERY"
	ShipmentStatusDelivered      ShipmentStatus = "DELIVERED"
	ShipmentStatusRTO            ShipmentStatus = "RTO"
	ShipmentStatusCancelled      ShipmentStatus = "CANCELLED"
	ShipmentStatusFailed         ShipmentStatus = "FAILED"
)

var validShipmentStatuses = []ShipmentStatus{
	ShipmentStatusCreated,
	ShipmentStatusPickedUp,
	ShipmentStatusInTransit,
	ShipmentStatusOutForDelivery,
	ShipmentStatusDelivered,
	ShipmentStatusRTO,
	ShipmentStatusCancelled,
	ShipmentStatusFailed,
}

// String implements fmt.Stringer.
func (s ShipmentStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShipmentStatus.
func (s ShipmentStatus) IsValid() bool {
	for _, candidate := range validShipmentStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShipmentStatus converts raw input into a ShipmentStatus.
func ParseShipmentStatus(value string) (ShipmentStatus, error) {
	for _, candidate := range validShipmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipment status %q", value)
}

// OrderOutcome maps carrier states that settle an order onto the order status
// they imply. ok is false for intermediate tracking states.
func (s ShipmentStatus) OrderOutcome() (status OrderStatus, ok bool) {
	switch s {
	case ShipmentStatusDelivered:
		return OrderStatusDelivered, true
	case ShipmentStatusRTO:
		return OrderStatusRTO, true
	case ShipmentStatusCancelled:
		return OrderStatusCancelled, true
	}
	return "", false
}
