package enums

import "fmt"

// RiskEventType labels an entry in the buyer risk log.
type RiskEventType string

const (
	RiskEventDelivered      RiskEventType = "DELIVERED"
	RiskEventCancel         RiskEventType = "CANCEL"
	RiskEventRTO            RiskEventType = "RTO"
	RiskEventCODBlock       RiskEventType = "COD_BLOCK"
	RiskEventManualOverride RiskEventType = "MANUAL_OVERRIDE"
)

var validRiskEventTypes = []RiskEventType{
	RiskEventDelivered,
	RiskEventCancel,
	RiskEventRTO,
	RiskEventCODBlock,
	RiskEventManualOverride,
}

// String implements fmt.Stringer.
func (r RiskEventType) String() string {
	return string(r)
}

// IsValid reports whether the value is a known RiskEventType.
func (r RiskEventType) IsValid() bool {
	for _, candidate := range validRiskEventTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRiskEventType converts raw input into a RiskEventType.
func ParseRiskEventType(value string) (RiskEventType, error) {
	for _, candidate := range validRiskEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid risk event type %q", value)
}
