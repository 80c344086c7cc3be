package enums

import "fmt"

// CODBlockReason explains why cash on delivery was refused at checkout.
type CODBlockReason string

const (
	CODBlockDisabled    CODBlockReason = "COD_DISABLED"
	CODBlockHighRisk    CODBlockReason = "HIGH_RISK"
	CODBlockDailyLimit  CODBlockReason = "DAILY_LIMIT"
	CODBlockAmountLimit CODBlockReason = "AMOUNT_LIMIT"
)

var validCODBlockReasons = []CODBlockReason{
	CODBlockDisabled,
	CODBlockHighRisk,
	CODBlockDailyLimit,
	CODBlockAmountLimit,
}

// String implements fmt.Stringer.
func (c CODBlockReason) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CODBlockReason.
func (c CODBlockReason) IsValid() bool {
	for _, candidate := range validCODBlockReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCODBlockReason converts raw input into a CODBlockReason.
func ParseCODBlockReason(value string) (CODBlockReason, error) {
	for _, candidate := range validCODBlockReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid COD block reason %q", value)
}
