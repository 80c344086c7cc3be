package risk

import (
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
)

// DefaultCODBlockThreshold is the score at which COD is refused.
const DefaultCODBlockThreshold = 60

// Profile defaults for buyers seen for the first time.
var (
	DefaultCODLimitAmount = decimal.NewFromInt(5000)
	DefaultDailyCODLimit  = 3
)

// Outcome is the scoring effect of a settled order.
type Outcome struct {
	Points    int
	Counter   string
	EventType enums.RiskEventType
}

var outcomes = map[enums.OrderStatus]Outcome{
	enums.OrderStatusDelivered: {Points: -5, Counter: "delivered_orders", EventType: enums.RiskEventDelivered},
	enums.OrderStatusCancelled: {Points: 10, Counter: "cancelled_orders", EventType: enums.RiskEventCancel},
	enums.OrderStatusRTO:       {Points: 25, Counter: "rto_orders", EventType: enums.RiskEventRTO},
}

// OutcomeFor returns the scoring effect of moving an order into status.
func OutcomeFor(status enums.OrderStatus) (Outcome, bool) {
	o, ok := outcomes[status]
	return o, ok
}

// ApplyDelta adds delta to score with a floor of zero.
func ApplyDelta(score, delta int) int {
	next := score + delta
	if next < 0 {
		return 0
	}
	return next
}

// GateInput is what the COD pre-check needs to know about a buyer.
type GateInput struct {
	Profile        models.BuyerProfile
	CODOrdersToday int64
	Threshold      int
}

// EvaluateCOD applies the pre-pricing gates in order. ok is false with the
// first failing reason.
func EvaluateCOD(in GateInput) (enums.CODBlockReason, bool) {
	threshold := in.Threshold
	if threshold <= 0 {
		threshold = DefaultCODBlockThreshold
	}
	switch {
	case !in.Profile.CODAllowed:
		return enums.CODBlockDisabled, false
	case in.Profile.RiskScore >= threshold:
		return enums.CODBlockHighRisk, false
	case in.CODOrdersToday >= int64(in.Profile.DailyCODLimit):
		return enums.CODBlockDailyLimit, false
	}
	return "", true
}

// EvaluateCODAmount is the post-pricing gate.
func EvaluateCODAmount(profile models.BuyerProfile, total decimal.Decimal) (enums.CODBlockReason, bool) {
	if total.GreaterThan(profile.CODLimitAmount) {
		return enums.CODBlockAmountLimit, false
	}
	return "", true
}
