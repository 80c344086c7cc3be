package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
)

func TestOutcomeFor(t *testing.T) {
	cases := []struct {
		status enums.OrderStatus
		points int
		ok     bool
	}{
		{enums.OrderStatusDelivered, -5, true},
		{enums.OrderStatusCancelled, 10, true},
		{enums.OrderStatusRTO, 25, true},
		{enums.OrderStatusShipped, 0, false},
		{enums.OrderStatusPlaced, 0, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			o, ok := OutcomeFor(tc.status)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.points, o.Points)
		})
	}
}

func TestApplyDeltaFloorsAtZero(t *testing.T) {
	assert.Equal(t, 0, ApplyDelta(3, -5))
	assert.Equal(t, 0, ApplyDelta(0, -5))
	assert.Equal(t, 35, ApplyDelta(10, 25))
}

func TestEvaluateCODOrder(t *testing.T) {
	base := models.BuyerProfile{CODAllowed: true, DailyCODLimit: 3, CODLimitAmount: decimal.NewFromInt(5000)}

	reason, ok := EvaluateCOD(GateInput{Profile: base})
	assert.True(t, ok)
	assert.Empty(t, reason)

	disabled := base
	disabled.CODAllowed = false
	disabled.RiskScore = 90
	reason, ok = EvaluateCOD(GateInput{Profile: disabled, CODOrdersToday: 10})
	assert.False(t, ok)
	assert.Equal(t, enums.CODBlockDisabled, reason, "disabled wins over other gates")

	risky := base
	risky.RiskScore = 60
	reason, ok = EvaluateCOD(GateInput{Profile: risky})
	assert.False(t, ok)
	assert.Equal(t, enums.CODBlockHighRisk, reason)

	reason, ok = EvaluateCOD(GateInput{Profile: risky, Threshold: 70})
	assert.True(t, ok, "custom threshold raises the bar")
	assert.Empty(t, reason)

	reason, ok = EvaluateCOD(GateInput{Profile: base, CODOrdersToday: 3})
	assert.False(t, ok)
	assert.Equal(t, enums.CODBlockDailyLimit, reason)
}

func TestEvaluateCODAmount(t *testing.T) {
	profile := models.BuyerProfile{CODLimitAmount: decimal.NewFromInt(5000)}

	_, ok := EvaluateCODAmount(profile, decimal.NewFromInt(5000))
	assert.True(t, ok, "limit is inclusive")

	reason, ok := EvaluateCODAmount(profile, decimal.RequireFromString("5000.01"))
	assert.False(t, ok)
	assert.Equal(t, enums.CODBlockAmountLimit, reason)
}
