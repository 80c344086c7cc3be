package logistics

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
)

func names(configs []models.CourierConfig) []string {
	out := make([]string, 0, len(configs))
	for _, c := range configs {
		out = append(out, c.Name)
	}
	return out
}

func TestCandidatesOrdering(t *testing.T) {
	configs := []models.CourierConfig{
		{Name: "DELHIVERY", Priority: 2, IsActive: true},
		{Name: "FENDEX", Priority: 5, IsActive: true},
		{Name: "FENSHO", Priority: 1, IsActive: true},
		{Name: "SHADOWFAX", Priority: 0, IsActive: false},
	}

	cases := []struct {
		name string
		lane Lane
		want []string
	}{
		{
			name: "gst seller keeps priority order",
			lane: Lane{Origin: "MH", Destination: "MH", SellerType: enums.SellerTypeGST},
			want: []string{"FENSHO", "DELHIVERY", "FENDEX"},
		},
		{
			name: "pan seller interstate keeps priority order",
			lane: Lane{Origin: "MH", Destination: "KA", SellerType: enums.SellerTypePANOnly},
			want: []string{"FENSHO", "DELHIVERY", "FENDEX"},
		},
		{
			name: "pan seller intrastate prefers legacy courier",
			lane: Lane{Origin: "mh", Destination: " MH", SellerType: enums.SellerTypePANOnly},
			want: []string{"FENDEX", "FENSHO", "DELHIVERY"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, names(Candidates(configs, tc.lane, "FENDEX")))
		})
	}

	lane := Lane{Origin: "MH", Destination: "MH", SellerType: enums.SellerTypePANOnly}
	assert.Equal(t, []string{"FENSHO", "DELHIVERY", "FENDEX"}, names(Candidates(configs, lane, "")), "no legacy configured")
	assert.Equal(t, []string{"FENSHO", "DELHIVERY", "FENDEX"}, names(Candidates(configs, lane, "BLUEDART")), "legacy not active")
	assert.Equal(t, "DELHIVERY", configs[0].Name, "input is not reordered")
}

func TestCODSkipReason(t *testing.T) {
	total := decimal.NewFromInt(1000)
	noCOD := models.CourierConfig{Name: "A", SupportsCOD: false}
	capped := models.CourierConfig{Name: "B", SupportsCOD: true, MaxCODAmount: decimal.NewNullDecimal(decimal.NewFromInt(500))}
	uncapped := models.CourierConfig{Name: "C", SupportsCOD: true}
	zeroCap := models.CourierConfig{Name: "D", SupportsCOD: true, MaxCODAmount: decimal.NewNullDecimal(decimal.Zero)}

	assert.Equal(t, "cod not supported", CODSkipReason(noCOD, enums.PaymentMethodCOD, total))
	assert.Equal(t, "cod ceiling exceeded", CODSkipReason(capped, enums.PaymentMethodCOD, total))
	assert.Empty(t, CODSkipReason(capped, enums.PaymentMethodCOD, decimal.NewFromInt(500)))
	assert.Empty(t, CODSkipReason(uncapped, enums.PaymentMethodCOD, total))
	assert.Empty(t, CODSkipReason(zeroCap, enums.PaymentMethodCOD, total))
	assert.Empty(t, CODSkipReason(noCOD, enums.PaymentMethodOnline, total))
}

func TestRegistryResolve(t *testing.T) {
	reg := DefaultRegistry()
	assert.Equal(t, CarrierDelhivery, reg.Resolve("delhivery").Name())
	assert.Equal(t, CarrierFendex, reg.Resolve("FENDEX").Name())
	assert.Equal(t, CarrierGeneric, reg.Resolve("BLUEDART").Name())

	booking, err := reg.Resolve("XPRESSBEES").CreateShipment(context.Background(), ShipmentRequest{})
	assert.NoError(t, err)
	assert.Regexp(t, `^XPB[0-9A-F]{8}$`, booking.AWB)
	assert.True(t, booking.Cost.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, enums.ShipmentStatusCreated, booking.Status)
}
