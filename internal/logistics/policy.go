package logistics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/visibility"
)

// Lane describes where a shipment travels and who ships it.
type Lane struct {
	Origin      string
	Destination string
	SellerType  enums.SellerType
}

// Intrastate reports whether origin and destination are the same state.
func (l Lane) Intrastate() bool {
	origin := visibility.NormalizeState(l.Origin)
	return origin != "" && origin == visibility.NormalizeState(l.Destination)
}

// Candidates orders active courier configs by ascending priority. For a
// PAN_ONLY seller shipping inside their own state the legacy courier, when
// configured, is moved to the front.
func Candidates(configs []models.CourierConfig, lane Lane, legacy string) []models.CourierConfig {
	out := make([]models.CourierConfig, 0, len(configs))
	for _, c := range configs {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority < out[j].Priority })

	if lane.SellerType != enums.SellerTypePANOnly || !lane.Intrastate() || legacy == "" {
		return out
	}
	for i, c := range out {
		if NormalizeName(c.Name) != NormalizeName(legacy) {
			continue
		}
		if i > 0 {
			copy(out[1:i+1], out[:i])
			out[0] = c
		}
		break
	}
	return out
}

// CODSkipReason returns why a courier cannot carry a cash-on-delivery order of
// the given total, or "" when it can. A zero ceiling means no ceiling.
func CODSkipReason(c models.CourierConfig, method enums.PaymentMethod, total decimal.Decimal) string {
	if method != enums.PaymentMethodCOD {
		return ""
	}
	if !c.SupportsCOD {
		return "cod not supported"
	}
	if c.MaxCODAmount.Valid && c.MaxCODAmount.Decimal.IsPositive() && total.GreaterThan(c.MaxCODAmount.Decimal) {
		return "cod ceiling exceeded"
	}
	return ""
}
