package ledger

import (
	"github.com/shopspring/decimal"
)

// Split is the settlement breakdown of one order total.
type Split struct {
	Total         decimal.Decimal
	Commission    decimal.Decimal
	TDS           decimal.Decimal
	SellerEarning decimal.Decimal
}

// ComputeSplit applies commission to the total and TDS to what remains.
// Amounts are rounded to paise so the postings sum exactly to the earning.
func ComputeSplit(total, commissionRate, tdsRate decimal.Decimal) Split {
	commission := total.Mul(commissionRate).Round(2)
	preTDS := total.Sub(commission)
	tds := preTDS.Mul(tdsRate).Round(2)
	return Split{
		Total:         total,
		Commission:    commission,
		TDS:           tds,
		SellerEarning: preTDS.Sub(tds),
	}
}
