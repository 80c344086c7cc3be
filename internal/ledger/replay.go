package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/db/models"
)

// Balances are the wallet buckets derived from ledger entries.
type Balances struct {
	Available decimal.Decimal
	Hold      decimal.Decimal
}

// Replay rebuilds wallet balances from a seller's entries. Every signed
// amount lands in Available; HOLD entries carry the held earning negated and
// RELEASE entries carry it positive, so Hold is the negation of their sum.
func Replay(entries []models.LedgerEntry) Balances {
	available := decimal.Zero
	hold := decimal.Zero
	for _, e := range entries {
		available = available.Add(e.Amount)
		if e.Type.IsHoldTransfer() {
			hold = hold.Sub(e.Amount)
		}
	}
	return Balances{Available: available, Hold: hold}
}

// MismatchError reports a wallet cache that disagrees with its ledger.
type MismatchError struct {
	SellerID uuid.UUID
	Wallet   Balances
	Ledger   Balances
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("wallet %s out of balance: cached available=%s hold=%s, ledger available=%s hold=%s",
		e.SellerID, e.Wallet.Available, e.Wallet.Hold, e.Ledger.Available, e.Ledger.Hold)
}

func compare(wallet models.SellerWallet, entries []models.LedgerEntry) error {
	derived := Replay(entries)
	if derived.Available.Equal(wallet.AvailableBalance) && derived.Hold.Equal(wallet.HoldBalance) {
		return nil
	}
	return &MismatchError{
		SellerID: wallet.SellerID,
		Wallet:   Balances{Available: wallet.AvailableBalance, Hold: wallet.HoldBalance},
		Ledger:   derived,
	}
}

