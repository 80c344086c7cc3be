package enums

import "fmt"

// LedgerEntryType classifies a signed posting against a seller wallet.
type LedgerEntryType string

const (
	LedgerEntrySale           LedgerEntryType = "SALE"
	LedgerEntryCommission     LedgerEntryType = "COMMISSION"
	LedgerEntryTDS            LedgerEntryType = "TDS"
	LedgerEntryHold           LedgerEntryType = "HOLD"
	LedgerEntryRelease        LedgerEntryType = "RELEASE"
	LedgerEntryRefundReversal LedgerEntryType = "REFUND_REVERSAL"
	LedgerEntryPayout         LedgerEntryType = "PAYOUT"
)

var validLedgerEntryTypes = []LedgerEntryType{
	LedgerEntrySale,
	LedgerEntryCommission,
	LedgerEntryTDS,
	LedgerEntryHold,
	LedgerEntryRelease,
	LedgerEntryRefundReversal,
	LedgerEntryPayout,
}

// String implements fmt.Stringer.
func (l LedgerEntryType) String() string {
	return string(l)
}

// IsValid reports whether the value is a known LedgerEntryType.
func (l LedgerEntryType) IsValid() bool {
	for _, candidate := range validLedgerEntryTypes {
		if candidate == l {
			return true
		}
	}
	return false
}

// ParseLedgerEntryType converts raw input into a LedgerEntryType.
func ParseLedgerEntryType(value string) (LedgerEntryType, error) {
	for _, candidate := range validLedgerEntryTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry type %q", value)
}

// IsHoldTransfer reports whether the entry moves funds between the hold and
// available buckets rather than changing the seller's net position.
func (l LedgerEntryType) IsHoldTransfer() bool {
	return l == LedgerEntryHold || l == LedgerEntryRelease
}
