package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/enums"
)

// SellerWallet caches balances derived from the seller's ledger entries.
type SellerWallet struct {
	SellerID         uuid.UUID       `gorm:"column:seller_id;type:uuid;primaryKey" json:"seller_id"`
	AvailableBalance decimal.Decimal `gorm:"column:available_balance;type:numeric(14,2);not null" json:"available_balance"`
	HoldBalance      decimal.Decimal `gorm:"column:hold_balance;type:numeric(14,2);not null" json:"hold_balance"`
	TotalSales       decimal.Decimal `gorm:"column:total_sales;type:numeric(14,2);not null" json:"total_sales"`
	TotalCommission  decimal.Decimal `gorm:"column:total_commission;type:numeric(14,2);not null" json:"total_commission"`
	TotalPayout      decimal.Decimal `gorm:"column:total_payout;type:numeric(14,2);not null" json:"total_payout"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// LedgerEntry is an append-only signed posting against a seller.
type LedgerEntry struct {
	ID        uuid.UUID             `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SellerID  uuid.UUID             `gorm:"column:seller_id;type:uuid;not null" json:"seller_id"`
	OrderID   *uuid.UUID            `gorm:"column:order_id;type:uuid" json:"order_id,omitempty"`
	Type      enums.LedgerEntryType `gorm:"column:type;type:text;not null" json:"type"`
	Amount    decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	Note      *string               `gorm:"column:note" json:"note,omitempty"`
	CreatedAt time.Time             `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
