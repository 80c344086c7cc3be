package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/enums"
)

// BuyerProfile aggregates a buyer's order outcomes and COD allowances.
type BuyerProfile struct {
	UserID          uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	RiskScore       int             `gorm:"column:risk_score;not null" json:"risk_score"`
	CODAllowed      bool            `gorm:"column:cod_allowed;not null" json:"cod_allowed"`
	CODLimitAmount  decimal.Decimal `gorm:"column:cod_limit_amount;type:numeric(14,2);not null" json:"cod_limit_amount"`
	DailyCODLimit   int             `gorm:"column:daily_cod_orders_limit;not null" json:"daily_cod_orders_limit"`
	DeliveredOrders int             `gorm:"column:delivered_orders;not null" json:"delivered_orders"`
	CancelledOrders int             `gorm:"column:cancelled_orders;not null" json:"cancelled_orders"`
	RTOOrders       int             `gorm:"column:rto_orders;not null" json:"rto_orders"`
	LifetimeOrders  int             `gorm:"column:lifetime_orders;not null" json:"lifetime_orders"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// RiskEvent is an append-only record of a risk score change.
type RiskEvent struct {
	ID        uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	BuyerID   uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null" json:"buyer_id"`
	OrderID   *uuid.UUID          `gorm:"column:order_id;type:uuid" json:"order_id,omitempty"`
	Type      enums.RiskEventType `gorm:"column:type;type:text;not null" json:"type"`
	Points    int                 `gorm:"column:points;not null" json:"points"`
	Note      string              `gorm:"column:note;not null" json:"note"`
	CreatedAt time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
