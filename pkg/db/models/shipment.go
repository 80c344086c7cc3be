package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/enums"
)

// Shipment is the one courier booking attached to an order.
type Shipment struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	AWB              *string              `gorm:"column:awb;uniqueIndex"`
	CourierName      *string              `gorm:"column:courier_name"`
	Cost             decimal.NullDecimal  `gorm:"column:cost;type:numeric(14,2)"`
	Priority         *int                 `gorm:"column:priority"`
	Status           enums.ShipmentStatus `gorm:"column:status;type:text;not null"`
	OriginState      string               `gorm:"column:origin_state;not null"`
	DestinationState string               `gorm:"column:destination_state;not null"`
	FailureReason    *string              `gorm:"column:failure_reason"`
	LastEventAt      *time.Time           `gorm:"column:last_event_at"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// CourierConfig is the admin-managed routing entry for one carrier.
type CourierConfig struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name         string              `gorm:"column:name;not null;uniqueIndex" json:"name"`
	BaseURL      *string             `gorm:"column:base_url" json:"base_url,omitempty"`
	APIKey       *string             `gorm:"column:api_key" json:"-"`
	Priority     int                 `gorm:"column:priority;not null" json:"priority"`
	IsActive     bool                `gorm:"column:is_active;not null" json:"is_active"`
	SupportsCOD  bool                `gorm:"column:supports_cod;not null" json:"supports_cod"`
	MaxCODAmount decimal.NullDecimal `gorm:"column:max_cod_amount;type:numeric(14,2)" json:"max_cod_amount"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
