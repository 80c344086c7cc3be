package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/enums"
)

// SellerProfile carries the tax class and settlement terms for a seller.
type SellerProfile struct {
	UserID         uuid.UUID           `gorm:"column:user_id;type:uuid;primaryKey"`
	BusinessName   string              `gorm:"column:business_name;not null"`
	Type           enums.SellerType    `gorm:"column:type;type:text;not null"`
	State          string              `gorm:"column:state;not null"`
	CommissionRate decimal.NullDecimal `gorm:"column:commission_rate;type:numeric(6,4)"`
	TDSRate        decimal.NullDecimal `gorm:"column:tds_rate;type:numeric(6,4)"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Product is the catalog row read at checkout.
type Product struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID         uuid.UUID            `gorm:"column:seller_id;type:uuid;not null"`
	Name             string               `gorm:"column:name;not null"`
	Price            decimal.Decimal      `gorm:"column:price;type:numeric(14,2);not null"`
	WeightGrams      int                  `gorm:"column:weight_grams;not null"`
	LengthCM         decimal.Decimal      `gorm:"column:length_cm;type:numeric(10,2);not null"`
	WidthCM          decimal.Decimal      `gorm:"column:width_cm;type:numeric(10,2);not null"`
	HeightCM         decimal.Decimal      `gorm:"column:height_cm;type:numeric(10,2);not null"`
	VolumetricWeight decimal.NullDecimal  `gorm:"column:volumetric_weight;type:numeric(14,3)"`
	ShippingClass    *enums.ShippingClass `gorm:"column:shipping_class;type:text"`
	IsFragile        bool                 `gorm:"column:is_fragile;not null"`
	IsActive         bool                 `gorm:"column:is_active;not null"`
	CreatedAt        time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Seller *SellerProfile `gorm:"foreignKey:SellerID;references:UserID"`
}
