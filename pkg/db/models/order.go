package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/enums"
)

// Order is a single-seller buyer purchase and the anchor for settlement.
type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	BuyerID              uuid.UUID           `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID             uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	TotalAmount          decimal.Decimal     `gorm:"column:total_amount;type:numeric(14,2);not null"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	Status               enums.OrderStatus   `gorm:"column:order_status;type:text;not null"`
	LogisticsStatus      *string             `gorm:"column:logistics_status"`
	TrackingAWB          *string             `gorm:"column:tracking_awb"`
	BuyerState           string              `gorm:"column:buyer_state;not null"`
	SellerType           enums.SellerType    `gorm:"column:seller_type_snapshot;type:text;not null"`
	RiskScoreSnapshot    int                 `gorm:"column:risk_score_snapshot;not null"`
	CommissionAmount     decimal.NullDecimal `gorm:"column:commission_amount;type:numeric(14,2)"`
	TDSAmount            decimal.NullDecimal `gorm:"column:tds_amount;type:numeric(14,2)"`
	SellerEarning        decimal.NullDecimal `gorm:"column:seller_earning;type:numeric(14,2)"`
	SettlementEligibleAt *time.Time          `gorm:"column:settlement_eligible_at"`
	Settled              bool                `gorm:"column:settled;not null"`
	CODReconciled        bool                `gorm:"column:cod_reconciled;not null"`
	RefundAmount         decimal.Decimal     `gorm:"column:refund_amount;type:numeric(14,2);not null"`
	GatewayOrderID       *string             `gorm:"column:gateway_order_id"`
	GatewayPaymentID     *string             `gorm:"column:gateway_payment_id"`
	GatewaySignature     *string             `gorm:"column:gateway_signature"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items    []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
	Shipment *Shipment   `gorm:"foreignKey:OrderID;references:ID"`
}

// SalePosted reports whether commission, TDS and earning were computed.
func (o Order) SalePosted() bool {
	return o.SettlementEligibleAt != nil
}

// OrderItem snapshots product and seller terms at checkout.
type OrderItem struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID          uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	ProductID        uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	SellerID         uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	SellerState      string              `gorm:"column:seller_state;not null"`
	Quantity         int                 `gorm:"column:quantity;not null"`
	UnitPrice        decimal.Decimal     `gorm:"column:unit_price;type:numeric(14,2);not null"`
	WeightGrams      int                 `gorm:"column:weight_grams;not null"`
	VolumetricWeight decimal.Decimal     `gorm:"column:volumetric_weight;type:numeric(14,3);not null"`
	ShippingClass    enums.ShippingClass `gorm:"column:shipping_class;type:text;not null"`
	IsFragile        bool                `gorm:"column:is_fragile;not null"`
	CommissionRate   decimal.NullDecimal `gorm:"column:commission_rate;type:numeric(6,4)"`
	TDSRate          decimal.NullDecimal `gorm:"column:tds_rate;type:numeric(6,4)"`
	CreatedAt        time.Time           `gorm:"column:created_at;autoCreateTime"`
}

// LineTotal is unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
