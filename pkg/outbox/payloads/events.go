package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/enums"
)

// OrderCreatedEvent is emitted when checkout persists a new order.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	BuyerID       uuid.UUID           `json:"buyer_id"`
	SellerID      uuid.UUID           `json:"seller_id"`
	TotalAmount   decimal.Decimal     `json:"total_amount"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
}

// OrderStatusChangedEvent is emitted for every accepted transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
}

// OrderPaidEvent is emitted once a gateway capture is recorded.
type OrderPaidEvent struct {
	OrderID          uuid.UUID `json:"order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
}

// OrderRefundedEvent is emitted after refund bookkeeping commits.
type OrderRefundedEvent struct {
	OrderID        uuid.UUID        `json:"order_id"`
	RefundID       string           `json:"refund_id"`
	Amount         decimal.Decimal  `json:"amount"`
	ReversalAmount *decimal.Decimal `json:"reversal_amount,omitempty"`
}

// LedgerSalePostedEvent carries the settlement split computed at delivery.
type LedgerSalePostedEvent struct {
	OrderID              uuid.UUID       `json:"order_id"`
	SellerID             uuid.UUID       `json:"seller_id"`
	Total                decimal.Decimal `json:"total"`
	Commission           decimal.Decimal `json:"commission"`
	TDS                  decimal.Decimal `json:"tds"`
	SellerEarning        decimal.Decimal `json:"seller_earning"`
	Held                 bool            `json:"held"`
	SettlementEligibleAt time.Time       `json:"settlement_eligible_at"`
}

// CODReconciledEvent is emitted when held COD funds become available.
type CODReconciledEvent struct {
	OrderID  uuid.UUID       `json:"order_id"`
	SellerID uuid.UUID       `json:"seller_id"`
	Amount   decimal.Decimal `json:"amount"`
}

// SellerPayoutEvent summarises a settlement run for one seller.
type SellerPayoutEvent struct {
	SellerID   uuid.UUID       `json:"seller_id"`
	Amount     decimal.Decimal `json:"amount"`
	OrderIDs   []uuid.UUID     `json:"order_ids"`
	OrderCount int             `json:"order_count"`
}

// LogisticsRoutedEvent is emitted when a courier accepts a shipment.
type LogisticsRoutedEvent struct {
	OrderID  uuid.UUID       `json:"order_id"`
	Courier  string          `json:"courier"`
	AWB      string          `json:"awb"`
	Cost     decimal.Decimal `json:"cost"`
	Priority int             `json:"priority"`
}

// LogisticsFailedEvent is emitted when every courier candidate was exhausted.
type LogisticsFailedEvent struct {
	OrderID uuid.UUID `json:"order_id"`
	Reason  string    `json:"reason"`
}
