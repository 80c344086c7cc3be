package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/internal/logistics"
	"github.com/fensho/marketplace-backend/internal/risk"
	"github.com/fensho/marketplace-backend/pkg/checkout"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
)

// OrderFilters describe the inputs supported by the order lists.
type OrderFilters struct {
	BuyerID       *uuid.UUID
	SellerID      *uuid.UUID
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	PaymentMethod *enums.PaymentMethod
	DateFrom      *time.Time
	DateTo        *time.Time
}

// CheckoutInput is a buyer's request to place an order.
type CheckoutInput struct {
	BuyerID          uuid.UUID
	Lines            []checkout.LineInput
	DestinationState string
	PaymentMethod    enums.PaymentMethod
}

// CheckoutResult is the placed order plus where routing left it.
type CheckoutResult struct {
	Order   *models.Order            `json:"order"`
	Routing *logistics.RoutingResult `json:"routing,omitempty"`
}

// TransitionResult reports what an order status change did.
type TransitionResult struct {
	OrderID        uuid.UUID           `json:"order_id"`
	PreviousStatus enums.OrderStatus   `json:"previous_status"`
	Status         enums.OrderStatus   `json:"status"`
	Changed        bool                `json:"changed"`
	Risk           *risk.OutcomeResult `json:"risk,omitempty"`
	Sale           *ledger.SalePosting `json:"sale,omitempty"`
}
