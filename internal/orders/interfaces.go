package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/internal/logistics"
	"github.com/fensho/marketplace-backend/internal/risk"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/outbox"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FindSellerItem(ctx context.Context, orderID, sellerID uuid.UUID) (*models.OrderItem, error)
	ListOrders(ctx context.Context, filters OrderFilters, params pagination.Params) ([]models.Order, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type auditLog interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry)
	Trail(ctx context.Context, targetID string, limit int) ([]models.AuditLog, error)
}

type riskEngine interface {
	EnsureProfile(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) (*models.BuyerProfile, error)
	CheckCOD(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error)
	CheckCODAmount(ctx context.Context, profile *models.BuyerProfile, total decimal.Decimal) error
	IncrementLifetimeOrdersTx(ctx context.Context, tx *gorm.DB, buyerID uuid.UUID) error
	ApplyOutcomeTx(ctx context.Context, tx *gorm.DB, buyerID, orderID uuid.UUID, status enums.OrderStatus) (*risk.OutcomeResult, error)
}

type ledgerPoster interface {
	PostSaleTx(ctx context.Context, tx *gorm.DB, order *models.Order, rates ledger.Rates) (*ledger.SalePosting, error)
}

type productCatalog interface {
	ProductsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type courierRouter interface {
	RouteOrder(ctx context.Context, orderID uuid.UUID) (*logistics.RoutingResult, error)
}

// GatewayOrders opens a payment-gateway order for an ONLINE checkout and
// returns the gateway's order id.
type GatewayOrders interface {
	CreateOrder(ctx context.Context, receipt string, amount decimal.Decimal) (string, error)
}
