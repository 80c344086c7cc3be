package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

// Repository manages wallets, ledger entries and the settlement columns of orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertEntries(ctx context.Context, entries []models.LedgerEntry) error
	ListEntries(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, error)
	AllEntries(ctx context.Context, sellerID uuid.UUID) ([]models.LedgerEntry, error)
	FindWallet(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error)
	EnsureWallet(ctx context.Context, sellerID uuid.UUID) error
	LockWallet(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error)
	UpdateWallet(ctx context.Context, sellerID uuid.UUID, updates map[string]any) error
	ListWallets(ctx context.Context, params pagination.Params) ([]models.SellerWallet, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	ListPayoutEligible(ctx context.Context, sellerID uuid.UUID, now time.Time) ([]models.Order, error)
	MarkSettled(ctx context.Context, orderIDs []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) InsertEntries(ctx context.Context, entries []models.LedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&entries).Error
}

func (r *repository) ListEntries(ctx context.Context, sellerID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, error) {
	q := r.db.WithContext(ctx).Where("seller_id = ?", sellerID)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var entries []models.LedgerEntry
	err = q.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&entries).Error
	return entries, err
}

func (r *repository) AllEntries(ctx context.Context, sellerID uuid.UUID) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("seller_id = ?", sellerID).
		Order("created_at ASC").
		Find(&entries).Error
	return entries, err
}

func (r *repository) FindWallet(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error) {
	var wallet models.SellerWallet
	if err := r.db.WithContext(ctx).First(&wallet, "seller_id = ?", sellerID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) EnsureWallet(ctx context.Context, sellerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "seller_id"}}, DoNothing: true}).
		Create(&models.SellerWallet{SellerID: sellerID}).Error
}

func (r *repository) LockWallet(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error) {
	var wallet models.SellerWallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "seller_id = ?", sellerID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateWallet(ctx context.Context, sellerID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.SellerWallet{}).
		Where("seller_id = ?", sellerID).
		Updates(updates).Error
}

func (r *repository) ListWallets(ctx context.Context, params pagination.Params) ([]models.SellerWallet, error) {
	q := r.db.WithContext(ctx).Model(&models.SellerWallet{})
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND seller_id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var wallets []models.SellerWallet
	err = q.Order("created_at DESC").Order("seller_id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&wallets).Error
	return wallets, err
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&order, "id = ?", orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// ListPayoutEligible returns delivered, unsettled orders past their
// settlement date that are either prepaid or reconciled COD.
func (r *repository) ListPayoutEligible(ctx context.Context, sellerID uuid.UUID, now time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("seller_id = ? AND order_status = ? AND settled = ?", sellerID, enums.OrderStatusDelivered, false).
		Where("settlement_eligible_at IS NOT NULL AND settlement_eligible_at <= ?", now).
		Where("(payment_method = ? OR (payment_method = ? AND cod_reconciled = ?))",
			enums.PaymentMethodOnline, enums.PaymentMethodCOD, true).
		Order("settlement_eligible_at ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) MarkSettled(ctx context.Context, orderIDs []uuid.UUID) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ?", orderIDs).
		Update("settled", true).Error
}
