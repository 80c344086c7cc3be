package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/repo"
	"github.com/fensho/marketplace-backend/pkg/db/models"
)

// Repository reads products and seller terms.
type Repository struct {
	repo.Base
}

// NewRepository binds a catalog repository to the provided database.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{Base: r.Bind(tx)}
}

// FindActiveProducts loads active products by id with their seller profile.
func (r *Repository) FindActiveProducts(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var products []models.Product
	err := r.DB(ctx).
		Preload("Seller").
		Where("id IN ? AND is_active = ?", ids, true).
		Find(&products).Error
	return products, err
}

func (r *Repository) FindSeller(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error) {
	var seller models.SellerProfile
	if err := r.DB(ctx).First(&seller, "user_id = ?", sellerID).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *Repository) UpdateSeller(ctx context.Context, sellerID uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).
		Model(&models.SellerProfile{}).
		Where("user_id = ?", sellerID).
		Updates(updates).Error
}

func (r *Repository) UpdateProduct(ctx context.Context, productID uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(updates).Error
}

// ListIncompleteProducts returns products whose weight or any dimension is
// missing, which makes their shipping class unreliable.
func (r *Repository) ListIncompleteProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var products []models.Product
	err := r.DB(ctx).
		Preload("Seller").
		Where("weight_grams <= 0 OR length_cm = 0 OR width_cm = 0 OR height_cm = 0").
		Order("created_at DESC").
		Limit(limit).
		Find(&products).Error
	return products, err
}
