package risk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fensho/marketplace-backend/internal/repo"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

// Repository persists buyer profiles and risk events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindProfile(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error)
	FindProfileForUpdate(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error)
	CreateProfileIfMissing(ctx context.Context, profile *models.BuyerProfile) error
	UpdateProfile(ctx context.Context, buyerID uuid.UUID, updates map[string]any) error
	ListProfiles(ctx context.Context, params pagination.Params) ([]models.BuyerProfile, error)
	InsertEvent(ctx context.Context, event *models.RiskEvent) error
	ListEvents(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.RiskEvent, error)
	CountCODOrdersSince(ctx context.Context, buyerID uuid.UUID, since time.Time) (int64, error)
}

type repository struct {
	repo.Base
}

// NewRepository returns a risk repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) FindProfile(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error) {
	var profile models.BuyerProfile
	if err := r.DB(ctx).First(&profile, "user_id = ?", buyerID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) FindProfileForUpdate(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error) {
	var profile models.BuyerProfile
	if err := r.DB(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&profile, "user_id = ?", buyerID).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *repository) CreateProfileIfMissing(ctx context.Context, profile *models.BuyerProfile) error {
	return r.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(profile).Error
}

func (r *repository) UpdateProfile(ctx context.Context, buyerID uuid.UUID, updates map[string]any) error {
	return r.DB(ctx).
		Model(&models.BuyerProfile{}).
		Where("user_id = ?", buyerID).
		Updates(updates).Error
}

func (r *repository) ListProfiles(ctx context.Context, params pagination.Params) ([]models.BuyerProfile, error) {
	q := r.DB(ctx).Model(&models.BuyerProfile{})
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND user_id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var profiles []models.BuyerProfile
	err = q.Order("created_at DESC").Order("user_id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&profiles).Error
	return profiles, err
}

func (r *repository) InsertEvent(ctx context.Context, event *models.RiskEvent) error {
	return r.DB(ctx).Create(event).Error
}

func (r *repository) ListEvents(ctx context.Context, buyerID uuid.UUID, params pagination.Params) ([]models.RiskEvent, error) {
	q := r.DB(ctx).Where("buyer_id = ?", buyerID)
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var events []models.RiskEvent
	err = q.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&events).Error
	return events, err
}

func (r *repository) CountCODOrdersSince(ctx context.Context, buyerID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := r.DB(ctx).
		Model(&models.Order{}).
		Where("buyer_id = ? AND payment_method = ? AND created_at >= ?", buyerID, enums.PaymentMethodCOD, since).
		Count(&count).Error
	return count, err
}
