package audit

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/pkg/db/models"
)

// Repository persists idempotency claims and audit rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertKey(ctx context.Context, key *models.IdempotencyKey) error
	InsertLog(ctx context.Context, entry *models.AuditLog) error
	ListLogs(ctx context.Context, targetID string, limit int) ([]models.AuditLog, error)
	DeleteKeysBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an audit repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// InsertKey runs inside a savepoint so a unique violation leaves the
// surrounding transaction usable.
func (r *repository) InsertKey(ctx context.Context, key *models.IdempotencyKey) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(key).Error
	})
}

func (r *repository) InsertLog(ctx context.Context, entry *models.AuditLog) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(entry).Error
	})
}

func (r *repository) ListLogs(ctx context.Context, targetID string, limit int) ([]models.AuditLog, error) {
	var logs []models.AuditLog
	if err := r.db.WithContext(ctx).
		Where("target_id = ?", targetID).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *repository) DeleteKeysBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.IdempotencyKey{})
	return res.RowsAffected, res.Error
}
