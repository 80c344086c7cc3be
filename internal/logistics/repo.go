package logistics

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

// Repository persists shipments and courier configuration.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	LockOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	ActiveCourierConfigs(ctx context.Context) ([]models.CourierConfig, error)
	ListCourierConfigs(ctx context.Context) ([]models.CourierConfig, error)
	UpsertCourierConfig(ctx context.Context, cfg *models.CourierConfig) error
	FindCourierConfig(ctx context.Context, name string) (*models.CourierConfig, error)
	DeleteCourierConfig(ctx context.Context, name string) (int64, error)
	UpsertShipment(ctx context.Context, shipment *models.Shipment) error
	FindShipmentByAWB(ctx context.Context, awb string) (*models.Shipment, error)
	LockShipmentByAWB(ctx context.Context, awb string) (*models.Shipment, error)
	UpdateShipment(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ListShipments(ctx context.Context, status *enums.ShipmentStatus, params pagination.Params) ([]models.Shipment, error)
	ListTrackable(ctx context.Context, limit int) ([]models.Shipment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a logistics repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", orderID).Error; err != nil {
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
	return r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Updates(updates).Error
}

func (r *repository) ActiveCourierConfigs(ctx context.Context) ([]models.CourierConfig, error) {
	var configs []models.CourierConfig
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority ASC").Order("name ASC").
		Find(&configs).Error
	return configs, err
}

func (r *repository) ListCourierConfigs(ctx context.Context) ([]models.CourierConfig, error) {
	var configs []models.CourierConfig
	err := r.db.WithContext(ctx).Order("priority ASC").Order("name ASC").Find(&configs).Error
	return configs, err
}

func (r *repository) UpsertCourierConfig(ctx context.Context, cfg *models.CourierConfig) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_url", "api_key", "priority", "is_active", "supports_cod", "max_cod_amount", "updated_at",
			}),
		}).
		Create(cfg).Error
}

func (r *repository) FindCourierConfig(ctx context.Context, name string) (*models.CourierConfig, error) {
	var cfg models.CourierConfig
	if err := r.db.WithContext(ctx).First(&cfg, "name = ?", name).Error; err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *repository) DeleteCourierConfig(ctx context.Context, name string) (int64, error) {
	res := r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.CourierConfig{})
	return res.RowsAffected, res.Error
}

func (r *repository) UpsertShipment(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"awb", "courier_name", "cost", "priority", "status",
				"origin_state", "destination_state", "failure_reason", "updated_at",
			}),
		}).
		Create(shipment).Error
}

func (r *repository) FindShipmentByAWB(ctx context.Context, awb string) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).First(&shipment, "awb = ?", awb).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) LockShipmentByAWB(ctx context.Context, awb string) (*models.Shipment, error) {
	var shipment models.Shipment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&shipment, "awb = ?", awb).Error; err != nil {
		return nil, err
	}
	return &shipment, nil
}

func (r *repository) UpdateShipment(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Shipment{}).Where("id = ?", id).Updates(updates).Error
}

func (r *repository) ListShipments(ctx context.Context, status *enums.ShipmentStatus, params pagination.Params) ([]models.Shipment, error) {
	q := r.db.WithContext(ctx).Model(&models.Shipment{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var shipments []models.Shipment
	err = q.Order("created_at DESC").Order("id DESC").
		Limit(pagination.LimitWithBuffer(params.Limit)).
		Find(&shipments).Error
	return shipments, err
}

// ListTrackable returns shipments with an AWB that have not reached a final carrier state.
func (r *repository) ListTrackable(ctx context.Context, limit int) ([]models.Shipment, error) {
	var shipments []models.Shipment
	err := r.db.WithContext(ctx).
		Where("awb IS NOT NULL AND status NOT IN ?", []enums.ShipmentStatus{
			enums.ShipmentStatusDelivered,
			enums.ShipmentStatusRTO,
			enums.ShipmentStatusCancelled,
			enums.ShipmentStatusFailed,
		}).
		Order("updated_at ASC").
		Limit(limit).
		Find(&shipments).Error
	return shipments, err
}
