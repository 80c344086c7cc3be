package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/fensho/marketplace-backend/pkg/enums"
)

// IdempotencyKey marks an external event as processed within a scope.
type IdempotencyKey struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Key       string                 `gorm:"column:key;not null"`
	Scope     enums.IdempotencyScope `gorm:"column:scope;type:text;not null"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}

// AuditLog is a write-only trail of privileged and external actions.
type AuditLog struct {
	ID        uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ActorID   *string           `gorm:"column:actor_id"`
	ActorRole *string           `gorm:"column:actor_role"`
	Action    string            `gorm:"column:action;not null"`
	TargetID  *string           `gorm:"column:target_id"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata;type:jsonb"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
}

// PaymentEvent stores raw gateway callbacks against an order.
type PaymentEvent struct {
	ID         uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID              `gorm:"column:order_id;type:uuid;not null"`
	Type       enums.PaymentEventType `gorm:"column:type;type:text;not null"`
	GatewayRef string                 `gorm:"column:gateway_ref;not null"`
	RawData    datatypes.JSON         `gorm:"column:raw_data;type:jsonb"`
	CreatedAt  time.Time              `gorm:"column:created_at;autoCreateTime"`
}
