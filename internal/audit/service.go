package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/pkg/db"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/logger"
)

// Audit action names.
const (
	ActionOrderStatusUpdate    = "ORDER_STATUS_UPDATE"
	ActionLogisticsRouted      = "LOGISTICS_ROUTED"
	ActionLogisticsFailure     = "LOGISTICS_FAILURE"
	ActionShipmentSimulate     = "SHIPMENT_STATUS_SIMULATE"
	ActionCODReconciled        = "COD_RECONCILED"
	ActionSellerPayout         = "SELLER_PAYOUT"
	ActionOrderRefund          = "ORDER_REFUND"
	ActionCODOverride          = "COD_OVERRIDE"
	ActionRiskReset            = "RISK_RESET"
	ActionCourierConfigUpsert  = "COURIER_CONFIG_UPSERT"
	ActionCourierConfigDelete  = "COURIER_CONFIG_DELETE"
	ActionPaymentVerified      = "PAYMENT_VERIFIED"
	ActionWebhookReceived      = "WEBHOOK_RECEIVED"
	ActionWebhookAuthFail      = "WEBHOOK_AUTH_FAIL"
	ActionWebhookStateConflict = "WEBHOOK_STATE_CONFLICT"
	ActionSellerTermsUpdate    = "SELLER_TERMS_UPDATE"
)

// ClaimResult reports whether an idempotency key was newly taken.
type ClaimResult int

const (
	ClaimAcquired ClaimResult = iota
	ClaimDuplicate
)

// Actor is the authenticated principal behind a mutation.
type Actor struct {
	ID   string
	Role enums.ActorRole
}

// SystemActor is used for webhook and scheduler driven changes.
var SystemActor = Actor{Role: enums.ActorRoleSystem}

// Entry is one audit record.
type Entry struct {
	Actor    Actor
	Action   string
	TargetID string
	Metadata map[string]any
}

// Service is the idempotency and audit layer.
type Service interface {
	Claim(ctx context.Context, tx *gorm.DB, key string, scope enums.IdempotencyScope) (ClaimResult, error)
	Record(ctx context.Context, tx *gorm.DB, entry Entry)
	PurgeKeysBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Trail(ctx context.Context, targetID string, limit int) ([]models.AuditLog, error)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the audit layer.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

// Claim inserts the (key, scope) row. A unique violation means the event was
// already handled and yields ClaimDuplicate; any other failure propagates.
func (s *service) Claim(ctx context.Context, tx *gorm.DB, key string, scope enums.IdempotencyScope) (ClaimResult, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return ClaimAcquired, fmt.Errorf("idempotency key required")
	}
	if !scope.IsValid() {
		return ClaimAcquired, fmt.Errorf("invalid idempotency scope %q", scope)
	}
	row := &models.IdempotencyKey{
		ID:    uuid.New(),
		Key:   key,
		Scope: scope,
	}
	if err := s.repo.WithTx(tx).InsertKey(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"event": "idempotency.duplicate",
				"key":   key,
				"scope": scope,
			}), "event already processed")
			return ClaimDuplicate, nil
		}
		return ClaimAcquired, fmt.Errorf("claim idempotency key: %w", err)
	}
	return ClaimAcquired, nil
}

// Record appends an audit row. Failures are logged and never returned.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) {
	row := &models.AuditLog{
		ID:       uuid.New(),
		Action:   entry.Action,
		ActorID:  optional(entry.Actor.ID),
		TargetID: optional(entry.TargetID),
		Metadata: datatypes.JSONMap(entry.Metadata),
	}
	if entry.Actor.Role != "" {
		role := entry.Actor.Role.String()
		row.ActorRole = &role
	}
	if row.Metadata == nil {
		row.Metadata = datatypes.JSONMap{}
	}
	if err := s.repo.WithTx(tx).InsertLog(ctx, row); err != nil {
		fields := map[string]any{
			"event":     "audit.write_failed",
			"action":    entry.Action,
			"target_id": entry.TargetID,
		}
		s.logg.Error(s.logg.WithFields(ctx, fields), "audit log write failed", err)
	}
}

func (s *service) PurgeKeysBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.repo.DeleteKeysBefore(ctx, cutoff)
}

func (s *service) Trail(ctx context.Context, targetID string, limit int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListLogs(ctx, targetID, limit)
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
