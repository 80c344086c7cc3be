package logistics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/metrics"
	"github.com/fensho/marketplace-backend/pkg/outbox"
	"github.com/fensho/marketplace-backend/pkg/outbox/payloads"
	"github.com/fensho/marketplace-backend/pkg/pagination"
	"github.com/fensho/marketplace-backend/pkg/redis"
)

const (
	defaultRouteLockTTL = 2 * time.Minute
	allCouriersFailed   = "All couriers failed"
)

// Attempt outcomes reported per courier candidate.
const (
	OutcomeCreated       = "created"
	OutcomeSkippedCOD    = "skipped_cod"
	OutcomeUnserviceable = "unserviceable"
	OutcomeError         = "error"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// Service routes orders to couriers and manages shipments and courier configs.
type Service interface {
	RouteOrder(ctx context.Context, orderID uuid.UUID) (*RoutingResult, error)
	RecordCarrierStatusTx(ctx context.Context, tx *gorm.DB, awb string, status enums.ShipmentStatus, courier string) (*models.Shipment, error)
	Shipment(ctx context.Context, awb string) (*models.Shipment, error)
	Shipments(ctx context.Context, status *enums.ShipmentStatus, params pagination.Params) (pagination.Page[models.Shipment], error)
	Trackable(ctx context.Context, limit int) ([]models.Shipment, error)
	Provider(courier string) Provider
	CourierConfigs(ctx context.Context) ([]models.CourierConfig, error)
	UpsertCourierConfig(ctx context.Context, actor audit.Actor, input CourierConfigInput) (*models.CourierConfig, error)
	DeleteCourierConfig(ctx context.Context, actor audit.Actor, name string) error
}

// Attempt records what happened with one courier candidate.
type Attempt struct {
	Courier string `json:"courier"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

// RoutingResult reports where an order ended up after routing.
type RoutingResult struct {
	OrderID       uuid.UUID         `json:"order_id"`
	Status        enums.OrderStatus `json:"order_status"`
	Courier       string            `json:"courier,omitempty"`
	AWB           string            `json:"awb,omitempty"`
	Cost          *decimal.Decimal  `json:"cost,omitempty"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Attempts      []Attempt         `json:"attempts"`
}

// CourierConfigInput is an admin create-or-update of a courier config.
type CourierConfigInput struct {
	Name         string
	BaseURL      *string
	APIKey       *string
	Priority     int
	IsActive     *bool
	SupportsCOD  bool
	MaxCODAmount *decimal.Decimal
}

// ServiceParams wires the logistics service.
type ServiceParams struct {
	Repo          Repository
	Tx            txRunner
	Registry      *Registry
	Audit         auditRecorder
	Outbox        outbox.Emitter
	Locker        redis.Locker
	Metrics       *metrics.MarketplaceMetrics
	Logger        *logger.Logger
	LegacyCourier string
	Now           func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	registry *Registry
	audit    auditRecorder
	outbox   outbox.Emitter
	locker   redis.Locker
	metrics  *metrics.MarketplaceMetrics
	logg     *logger.Logger
	legacy   string
	now      func() time.Time
}

// NewService validates dependencies and builds the logistics service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("logistics repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	registry := params.Registry
	if registry == nil {
		registry = DefaultRegistry()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		registry: registry,
		audit:    params.Audit,
		outbox:   params.Outbox,
		locker:   params.Locker,
		metrics:  params.Metrics,
		logg:     params.Logger,
		legacy:   NormalizeName(params.LegacyCourier),
		now:      now,
	}, nil
}

// RouteOrder tries courier candidates in order until one books the shipment.
// Carrier failures never surface as errors: an exhausted candidate list
// leaves the order PENDING_LOGISTICS with a FAILED shipment. Errors are
// returned only for unknown orders, orders no longer awaiting routing and
// storage failures.
func (s *service) RouteOrder(ctx context.Context, orderID uuid.UUID) (*RoutingResult, error) {
	ctx = s.logg.WithField(ctx, "order_id", orderID.String())

	if s.locker != nil {
		lease, err := s.locker.Obtain(ctx, s.locker.LockKey("route", orderID.String()), defaultRouteLockTTL)
		if err != nil {
			if errors.Is(err, redis.ErrLockNotObtained) {
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "order routing already in progress")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "obtain routing lock")
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logg.Warn(ctx, "failed to release routing lock: "+err.Error())
			}
		}()
	}

	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order.Status != enums.OrderStatusPlaced {
		return nil, notAwaitingRouting(order)
	}

	lane := Lane{Destination: order.BuyerState, SellerType: order.SellerType}
	if len(order.Items) > 0 {
		lane.Origin = order.Items[0].SellerState
	}

	configs, err := s.repo.ActiveCourierConfigs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load courier configs")
	}

	result := &RoutingResult{OrderID: order.ID}
	lastErr := ""
	for _, cfg := range Candidates(configs, lane, s.legacy) {
		name := NormalizeName(cfg.Name)
		if reason := CODSkipReason(cfg, order.PaymentMethod, order.TotalAmount); reason != "" {
			result.Attempts = append(result.Attempts, Attempt{Courier: name, Outcome: OutcomeSkippedCOD, Error: reason})
			s.metrics.CourierAttempt(name, OutcomeSkippedCOD)
			continue
		}

		provider := s.registry.Resolve(name)
		ok, err := provider.CheckServiceability(ctx, lane.Origin, lane.Destination)
		if err != nil {
			lastErr = err.Error()
			result.Attempts = append(result.Attempts, Attempt{Courier: name, Outcome: OutcomeError, Error: lastErr})
			s.metrics.CourierAttempt(name, OutcomeError)
			continue
		}
		if !ok {
			lastErr = fmt.Sprintf("%s does not service %s to %s", name, lane.Origin, lane.Destination)
			result.Attempts = append(result.Attempts, Attempt{Courier: name, Outcome: OutcomeUnserviceable, Error: lastErr})
			s.metrics.CourierAttempt(name, OutcomeUnserviceable)
			continue
		}

		booking, err := provider.CreateShipment(ctx, ShipmentRequest{
			Order:       order,
			Config:      cfg,
			Origin:      lane.Origin,
			Destination: lane.Destination,
		})
		if err == nil && (booking == nil || strings.TrimSpace(booking.AWB) == "") {
			err = fmt.Errorf("%s returned no tracking number", name)
		}
		if err != nil {
			lastErr = err.Error()
			result.Attempts = append(result.Attempts, Attempt{Courier: name, Outcome: OutcomeError, Error: lastErr})
			s.metrics.CourierAttempt(name, OutcomeError)
			s.logg.Warn(s.logg.WithField(ctx, "courier", name), "courier booking failed: "+lastErr)
			continue
		}

		result.Attempts = append(result.Attempts, Attempt{Courier: name, Outcome: OutcomeCreated})
		s.metrics.CourierAttempt(name, OutcomeCreated)
		if err := s.commitRouted(ctx, order, cfg, lane, booking); err != nil {
			return nil, err
		}
		cost := booking.Cost
		result.Status = enums.OrderStatusShipped
		result.Courier = name
		result.AWB = booking.AWB
		result.Cost = &cost
		s.metrics.RoutingResult("routed")
		return result, nil
	}

	reason := lastErr
	if reason == "" {
		reason = allCouriersFailed
	}
	if err := s.commitFailed(ctx, order, lane, reason); err != nil {
		return nil, err
	}
	result.Status = enums.OrderStatusPendingLogistics
	result.FailureReason = reason
	s.metrics.RoutingResult("failed")
	return result, nil
}

func (s *service) commitRouted(ctx context.Context, order *models.Order, cfg models.CourierConfig, lane Lane, booking *Booking) error {
	name := NormalizeName(cfg.Name)
	priority := cfg.Priority
	awb := booking.AWB
	status := booking.Status
	if status == "" {
		status = enums.ShipmentStatusCreated
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
		}
		if current.Status != enums.OrderStatusPlaced {
			return notAwaitingRouting(current)
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"order_status":     enums.OrderStatusShipped,
			"tracking_awb":     awb,
			"logistics_status": status.String(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order shipped")
		}
		if err := repo.UpsertShipment(ctx, &models.Shipment{
			ID:               uuid.New(),
			OrderID:          order.ID,
			AWB:              &awb,
			CourierName:      &name,
			Cost:             decimal.NewNullDecimal(booking.Cost),
			Priority:         &priority,
			Status:           status,
			OriginState:      lane.Origin,
			DestinationState: lane.Destination,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert shipment")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLogisticsRouted,
			AggregateType: enums.AggregateShipment,
			AggregateID:   order.ID,
			Data: payloads.LogisticsRoutedEvent{
				OrderID:  order.ID,
				Courier:  name,
				AWB:      awb,
				Cost:     booking.Cost,
				Priority: priority,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit routed event")
		}
		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    audit.SystemActor,
			Action:   audit.ActionLogisticsRouted,
			TargetID: order.ID.String(),
			Metadata: map[string]any{"courier": name, "awb": awb, "cost": booking.Cost.String()},
		})
		return nil
	})
	if err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{"courier": name, "awb": awb}), "courier booked but order not updated", err)
		return err
	}

	s.metrics.Transition(enums.OrderStatusShipped.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":   "logistics.routed",
		"courier": name,
		"awb":     awb,
	}), "order routed")
	return nil
}

func (s *service) commitFailed(ctx context.Context, order *models.Order, lane Lane, reason string) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.LockOrder(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
		}
		if current.Status != enums.OrderStatusPlaced {
			return notAwaitingRouting(current)
		}
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"order_status":     enums.OrderStatusPendingLogistics,
			"logistics_status": enums.ShipmentStatusFailed.String(),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order pending logistics")
		}
		if err := repo.UpsertShipment(ctx, &models.Shipment{
			ID:               uuid.New(),
			OrderID:          order.ID,
			Status:           enums.ShipmentStatusFailed,
			OriginState:      lane.Origin,
			DestinationState: lane.Destination,
			FailureReason:    &reason,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert failed shipment")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLogisticsFailed,
			AggregateType: enums.AggregateShipment,
			AggregateID:   order.ID,
			Data:          payloads.LogisticsFailedEvent{OrderID: order.ID, Reason: reason},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit routing failed event")
		}
		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    audit.SystemActor,
			Action:   audit.ActionLogisticsFailure,
			TargetID: order.ID.String(),
			Metadata: map[string]any{"error": reason},
		})
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.Transition(enums.OrderStatusPendingLogistics.String())
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"event":  "logistics.failed",
		"reason": reason,
	}), "order routing exhausted all couriers")
	return nil
}

// RecordCarrierStatusTx stores a carrier-reported status on the shipment and
// mirrors it onto the order's logistics status.
func (s *service) RecordCarrierStatusTx(ctx context.Context, tx *gorm.DB, awb string, status enums.ShipmentStatus, courier string) (*models.Shipment, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown shipment status").
			WithDetails(map[string]any{"status": status})
	}
	repo := s.repo.WithTx(tx)
	shipment, err := repo.LockShipmentByAWB(ctx, awb)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found").
				WithDetails(map[string]any{"awb": awb})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
	}

	at := s.now().UTC()
	updates := map[string]any{"status": status, "last_event_at": at}
	if name := NormalizeName(courier); name != "" {
		updates["courier_name"] = name
		shipment.CourierName = &name
	}
	if err := repo.UpdateShipment(ctx, shipment.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shipment")
	}
	if err := repo.UpdateOrder(ctx, shipment.OrderID, map[string]any{"logistics_status": status.String()}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order logistics status")
	}
	shipment.Status = status
	shipment.LastEventAt = &at
	return shipment, nil
}

func (s *service) Shipment(ctx context.Context, awb string) (*models.Shipment, error) {
	shipment, err := s.repo.FindShipmentByAWB(ctx, awb)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shipment")
	}
	return shipment, nil
}

func (s *service) Shipments(ctx context.Context, status *enums.ShipmentStatus, params pagination.Params) (pagination.Page[models.Shipment], error) {
	rows, err := s.repo.ListShipments(ctx, status, params)
	if err != nil {
		return pagination.Page[models.Shipment]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list shipments")
	}
	return pagination.Build(rows, params.Limit, func(sh models.Shipment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: sh.CreatedAt, ID: sh.ID}
	}), nil
}

func (s *service) Trackable(ctx context.Context, limit int) ([]models.Shipment, error) {
	if limit <= 0 {
		limit = 100
	}
	shipments, err := s.repo.ListTrackable(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list trackable shipments")
	}
	return shipments, nil
}

func (s *service) Provider(courier string) Provider {
	return s.registry.Resolve(courier)
}

func (s *service) CourierConfigs(ctx context.Context) ([]models.CourierConfig, error) {
	configs, err := s.repo.ListCourierConfigs(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list courier configs")
	}
	return configs, nil
}

func (s *service) UpsertCourierConfig(ctx context.Context, actor audit.Actor, input CourierConfigInput) (*models.CourierConfig, error) {
	name := NormalizeName(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "courier name is required")
	}
	if input.Priority < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "priority must not be negative")
	}
	if input.MaxCODAmount != nil && input.MaxCODAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "max cod amount must not be negative")
	}

	cfg := &models.CourierConfig{
		ID:          uuid.New(),
		Name:        name,
		BaseURL:     input.BaseURL,
		APIKey:      input.APIKey,
		Priority:    input.Priority,
		IsActive:    true,
		SupportsCOD: input.SupportsCOD,
	}
	if input.IsActive != nil {
		cfg.IsActive = *input.IsActive
	}
	if input.MaxCODAmount != nil {
		cfg.MaxCODAmount = decimal.NewNullDecimal(*input.MaxCODAmount)
	}

	var saved *models.CourierConfig
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpsertCourierConfig(ctx, cfg); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save courier config")
		}
		var err error
		saved, err = repo.FindCourierConfig(ctx, name)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload courier config")
		}
		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    actor,
			Action:   audit.ActionCourierConfigUpsert,
			TargetID: name,
			Metadata: map[string]any{
				"priority":     saved.Priority,
				"is_active":    saved.IsActive,
				"supports_cod": saved.SupportsCOD,
			},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

func (s *service) DeleteCourierConfig(ctx context.Context, actor audit.Actor, name string) error {
	name = NormalizeName(name)
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).DeleteCourierConfig(ctx, name)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete courier config")
		}
		if deleted == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "courier config not found")
		}
		s.audit.Record(ctx, tx, audit.Entry{Actor: actor, Action: audit.ActionCourierConfigDelete, TargetID: name})
		return nil
	})
}

func notAwaitingRouting(order *models.Order) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not awaiting routing").
		WithDetails(map[string]any{"order_id": order.ID.String(), "order_status": order.Status})
}
