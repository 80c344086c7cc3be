package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/catalog"
	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/pkg/checkout"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/metrics"
	"github.com/fensho/marketplace-backend/pkg/outbox"
	"github.com/fensho/marketplace-backend/pkg/outbox/payloads"
	"github.com/fensho/marketplace-backend/pkg/pagination"
	"github.com/fensho/marketplace-backend/pkg/visibility"
)

const trailLimit = 200

// Service is the order state machine plus buyer checkout.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	Advance(ctx context.Context, actor audit.Actor, orderID uuid.UUID, status enums.OrderStatus) (*TransitionResult, error)
	AdvanceTx(ctx context.Context, tx *gorm.DB, actor audit.Actor, orderID uuid.UUID, status enums.OrderStatus) (*TransitionResult, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters OrderFilters, params pagination.Params) (pagination.Page[models.Order], error)
	Trail(ctx context.Context, orderID uuid.UUID) ([]models.AuditLog, error)
}

// ServiceParams wires the orders service. Gateway may be nil when only COD
// checkouts are accepted.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Audit   auditLog
	Risk    riskEngine
	Ledger  ledgerPoster
	Catalog productCatalog
	Router  courierRouter
	Gateway GatewayOrders
	Metrics *metrics.MarketplaceMetrics
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	audit   auditLog
	risk    riskEngine
	ledger  ledgerPoster
	catalog productCatalog
	router  courierRouter
	gateway GatewayOrders
	metrics *metrics.MarketplaceMetrics
	logg    *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit log required")
	}
	if params.Risk == nil {
		return nil, fmt.Errorf("risk engine required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Router == nil {
		return nil, fmt.Errorf("courier router required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		audit:   params.Audit,
		risk:    params.Risk,
		ledger:  params.Ledger,
		catalog: params.Catalog,
		router:  params.Router,
		gateway: params.Gateway,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// Checkout prices the cart, gates cash on delivery, persists the order and
// hands it to courier routing. Routing outcomes never fail the checkout.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.BuyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer id required")
	}
	if err := checkout.ValidateLines(input.Lines); err != nil {
		return nil, err
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodOnline
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	destination := visibility.NormalizeState(input.DestinationState)
	if destination == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer state is required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"buyer_id":       input.BuyerID.String(),
		"payment_method": method.String(),
	})

	var (
		profile *models.BuyerProfile
		err     error
	)
	if method == enums.PaymentMethodCOD {
		profile, err = s.risk.CheckCOD(ctx, input.BuyerID)
	} else {
		profile, err = s.risk.EnsureProfile(ctx, nil, input.BuyerID)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(input.Lines))
	for _, line := range input.Lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.catalog.ProductsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                uuid.New(),
		BuyerID:           input.BuyerID,
		PaymentMethod:     method,
		PaymentStatus:     enums.PaymentStatusPending,
		Status:            enums.OrderStatusPlaced,
		BuyerState:        destination,
		SellerType:        enums.SellerTypeGST,
		RiskScoreSnapshot: profile.RiskScore,
		RefundAmount:      decimal.Zero,
		TotalAmount:       decimal.Zero,
	}
	for i, line := range input.Lines {
		product := products[line.ProductID]
		if err := visibility.EnsureSellerDelivers(visibility.SellerScopeInput{Seller: product.Seller, BuyerState: destination}); err != nil {
			return nil, err
		}
		seller := product.Seller
		if i == 0 {
			order.SellerID = seller.UserID
		}
		if seller.Type == enums.SellerTypePANOnly {
			order.SellerType = enums.SellerTypePANOnly
		}
		volumetric, class := catalog.Dimensions(product)
		item := models.OrderItem{
			ID:               uuid.New(),
			OrderID:          order.ID,
			ProductID:        product.ID,
			SellerID:         seller.UserID,
			SellerState:      visibility.NormalizeState(seller.State),
			Quantity:         line.Quantity,
			UnitPrice:        product.Price,
			WeightGrams:      product.WeightGrams,
			VolumetricWeight: volumetric,
			ShippingClass:    class,
			IsFragile:        product.IsFragile,
			CommissionRate:   seller.CommissionRate,
			TDSRate:          seller.TDSRate,
		}
		order.Items = append(order.Items, item)
		order.TotalAmount = order.TotalAmount.Add(item.LineTotal())
	}
	// Settlement is booked against the first line's seller only.
	for _, item := range order.Items[1:] {
		if item.SellerID != order.SellerID {
			s.logg.Warn(s.logg.WithField(ctx, "order_id", order.ID.String()), "multi-seller cart settles to first seller")
			break
		}
	}

	if method == enums.PaymentMethodCOD {
		if err := s.risk.CheckCODAmount(ctx, profile, order.TotalAmount); err != nil {
			return nil, err
		}
	} else {
		if s.gateway == nil {
			return nil, pkgerrors.New(pkgerrors.CodeDependency, "online payments are not configured")
		}
		gatewayOrderID, err := s.gateway.CreateOrder(ctx, order.ID.String(), order.TotalAmount)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create gateway order")
		}
		order.GatewayOrderID = &gatewayOrderID
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		if err := s.risk.IncrementLifetimeOrdersTx(ctx, tx, input.BuyerID); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ID: input.BuyerID.String(), Role: enums.ActorRoleBuyer.String()},
			Data: payloads.OrderCreatedEvent{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				SellerID:      order.SellerID,
				TotalAmount:   order.TotalAmount,
				PaymentMethod: order.PaymentMethod,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	ctx = s.logg.WithField(ctx, "order_id", order.ID.String())
	s.metrics.Transition(enums.OrderStatusPlaced.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event": "order.created",
		"total": order.TotalAmount.String(),
		"items": len(order.Items),
	}), "order placed")

	result := &CheckoutResult{}
	routing, err := s.router.RouteOrder(ctx, order.ID)
	if err != nil {
		s.logg.Error(ctx, "order routing failed", err)
	} else {
		result.Routing = routing
	}

	result.Order, err = s.Get(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Advance(ctx context.Context, actor audit.Actor, orderID uuid.UUID, status enums.OrderStatus) (*TransitionResult, error) {
	var result *TransitionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		result, err = s.AdvanceTx(ctx, tx, actor, orderID, status)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// AdvanceTx moves an order to status inside the caller's transaction. The
// status write, the buyer risk adjustment, the sale posting for deliveries and
// the audit entry commit or roll back together. Requesting the current status
// is a no-op.
func (s *service) AdvanceTx(ctx context.Context, tx *gorm.DB, actor audit.Actor, orderID uuid.UUID, status enums.OrderStatus) (*TransitionResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if !status.IsAdvanceable() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "invalid order status").
			WithDetails(map[string]any{"status": status})
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.LockOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}

	previous := order.Status
	result := &TransitionResult{OrderID: order.ID, PreviousStatus: previous, Status: status}
	if previous == status {
		return result, nil
	}
	if !previous.CanTransitionTo(status) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
			WithDetails(map[string]any{"order_id": order.ID.String(), "from": previous, "to": status})
	}

	if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"order_status": status}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update order status")
	}
	order.Status = status
	result.Changed = true

	result.Risk, err = s.risk.ApplyOutcomeTx(ctx, tx, order.BuyerID, order.ID, status)
	if err != nil {
		return nil, err
	}

	if status == enums.OrderStatusDelivered {
		rates := ledger.Rates{}
		item, err := repo.FindSellerItem(ctx, order.ID, order.SellerID)
		switch {
		case err == nil:
			rates = ledger.Rates{Commission: item.CommissionRate, TDS: item.TDSRate}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order item")
		}
		result.Sale, err = s.ledger.PostSaleTx(ctx, tx, order, rates)
		if err != nil {
			return nil, err
		}
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         actorRef(actor),
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        order.ID,
			BuyerID:        order.BuyerID,
			PreviousStatus: previous,
			Status:         status,
		},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit status change event")
	}
	s.audit.Record(ctx, tx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionOrderStatusUpdate,
		TargetID: order.ID.String(),
		Metadata: map[string]any{"from": previous.String(), "to": status.String()},
	})

	s.metrics.Transition(status.String())
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":      "order.transition",
		"order_id":   order.ID.String(),
		"from":       previous.String(),
		"to":         status.String(),
		"actor_role": actor.Role.String(),
	}), "order status changed")
	return result, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, filters OrderFilters, params pagination.Params) (pagination.Page[models.Order], error) {
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateFrom.After(*filters.DateTo) {
		return pagination.Page[models.Order]{}, pkgerrors.New(pkgerrors.CodeValidation, "date_from must not be after date_to")
	}
	rows, err := s.repo.ListOrders(ctx, filters, params)
	if err != nil {
		return pagination.Page[models.Order]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "list orders")
	}
	return pagination.Build(rows, params.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	}), nil
}

func (s *service) Trail(ctx context.Context, orderID uuid.UUID) ([]models.AuditLog, error) {
	if _, err := s.Get(ctx, orderID); err != nil {
		return nil, err
	}
	logs, err := s.audit.Trail(ctx, orderID.String(), trailLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load audit trail")
	}
	return logs, nil
}

func actorRef(actor audit.Actor) *outbox.ActorRef {
	if actor.ID == "" && actor.Role == "" {
		return nil
	}
	return &outbox.ActorRef{ID: actor.ID, Role: actor.Role.String()}
}
