package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/outbox"
	"github.com/fensho/marketplace-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditLog interface {
	Claim(ctx context.Context, tx *gorm.DB, key string, scope enums.IdempotencyScope) (audit.ClaimResult, error)
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

type signatureVerifier interface {
	VerifyPaymentSignature(gatewayOrderID, paymentID, signature string) bool
}

// Service records gateway payment captures against orders.
type Service interface {
	VerifyCheckoutPayment(ctx context.Context, buyerID uuid.UUID, input VerifyInput) (*CaptureResult, error)
	CaptureTx(ctx context.Context, tx *gorm.DB, capture Capture) (*CaptureResult, error)
	Events(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error)
	OrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
}

// VerifyInput is the client-side confirmation returned by the checkout widget.
type VerifyInput struct {
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// Capture is one gateway confirmation that a payment was captured.
type Capture struct {
	GatewayOrderID string
	PaymentID      string
	Signature      *string
	EventType      enums.PaymentEventType
	Raw            []byte
	Actor          audit.Actor
	// BuyerID restricts the capture to the buyer's own order when set.
	BuyerID *uuid.UUID
}

// CaptureResult reports the order's payment state after a capture.
type CaptureResult struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	PaymentID     string              `json:"payment_id"`
	Duplicate     bool                `json:"duplicate"`
}

type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Audit    auditLog
	Outbox   outbox.Emitter
	// Verifier is nil when gateway credentials are not configured.
	Verifier signatureVerifier
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	audit    auditLog
	outbox   outbox.Emitter
	verifier signatureVerifier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		audit:    params.Audit,
		outbox:   params.Outbox,
		verifier: params.Verifier,
		logg:     params.Logger,
	}, nil
}

// VerifyCheckoutPayment checks the checkout signature and marks the order
// PAID. The capture claims the payment id, so a later payment.captured
// webhook for the same payment is a no-op.
func (s *service) VerifyCheckoutPayment(ctx context.Context, buyerID uuid.UUID, input VerifyInput) (*CaptureResult, error) {
	input.GatewayOrderID = strings.TrimSpace(input.GatewayOrderID)
	input.PaymentID = strings.TrimSpace(input.PaymentID)
	input.Signature = strings.TrimSpace(input.Signature)
	if input.GatewayOrderID == "" || input.PaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id, payment id and signature are required")
	}
	if s.verifier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway is not configured")
	}
	if !s.verifier.VerifyPaymentSignature(input.GatewayOrderID, input.PaymentID, input.Signature) {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"buyer_id":         buyerID.String(),
			"gateway_order_id": input.GatewayOrderID,
		}), "payment signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment signature")
	}

	raw, err := json.Marshal(map[string]string{
		"razorpay_order_id":   input.GatewayOrderID,
		"razorpay_payment_id": input.PaymentID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode payment event")
	}

	var result *CaptureResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var captureErr error
		result, captureErr = s.CaptureTx(ctx, tx, Capture{
			GatewayOrderID: input.GatewayOrderID,
			PaymentID:      input.PaymentID,
			Signature:      &input.Signature,
			EventType:      enums.PaymentEventSuccess,
			Raw:            raw,
			Actor:          audit.Actor{ID: buyerID.String(), Role: enums.ActorRoleBuyer},
			BuyerID:        &buyerID,
		})
		return captureErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CaptureTx claims the payment id and marks the matching order PAID inside tx.
func (s *service) CaptureTx(ctx context.Context, tx *gorm.DB, capture Capture) (*CaptureResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if capture.GatewayOrderID == "" || capture.PaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gateway order id and payment id are required")
	}

	repo := s.repo.WithTx(tx)
	order, err := repo.LockOrderByGatewayOrderID(ctx, capture.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock order")
	}
	if capture.BuyerID != nil && order.BuyerID != *capture.BuyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}

	claim, err := s.audit.Claim(ctx, tx, capture.PaymentID, enums.ScopePaymentCaptured)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim payment capture")
	}
	if claim == audit.ClaimDuplicate {
		return &CaptureResult{OrderID: order.ID, PaymentStatus: order.PaymentStatus, PaymentID: capture.PaymentID, Duplicate: true}, nil
	}

	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not paid online")
	}
	if order.PaymentStatus != enums.PaymentStatusPending && order.PaymentStatus != enums.PaymentStatusFailed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order payment already %s", order.PaymentStatus)).
			WithDetails(map[string]any{"payment_status": order.PaymentStatus})
	}

	updates := map[string]any{
		"payment_status":     enums.PaymentStatusPaid,
		"gateway_payment_id": capture.PaymentID,
	}
	if capture.Signature != nil {
		updates["gateway_signature"] = *capture.Signature
	}
	if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark order paid")
	}

	eventType := capture.EventType
	if !eventType.IsValid() {
		eventType = enums.PaymentEventCaptured
	}
	raw := capture.Raw
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := repo.InsertEvent(ctx, &models.PaymentEvent{
		ID:         uuid.New(),
		OrderID:    order.ID,
		Type:       eventType,
		GatewayRef: capture.PaymentID,
		RawData:    datatypes.JSON(raw),
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record payment event")
	}

	actor := capture.Actor
	if actor.ID == "" {
		actor = audit.SystemActor
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{ID: actor.ID, Role: actor.Role.String()},
		Data:          payloads.OrderPaidEvent{OrderID: order.ID, GatewayPaymentID: capture.PaymentID},
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order paid")
	}
	s.audit.Record(ctx, tx, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionPaymentVerified,
		TargetID: order.ID.String(),
		Metadata: map[string]any{"payment_id": capture.PaymentID, "source": eventType.String()},
	})

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"event":      "payment.captured",
		"order_id":   order.ID.String(),
		"payment_id": capture.PaymentID,
	}), "order paid")
	return &CaptureResult{OrderID: order.ID, PaymentStatus: enums.PaymentStatusPaid, PaymentID: capture.PaymentID}, nil
}

func (s *service) Events(ctx context.Context, orderID uuid.UUID) ([]models.PaymentEvent, error) {
	if _, err := s.repo.FindOrder(ctx, orderID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	events, err := s.repo.ListEvents(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list payment events")
	}
	return events, nil
}

// OrderByPaymentID resolves the order a captured gateway payment belongs to.
func (s *service) OrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}
	order, err := s.repo.FindOrderByPaymentID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order by payment")
	}
	return order, nil
}
