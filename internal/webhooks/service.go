package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/internal/orders"
	"github.com/fensho/marketplace-backend/internal/payments"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/metrics"
)

// Webhook sources and outcomes reported to metrics.
const (
	SourceRazorpay = "RAZORPAY"
	SourceFendex   = "FENDEX"

	OutcomeProcessed     = "processed"
	OutcomeDuplicate     = "duplicate"
	OutcomeIgnored       = "ignored"
	OutcomeAuthFailed    = "auth_failed"
	OutcomeStateConflict = "state_conflict"
	OutcomeFailed        = "failed"
)

const (
	eventPaymentCaptured = "payment.captured"
	eventRefundProcessed = "refund.processed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type auditLog interface {
	Claim(ctx context.Context, tx *gorm.DB, key string, scope enums.IdempotencyScope) (audit.ClaimResult, error)
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

type shipmentTracker interface {
	RecordCarrierStatusTx(ctx context.Context, tx *gorm.DB, awb string, status enums.ShipmentStatus, courier string) (*models.Shipment, error)
	Shipment(ctx context.Context, awb string) (*models.Shipment, error)
}

type orderAdvancer interface {
	AdvanceTx(ctx context.Context, tx *gorm.DB, actor audit.Actor, orderID uuid.UUID, status enums.OrderStatus) (*orders.TransitionResult, error)
}

type paymentCapturer interface {
	CaptureTx(ctx context.Context, tx *gorm.DB, capture payments.Capture) (*payments.CaptureResult, error)
	OrderByPaymentID(ctx context.Context, paymentID string) (*models.Order, error)
}

type refundBooker interface {
	ApplyRefundTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, booking ledger.RefundBooking) (*ledger.RefundResult, error)
}

type webhookVerifier interface {
	VerifyWebhookSignature(body []byte, signature string) bool
}

type ServiceParams struct {
	Tx        txRunner
	Audit     auditLog
	Shipments shipmentTracker
	Orders    orderAdvancer
	Payments  paymentCapturer
	Refunds   refundBooker
	// Razorpay is nil when gateway credentials are not configured.
	Razorpay     webhookVerifier
	FendexSecret string
	Metrics      *metrics.MarketplaceMetrics
	Logger       *logger.Logger
}

// Service applies inbound courier and payment-gateway callbacks.
type Service struct {
	tx           txRunner
	audit        auditLog
	shipments    shipmentTracker
	orders       orderAdvancer
	payments     paymentCapturer
	refunds      refundBooker
	razorpay     webhookVerifier
	fendexSecret []byte
	metrics      *metrics.MarketplaceMetrics
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Audit == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "audit service required")
	}
	if params.Shipments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "shipment tracker required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	if params.Refunds == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "refund booker required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		tx:           params.Tx,
		audit:        params.Audit,
		shipments:    params.Shipments,
		orders:       params.Orders,
		payments:     params.Payments,
		refunds:      params.Refunds,
		razorpay:     params.Razorpay,
		fendexSecret: []byte(params.FendexSecret),
		metrics:      params.Metrics,
		logg:         params.Logger,
	}, nil
}

// CourierResult reports what a carrier status callback changed.
type CourierResult struct {
	Courier    string                   `json:"courier"`
	AWB        string                   `json:"awb"`
	Status     enums.ShipmentStatus     `json:"status"`
	Duplicate  bool                     `json:"duplicate"`
	OrderID    *uuid.UUID               `json:"order_id,omitempty"`
	Transition *orders.TransitionResult `json:"transition,omitempty"`
	Conflict   string                   `json:"conflict,omitempty"`
}

// CourierEvent applies a carrier status update for awb. The (awb, status)
// pair is claimed first so redelivered callbacks are acknowledged without
// effect. Settling statuses advance the order through the same transition
// path admins use.
func (s *Service) CourierEvent(ctx context.Context, courier, awb, rawStatus string) (*CourierResult, error) {
	courier = strings.ToUpper(strings.TrimSpace(courier))
	awb = strings.TrimSpace(awb)
	if awb == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "awb required")
	}
	status, err := enums.ParseShipmentStatus(strings.ToUpper(strings.TrimSpace(rawStatus)))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shipment status")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"courier": courier, "awb": awb, "status": status.String()})
	result := &CourierResult{Courier: courier, AWB: awb, Status: status}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claim, err := s.audit.Claim(ctx, tx, awb+"_"+status.String(), enums.ScopeDeliveryEvent)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim delivery event")
		}
		if claim == audit.ClaimDuplicate {
			result.Duplicate = true
			return nil
		}

		shipment, err := s.shipments.RecordCarrierStatusTx(ctx, tx, awb, status, courier)
		if err != nil {
			return err
		}
		result.OrderID = &shipment.OrderID

		if target, ok := status.OrderOutcome(); ok {
			transition, err := s.orders.AdvanceTx(ctx, tx, audit.SystemActor, shipment.OrderID, target)
			switch {
			case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
				result.Conflict = err.Error()
				s.audit.Record(ctx, tx, audit.Entry{
					Actor:    audit.SystemActor,
					Action:   audit.ActionWebhookStateConflict,
					TargetID: shipment.OrderID.String(),
					Metadata: map[string]any{"provider": courier, "awb": awb, "status": status.String(), "error": err.Error()},
				})
			case err != nil:
				return err
			default:
				result.Transition = transition
			}
		}

		s.audit.Record(ctx, tx, audit.Entry{
			Actor:    audit.SystemActor,
			Action:   audit.ActionWebhookReceived,
			TargetID: shipment.OrderID.String(),
			Metadata: map[string]any{"provider": courier, "awb": awb, "status": status.String()},
		})
		return nil
	})
	if err != nil {
		s.metrics.WebhookEvent(courier, OutcomeFailed)
		if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.logg.Error(ctx, "courier event failed", err)
		}
		return nil, err
	}

	switch {
	case result.Duplicate:
		s.metrics.WebhookEvent(courier, OutcomeDuplicate)
		s.logg.Debug(ctx, "duplicate courier event acknowledged")
	case result.Conflict != "":
		s.metrics.WebhookEvent(courier, OutcomeStateConflict)
		s.logg.Warn(s.logg.WithField(ctx, "conflict", result.Conflict), "courier event left order unchanged")
	default:
		s.metrics.WebhookEvent(courier, OutcomeProcessed)
		s.logg.Info(s.logg.WithField(ctx, "event", "webhook.courier"), "courier event applied")
	}
	return result, nil
}

type fendexPayload struct {
	AWB    string `json:"awb"`
	Status string `json:"status"`
}

// FendexEvent verifies the legacy FENDEX signature over the raw body and
// hands the event to CourierEvent.
func (s *Service) FendexEvent(ctx context.Context, body []byte, signature string) (*CourierResult, error) {
	if !s.validFendexSignature(body, signature) {
		s.authFailed(ctx, SourceFendex)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid signature")
	}
	var payload fendexPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode fendex payload")
	}
	return s.CourierEvent(ctx, SourceFendex, payload.AWB, payload.Status)
}

func (s *Service) validFendexSignature(body []byte, signature string) bool {
	if len(s.fendexSecret) == 0 || signature == "" {
		return false
	}
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.fendexSecret)
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), given)
}

// SimulateCourierStatus lets an admin push a carrier status for a shipment
// through the same path real callbacks take.
func (s *Service) SimulateCourierStatus(ctx context.Context, actor audit.Actor, awb, status string) (*CourierResult, error) {
	shipment, err := s.shipments.Shipment(ctx, strings.TrimSpace(awb))
	if err != nil {
		return nil, err
	}
	courier := ""
	if shipment.CourierName != nil {
		courier = *shipment.CourierName
	}
	s.audit.Record(ctx, nil, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionShipmentSimulate,
		TargetID: shipment.OrderID.String(),
		Metadata: map[string]any{"awb": awb, "status": status, "courier": courier},
	})
	return s.CourierEvent(ctx, courier, awb, status)
}

type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity razorpayPayment `json:"entity"`
		} `json:"payment"`
		Refund *struct {
			Entity razorpayRefund `json:"entity"`
		} `json:"refund"`
	} `json:"payload"`
}

type razorpayPayment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
}

type razorpayRefund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
}

// GatewayResult reports how a payment-gateway callback was handled.
type GatewayResult struct {
	Event     string     `json:"event"`
	Outcome   string     `json:"outcome"`
	OrderID   *uuid.UUID `json:"order_id,omitempty"`
	Duplicate bool       `json:"duplicate"`
}

// RazorpayEvent verifies x-razorpay-signature and applies captured payments
// and processed refunds. Each is claimed on its gateway id first.
func (s *Service) RazorpayEvent(ctx context.Context, body []byte, signature string) (*GatewayResult, error) {
	if s.razorpay == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "razorpay is not configured")
	}
	if !s.razorpay.VerifyWebhookSignature(body, signature) {
		s.authFailed(ctx, SourceRazorpay)
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid signature")
	}
	var event razorpayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode razorpay payload")
	}
	ctx = s.logg.WithField(ctx, "razorpay_event", event.Event)

	var (
		result *GatewayResult
		err    error
	)
	switch event.Event {
	case eventPaymentCaptured:
		if event.Payload.Payment == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment entity missing")
		}
		result, err = s.paymentCaptured(ctx, event.Payload.Payment.Entity, body)
	case eventRefundProcessed:
		if event.Payload.Refund == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund entity missing")
		}
		result, err = s.refundProcessed(ctx, event.Payload.Refund.Entity)
	default:
		result = &GatewayResult{Outcome: OutcomeIgnored}
	}
	if err != nil {
		s.metrics.WebhookEvent(SourceRazorpay, OutcomeFailed)
		s.logg.Error(ctx, "razorpay event failed", err)
		return nil, err
	}
	result.Event = event.Event
	s.metrics.WebhookEvent(SourceRazorpay, result.Outcome)
	s.logg.Info(s.logg.WithField(ctx, "outcome", result.Outcome), "razorpay event handled")
	return result, nil
}

func (s *Service) paymentCaptured(ctx context.Context, payment razorpayPayment, raw []byte) (*GatewayResult, error) {
	if payment.ID == "" || payment.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id and order id are required")
	}
	result := &GatewayResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		captured, err := s.payments.CaptureTx(ctx, tx, payments.Capture{
			GatewayOrderID: payment.OrderID,
			PaymentID:      payment.ID,
			EventType:      enums.PaymentEventCaptured,
			Raw:            raw,
			Actor:          audit.SystemActor,
		})
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			result.Outcome = OutcomeStateConflict
			s.recordConflict(ctx, tx, nil, payment.ID, err)
			return nil
		}
		if err != nil {
			return err
		}
		result.OrderID = &captured.OrderID
		result.Duplicate = captured.Duplicate
		if captured.Duplicate {
			result.Outcome = OutcomeDuplicate
			return nil
		}
		result.Outcome = OutcomeProcessed
		s.recordReceived(ctx, tx, captured.OrderID, eventPaymentCaptured)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) refundProcessed(ctx context.Context, refund razorpayRefund) (*GatewayResult, error) {
	if refund.ID == "" || refund.PaymentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund id and payment id are required")
	}
	order, err := s.payments.OrderByPaymentID(ctx, refund.PaymentID)
	if err != nil {
		return nil, err
	}

	result := &GatewayResult{OrderID: &order.ID}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		claim, err := s.audit.Claim(ctx, tx, refund.ID, enums.ScopeRefundEvent)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claim refund event")
		}
		if claim == audit.ClaimDuplicate {
			result.Outcome = OutcomeDuplicate
			result.Duplicate = true
			return nil
		}

		booking := ledger.RefundBooking{RefundID: refund.ID}
		if refund.Amount > 0 {
			amount := payments.FromPaise(refund.Amount)
			booking.Amount = &amount
		}
		_, err = s.refunds.ApplyRefundTx(ctx, tx, order.ID, booking)
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			result.Outcome = OutcomeStateConflict
			s.recordConflict(ctx, tx, &order.ID, refund.ID, err)
			return nil
		}
		if err != nil {
			return err
		}
		result.Outcome = OutcomeProcessed
		s.recordReceived(ctx, tx, order.ID, eventRefundProcessed)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) recordReceived(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, event string) {
	s.audit.Record(ctx, tx, audit.Entry{
		Actor:    audit.SystemActor,
		Action:   audit.ActionWebhookReceived,
		TargetID: orderID.String(),
		Metadata: map[string]any{"provider": SourceRazorpay, "event": event},
	})
}

func (s *Service) recordConflict(ctx context.Context, tx *gorm.DB, orderID *uuid.UUID, ref string, cause error) {
	entry := audit.Entry{
		Actor:    audit.SystemActor,
		Action:   audit.ActionWebhookStateConflict,
		Metadata: map[string]any{"provider": SourceRazorpay, "ref": ref, "error": cause.Error()},
	}
	if orderID != nil {
		entry.TargetID = orderID.String()
	}
	s.audit.Record(ctx, tx, entry)
	s.logg.Warn(s.logg.WithField(ctx, "ref", ref), fmt.Sprintf("razorpay event left state unchanged: %v", cause))
}

func (s *Service) authFailed(ctx context.Context, provider string) {
	s.audit.Record(ctx, nil, audit.Entry{
		Actor:    audit.SystemActor,
		Action:   audit.ActionWebhookAuthFail,
		Metadata: map[string]any{"provider": provider},
	})
	s.metrics.WebhookEvent(provider, OutcomeAuthFailed)
	s.logg.Warn(s.logg.WithField(ctx, "provider", provider), "webhook signature rejected")
}
