package orders

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/api/middleware"
	"github.com/fensho/marketplace-backend/api/responses"
	"github.com/fensho/marketplace-backend/api/validators"
	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/ledger"
	internalorders "github.com/fensho/marketplace-backend/internal/orders"
	"github.com/fensho/marketplace-backend/pkg/checkout"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

// OrderService is the slice of the order engine the HTTP layer drives.
type OrderService interface {
	Checkout(ctx context.Context, input internalorders.CheckoutInput) (*internalorders.CheckoutResult, error)
	Advance(ctx context.Context, actor audit.Actor, orderID uuid.UUID, status enums.OrderStatus) (*internalorders.TransitionResult, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters internalorders.OrderFilters, params pagination.Params) (pagination.Page[models.Order], error)
	Trail(ctx context.Context, orderID uuid.UUID) ([]models.AuditLog, error)
}

// SettlementService covers the order-scoped ledger operations.
type SettlementService interface {
	ReconcileCOD(ctx context.Context, actor audit.Actor, orderID uuid.UUID) (*models.SellerWallet, error)
	Refund(ctx context.Context, actor audit.Actor, orderID uuid.UUID, input ledger.RefundInput) (*ledger.RefundResult, error)
}

type checkoutItem struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=1000"`
}

type checkoutRequest struct {
	Items            []checkoutItem `json:"items" validate:"required,min=1,max=100,dive"`
	DestinationState string         `json:"destination_state" validate:"required,max=64"`
	PaymentMethod    string         `json:"payment_method" validate:"omitempty,oneof=ONLINE COD"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=PLACED SHIPPED DELIVERED RTO CANCELLED"`
}

type refundRequest struct {
	Amount           *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	ReversalOverride *decimal.Decimal `json:"reversal_override" validate:"omitempty,gte=0"`
}

// Checkout places an order for the authenticated buyer.
func Checkout(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		buyerID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
			return
		}

		var body checkoutRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]checkout.LineInput, 0, len(body.Items))
		for _, item := range body.Items {
			// uuid format already validated
			lines = append(lines, checkout.LineInput{ProductID: uuid.MustParse(item.ProductID), Quantity: item.Quantity})
		}

		result, err := svc.Checkout(r.Context(), internalorders.CheckoutInput{
			BuyerID:          buyerID,
			Lines:            lines,
			DestinationState: validators.SanitizeString(body.DestinationState, 64),
			PaymentMethod:    enums.PaymentMethod(body.PaymentMethod),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, result)
	}
}

// AdvanceStatus applies an admin status change.
func AdvanceStatus(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body statusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Advance(r.Context(), middleware.ActorFromContext(r.Context()), orderID, enums.OrderStatus(body.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// ReconcileCOD records that the courier remitted a COD order's cash.
func ReconcileCOD(svc SettlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wallet, err := svc.ReconcileCOD(r.Context(), middleware.ActorFromContext(r.Context()), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet)
	}
}

// Refund issues a gateway refund and books it. An empty body refunds the
// full order total.
func Refund(svc SettlementService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger service unavailable"))
			return
		}
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body refundRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		result, err := svc.Refund(r.Context(), middleware.ActorFromContext(r.Context()), orderID, ledger.RefundInput{
			Amount:           body.Amount,
			ReversalOverride: body.ReversalOverride,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Get returns one order.
func Get(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Trail returns the audit history recorded against an order.
func Trail(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParsePathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logs, err := svc.Trail(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, logs)
	}
}

// List pages through orders for the admin console.
func List(svc OrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters, err := buildFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.List(r.Context(), filters, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func buildFilters(r *http.Request) (internalorders.OrderFilters, error) {
	var filters internalorders.OrderFilters
	var err error
	if filters.BuyerID, err = validators.ParseQueryUUID(r, "buyer_id"); err != nil {
		return filters, err
	}
	if filters.SellerID, err = validators.ParseQueryUUID(r, "seller_id"); err != nil {
		return filters, err
	}
	if filters.DateFrom, err = validators.ParseQueryTime(r, "from"); err != nil {
		return filters, err
	}
	if filters.DateTo, err = validators.ParseQueryTime(r, "to"); err != nil {
		return filters, err
	}

	query := r.URL.Query()
	if raw := strings.ToUpper(strings.TrimSpace(query.Get("status"))); raw != "" {
		status, err := enums.ParseOrderStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		filters.Status = &status
	}
	if raw := strings.ToUpper(strings.TrimSpace(query.Get("payment_status"))); raw != "" {
		status, err := enums.ParsePaymentStatus(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_status")
		}
		filters.PaymentStatus = &status
	}
	if raw := strings.ToUpper(strings.TrimSpace(query.Get("payment_method"))); raw != "" {
		method, err := enums.ParsePaymentMethod(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method")
		}
		filters.PaymentMethod = &method
	}
	return filters, nil
}
