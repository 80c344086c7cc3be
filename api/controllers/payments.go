package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/fensho/marketplace-backend/api/middleware"
	"github.com/fensho/marketplace-backend/api/responses"
	"github.com/fensho/marketplace-backend/api/validators"
	"github.com/fensho/marketplace-backend/internal/payments"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
)

type paymentVerifier interface {
	VerifyCheckoutPayment(ctx context.Context, buyerID uuid.UUID, input payments.VerifyInput) (*payments.CaptureResult, error)
}

type verifyPaymentRequest struct {
	GatewayOrderID string `json:"razorpay_order_id" validate:"required,max=64"`
	PaymentID      string `json:"razorpay_payment_id" validate:"required,max=64"`
	Signature      string `json:"razorpay_signature" validate:"required,hexadecimal,max=128"`
}

// BuyerVerifyPayment confirms the checkout widget's payment callback.
func BuyerVerifyPayment(svc paymentVerifier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, ok := middleware.UserUUIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing"))
			return
		}
		var body verifyPaymentRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.VerifyCheckoutPayment(r.Context(), buyerID, payments.VerifyInput{
			GatewayOrderID: body.GatewayOrderID,
			PaymentID:      body.PaymentID,
			Signature:      body.Signature,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
