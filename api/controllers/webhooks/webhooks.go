package webhooks

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fensho/marketplace-backend/api/responses"
	"github.com/fensho/marketplace-backend/api/validators"
	internalwebhooks "github.com/fensho/marketplace-backend/internal/webhooks"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
)

const (
	maxWebhookBody  = 1 << 20
	fendexSigHeader = "X-Fendex-Signature"
	razorpaySig     = "X-Razorpay-Signature"
)

// EventService processes inbound courier and gateway callbacks.
type EventService interface {
	CourierEvent(ctx context.Context, courier, awb, status string) (*internalwebhooks.CourierResult, error)
	FendexEvent(ctx context.Context, body []byte, signature string) (*internalwebhooks.CourierResult, error)
	RazorpayEvent(ctx context.Context, body []byte, signature string) (*internalwebhooks.GatewayResult, error)
}

type courierEventRequest struct {
	AWB    string `json:"awb" validate:"required,max=64"`
	Status string `json:"status" validate:"required,max=32"`
}

// Courier handles the generic carrier callback at /webhooks/courier/{courier}.
func Courier(svc EventService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		courier := validators.SanitizeString(chi.URLParam(r, "courier"), 64)
		if courier == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "courier is required"))
			return
		}
		var body courierEventRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.CourierEvent(r.Context(), courier, body.AWB, body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Fendex handles the signed legacy courier channel. The signature covers the
// raw body so it is read before any decoding.
func Fendex(svc EventService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		payload, err := readBody(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.FendexEvent(r.Context(), payload, strings.TrimSpace(r.Header.Get(fendexSigHeader)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Razorpay handles gateway payment and refund notifications.
func Razorpay(svc EventService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		payload, err := readBody(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.RazorpayEvent(r.Context(), payload, strings.TrimSpace(r.Header.Get(razorpaySig)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func readBody(r *http.Request) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	if len(payload) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "empty request body")
	}
	return payload, nil
}
