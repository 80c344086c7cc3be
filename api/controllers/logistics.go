package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/api/middleware"
	"github.com/fensho/marketplace-backend/api/responses"
	"github.com/fensho/marketplace-backend/api/validators"
	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/logistics"
	"github.com/fensho/marketplace-backend/internal/webhooks"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

type courierAdminService interface {
	Shipments(ctx context.Context, status *enums.ShipmentStatus, params pagination.Params) (pagination.Page[models.Shipment], error)
	CourierConfigs(ctx context.Context) ([]models.CourierConfig, error)
	UpsertCourierConfig(ctx context.Context, actor audit.Actor, input logistics.CourierConfigInput) (*models.CourierConfig, error)
	DeleteCourierConfig(ctx context.Context, actor audit.Actor, name string) error
}

type shipmentSimulator interface {
	SimulateCourierStatus(ctx context.Context, actor audit.Actor, awb, status string) (*webhooks.CourierResult, error)
}

type courierConfigRequest struct {
	Name         string           `json:"name" validate:"required,max=64"`
	BaseURL      *string          `json:"base_url" validate:"omitempty,url"`
	APIKey       *string          `json:"api_key" validate:"omitempty,max=256"`
	Priority     int              `json:"priority" validate:"min=0,max=1000"`
	IsActive     *bool            `json:"is_active"`
	SupportsCOD  bool             `json:"supports_cod"`
	MaxCODAmount *decimal.Decimal `json:"max_cod_amount" validate:"omitempty,gte=0"`
}

type simulateStatusRequest struct {
	Status string `json:"status" validate:"required,max=32"`
}

func AdminCourierConfigs(svc courierAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		configs, err := svc.CourierConfigs(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, configs)
	}
}

// AdminUpsertCourierConfig creates or replaces a courier by name.
func AdminUpsertCourierConfig(svc courierAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body courierConfigRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cfg, err := svc.UpsertCourierConfig(r.Context(), middleware.ActorFromContext(r.Context()), logistics.CourierConfigInput{
			Name:         validators.SanitizeString(body.Name, 64),
			BaseURL:      body.BaseURL,
			APIKey:       body.APIKey,
			Priority:     body.Priority,
			IsActive:     body.IsActive,
			SupportsCOD:  body.SupportsCOD,
			MaxCODAmount: body.MaxCODAmount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

func AdminDeleteCourierConfig(svc courierAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := validators.SanitizeString(chi.URLParam(r, "name"), 64)
		if name == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "courier name is required"))
			return
		}
		if err := svc.DeleteCourierConfig(r.Context(), middleware.ActorFromContext(r.Context()), name); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"deleted": name})
	}
}

// AdminShipments lists shipments, optionally filtered by ?status=.
func AdminShipments(svc courierAdminService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var status *enums.ShipmentStatus
		if raw := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status"))); raw != "" {
			parsed, err := enums.ParseShipmentStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			status = &parsed
		}
		page, err := svc.Shipments(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminSimulateShipmentStatus feeds a synthetic carrier update through the
// courier webhook path.
func AdminSimulateShipmentStatus(svc shipmentSimulator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		awb := strings.TrimSpace(chi.URLParam(r, "awb"))
		if awb == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "awb is required"))
			return
		}
		var body simulateStatusRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SimulateCourierStatus(r.Context(), middleware.ActorFromContext(r.Context()), awb, body.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
