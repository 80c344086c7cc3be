package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/api/middleware"
	"github.com/fensho/marketplace-backend/api/responses"
	"github.com/fensho/marketplace-backend/api/validators"
	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/internal/risk"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

type buyerRiskService interface {
	Profile(ctx context.Context, buyerID uuid.UUID) (*models.BuyerProfile, error)
	ListProfiles(ctx context.Context, params pagination.Params) (pagination.Page[models.BuyerProfile], error)
	OverrideCOD(ctx context.Context, actor audit.Actor, buyerID uuid.UUID, input risk.OverrideInput) (*models.BuyerProfile, error)
	ResetScore(ctx context.Context, actor audit.Actor, buyerID uuid.UUID) (*models.BuyerProfile, error)
	ListEvents(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[models.RiskEvent], error)
}

type overrideCODRequest struct {
	CODAllowed     *bool            `json:"cod_allowed"`
	CODLimitAmount *decimal.Decimal `json:"cod_limit_amount" validate:"omitempty,gte=0"`
	DailyCODLimit  *int             `json:"daily_cod_orders_limit" validate:"omitempty,min=0,max=1000"`
}

func AdminBuyers(svc buyerRiskService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListProfiles(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminBuyer(svc buyerRiskService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := validators.ParsePathUUID(r, "buyerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.Profile(r.Context(), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

// AdminOverrideCOD edits a buyer's COD eligibility limits.
func AdminOverrideCOD(svc buyerRiskService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := validators.ParsePathUUID(r, "buyerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body overrideCODRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if body.CODAllowed == nil && body.CODLimitAmount == nil && body.DailyCODLimit == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no override fields supplied"))
			return
		}

		profile, err := svc.OverrideCOD(r.Context(), middleware.ActorFromContext(r.Context()), buyerID, risk.OverrideInput{
			CODAllowed:     body.CODAllowed,
			CODLimitAmount: body.CODLimitAmount,
			DailyCODLimit:  body.DailyCODLimit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func AdminResetRisk(svc buyerRiskService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := validators.ParsePathUUID(r, "buyerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		profile, err := svc.ResetScore(r.Context(), middleware.ActorFromContext(r.Context()), buyerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, profile)
	}
}

func AdminRiskEvents(svc buyerRiskService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := validators.ParsePathUUID(r, "buyerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListEvents(r.Context(), buyerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
