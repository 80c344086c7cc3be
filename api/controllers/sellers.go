package controllers

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
	"github.com/fensho/marketplace-backend/internal/catalog"
	"github.com/fensho/marketplace-backend/internal/ledger"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	"github.com/fensho/marketplace-backend/pkg/logger"
	"github.com/fensho/marketplace-backend/pkg/pagination"
)

type walletService interface {
	Payout(ctx context.Context, actor audit.Actor, sellerID uuid.UUID) (*ledger.PayoutResult, error)
	Wallet(ctx context.Context, sellerID uuid.UUID) (*models.SellerWallet, error)
	Wallets(ctx context.Context, params pagination.Params) (pagination.Page[models.SellerWallet], error)
	Entries(ctx context.Context, sellerID uuid.UUID, params pagination.Params) (pagination.Page[models.LedgerEntry], error)
}

type sellerTermsService interface {
	UpdateSellerTerms(ctx context.Context, actor audit.Actor, sellerID uuid.UUID, input catalog.SellerTermsInput) (*models.SellerProfile, error)
	IncompleteProducts(ctx context.Context) ([]models.Product, error)
}

type sellerTermsRequest struct {
	CommissionRate *decimal.Decimal `json:"commission_rate" validate:"omitempty,gte=0,lt=1"`
	TDSRate        *decimal.Decimal `json:"tds_rate" validate:"omitempty,gte=0,lt=1"`
	Type           *string          `json:"type" validate:"omitempty,oneof=GST PAN_ONLY"`
}

// AdminSellerPayout pays out a seller's settled earnings.
func AdminSellerPayout(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := validators.ParsePathUUID(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Payout(r.Context(), middleware.ActorFromContext(r.Context()), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminSellerWallet(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := validators.ParsePathUUID(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		wallet, err := svc.Wallet(r.Context(), sellerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, wallet)
	}
}

// AdminSellerLedger pages through a seller's ledger, newest first.
func AdminSellerLedger(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := validators.ParsePathUUID(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.Entries(r.Context(), sellerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminFinanceWallets lists every seller wallet for the finance summary.
func AdminFinanceWallets(svc walletService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.Wallets(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminSellerTerms(svc sellerTermsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sellerID, err := validators.ParsePathUUID(r, "sellerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sellerTermsRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := catalog.SellerTermsInput{CommissionRate: body.CommissionRate, TDSRate: body.TDSRate}
		if body.Type != nil {
			sellerType := enums.SellerType(strings.ToUpper(*body.Type))
			input.Type = &sellerType
		}
		seller, err := svc.UpdateSellerTerms(r.Context(), middleware.ActorFromContext(r.Context()), sellerID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, seller)
	}
}

// AdminProductsAudit lists products that cannot be classed for shipping.
func AdminProductsAudit(svc sellerTermsService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.IncompleteProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"count":    len(products),
			"products": products,
		})
	}
}
