package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/internal/audit"
	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
	"github.com/fensho/marketplace-backend/pkg/logger"
)

const defaultAuditLimit = 200

type auditRecorder interface {
	Record(ctx context.Context, tx *gorm.DB, entry audit.Entry)
}

// SellerTermsInput carries admin edits to a seller's settlement terms.
type SellerTermsInput struct {
	CommissionRate *decimal.Decimal
	TDSRate        *decimal.Decimal
	Type           *enums.SellerType
}

// Service exposes the catalog reads checkout depends on and the admin
// maintenance operations on seller terms.
type Service struct {
	repo  *Repository
	audit auditRecorder
	logg  *logger.Logger
}

// NewService validates dependencies and builds the catalog service.
func NewService(repo *Repository, recorder auditRecorder, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("audit recorder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{repo: repo, audit: recorder, logg: logg}, nil
}

// ProductsByID resolves every requested id to an active product with its
// seller loaded. Any id that cannot be resolved is a not-found error.
func (s *Service) ProductsByID(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	products, err := s.repo.FindActiveProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load products")
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s not found", id))
		}
		if p.Seller == nil {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("seller for product %s not found", id))
		}
	}
	return byID, nil
}

func (s *Service) Seller(ctx context.Context, sellerID uuid.UUID) (*models.SellerProfile, error) {
	seller, err := s.repo.FindSeller(ctx, sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load seller")
	}
	return seller, nil
}

// UpdateSellerTerms sets commission, TDS or tax class for a seller. Rates
// must fall within [0, 1).
func (s *Service) UpdateSellerTerms(ctx context.Context, actor audit.Actor, sellerID uuid.UUID, input SellerTermsInput) (*models.SellerProfile, error) {
	updates := map[string]any{}
	for column, rate := range map[string]*decimal.Decimal{"commission_rate": input.CommissionRate, "tds_rate": input.TDSRate} {
		if rate == nil {
			continue
		}
		if rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, column+" must be in [0, 1)")
		}
		updates[column] = decimal.NewNullDecimal(*rate)
	}
	if input.Type != nil {
		if !input.Type.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid seller type")
		}
		updates["type"] = *input.Type
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no seller terms supplied")
	}

	if _, err := s.Seller(ctx, sellerID); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateSeller(ctx, sellerID, updates); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update seller terms")
	}
	s.audit.Record(ctx, nil, audit.Entry{
		Actor:    actor,
		Action:   audit.ActionSellerTermsUpdate,
		TargetID: sellerID.String(),
		Metadata: map[string]any{"updates": updates},
	})
	return s.Seller(ctx, sellerID)
}

// RefreshShippingClass persists the derived volumetric weight and class.
func (s *Service) RefreshShippingClass(ctx context.Context, product models.Product) (enums.ShippingClass, error) {
	if product.WeightGrams <= 0 || product.LengthCM.IsZero() || product.WidthCM.IsZero() || product.HeightCM.IsZero() {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "product weight and dimensions required")
	}
	volumetric := VolumetricWeight(product.LengthCM, product.WidthCM, product.HeightCM)
	class := ShippingClass(product.WeightGrams, volumetric)
	if err := s.repo.UpdateProduct(ctx, product.ID, map[string]any{
		"volumetric_weight": decimal.NewNullDecimal(volumetric),
		"shipping_class":    class,
	}); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update shipping class")
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"product_id":     product.ID.String(),
		"shipping_class": class,
	}), "shipping class refreshed")
	return class, nil
}

// IncompleteProducts lists products missing weight or dimensions.
func (s *Service) IncompleteProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListIncompleteProducts(ctx, defaultAuditLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list incomplete products")
	}
	return products, nil
}
