package visibility

import (
	"strings"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
)

// ErrOutOfState is the message returned when a PAN_ONLY seller cannot ship to the buyer.
const ErrOutOfState = "This seller delivers only within their state"

// SellerScopeInput drives the delivery-scope check applied to each cart line.
type SellerScopeInput struct {
	Seller     *models.SellerProfile
	BuyerState string
}

// EnsureSellerDelivers rejects carts a seller is not allowed to fulfil.
// GST sellers ship nationwide; PAN_ONLY sellers only inside their home state.
func EnsureSellerDelivers(input SellerScopeInput) error {
	if input.Seller == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "seller not found")
	}
	buyerState := NormalizeState(input.BuyerState)
	if buyerState == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "buyer state is required")
	}
	if input.Seller.Type != enums.SellerTypePANOnly {
		return nil
	}
	if NormalizeState(input.Seller.State) != buyerState {
		return pkgerrors.New(pkgerrors.CodeValidation, ErrOutOfState).WithDetails(map[string]any{
			"seller_id":    input.Seller.UserID,
			"seller_state": NormalizeState(input.Seller.State),
			"buyer_state":  buyerState,
		})
	}
	return nil
}

// NormalizeState canonicalises state names for comparison.
func NormalizeState(value string) string {
	return strings.ToUpper(strings.TrimSpace(value))
}
