package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/fensho/marketplace-backend/pkg/errors"
)

// MaxLineQuantity caps the units of a single product in one order.
const MaxLineQuantity = 100

// LineInput is one requested cart line before products are loaded.
type LineInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// LineViolationDetail exposes the data returned to callers when a line is rejected.
type LineViolationDetail struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

// ValidateLines checks quantities and rejects repeated products.
func ValidateLines(lines []LineInput) error {
	if len(lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	var violations []LineViolationDetail
	seen := make(map[uuid.UUID]struct{}, len(lines))
	for _, line := range lines {
		switch {
		case line.ProductID == uuid.Nil:
			violations = append(violations, LineViolationDetail{Quantity: line.Quantity, Reason: "product_id is required"})
			continue
		case line.Quantity < 1:
			violations = append(violations, LineViolationDetail{ProductID: line.ProductID, Quantity: line.Quantity, Reason: "quantity must be at least 1"})
		case line.Quantity > MaxLineQuantity:
			violations = append(violations, LineViolationDetail{ProductID: line.ProductID, Quantity: line.Quantity, Reason: fmt.Sprintf("quantity must not exceed %d", MaxLineQuantity)})
		}
		if _, dup := seen[line.ProductID]; dup {
			violations = append(violations, LineViolationDetail{ProductID: line.ProductID, Quantity: line.Quantity, Reason: "duplicate product"})
		}
		seen[line.ProductID] = struct{}{}
	}
	if len(violations) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order lines: %d violation(s)", len(violations))).WithDetails(map[string]any{
		"violations": violations,
	})
}
