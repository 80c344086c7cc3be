package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/fensho/marketplace-backend/pkg/db/models"
	"github.com/fensho/marketplace-backend/pkg/enums"
)

var (
	volumetricDivisor = decimal.NewFromInt(5000)
	lightCeiling      = decimal.NewFromInt(500)
	mediumCeiling     = decimal.NewFromInt(5000)
)

// VolumetricWeight is L x W x H / 5000 over centimetre dimensions.
func VolumetricWeight(length, width, height decimal.Decimal) decimal.Decimal {
	return length.Mul(width).Mul(height).Div(volumetricDivisor).Round(3)
}

// ShippingClass buckets the larger of actual and volumetric weight.
func ShippingClass(actualGrams int, volumetric decimal.Decimal) enums.ShippingClass {
	weight := decimal.Max(decimal.NewFromInt(int64(actualGrams)), volumetric)
	switch {
	case weight.LessThan(lightCeiling):
		return enums.ShippingClassLight
	case weight.LessThanOrEqual(mediumCeiling):
		return enums.ShippingClassMedium
	default:
		return enums.ShippingClassHeavy
	}
}

// Dimensions returns the product's stored volumetric weight and class,
// deriving either one when it has not been persisted yet.
func Dimensions(p models.Product) (decimal.Decimal, enums.ShippingClass) {
	volumetric := p.VolumetricWeight.Decimal
	if !p.VolumetricWeight.Valid {
		volumetric = VolumetricWeight(p.LengthCM, p.WidthCM, p.HeightCM)
	}
	if p.ShippingClass != nil && p.ShippingClass.IsValid() {
		return volumetric, *p.ShippingClass
	}
	return volumetric, ShippingClass(p.WeightGrams, volumetric)
}
