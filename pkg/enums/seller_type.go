package enums

import "fmt"

// SellerType is the tax registration class of a seller.
type SellerType string

const (
	SellerTypeGST     SellerType = "GST"
	SellerTypePANOnly SellerType = "PAN_ONLY"
)

var validSellerTypes = []SellerType{
	SellerTypeGST,
	SellerTypePANOnly,
}

// String implements fmt.Stringer.
func (s SellerType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SellerType.
func (s SellerType) IsValid() bool {
	for _, candidate := range validSellerTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSellerType converts raw input into a SellerType.
func ParseSellerType(value string) (SellerType, error) {
	for _, candidate := range validSellerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid seller type %q", value)
}
