package enums

import "fmt"

// ShippingClass buckets a line item by chargeable weight.
type ShippingClass string

const (
	ShippingClassLight  ShippingClass = "LIGHT"
	ShippingClassMedium ShippingClass = "MEDIUM"
	ShippingClassHeavy  ShippingClass = "HEAVY"
)

var validShippingClasses = []ShippingClass{
	ShippingClassLight,
	ShippingClassMedium,
	ShippingClassHeavy,
}

// String implements fmt.Stringer.
func (s ShippingClass) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingClass.
func (s ShippingClass) IsValid() bool {
	for _, candidate := range validShippingClasses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingClass converts raw input into a ShippingClass.
func ParseShippingClass(value string) (ShippingClass, error) {
	for _, candidate := range validShippingClasses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping class %q", value)
}
