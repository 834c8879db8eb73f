package enums

import "fmt"

// DiscountType describes how a coupon's value is interpreted.
type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// IsValid reports whether the value is a known DiscountType.
func (d DiscountType) IsValid() bool {
	return d == DiscountTypePercentage || d == DiscountTypeFixed
}

// ParseDiscountType converts raw input into a DiscountType.
func ParseDiscountType(value string) (DiscountType, error) {
	switch DiscountType(value) {
	case DiscountTypePercentage:
		return DiscountTypePercentage, nil
	case DiscountTypeFixed:
		return DiscountTypeFixed, nil
	default:
		return "", fmt.Errorf("invalid discount type %q", value)
	}
}

// CouponKind separates product-discount coupons from seller coupons, whose
// discount base is the platform fee plus tax rather than the product
// subtotal.
type CouponKind string

const (
	CouponKindProduct CouponKind = "product"
	CouponKindSeller  CouponKind = "seller"
)

// IsValid reports whether the value is a known CouponKind.
func (c CouponKind) IsValid() bool {
	return c == CouponKindProduct || c == CouponKindSeller
}
