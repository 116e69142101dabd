package domain

import (
	"fmt"
	"strings"
)

// Coupon is a registry entry describing a percentage discount.
// FreeShipping is carried through to clients but does not change shipping
// in the totals calculation.
type Coupon struct {
	Code            string  `json:"code" yaml:"code"`
	DiscountPercent float64 `json:"discountPercent" yaml:"discountPercent"`
	Label           string  `json:"label" yaml:"label"`
	FreeShipping    bool    `json:"freeShipping" yaml:"freeShipping"`
}

// CanonicalCouponCode trims and upper-cases a user-entered code.
func CanonicalCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks the entry's invariants.
func (c Coupon) Validate() error {
	if c.Code == "" {
		return fmt.Errorf("coupon code is required")
	}
	if c.Code != CanonicalCouponCode(c.Code) {
		return fmt.Errorf("coupon code %q must be upper case without surrounding spaces", c.Code)
	}
	if c.DiscountPercent < 0 || c.DiscountPercent > 100 {
		return fmt.Errorf("coupon %s: discountPercent must be between 0 and 100, got %v", c.Code, c.DiscountPercent)
	}
	return nil
}
