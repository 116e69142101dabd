package domain

import (
	"time"

	"github.com/ssnivlek/kelvo-ecomm/pkg/pricing"
)

// Snapshot is the wire view of a cart: its items, active coupon and derived
// totals. Coupon is null when no coupon is applied.
type Snapshot struct {
	Items           []CartItem `json:"items"`
	Coupon          *string    `json:"coupon"`
	DiscountPercent float64    `json:"discountPercent,omitempty"`
	DiscountLabel   string     `json:"discountLabel,omitempty"`
	pricing.Totals
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Snapshot renders the cart with freshly computed totals.
func (c *Cart) Snapshot() Snapshot {
	items := c.Items
	if items == nil {
		items = []CartItem{}
	}
	s := Snapshot{
		Items:           items,
		DiscountPercent: c.DiscountPercent,
		DiscountLabel:   c.DiscountLabel,
		Totals:          c.Totals(),
	}
	if c.Coupon != "" {
		code := c.Coupon
		s.Coupon = &code
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt
		s.UpdatedAt = &updated
	}
	return s
}

// ClearedSnapshot is returned after a cart is deleted: no items, no coupon
// and every total zero.
func ClearedSnapshot() Snapshot {
	return Snapshot{
		Items:  []CartItem{},
		Totals: pricing.Zero(),
	}
}

// CouponCode returns the applied coupon or "".
func (s Snapshot) CouponCode() string {
	if s.Coupon == nil {
		return ""
	}
	return *s.Coupon
}
