package domain

import (
	"time"

	"github.com/ssnivlek/kelvo-ecomm/pkg/pricing"
)

// Cart is the persisted record for one shopping session. Totals are never
// stored; they are derived from Items and DiscountPercent on every read.
type Cart struct {
	SessionID       string     `json:"sessionId"`
	Items           []CartItem `json:"items"`
	Coupon          string     `json:"coupon,omitempty"`
	DiscountPercent float64    `json:"discountPercent,omitempty"`
	DiscountLabel   string     `json:"discountLabel,omitempty"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// CartItem is a single line in the cart. A cart holds at most one item per
// ProductID and every stored quantity is at least 1.
type CartItem struct {
	ProductID   ProductID `json:"productId"`
	ProductName string    `json:"productName"`
	Price       float64   `json:"price"`
	Quantity    int       `json:"quantity"`
	ImageURL    string    `json:"imageUrl,omitempty"`
}

// NewCart returns an empty cart for sessionID.
func NewCart(sessionID string) *Cart {
	return &Cart{
		SessionID: sessionID,
		Items:     []CartItem{},
	}
}

// FindItemIndex returns the index of the item for productID, or -1.
func (c *Cart) FindItemIndex(productID ProductID) int {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// RemoveItemAt deletes the item at i, keeping insertion order.
func (c *Cart) RemoveItemAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// ItemCount returns the total quantity across all lines.
func (c *Cart) ItemCount() int {
	var count int
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// ApplyCoupon records cp as the cart's active discount.
func (c *Cart) ApplyCoupon(cp Coupon) {
	c.Coupon = cp.Code
	c.DiscountPercent = cp.DiscountPercent
	c.DiscountLabel = cp.Label
}

// ClearCoupon drops any active discount. It is a no-op without one.
func (c *Cart) ClearCoupon() {
	c.Coupon = ""
	c.DiscountPercent = 0
	c.DiscountLabel = ""
}

// Lines converts the items into pricing input.
func (c *Cart) Lines() []pricing.Line {
	return ItemLines(c.Items)
}

// Totals computes the cart's totals with its current discount.
func (c *Cart) Totals() pricing.Totals {
	return pricing.ComputeTotals(c.Lines(), c.DiscountPercent)
}

// ItemLines converts items into pricing input.
func ItemLines(items []CartItem) []pricing.Line {
	lines := make([]pricing.Line, len(items))
	for i, item := range items {
		lines[i] = pricing.Line{Price: item.Price, Quantity: item.Quantity}
	}
	return lines
}
