package coupon

import "github.com/ssnivlek/kelvo-ecomm/internal/domain"

// DefaultCoupons returns the built-in storefront coupons.
func DefaultCoupons() []domain.Coupon {
	return []domain.Coupon{
		{Code: "SAVE10", DiscountPercent: 10, Label: "10% off"},
		{Code: "KELVO10", DiscountPercent: 10, Label: "10% off your order"},
		{Code: "KELVO25", DiscountPercent: 25, Label: "25% off your order"},
		{Code: "FRETE", DiscountPercent: 0, Label: "Free shipping", FreeShipping: true},
		{Code: "WELCOME5", DiscountPercent: 5, Label: "5% welcome discount"},
	}
}

// DefaultRegistry returns a registry holding DefaultCoupons.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultCoupons())
	if err != nil {
		panic(err)
	}
	return r
}
