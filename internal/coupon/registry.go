package coupon

import (
	"context"
	"fmt"
	"sort"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
)

// Validator resolves a coupon code to its registry entry. Implementations
// return an InvalidCoupon AppError for unknown codes and an UpstreamFailure
// when the source of truth cannot be reached.
type Validator interface {
	Validate(ctx context.Context, code string) (domain.Coupon, error)
}

// Registry is an immutable, in-memory set of coupons keyed by canonical code.
// It is safe for concurrent use.
type Registry struct {
	coupons map[string]domain.Coupon
}

var _ Validator = (*Registry)(nil)

// NewRegistry builds a registry from entries. Codes are canonicalised before
// validation; duplicate codes are rejected.
func NewRegistry(entries []domain.Coupon) (*Registry, error) {
	coupons := make(map[string]domain.Coupon, len(entries))
	for _, c := range entries {
		c.Code = domain.CanonicalCouponCode(c.Code)
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("coupon registry: %w", err)
		}
		if _, dup := coupons[c.Code]; dup {
			return nil, fmt.Errorf("coupon registry: duplicate code %s", c.Code)
		}
		coupons[c.Code] = c
	}
	return &Registry{coupons: coupons}, nil
}

// Validate canonicalises code and looks it up.
func (r *Registry) Validate(_ context.Context, code string) (domain.Coupon, error) {
	code = domain.CanonicalCouponCode(code)
	c, ok := r.coupons[code]
	if !ok {
		return domain.Coupon{}, apperrors.InvalidCoupon(code)
	}
	return c, nil
}

// Codes returns the registered codes in lexical order.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.coupons))
	for code := range r.coupons {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Len returns the number of registered coupons.
func (r *Registry) Len() int {
	return len(r.coupons)
}
