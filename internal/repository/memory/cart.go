// Package memory provides an in-process cart store for tests and
// single-instance deployments.
package memory

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
)

// CartRepository implements repository.CartRepository on an expirable LRU.
// Carts are copied on the way in and out so callers never share state with
// the store. maxEntries of 0 means unbounded.
type CartRepository struct {
	cache *expirable.LRU[string, domain.Cart]
	now   func() time.Time
}

// NewCartRepository creates an in-memory store whose entries expire ttl
// after their last save.
func NewCartRepository(maxEntries int, ttl time.Duration) *CartRepository {
	return &CartRepository{
		cache: expirable.NewLRU[string, domain.Cart](maxEntries, nil, ttl),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func clone(c domain.Cart) domain.Cart {
	items := make([]domain.CartItem, len(c.Items))
	copy(items, c.Items)
	c.Items = items
	return c
}

// Get returns a copy of the stored cart.
func (r *CartRepository) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	c, ok := r.cache.Get(sessionID)
	if !ok {
		return nil, apperrors.NotFound("cart", sessionID)
	}
	out := clone(c)
	return &out, nil
}

// Save stamps UpdatedAt and stores a copy, restarting its TTL.
func (r *CartRepository) Save(_ context.Context, cart *domain.Cart) error {
	cart.UpdatedAt = r.now()
	r.cache.Add(cart.SessionID, clone(*cart))
	return nil
}

// Delete removes the cart if present.
func (r *CartRepository) Delete(_ context.Context, sessionID string) error {
	r.cache.Remove(sessionID)
	return nil
}

// Len reports the number of live carts.
func (r *CartRepository) Len() int {
	return r.cache.Len()
}
