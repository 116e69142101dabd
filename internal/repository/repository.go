package repository

import (
	"context"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
)

// CartRepository persists carts keyed by session ID. Every implementation
// applies a sliding TTL that is reset on each Save.
type CartRepository interface {
	// Get returns the cart for sessionID, or an error wrapping
	// errors.ErrNotFound when it is absent or expired.
	Get(ctx context.Context, sessionID string) (*domain.Cart, error)

	// Save stamps cart.UpdatedAt and overwrites the stored cart wholesale.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes the cart. Deleting an absent cart is not an error.
	Delete(ctx context.Context, sessionID string) error
}
