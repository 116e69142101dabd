package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	"github.com/ssnivlek/kelvo-ecomm/pkg/database"
	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
)

const keyPrefix = "cart:"

// CartRepository implements repository.CartRepository on Redis. Each cart is
// stored as JSON under cart:<sessionId> with an expiry reset on every save.
// Retries and timeouts come from the client's options; a command that still
// fails is reported as a 503.
type CartRepository struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client redis.Cmdable, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func cartKey(sessionID string) string {
	return keyPrefix + sessionID
}

func unavailable(err error) error {
	return apperrors.ServiceUnavailable("cart store is temporarily unavailable", err)
}

// Get retrieves a cart by session ID.
func (r *CartRepository) Get(ctx context.Context, sessionID string) (cart *domain.Cart, err error) {
	ctx, end := database.TraceCommand(ctx, database.SystemRedis, "GetCart", "GET "+keyPrefix+"*")
	defer func() { end(err) }()

	data, err := r.client.Get(ctx, cartKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperrors.NotFound("cart", sessionID)
		}
		return nil, unavailable(fmt.Errorf("redis get cart: %w", err))
	}

	var c domain.Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal cart %s: %w", sessionID, err)
	}
	if c.Items == nil {
		c.Items = []domain.CartItem{}
	}
	return &c, nil
}

// Save stamps UpdatedAt and writes the cart with a fresh TTL.
func (r *CartRepository) Save(ctx context.Context, cart *domain.Cart) (err error) {
	ctx, end := database.TraceCommand(ctx, database.SystemRedis, "SaveCart", "SET "+keyPrefix+"* EX")
	defer func() { end(err) }()

	cart.UpdatedAt = r.now()

	data, err := json.Marshal(cart)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}

	if err := r.client.Set(ctx, cartKey(cart.SessionID), data, r.ttl).Err(); err != nil {
		return unavailable(fmt.Errorf("redis set cart: %w", err))
	}
	return nil
}

// Delete removes a cart by session ID.
func (r *CartRepository) Delete(ctx context.Context, sessionID string) (err error) {
	ctx, end := database.TraceCommand(ctx, database.SystemRedis, "DeleteCart", "DEL "+keyPrefix+"*")
	defer func() { end(err) }()

	if err := r.client.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return unavailable(fmt.Errorf("redis del cart: %w", err))
	}
	return nil
}
