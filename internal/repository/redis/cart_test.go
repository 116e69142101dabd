package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssnivlek/kelvo-ecomm/internal/domain"
	apperrors "github.com/ssnivlek/kelvo-ecomm/pkg/errors"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCartRepository(client, 24*time.Hour), mr
}

func sampleCart() *domain.Cart {
	return &domain.Cart{
		SessionID: "sess-001",
		Items: []domain.CartItem{
			{
				ProductID:   "1",
				ProductName: "Dark Rum",
				Price:       29.90,
				Quantity:    2,
				ImageURL:    "https://img.kelvo.io/rum.jpg",
			},
		},
		Coupon:          "SAVE10",
		DiscountPercent: 10,
		DiscountLabel:   "10% off",
	}
}

func TestCartRepository_SaveThenGet(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()
	fixed := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	cart := sampleCart()
	require.NoError(t, repo.Save(ctx, cart))
	assert.Equal(t, fixed, cart.UpdatedAt)
	assert.True(t, mr.Exists("cart:sess-001"))

	got, err := repo.Get(ctx, "sess-001")
	require.NoError(t, err)
	assert.Equal(t, cart.Items, got.Items)
	assert.Equal(t, "SAVE10", got.Coupon)
	assert.Equal(t, 10.0, got.DiscountPercent)
	assert.Equal(t, fixed, got.UpdatedAt)
}

func TestCartRepository_Save_StoresJSON(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, repo.Save(context.Background(), sampleCart()))

	raw, err := mr.Get("cart:sess-001")
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	assert.Equal(t, "sess-001", m["sessionId"])
	assert.Equal(t, "SAVE10", m["coupon"])
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	cart, err := repo.Get(context.Background(), "missing")
	assert.Nil(t, cart)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCartRepository_Get_InvalidJSON(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:bad", "{not json"))

	_, err := repo.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal cart bad")
}

func TestCartRepository_Get_NullItemsBecomeEmpty(t *testing.T) {
	repo, mr := setupTestRedis(t)
	require.NoError(t, mr.Set("cart:legacy", `{"sessionId":"legacy","items":null}`))

	cart, err := repo.Get(context.Background(), "legacy")
	require.NoError(t, err)
	assert.NotNil(t, cart.Items)
	assert.Empty(t, cart.Items)
}

func TestCartRepository_Save_ResetsTTL(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleCart()))
	assert.Equal(t, 24*time.Hour, mr.TTL("cart:sess-001"))

	mr.FastForward(20 * time.Hour)
	require.NoError(t, repo.Save(ctx, sampleCart()))
	assert.Equal(t, 24*time.Hour, mr.TTL("cart:sess-001"))
}

func TestCartRepository_ExpiredCartIsNotFound(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleCart()))
	mr.FastForward(24*time.Hour + time.Second)

	_, err := repo.Get(ctx, "sess-001")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCartRepository_Delete(t *testing.T) {
	repo, mr := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, sampleCart()))
	require.NoError(t, repo.Delete(ctx, "sess-001"))
	assert.False(t, mr.Exists("cart:sess-001"))

	require.NoError(t, repo.Delete(ctx, "never-existed"))
}

func TestCartRepository_StoreDown_IsServiceUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{
		Addr:        mr.Addr(),
		MaxRetries:  1,
		DialTimeout: 100 * time.Millisecond,
	})
	t.Cleanup(func() { client.Close() })
	repo := NewCartRepository(client, time.Hour)
	mr.Close()

	ctx := context.Background()

	_, err := repo.Get(ctx, "sess-001")
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail), "got %v", err)
	assert.True(t, apperrors.IsTransient(err))

	err = repo.Save(ctx, sampleCart())
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail), "got %v", err)

	err = repo.Delete(ctx, "sess-001")
	assert.True(t, errors.Is(err, apperrors.ErrServiceUnavail), "got %v", err)
}
