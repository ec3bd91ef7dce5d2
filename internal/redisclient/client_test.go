package redisclient

import (
	"context"
	"testing"
	"time"

	"shop-orders/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewFromRedis(rdb), mr
}

func TestProductCacheRoundTrip(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	p := &models.Product{ID: 1, Name: "Keyboard", Price: decimal.RequireFromString("1200.50"), Stock: 7, Active: true}
	require.NoError(t, c.SetProduct(ctx, p, time.Minute))

	cached, ok, err := c.GetProduct(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Keyboard", cached.Name)
	assert.True(t, cached.Price.Equal(p.Price))
	assert.Equal(t, 7, cached.Stock)
}

func TestProductCacheExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetProduct(ctx, &models.Product{ID: 2, Name: "Mouse"}, time.Second))
	mr.FastForward(2 * time.Second)

	_, ok, err := c.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteProducts(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.SetProduct(ctx, &models.Product{ID: 1}, time.Minute))
	require.NoError(t, c.SetProduct(ctx, &models.Product{ID: 2}, time.Minute))
	require.NoError(t, c.SetProduct(ctx, &models.Product{ID: 3}, time.Minute))

	require.NoError(t, c.DeleteProducts(ctx, 1, 3))

	assert.False(t, mr.Exists("product:1"))
	assert.True(t, mr.Exists("product:2"))
	assert.False(t, mr.Exists("product:3"))

	assert.NoError(t, c.DeleteProducts(ctx))
}

func TestIdempotencyKey(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	_, ok, err := c.GetIdempotentOrderID(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetIdempotencyKey(ctx, "abc", 42, time.Hour))

	id, ok, err := c.GetIdempotentOrderID(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	require.NoError(t, mr.Set("idempotency:order:bad", "not-a-number"))
	_, _, err = c.GetIdempotentOrderID(ctx, "bad")
	assert.Error(t, err)

	mr.FastForward(2 * time.Hour)
	_, ok, err = c.GetIdempotentOrderID(ctx, "abc")
	require.NoError(t, err)
	assert.False(t, ok)
}
