package worker

import (
	"context"
	"errors"
	"testing"

	"shop-orders/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCache struct {
	deleted [][]int64
	err     error
}

func (c *fakeCache) DeleteProducts(_ context.Context, ids ...int64) error {
	c.deleted = append(c.deleted, ids)
	return c.err
}

func TestHandleOrderPlacedEvictsEachProductOnce(t *testing.T) {
	cache := &fakeCache{}
	w := NewCacheWorker(nil, cache)

	event := &models.OrderPlacedEvent{
		OrderID: 1,
		Items: []models.OrderItemData{
			{ProductID: 3, Amount: 1},
			{ProductID: 1, Amount: 2},
			{ProductID: 3, Amount: 4},
		},
	}

	require.NoError(t, w.HandleOrderPlaced(context.Background(), event))
	require.Len(t, cache.deleted, 1)
	assert.Equal(t, []int64{3, 1}, cache.deleted[0])
}

func TestHandleOrderPlacedReturnsCacheError(t *testing.T) {
	cache := &fakeCache{err: errors.New("redis down")}
	w := NewCacheWorker(nil, cache)

	err := w.HandleOrderPlaced(context.Background(), &models.OrderPlacedEvent{
		Items: []models.OrderItemData{{ProductID: 1, Amount: 1}},
	})
	assert.Error(t, err)
}
