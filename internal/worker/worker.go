package worker

import (
	"context"

	"shop-orders/internal/broker"
	"shop-orders/internal/models"
	"shop-orders/internal/util"

	"go.uber.org/zap"
)

// ProductCache is the part of the product cache the worker evicts from
type ProductCache interface {
	DeleteProducts(ctx context.Context, ids ...int64) error
}

// CacheWorker evicts cached products whose stock changed because an order was placed
type CacheWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	cache        ProductCache
	logger       *zap.Logger
}

// NewCacheWorker creates a new cache invalidation worker
func NewCacheWorker(consumer *broker.Consumer, cache ProductCache) *CacheWorker {
	w := &CacheWorker{
		consumer:     consumer,
		eventHandler: broker.NewEventHandler(),
		cache:        cache,
		logger:       util.GetLogger(),
	}
	w.eventHandler.OnOrderPlaced(w.HandleOrderPlaced)
	return w
}

// HandleOrderPlaced drops every product of the order from the cache
func (w *CacheWorker) HandleOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	seen := make(map[int64]bool, len(event.Items))
	ids := make([]int64, 0, len(event.Items))
	for _, item := range event.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	if err := w.cache.DeleteProducts(ctx, ids...); err != nil {
		w.logger.Warn("Failed to evict cached products",
			zap.Int64("order_id", event.OrderID),
			zap.Error(err))
		return err
	}

	w.logger.Debug("Evicted cached products",
		zap.Int64("order_id", event.OrderID),
		zap.Int64s("product_ids", ids))
	return nil
}

// Start starts the worker
func (w *CacheWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting cache worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *CacheWorker) Stop() error {
	w.logger.Info("Stopping cache worker")
	return w.consumer.Close()
}
