package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"shop-orders/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	key   string
	event interface{}
}

type fakeWriter struct {
	events []published
	err    error
}

func (w *fakeWriter) PublishEvent(_ context.Context, key string, event interface{}) error {
	if w.err != nil {
		return w.err
	}
	w.events = append(w.events, published{key: key, event: event})
	return nil
}

func TestPublishOrderPlaced(t *testing.T) {
	w := &fakeWriter{}
	ep := NewEventPublisher(w)

	paymentID := int64(2)
	order := &models.OrderDetail{
		Order: models.Order{
			ID:         9,
			UserID:     1,
			PaymentID:  &paymentID,
			Total:      decimal.NewFromInt(4400),
			TotalItems: 4,
		},
		Items: []models.OrderItem{
			{ProductID: 1, Amount: 3, Price: decimal.NewFromInt(1200)},
			{ProductID: 2, Amount: 1, Price: decimal.NewFromInt(800)},
		},
	}

	require.NoError(t, ep.PublishOrderPlaced(context.Background(), order))
	require.Len(t, w.events, 1)
	assert.Equal(t, "order-9", w.events[0].key)

	event, ok := w.events[0].event.(*models.OrderPlacedEvent)
	require.True(t, ok)
	assert.Equal(t, models.EventTypeOrderPlaced, event.EventType)
	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, 4, event.TotalItems)
	assert.True(t, event.Total.Equal(decimal.NewFromInt(4400)))
	require.Len(t, event.Items, 2)
	assert.Equal(t, int64(2), event.Items[1].ProductID)
}

func TestPublishOrderUpdates(t *testing.T) {
	w := &fakeWriter{}
	ep := NewEventPublisher(w)
	ctx := context.Background()

	require.NoError(t, ep.PublishOrderStateChanged(ctx, 3, models.OrderState{ID: 4, Name: models.OrderStateDelivered}))
	require.NoError(t, ep.PublishOrderPaymentChanged(ctx, 3, 1))
	require.NoError(t, ep.PublishOrderDeleted(ctx, 3))
	require.Len(t, w.events, 3)

	state := w.events[0].event.(*models.OrderStateChangedEvent)
	assert.Equal(t, models.EventTypeOrderStateChanged, state.EventType)
	assert.Equal(t, "Delivered", state.StateName)

	payment := w.events[1].event.(*models.OrderPaymentChangedEvent)
	assert.Equal(t, int64(1), payment.PaymentID)

	deleted := w.events[2].event.(*models.OrderDeletedEvent)
	assert.Equal(t, models.EventTypeOrderDeleted, deleted.EventType)

	for _, e := range w.events {
		assert.Equal(t, "order-3", e.key)
	}
}

func TestPublishPropagatesWriterError(t *testing.T) {
	ep := NewEventPublisher(&fakeWriter{err: errors.New("broker down")})
	assert.Error(t, ep.PublishOrderDeleted(context.Background(), 1))
}

func TestHandleMessageRoutesOrderPlaced(t *testing.T) {
	eh := NewEventHandler()

	var got *models.OrderPlacedEvent
	eh.OnOrderPlaced(func(_ context.Context, e *models.OrderPlacedEvent) error {
		got = e
		return nil
	})

	value, err := json.Marshal(&models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderPlaced},
		OrderID:   5,
		Items:     []models.OrderItemData{{ProductID: 7, Amount: 2, Price: decimal.NewFromInt(10)}},
	})
	require.NoError(t, err)

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: value}))
	require.NotNil(t, got)
	assert.Equal(t, int64(5), got.OrderID)
	assert.Equal(t, int64(7), got.Items[0].ProductID)
}

func TestHandleMessageIgnoresOtherEvents(t *testing.T) {
	eh := NewEventHandler()
	called := false
	eh.OnOrderPlaced(func(context.Context, *models.OrderPlacedEvent) error {
		called = true
		return nil
	})

	value, err := json.Marshal(&models.OrderDeletedEvent{
		BaseEvent: models.BaseEvent{EventType: models.EventTypeOrderDeleted},
		OrderID:   1,
	})
	require.NoError(t, err)

	require.NoError(t, eh.HandleMessage(context.Background(), kafka.Message{Value: value}))
	assert.False(t, called)
}

func TestHandleMessageRejectsGarbage(t *testing.T) {
	eh := NewEventHandler()
	assert.Error(t, eh.HandleMessage(context.Background(), kafka.Message{Value: []byte("{not json")}))
}
