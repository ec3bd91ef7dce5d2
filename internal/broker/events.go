package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop-orders/internal/models"
	"shop-orders/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter delivers an encoded event under a partition key
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing order events
type EventPublisher struct {
	writer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer EventWriter) *EventPublisher {
	return &EventPublisher{writer: writer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func orderKey(orderID int64) string {
	return fmt.Sprintf("order-%d", orderID)
}

// PublishOrderPlaced publishes ORDER_PLACED for a committed order
func (ep *EventPublisher) PublishOrderPlaced(ctx context.Context, order *models.OrderDetail) error {
	items := make([]models.OrderItemData, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, models.OrderItemData{
			ProductID: item.ProductID,
			Amount:    item.Amount,
			Price:     item.Price,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent:  newBaseEvent(models.EventTypeOrderPlaced),
		OrderID:    order.ID,
		UserID:     order.UserID,
		PaymentID:  order.PaymentID,
		Total:      order.Total,
		TotalItems: order.TotalItems,
		Items:      items,
	}
	return ep.writer.PublishEvent(ctx, orderKey(order.ID), event)
}

// PublishOrderStateChanged publishes ORDER_STATE_CHANGED
func (ep *EventPublisher) PublishOrderStateChanged(ctx context.Context, orderID int64, state models.OrderState) error {
	event := &models.OrderStateChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderStateChanged),
		OrderID:   orderID,
		StateID:   state.ID,
		StateName: state.Name,
	}
	return ep.writer.PublishEvent(ctx, orderKey(orderID), event)
}

// PublishOrderPaymentChanged publishes ORDER_PAYMENT_CHANGED
func (ep *EventPublisher) PublishOrderPaymentChanged(ctx context.Context, orderID, paymentID int64) error {
	event := &models.OrderPaymentChangedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderPaymentChanged),
		OrderID:   orderID,
		PaymentID: paymentID,
	}
	return ep.writer.PublishEvent(ctx, orderKey(orderID), event)
}

// PublishOrderDeleted publishes ORDER_DELETED
func (ep *EventPublisher) PublishOrderDeleted(ctx context.Context, orderID int64) error {
	event := &models.OrderDeletedEvent{
		BaseEvent: newBaseEvent(models.EventTypeOrderDeleted),
		OrderID:   orderID,
	}
	return ep.writer.PublishEvent(ctx, orderKey(orderID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderPlaced func(context.Context, *models.OrderPlacedEvent) error
	logger        *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderPlaced registers a handler for ORDER_PLACED events
func (eh *EventHandler) OnOrderPlaced(handler func(context.Context, *models.OrderPlacedEvent) error) {
	eh.onOrderPlaced = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderPlaced:
		if eh.onOrderPlaced != nil {
			var event models.OrderPlacedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPlaced event: %w", err)
			}
			return eh.onOrderPlaced(ctx, &event)
		}

	default:
		eh.logger.Debug("Ignoring event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
