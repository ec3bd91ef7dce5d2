package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-orders/internal/models"
	"shop-orders/internal/store"
	"shop-orders/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// largest value orders.total and order_items.total (NUMERIC(12,2)) can hold
var maxOrderTotal = decimal.RequireFromString("9999999999.99")

// OrderStore is the persistence the order service works against
type OrderStore interface {
	WithTx(ctx context.Context, fn func(store.Tx) error) error
	GetOrderDetail(ctx context.Context, id int64) (*models.OrderDetail, error)
	ListOrders(ctx context.Context, page, pageSize int) (models.Page[models.OrderDetail], error)
	ListOrdersByUser(ctx context.Context, userID int64, page, pageSize int) (models.Page[models.OrderDetail], error)
	UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) error
	DeleteOrder(ctx context.Context, id int64) error
	GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error)
}

// IdempotencyStore remembers which order a client key produced
type IdempotencyStore interface {
	GetIdempotentOrderID(ctx context.Context, key string) (int64, bool, error)
	SetIdempotencyKey(ctx context.Context, key string, orderID int64, ttl time.Duration) error
}

// EventPublisher announces committed order changes
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *models.OrderDetail) error
	PublishOrderStateChanged(ctx context.Context, orderID int64, state models.OrderState) error
	PublishOrderPaymentChanged(ctx context.Context, orderID, paymentID int64) error
	PublishOrderDeleted(ctx context.Context, orderID int64) error
}

// OrderService handles order business logic
type OrderService struct {
	store          OrderStore
	states         *OrderStates
	idempotency    IdempotencyStore
	eventPublisher EventPublisher
	pagination     Pagination
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	states *OrderStates,
	idempotency IdempotencyStore,
	eventPublisher EventPublisher,
	pagination Pagination,
	idempotencyTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		states:         states,
		idempotency:    idempotency,
		eventPublisher: eventPublisher,
		pagination:     pagination,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// PlaceOrderRequest represents a request to place an order
type PlaceOrderRequest struct {
	UserID         int64         `json:"user_id" binding:"required,min=1"`
	Items          []ItemRequest `json:"products" binding:"required,min=1,dive"`
	PaymentID      *int64        `json:"payment" binding:"omitempty,min=1"`
	IdempotencyKey string        `json:"-"`
}

// ItemRequest is one requested line of an order
type ItemRequest struct {
	ProductID int64 `json:"id" binding:"required,min=1"`
	Amount    int   `json:"amount" binding:"required,min=1"`
}

// PlaceOrder validates stock, takes it, prices every line and persists the
// order with its items in one transaction. Nothing persists on failure.
func (s *OrderService) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder",
		attribute.Int64("user_id", req.UserID),
		attribute.Int("items", len(req.Items)))
	defer span.End()

	if req.IdempotencyKey != "" {
		if order := s.findIdempotent(ctx, req.IdempotencyKey); order != nil {
			return order, nil
		}
	}

	if err := validatePlaceOrder(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		return nil, err
	}

	start := time.Now()
	var placed *models.OrderDetail
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		placed, err = placeInTx(ctx, tx, req)
		return err
	})
	util.OrderPlacementLatency.Observe(time.Since(start).Seconds())

	if err != nil {
		util.RecordError(span, err)
		util.OrdersFailedTotal.WithLabelValues(failureReason(err)).Inc()
		s.logPlacementFailure(req, err)
		return nil, err
	}

	order := &placed.Order
	util.OrdersPlacedTotal.Inc()
	util.StockUnitsSoldTotal.Add(float64(order.TotalItems))
	s.logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("total_items", order.TotalItems))

	// the order is committed from here on: nothing below may fail the request
	if req.IdempotencyKey != "" {
		if err := s.idempotency.SetIdempotencyKey(ctx, req.IdempotencyKey, order.ID, s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.Error(err))
		}
	}

	detail, err := s.store.GetOrderDetail(ctx, order.ID)
	if err != nil {
		util.RecordError(span, err)
		s.logger.Warn("Failed to reload placed order, returning placement result",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		detail = placed
	}

	if err := s.eventPublisher.PublishOrderPlaced(ctx, detail); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
	}

	return detail, nil
}

// placeInTx runs the placement steps against one transaction. Any error it
// returns rolls back every stock decrement made so far.
func placeInTx(ctx context.Context, tx store.Tx, req *PlaceOrderRequest) (*models.OrderDetail, error) {
	products, err := tx.GetProductsByIDsForUpdate(ctx, uniqueProductIDs(req.Items))
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]models.Product, len(products))
	remaining := make(map[int64]int, len(products))
	for _, p := range products {
		byID[p.ID] = p
		remaining[p.ID] = p.Stock
	}

	items := make([]models.OrderItem, 0, len(req.Items))
	total := decimal.Zero
	totalItems := 0

	for _, line := range req.Items {
		product, ok := byID[line.ProductID]
		if !ok {
			return nil, &models.ProductNotFoundError{ProductID: line.ProductID}
		}

		available := remaining[line.ProductID]
		if available < line.Amount {
			return nil, &models.InsufficientStockError{
				ProductID: line.ProductID,
				Available: available,
				Requested: line.Amount,
			}
		}

		taken, err := tx.DecrementStock(ctx, line.ProductID, line.Amount)
		if err != nil {
			return nil, err
		}
		if !taken {
			return nil, &models.InsufficientStockError{
				ProductID: line.ProductID,
				Available: available,
				Requested: line.Amount,
			}
		}
		remaining[line.ProductID] = available - line.Amount

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Amount)))
		total = total.Add(lineTotal)
		totalItems += line.Amount

		items = append(items, models.OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Amount:      line.Amount,
			Total:       lineTotal,
		})
	}

	if total.GreaterThan(maxOrderTotal) {
		return nil, models.NewValidationError("products", "order total %s exceeds %s",
			total.StringFixed(2), maxOrderTotal.StringFixed(2))
	}

	state, err := initialState(ctx, tx)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:       req.UserID,
		OrderStateID: state.ID,
		PaymentID:    req.PaymentID,
		Total:        total,
		TotalItems:   totalItems,
	}
	if err := tx.InsertOrderWithItems(ctx, order, items); err != nil {
		return nil, err
	}
	return &models.OrderDetail{
		Order: *order,
		User:  models.UserRef{ID: order.UserID},
		State: *state,
		Items: items,
	}, nil
}

func validatePlaceOrder(req *PlaceOrderRequest) error {
	if req.UserID <= 0 {
		return models.NewValidationError("user_id", "must be a positive id")
	}
	if len(req.Items) == 0 {
		return models.NewValidationError("products", "at least one product is required")
	}
	for i, line := range req.Items {
		if line.ProductID <= 0 {
			return models.NewValidationError(fmt.Sprintf("products[%d].id", i), "must be a positive id")
		}
		if line.Amount <= 0 {
			return models.NewValidationError(fmt.Sprintf("products[%d].amount", i), "must be greater than 0")
		}
	}
	if req.PaymentID != nil && *req.PaymentID <= 0 {
		return models.NewValidationError("payment", "must be a positive id")
	}
	return nil
}

func uniqueProductIDs(items []ItemRequest) []int64 {
	seen := make(map[int64]bool, len(items))
	ids := make([]int64, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// findIdempotent returns the order a key already produced. Lookup failures
// fall through to a normal placement.
func (s *OrderService) findIdempotent(ctx context.Context, key string) *models.OrderDetail {
	orderID, ok, err := s.idempotency.GetIdempotentOrderID(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	order, err := s.store.GetOrderDetail(ctx, orderID)
	if err != nil {
		s.logger.Warn("Order behind idempotency key is gone",
			zap.String("idempotency_key", key),
			zap.Int64("order_id", orderID),
			zap.Error(err))
		return nil
	}

	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", orderID))
	return order
}

func (s *OrderService) logPlacementFailure(req *PlaceOrderRequest, err error) {
	var stockErr *models.InsufficientStockError
	var notFoundErr *models.ProductNotFoundError

	switch {
	case errors.As(err, &stockErr):
		s.logger.Warn("Order rejected: insufficient stock",
			zap.Int64("user_id", req.UserID),
			zap.Int64("product_id", stockErr.ProductID),
			zap.Int("available", stockErr.Available),
			zap.Int("requested", stockErr.Requested))
	case errors.As(err, &notFoundErr):
		s.logger.Warn("Order rejected: unknown product",
			zap.Int64("user_id", req.UserID),
			zap.Int64("product_id", notFoundErr.ProductID))
	case errors.Is(err, models.ErrValidation):
		s.logger.Info("Order rejected", zap.Int64("user_id", req.UserID), zap.Error(err))
	default:
		s.logger.Error("Order placement failed", zap.Int64("user_id", req.UserID), zap.Error(err))
	}
}

func failureReason(err error) string {
	var notFoundErr *models.ProductNotFoundError
	switch {
	case errors.As(err, &notFoundErr):
		return "product_not_found"
	case errors.Is(err, models.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, models.ErrValidation):
		return "validation"
	case errors.Is(err, models.ErrConfiguration):
		return "configuration"
	default:
		return "db_error"
	}
}

// GetOrder returns an order with its items, state, payment and user
func (s *OrderService) GetOrder(ctx context.Context, id int64) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", attribute.Int64("order_id", id))
	defer span.End()

	return s.store.GetOrderDetail(ctx, id)
}

// ListOrders returns one page of every order, newest first
func (s *OrderService) ListOrders(ctx context.Context, page, pageSize int) (models.Page[models.OrderDetail], error) {
	page, pageSize = s.pagination.normalize(page, pageSize)
	return s.store.ListOrders(ctx, page, pageSize)
}

// ListOrdersByUser returns one page of a user's orders, newest first
func (s *OrderService) ListOrdersByUser(ctx context.Context, userID int64, page, pageSize int) (models.Page[models.OrderDetail], error) {
	page, pageSize = s.pagination.normalize(page, pageSize)
	return s.store.ListOrdersByUser(ctx, userID, page, pageSize)
}

// SetOrderState moves an order to any existing state. No transition rules apply.
func (s *OrderService) SetOrderState(ctx context.Context, orderID, stateID int64) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetOrderState",
		attribute.Int64("order_id", orderID),
		attribute.Int64("state_id", stateID))
	defer span.End()

	state, err := s.states.ByID(ctx, stateID)
	if errors.Is(err, models.ErrNotFound) {
		if err := s.orderExists(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, models.NewValidationError("state_id", "order state %d does not exist", stateID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateOrder(ctx, orderID, models.OrderUpdate{StateID: &state.ID}); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	util.OrderUpdatesTotal.WithLabelValues("state").Inc()

	if err := s.eventPublisher.PublishOrderStateChanged(ctx, orderID, *state); err != nil {
		s.logger.Error("Failed to publish OrderStateChanged event", zap.Int64("order_id", orderID), zap.Error(err))
	}

	s.logger.Info("Order state changed",
		zap.Int64("order_id", orderID),
		zap.String("state", state.Name))
	return s.store.GetOrderDetail(ctx, orderID)
}

// SetOrderPayment changes the payment method of an order
func (s *OrderService) SetOrderPayment(ctx context.Context, orderID, paymentID int64) (*models.OrderDetail, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.SetOrderPayment",
		attribute.Int64("order_id", orderID),
		attribute.Int64("payment_id", paymentID))
	defer span.End()

	payment, err := s.store.GetPaymentByID(ctx, paymentID)
	if paymentID <= 0 || errors.Is(err, models.ErrNotFound) {
		if err := s.orderExists(ctx, orderID); err != nil {
			return nil, err
		}
		return nil, models.NewValidationError("payment_id", "payment %d does not exist", paymentID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.store.UpdateOrder(ctx, orderID, models.OrderUpdate{PaymentID: &payment.ID}); err != nil {
		util.RecordError(span, err)
		return nil, err
	}
	util.OrderUpdatesTotal.WithLabelValues("payment").Inc()

	if err := s.eventPublisher.PublishOrderPaymentChanged(ctx, orderID, paymentID); err != nil {
		s.logger.Error("Failed to publish OrderPaymentChanged event", zap.Int64("order_id", orderID), zap.Error(err))
	}

	s.logger.Info("Order payment changed",
		zap.Int64("order_id", orderID),
		zap.String("payment", payment.Name))
	return s.store.GetOrderDetail(ctx, orderID)
}

// orderExists is consulted only when a request is already invalid, so a missing
// order wins over a bad reference.
func (s *OrderService) orderExists(ctx context.Context, id int64) error {
	_, err := s.store.GetOrderDetail(ctx, id)
	return err
}

// DeleteOrder removes an order and its items. Stock is not given back.
func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	ctx, span := util.StartSpan(ctx, "OrderService.DeleteOrder", attribute.Int64("order_id", id))
	defer span.End()

	if err := s.store.DeleteOrder(ctx, id); err != nil {
		util.RecordError(span, err)
		return err
	}
	util.OrdersDeletedTotal.Inc()

	if err := s.eventPublisher.PublishOrderDeleted(ctx, id); err != nil {
		s.logger.Error("Failed to publish OrderDeleted event", zap.Int64("order_id", id), zap.Error(err))
	}

	s.logger.Info("Order deleted", zap.Int64("order_id", id))
	return nil
}
