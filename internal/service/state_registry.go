package service

import (
	"context"
	"errors"
	"fmt"

	"shop-orders/internal/models"
)

// StateStore reads the order_states lookup table
type StateStore interface {
	GetOrderStateByName(ctx context.Context, name string) (*models.OrderState, error)
	GetOrderStateByID(ctx context.Context, id int64) (*models.OrderState, error)
	ListOrderStates(ctx context.Context) ([]models.OrderState, error)
}

// OrderStates resolves lifecycle states by name or id
type OrderStates struct {
	store StateStore
}

// NewOrderStates creates a new order state registry
func NewOrderStates(store StateStore) *OrderStates {
	return &OrderStates{store: store}
}

// ByName resolves a state by its unique name
func (r *OrderStates) ByName(ctx context.Context, name string) (*models.OrderState, error) {
	return r.store.GetOrderStateByName(ctx, name)
}

// ByID resolves a state by id
func (r *OrderStates) ByID(ctx context.Context, id int64) (*models.OrderState, error) {
	return r.store.GetOrderStateByID(ctx, id)
}

// List returns every known state
func (r *OrderStates) List(ctx context.Context) ([]models.OrderState, error) {
	states, err := r.store.ListOrderStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list order states: %w", err)
	}
	if states == nil {
		states = []models.OrderState{}
	}
	return states, nil
}

// Initial returns the state every new order starts in
func (r *OrderStates) Initial(ctx context.Context) (*models.OrderState, error) {
	return initialState(ctx, r.store)
}

type stateFinder interface {
	GetOrderStateByName(ctx context.Context, name string) (*models.OrderState, error)
}

// initialState resolves "Processing". A missing state is an operator problem,
// not a caller one.
func initialState(ctx context.Context, finder stateFinder) (*models.OrderState, error) {
	state, err := finder.GetOrderStateByName(ctx, models.OrderStateProcessing)
	if errors.Is(err, models.ErrNotFound) {
		return nil, fmt.Errorf("order state %q is not seeded: %w", models.OrderStateProcessing, models.ErrConfiguration)
	}
	return state, err
}
