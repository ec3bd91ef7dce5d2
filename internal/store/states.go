package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-orders/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderStateColumns = `id, name, description`

// GetOrderStateByName resolves a lifecycle state by its unique name
func (s *Store) GetOrderStateByName(ctx context.Context, name string) (*models.OrderState, error) {
	return getOrderStateByName(ctx, s.db, name)
}

func getOrderStateByName(ctx context.Context, q sqlx.QueryerContext, name string) (*models.OrderState, error) {
	var state models.OrderState
	err := sqlx.GetContext(ctx, q, &state,
		"SELECT "+orderStateColumns+" FROM order_states WHERE name = $1", name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order state %q: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// GetOrderStateByID retrieves a lifecycle state by ID
func (s *Store) GetOrderStateByID(ctx context.Context, id int64) (*models.OrderState, error) {
	var state models.OrderState
	err := s.db.GetContext(ctx, &state,
		"SELECT "+orderStateColumns+" FROM order_states WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order state %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ListOrderStates retrieves every lifecycle state
func (s *Store) ListOrderStates(ctx context.Context) ([]models.OrderState, error) {
	var states []models.OrderState
	err := s.db.SelectContext(ctx, &states,
		"SELECT "+orderStateColumns+" FROM order_states ORDER BY id")
	return states, err
}
