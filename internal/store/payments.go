package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shop-orders/internal/models"
)

// GetPaymentByID retrieves a payment method by ID
func (s *Store) GetPaymentByID(ctx context.Context, id int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.GetContext(ctx, &payment,
		"SELECT id, name, description, active FROM payments WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("payment %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
