package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"shop-orders/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const (
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
	pqNumericOutOfRange   = "22003"
)

// foreign key constraint name -> request field it originates from
var constraintFields = map[string]string{
	"fk_orders_user":        "user_id",
	"fk_orders_order_state": "state_id",
	"fk_orders_payment":     "payment_id",
}

type Store struct {
	db *sqlx.DB
}

// Tx is the set of operations that run inside one database transaction
type Tx interface {
	GetProductsByIDsForUpdate(ctx context.Context, ids []int64) ([]models.Product, error)
	DecrementStock(ctx context.Context, productID int64, amount int) (bool, error)
	GetOrderStateByName(ctx context.Context, name string) (*models.OrderState, error)
	InsertOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an existing connection pool
func NewStoreFromDB(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithTx runs fn inside a transaction. Any error returned by fn rolls back
// every write made through the Tx.
func (s *Store) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type txStore struct {
	tx *sqlx.Tx
}

func (t *txStore) GetProductsByIDsForUpdate(ctx context.Context, ids []int64) ([]models.Product, error) {
	// rows are locked in id order so concurrent placements cannot deadlock
	return getProductsByIDs(ctx, t.tx, ids, " ORDER BY id FOR UPDATE")
}

func (t *txStore) DecrementStock(ctx context.Context, productID int64, amount int) (bool, error) {
	return decrementStock(ctx, t.tx, productID, amount)
}

func (t *txStore) GetOrderStateByName(ctx context.Context, name string) (*models.OrderState, error) {
	return getOrderStateByName(ctx, t.tx, name)
}

func (t *txStore) InsertOrderWithItems(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return insertOrderWithItems(ctx, t.tx, order, items)
}

// mapConstraintError turns integrity violations into caller errors
func mapConstraintError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code {
	case pqForeignKeyViolation:
		field, ok := constraintFields[pqErr.Constraint]
		if !ok {
			field = pqErr.Constraint
		}
		return models.NewValidationError(field, "references a record that does not exist")
	case pqCheckViolation:
		return models.NewValidationError(pqErr.Column, "violates constraint %s", pqErr.Constraint)
	case pqNumericOutOfRange:
		field := pqErr.Column
		if field == "" {
			field = "value"
		}
		return models.NewValidationError(field, "is out of range")
	}
	return err
}
