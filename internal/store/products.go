package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shop-orders/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, description, price, stock, active, created_at, updated_at`

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	return getProductsByIDs(ctx, s.db, ids, " ORDER BY id")
}

func getProductsByIDs(ctx context.Context, q sqlx.ExtContext, ids []int64, suffix string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)"+suffix, ids)
	if err != nil {
		return nil, err
	}
	query = q.Rebind(query)

	var products []models.Product
	if err := sqlx.SelectContext(ctx, q, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	return products, nil
}

// ListProducts retrieves one page of products and the total count
func (s *Store) ListProducts(ctx context.Context, page, pageSize int) ([]models.Product, int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products ORDER BY id LIMIT $1 OFFSET $2",
		pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// CreateProduct inserts a product and fills in its generated fields
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (name, description, price, stock, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, price, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		product.Name, product.Description, product.Price, product.Stock, product.Active,
	).Scan(&product.ID, &product.Price, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", mapConstraintError(err))
	}
	return nil
}

// UpdateProduct writes only the non-nil fields of upd. Columns left out, stock
// in particular, keep their stored value.
func (s *Store) UpdateProduct(ctx context.Context, id int64, upd models.ProductUpdate) (*models.Product, error) {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Description != nil {
		set("description", *upd.Description)
	}
	if upd.Price != nil {
		set("price", *upd.Price)
	}
	if upd.Stock != nil {
		set("stock", *upd.Stock)
	}
	if upd.Active != nil {
		set("active", *upd.Active)
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE products SET %s WHERE id = $%d RETURNING %s",
		strings.Join(sets, ", "), len(args), productColumns)

	var product models.Product
	err := s.db.QueryRowxContext(ctx, query, args...).StructScan(&product)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", mapConstraintError(err))
	}
	return &product, nil
}

// DeleteProduct removes a product
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// decrementStock takes amount units from a product only if enough are left.
// It reports false when the row was missing or short on stock.
func decrementStock(ctx context.Context, q sqlx.ExecerContext, productID int64, amount int) (bool, error) {
	result, err := q.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		amount, productID)
	if err != nil {
		return false, fmt.Errorf("failed to decrement stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}
