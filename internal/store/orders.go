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

const orderDetailQuery = `
	SELECT o.id, o.user_id, o.order_state_id, o.payment_id, o.total, o.total_items,
	       o.created_at, o.updated_at,
	       u.name AS user_name,
	       s.name AS state_name, s.description AS state_description,
	       p.name AS payment_name, p.description AS payment_description, p.active AS payment_active
	FROM orders o
	JOIN order_states s ON s.id = o.order_state_id
	LEFT JOIN users u ON u.id = o.user_id
	LEFT JOIN payments p ON p.id = o.payment_id`

const orderItemColumns = `id, order_id, product_id, product_name, price, amount, total, created_at`

// orderRow is one row of orderDetailQuery
type orderRow struct {
	models.Order
	UserName           sql.NullString `db:"user_name"`
	StateName          string         `db:"state_name"`
	StateDescription   *string        `db:"state_description"`
	PaymentName        sql.NullString `db:"payment_name"`
	PaymentDescription *string        `db:"payment_description"`
	PaymentActive      sql.NullBool   `db:"payment_active"`
}

func (r orderRow) detail() models.OrderDetail {
	d := models.OrderDetail{
		Order: r.Order,
		User:  models.UserRef{ID: r.UserID, Name: r.UserName.String},
		State: models.OrderState{
			ID:          r.OrderStateID,
			Name:        r.StateName,
			Description: r.StateDescription,
		},
		Items: []models.OrderItem{},
	}
	if r.PaymentID != nil && r.PaymentName.Valid {
		d.Payment = &models.Payment{
			ID:          *r.PaymentID,
			Name:        r.PaymentName.String,
			Description: r.PaymentDescription,
			Active:      r.PaymentActive.Bool,
		}
	}
	return d
}

func insertOrderWithItems(ctx context.Context, q sqlx.QueryerContext, order *models.Order, items []models.OrderItem) error {
	query := `
		INSERT INTO orders (user_id, order_state_id, payment_id, total, total_items)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := q.QueryRowxContext(ctx, query,
		order.UserID, order.OrderStateID, order.PaymentID, order.Total, order.TotalItems,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", mapConstraintError(err))
	}

	itemQuery := `
		INSERT INTO order_items (order_id, product_id, product_name, price, amount, total)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	for i := range items {
		item := &items[i]
		item.OrderID = order.ID
		err := q.QueryRowxContext(ctx, itemQuery,
			item.OrderID, item.ProductID, item.ProductName, item.Price, item.Amount, item.Total,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", mapConstraintError(err))
		}
	}

	return nil
}

// GetOrderDetail retrieves an order with its items, state, payment and user
func (s *Store) GetOrderDetail(ctx context.Context, id int64) (*models.OrderDetail, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, orderDetailQuery+" WHERE o.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	details := []models.OrderDetail{row.detail()}
	if err := s.attachItems(ctx, details); err != nil {
		return nil, err
	}
	return &details[0], nil
}

// ListOrders retrieves one page of orders, newest first
func (s *Store) ListOrders(ctx context.Context, page, pageSize int) (models.Page[models.OrderDetail], error) {
	return s.listOrders(ctx, "", nil, page, pageSize)
}

// ListOrdersByUser retrieves one page of a user's orders, newest first
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64, page, pageSize int) (models.Page[models.OrderDetail], error) {
	return s.listOrders(ctx, "o.user_id = $1", []interface{}{userID}, page, pageSize)
}

func (s *Store) listOrders(ctx context.Context, where string, args []interface{}, page, pageSize int) (models.Page[models.OrderDetail], error) {
	whereClause := ""
	if where != "" {
		whereClause = " WHERE " + where
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM orders o"+whereClause, args...); err != nil {
		return models.Page[models.OrderDetail]{}, fmt.Errorf("failed to count orders: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf("%s%s ORDER BY o.id DESC LIMIT $%d OFFSET $%d", orderDetailQuery, whereClause, n+1, n+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return models.Page[models.OrderDetail]{}, fmt.Errorf("failed to list orders: %w", err)
	}

	details := make([]models.OrderDetail, 0, len(rows))
	for _, r := range rows {
		details = append(details, r.detail())
	}
	if err := s.attachItems(ctx, details); err != nil {
		return models.Page[models.OrderDetail]{}, err
	}

	return models.NewPage(details, page, pageSize, total), nil
}

// attachItems loads the line items of every order in one query
func (s *Store) attachItems(ctx context.Context, details []models.OrderDetail) error {
	if len(details) == 0 {
		return nil
	}

	ids := make([]int64, len(details))
	index := make(map[int64]int, len(details))
	for i, d := range details {
		ids[i] = d.ID
		index[d.ID] = i
	}

	query, args, err := sqlx.In(
		"SELECT "+orderItemColumns+" FROM order_items WHERE order_id IN (?) ORDER BY order_id, id", ids)
	if err != nil {
		return err
	}

	var items []models.OrderItem
	if err := s.db.SelectContext(ctx, &items, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to get order items: %w", err)
	}

	for _, item := range items {
		i := index[item.OrderID]
		details[i].Items = append(details[i].Items, item)
	}
	return nil
}

// UpdateOrder applies the non-nil fields of upd to an order
func (s *Store) UpdateOrder(ctx context.Context, id int64, upd models.OrderUpdate) error {
	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}

	if upd.StateID != nil {
		args = append(args, *upd.StateID)
		sets = append(sets, fmt.Sprintf("order_state_id = $%d", len(args)))
	}
	if upd.PaymentID != nil {
		args = append(args, *upd.PaymentID)
		sets = append(sets, fmt.Sprintf("payment_id = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE orders SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", mapConstraintError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	return nil
}

// DeleteOrder removes an order; its items go with it through ON DELETE CASCADE.
// Stock taken by the order is not given back.
func (s *Store) DeleteOrder(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	return nil
}
