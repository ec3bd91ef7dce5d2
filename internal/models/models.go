package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a product in the catalog
type Product struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Description *string         `db:"description" json:"description"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Stock       int             `db:"stock" json:"stock"`
	Active      bool            `db:"active" json:"active"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// ProductUpdate holds the product columns to change. Nil fields are not written.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Active      *bool
}

// OrderState is a named stage of the order lifecycle
type OrderState struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description"`
}

// Payment is a payment method an order can be settled with
type Payment struct {
	ID          int64   `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description"`
	Active      bool    `db:"active" json:"active"`
}

// UserRef is the part of a user the order aggregate exposes
type UserRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Order represents a customer order
type Order struct {
	ID           int64           `db:"id" json:"id"`
	UserID       int64           `db:"user_id" json:"user_id"`
	OrderStateID int64           `db:"order_state_id" json:"order_state_id"`
	PaymentID    *int64          `db:"payment_id" json:"payment_id"`
	Total        decimal.Decimal `db:"total" json:"total"`
	TotalItems   int             `db:"total_items" json:"total_items"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// OrderUpdate holds the order fields that may change after placement. Nil fields are left as is.
type OrderUpdate struct {
	StateID   *int64
	PaymentID *int64
}

// OrderItem is a line item with the product name and price captured at purchase time
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	ProductName string          `db:"product_name" json:"product_name"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Amount      int             `db:"amount" json:"amount"`
	Total       decimal.Decimal `db:"total" json:"total"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// OrderDetail is an order together with its items and resolved references
type OrderDetail struct {
	Order
	User    UserRef     `json:"user"`
	State   OrderState  `json:"state"`
	Payment *Payment    `json:"payment"`
	Items   []OrderItem `json:"items"`
}

// Order state names
const (
	OrderStateProcessing = "Processing"
	OrderStateConfirmed  = "Confirmed"
	OrderStateShipped    = "Shipped"
	OrderStateDelivered  = "Delivered"
	OrderStateCancelled  = "Cancelled"
)

// Page is one page of a paginated listing
type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// NewPage builds a page and derives the last page number from total
func NewPage[T any](data []T, page, perPage, total int) Page[T] {
	if data == nil {
		data = []T{}
	}
	lastPage := 1
	if perPage > 0 && total > 0 {
		lastPage = (total + perPage - 1) / perPage
	}
	return Page[T]{
		Data:        data,
		CurrentPage: page,
		PerPage:     perPage,
		Total:       total,
		LastPage:    lastPage,
	}
}

// MapPage converts every element of a page, keeping the pagination fields
func MapPage[T, U any](p Page[T], fn func(T) U) Page[U] {
	out := make([]U, 0, len(p.Data))
	for _, v := range p.Data {
		out = append(out, fn(v))
	}
	return Page[U]{
		Data:        out,
		CurrentPage: p.CurrentPage,
		PerPage:     p.PerPage,
		Total:       p.Total,
		LastPage:    p.LastPage,
	}
}
