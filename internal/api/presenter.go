package api

import (
	"encoding/json"
	"time"

	"shop-orders/internal/models"

	"github.com/shopspring/decimal"
)

const timestampLayout = "2006-01-02 15:04:05"

type orderUserResponse struct {
	ID   int64  `json:"id"`
	User string `json:"user"`
}

type orderProductResponse struct {
	ID     int64   `json:"id"`
	Name   string  `json:"name"`
	Value  json.Number `json:"value"`
	Amount int         `json:"amount"`
	Total  json.Number `json:"total"`
}

type orderStateResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type orderPaymentResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// OrderResponse is the public shape of an order. Money is written as a JSON
// number with exactly two decimals, never through float64.
type OrderResponse struct {
	ID        int64                  `json:"id"`
	User      orderUserResponse      `json:"user"`
	Products  []orderProductResponse `json:"products"`
	State     orderStateResponse     `json:"state"`
	Total     json.Number            `json:"total"`
	Amount    int                    `json:"amount"`
	Payment   *orderPaymentResponse  `json:"payment"`
	CreatedAt *string                `json:"created_at"`
	UpdatedAt *string                `json:"updated_at"`
}

// presentOrder maps the order aggregate to its public shape
func presentOrder(o models.OrderDetail) OrderResponse {
	products := make([]orderProductResponse, 0, len(o.Items))
	for _, item := range o.Items {
		products = append(products, orderProductResponse{
			ID:     item.ProductID,
			Name:   item.ProductName,
			Value:  money(item.Price),
			Amount: item.Amount,
			Total:  money(item.Total),
		})
	}

	resp := OrderResponse{
		ID:        o.ID,
		User:      orderUserResponse{ID: o.User.ID, User: o.User.Name},
		Products:  products,
		State:     orderStateResponse{ID: o.State.ID, Name: o.State.Name},
		Total:     money(o.Total),
		Amount:    o.TotalItems,
		CreatedAt: formatTimestamp(o.CreatedAt),
		UpdatedAt: formatTimestamp(o.UpdatedAt),
	}
	if o.Payment != nil {
		resp.Payment = &orderPaymentResponse{ID: o.Payment.ID, Name: o.Payment.Name}
	}
	return resp
}

func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

func formatTimestamp(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(timestampLayout)
	return &s
}
