package api

import (
	"encoding/json"
	"testing"

	"shop-orders/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresentOrderWritesExactMoney(t *testing.T) {
	order := models.OrderDetail{
		Order: models.Order{
			ID:         7,
			Total:      decimal.RequireFromString("90071992547409.93"),
			TotalItems: 3,
		},
		Items: []models.OrderItem{
			{ProductID: 1, ProductName: "Cable", Price: decimal.RequireFromString("0.1"), Amount: 3, Total: decimal.RequireFromString("0.30")},
		},
	}

	raw, err := json.Marshal(presentOrder(order))
	require.NoError(t, err)

	body := string(raw)
	assert.Contains(t, body, `"total":90071992547409.93`)
	assert.Contains(t, body, `"value":0.10`)
	assert.Contains(t, body, `"total":0.30`)
	assert.Contains(t, body, `"payment":null`)
	assert.Contains(t, body, `"created_at":null`)
}
