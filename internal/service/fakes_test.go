package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"shop-orders/internal/models"
	"shop-orders/internal/store"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory store. WithTx snapshots everything on begin and
// restores it when fn fails, like a database rollback.
type memStore struct {
	products map[int64]models.Product
	states   []models.OrderState
	payments map[int64]models.Payment
	orders   map[int64]*models.OrderDetail

	nextProductID int64
	nextOrderID   int64
	nextItemID    int64

	insertErr error
	detailErr error
	commits   int

	// runs inside UpdateProduct just before the row is written
	beforeProductWrite func(id int64)
}

func newMemStore() *memStore {
	return &memStore{
		products: map[int64]models.Product{},
		states: []models.OrderState{
			{ID: 1, Name: models.OrderStateProcessing},
			{ID: 2, Name: models.OrderStateConfirmed},
			{ID: 3, Name: models.OrderStateShipped},
			{ID: 4, Name: models.OrderStateDelivered},
			{ID: 5, Name: models.OrderStateCancelled},
		},
		payments: map[int64]models.Payment{
			1: {ID: 1, Name: "Credit Card", Active: true},
			2: {ID: 2, Name: "Bank Transfer", Active: true},
		},
		orders:        map[int64]*models.OrderDetail{},
		nextProductID: 1,
		nextOrderID:   1,
		nextItemID:    1,
	}
}

func (m *memStore) addProduct(id int64, price string, stock int) {
	m.products[id] = models.Product{
		ID:     id,
		Name:   fmt.Sprintf("Product %d", id),
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	}
	if id >= m.nextProductID {
		m.nextProductID = id + 1
	}
}

func (m *memStore) stock(id int64) int {
	return m.products[id].Stock
}

type memSnapshot struct {
	products map[int64]models.Product
	orders   map[int64]*models.OrderDetail
	nextID   int64
	nextItem int64
}

func (m *memStore) snapshot() memSnapshot {
	s := memSnapshot{
		products: make(map[int64]models.Product, len(m.products)),
		orders:   make(map[int64]*models.OrderDetail, len(m.orders)),
		nextID:   m.nextOrderID,
		nextItem: m.nextItemID,
	}
	for k, v := range m.products {
		s.products[k] = v
	}
	for k, v := range m.orders {
		s.orders[k] = v
	}
	return s
}

func (m *memStore) restore(s memSnapshot) {
	m.products = s.products
	m.orders = s.orders
	m.nextOrderID = s.nextID
	m.nextItemID = s.nextItem
}

func (m *memStore) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	snap := m.snapshot()
	if err := fn(&memTx{m: m}); err != nil {
		m.restore(snap)
		return err
	}
	m.commits++
	return nil
}

func (m *memStore) stateByID(id int64) (models.OrderState, bool) {
	for _, s := range m.states {
		if s.ID == id {
			return s, true
		}
	}
	return models.OrderState{}, false
}

func (m *memStore) GetOrderStateByName(_ context.Context, name string) (*models.OrderState, error) {
	for _, s := range m.states {
		if s.Name == name {
			state := s
			return &state, nil
		}
	}
	return nil, fmt.Errorf("order state %q: %w", name, models.ErrNotFound)
}

func (m *memStore) GetOrderStateByID(_ context.Context, id int64) (*models.OrderState, error) {
	s, ok := m.stateByID(id)
	if !ok {
		return nil, fmt.Errorf("order state %d: %w", id, models.ErrNotFound)
	}
	return &s, nil
}

func (m *memStore) ListOrderStates(context.Context) ([]models.OrderState, error) {
	return append([]models.OrderState(nil), m.states...), nil
}

func (m *memStore) GetOrderDetail(_ context.Context, id int64) (*models.OrderDetail, error) {
	if m.detailErr != nil {
		return nil, m.detailErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	return m.materialize(o), nil
}

func (m *memStore) materialize(o *models.OrderDetail) *models.OrderDetail {
	d := *o
	d.Items = append([]models.OrderItem(nil), o.Items...)
	d.State, _ = m.stateByID(o.OrderStateID)
	d.User = models.UserRef{ID: o.UserID, Name: "Demo User"}
	d.Payment = nil
	if o.PaymentID != nil {
		if p, ok := m.payments[*o.PaymentID]; ok {
			d.Payment = &p
		}
	}
	return &d
}

func (m *memStore) list(filter func(*models.OrderDetail) bool, page, pageSize int) models.Page[models.OrderDetail] {
	ids := make([]int64, 0, len(m.orders))
	for id, o := range m.orders {
		if filter(o) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })

	var data []models.OrderDetail
	for i := (page - 1) * pageSize; i < len(ids) && i < page*pageSize; i++ {
		data = append(data, *m.materialize(m.orders[ids[i]]))
	}
	return models.NewPage(data, page, pageSize, len(ids))
}

func (m *memStore) ListOrders(_ context.Context, page, pageSize int) (models.Page[models.OrderDetail], error) {
	return m.list(func(*models.OrderDetail) bool { return true }, page, pageSize), nil
}

func (m *memStore) ListOrdersByUser(_ context.Context, userID int64, page, pageSize int) (models.Page[models.OrderDetail], error) {
	return m.list(func(o *models.OrderDetail) bool { return o.UserID == userID }, page, pageSize), nil
}

func (m *memStore) UpdateOrder(_ context.Context, id int64, upd models.OrderUpdate) error {
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	if upd.PaymentID != nil {
		if _, ok := m.payments[*upd.PaymentID]; !ok {
			return models.NewValidationError("payment_id", "references a record that does not exist")
		}
	}

	updated := *o
	if upd.StateID != nil {
		updated.OrderStateID = *upd.StateID
	}
	if upd.PaymentID != nil {
		updated.PaymentID = upd.PaymentID
	}
	updated.UpdatedAt = time.Now()
	m.orders[id] = &updated
	return nil
}

func (m *memStore) DeleteOrder(_ context.Context, id int64) error {
	if _, ok := m.orders[id]; !ok {
		return fmt.Errorf("order %d: %w", id, models.ErrNotFound)
	}
	delete(m.orders, id)
	return nil
}

func (m *memStore) GetPaymentByID(_ context.Context, id int64) (*models.Payment, error) {
	p, ok := m.payments[id]
	if !ok {
		return nil, fmt.Errorf("payment %d: %w", id, models.ErrNotFound)
	}
	return &p, nil
}

func (m *memStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	return &p, nil
}

func (m *memStore) ListProducts(_ context.Context, page, pageSize int) ([]models.Product, int, error) {
	ids := make([]int64, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []models.Product
	for i := (page - 1) * pageSize; i < len(ids) && i < page*pageSize; i++ {
		out = append(out, m.products[ids[i]])
	}
	return out, len(ids), nil
}

func (m *memStore) CreateProduct(_ context.Context, p *models.Product) error {
	p.ID = m.nextProductID
	m.nextProductID++
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.products[p.ID] = *p
	return nil
}

func (m *memStore) UpdateProduct(_ context.Context, id int64, upd models.ProductUpdate) (*models.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	if m.beforeProductWrite != nil {
		m.beforeProductWrite(id)
		p = m.products[id]
	}

	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = upd.Description
	}
	if upd.Price != nil {
		p.Price = *upd.Price
	}
	if upd.Stock != nil {
		p.Stock = *upd.Stock
	}
	if upd.Active != nil {
		p.Active = *upd.Active
	}
	p.UpdatedAt = time.Now()
	m.products[id] = p
	return &p, nil
}

func (m *memStore) DeleteProduct(_ context.Context, id int64) error {
	if _, ok := m.products[id]; !ok {
		return fmt.Errorf("product %d: %w", id, models.ErrNotFound)
	}
	delete(m.products, id)
	return nil
}

type memTx struct {
	m *memStore
}

func (t *memTx) GetProductsByIDsForUpdate(_ context.Context, ids []int64) ([]models.Product, error) {
	var out []models.Product
	for _, id := range ids {
		if p, ok := t.m.products[id]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, amount int) (bool, error) {
	p, ok := t.m.products[productID]
	if !ok || p.Stock < amount {
		return false, nil
	}
	p.Stock -= amount
	t.m.products[productID] = p
	return true, nil
}

func (t *memTx) GetOrderStateByName(ctx context.Context, name string) (*models.OrderState, error) {
	return t.m.GetOrderStateByName(ctx, name)
}

func (t *memTx) InsertOrderWithItems(_ context.Context, order *models.Order, items []models.OrderItem) error {
	if t.m.insertErr != nil {
		return t.m.insertErr
	}

	now := time.Now()
	order.ID = t.m.nextOrderID
	t.m.nextOrderID++
	order.CreatedAt = now
	order.UpdatedAt = now

	stored := make([]models.OrderItem, len(items))
	for i := range items {
		items[i].ID = t.m.nextItemID
		t.m.nextItemID++
		items[i].OrderID = order.ID
		items[i].CreatedAt = now
		stored[i] = items[i]
	}

	t.m.orders[order.ID] = &models.OrderDetail{Order: *order, Items: stored}
	return nil
}

type memIdempotency struct {
	keys map[string]int64
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: map[string]int64{}}
}

func (i *memIdempotency) GetIdempotentOrderID(_ context.Context, key string) (int64, bool, error) {
	id, ok := i.keys[key]
	return id, ok, nil
}

func (i *memIdempotency) SetIdempotencyKey(_ context.Context, key string, orderID int64, _ time.Duration) error {
	i.keys[key] = orderID
	return nil
}

type recordedEvents struct {
	placed   []int64
	states   []string
	payments []int64
	deleted  []int64
	err      error
}

func (r *recordedEvents) PublishOrderPlaced(_ context.Context, order *models.OrderDetail) error {
	r.placed = append(r.placed, order.ID)
	return r.err
}

func (r *recordedEvents) PublishOrderStateChanged(_ context.Context, _ int64, state models.OrderState) error {
	r.states = append(r.states, state.Name)
	return r.err
}

func (r *recordedEvents) PublishOrderPaymentChanged(_ context.Context, _ int64, paymentID int64) error {
	r.payments = append(r.payments, paymentID)
	return r.err
}

func (r *recordedEvents) PublishOrderDeleted(_ context.Context, orderID int64) error {
	r.deleted = append(r.deleted, orderID)
	return r.err
}

type memCache struct {
	products map[int64]models.Product
	getErr   error
	gets     int
}

func newMemCache() *memCache {
	return &memCache{products: map[int64]models.Product{}}
}

func (c *memCache) GetProduct(_ context.Context, id int64) (*models.Product, bool, error) {
	c.gets++
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	p, ok := c.products[id]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (c *memCache) SetProduct(_ context.Context, p *models.Product, _ time.Duration) error {
	c.products[p.ID] = *p
	return nil
}

func (c *memCache) DeleteProducts(_ context.Context, ids ...int64) error {
	for _, id := range ids {
		delete(c.products, id)
	}
	return nil
}
