package service

import (
	"context"
	"sort"

	"github.com/adaldean/Perfumes/internal/domain"
	"github.com/adaldean/Perfumes/internal/repository"
	"github.com/adaldean/Perfumes/internal/session"
	"github.com/shopspring/decimal"
)

// mockProductRepo serves products from a map.
type mockProductRepo struct {
	products map[int64]*domain.Product
}

func newMockProductRepo(products ...*domain.Product) *mockProductRepo {
	m := &mockProductRepo{products: make(map[int64]*domain.Product)}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *mockProductRepo) ListActiveProducts(_ context.Context) ([]*domain.Product, error) {
	ids := make([]int64, 0, len(m.products))
	for id := range m.products {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var out []*domain.Product
	for _, id := range ids {
		if m.products[id].Active {
			out = append(out, m.products[id])
		}
	}
	return out, nil
}

func (m *mockProductRepo) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	return p, nil
}

func (m *mockProductRepo) ListBrands(_ context.Context) ([]*domain.Brand, error) {
	return nil, nil
}

func (m *mockProductRepo) ListCategories(_ context.Context) ([]*domain.Category, error) {
	return nil, nil
}

// mockCartRepo mirrors the SQL upsert semantics in memory: AddLine
// increments existing lines, SetLineQuantity overwrites, MergeLines
// skips products the product repo no longer knows.
type mockCartRepo struct {
	products  *mockProductRepo
	lines     map[int64]map[int64]int // userID -> productID -> quantity
	lineOrder map[int64][]int64
	failMerge error
}

func newMockCartRepo(products *mockProductRepo) *mockCartRepo {
	return &mockCartRepo{
		products:  products,
		lines:     make(map[int64]map[int64]int),
		lineOrder: make(map[int64][]int64),
	}
}

func (m *mockCartRepo) userLines(userID int64) map[int64]int {
	if m.lines[userID] == nil {
		m.lines[userID] = make(map[int64]int)
	}
	return m.lines[userID]
}

func (m *mockCartRepo) GetCartLines(_ context.Context, userID int64) ([]domain.CartItem, error) {
	var items []domain.CartItem
	for _, productID := range m.lineOrder[userID] {
		quantity, ok := m.lines[userID][productID]
		if !ok {
			continue
		}
		p := m.products.products[productID]
		items = append(items, domain.CartItem{
			ProductID: productID,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  quantity,
			Subtotal:  p.Price.Mul(decimal.NewFromInt(int64(quantity))),
		})
	}
	return items, nil
}

func (m *mockCartRepo) AddLine(_ context.Context, userID, productID int64, quantity int) error {
	if _, ok := m.products.products[productID]; !ok {
		return repository.ErrProductNotFound
	}
	lines := m.userLines(userID)
	if _, exists := lines[productID]; !exists {
		m.lineOrder[userID] = append(m.lineOrder[userID], productID)
	}
	lines[productID] += quantity
	return nil
}

func (m *mockCartRepo) SetLineQuantity(_ context.Context, userID, productID int64, quantity int) error {
	if _, ok := m.products.products[productID]; !ok {
		return repository.ErrProductNotFound
	}
	lines := m.userLines(userID)
	if _, exists := lines[productID]; !exists {
		m.lineOrder[userID] = append(m.lineOrder[userID], productID)
	}
	lines[productID] = quantity
	return nil
}

func (m *mockCartRepo) RemoveLine(_ context.Context, userID, productID int64) error {
	delete(m.userLines(userID), productID)
	return nil
}

func (m *mockCartRepo) ClearCart(_ context.Context, userID int64) error {
	m.lines[userID] = make(map[int64]int)
	m.lineOrder[userID] = nil
	return nil
}

func (m *mockCartRepo) MergeLines(_ context.Context, userID int64, sessionCart domain.SessionCart) (int, error) {
	if m.failMerge != nil {
		return 0, m.failMerge
	}
	ids := make([]int64, 0, len(sessionCart))
	for id := range sessionCart {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	merged := 0
	lines := m.userLines(userID)
	for _, productID := range ids {
		if _, ok := m.products.products[productID]; !ok {
			continue
		}
		if _, exists := lines[productID]; !exists {
			m.lineOrder[userID] = append(m.lineOrder[userID], productID)
		}
		lines[productID] += sessionCart[productID]
		merged++
	}
	return merged, nil
}

// fakeSessionStore is an in-memory session.Store.
type fakeSessionStore struct {
	carts map[string]domain.SessionCart
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{carts: make(map[string]domain.SessionCart)}
}

func (f *fakeSessionStore) Get(_ context.Context, token string) (domain.SessionCart, error) {
	cart, ok := f.carts[token]
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	out := make(domain.SessionCart, len(cart))
	for k, v := range cart {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSessionStore) Set(_ context.Context, token string, cart domain.SessionCart) error {
	f.carts[token] = cart
	return nil
}

func (f *fakeSessionStore) Delete(_ context.Context, token string) error {
	delete(f.carts, token)
	return nil
}

// mockOrderRepo records created orders and supports transitions.
type mockOrderRepo struct {
	nextID int64
	orders map[int64]*domain.Order
}

func newMockOrderRepo() *mockOrderRepo {
	return &mockOrderRepo{nextID: 1, orders: make(map[int64]*domain.Order)}
}

func (m *mockOrderRepo) CreateOrder(_ context.Context, order *domain.Order) error {
	order.ID = m.nextID
	m.nextID++
	for i := range order.Lines {
		order.Lines[i].OrderID = order.ID
		order.Lines[i].ID = int64(i + 1)
	}
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

func (m *mockOrderRepo) GetOrder(_ context.Context, id int64) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return order, nil
}

func (m *mockOrderRepo) ListOrdersByUser(_ context.Context, userID int64) ([]*domain.Order, error) {
	var out []*domain.Order
	for id := int64(1); id < m.nextID; id++ {
		if order, ok := m.orders[id]; ok && order.UserID == userID {
			out = append(out, order)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) TransitionOrder(_ context.Context, orderID int64, next domain.OrderStatus) error {
	order, ok := m.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	if !order.Status.CanTransitionTo(next) {
		return repository.ErrIllegalTransition
	}
	order.Status = next
	return nil
}
