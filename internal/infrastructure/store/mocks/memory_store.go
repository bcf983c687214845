package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/example/ec-checkout/internal/domain/inventory"
	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/example/ec-checkout/internal/domain/product"
	"github.com/example/ec-checkout/internal/domain/user"
)

// MemoryStore is an in-memory catalog, order and user store for testing.
// Settle is all-or-nothing, like the Postgres store.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*product.Product
	orders   map[string]*order.Order
	users    map[string]*user.User

	// For tracking calls in tests
	FindProductCalls     []int64
	FindBySessionCalls   []string
	SettleCalls          []order.Settlement
	UpdateStatusCalls    []*order.Order
	FindPublishedErr     error
	FindBySessionErr     error
	FindUserErr          error
	SettleErr            error
	BeforeSettleCallback func(ctx context.Context, s order.Settlement)
}

// NewMemoryStore creates a new MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[int64]*product.Product),
		orders:   make(map[string]*order.Order),
		users:    make(map[string]*user.User),
	}
}

// AddProduct seeds a product
func (m *MemoryStore) AddProduct(p *product.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = cloneProduct(p)
}

// AddUser seeds a user
func (m *MemoryStore) AddUser(u *user.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *u
	m.users[u.ID] = &cp
}

// AddOrder seeds an order
func (m *MemoryStore) AddOrder(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *o
	m.orders[o.ID] = &cp
}

// Product returns the current state of a product
func (m *MemoryStore) Product(id int64) *product.Product {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil
	}
	return cloneProduct(p)
}

// VariantStock returns the stock of one variant, or -1 if it does not exist
func (m *MemoryStore) VariantStock(productID int64, variantID string) int {
	p := m.Product(productID)
	if p == nil {
		return -1
	}
	variants, ok := p.Options.(product.Variants)
	if !ok {
		return -1
	}
	v, ok := variants.Find(variantID)
	if !ok {
		return -1
	}
	return v.Stock
}

// Orders returns all stored orders
func (m *MemoryStore) Orders() []*order.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*order.Order, 0, len(m.orders))
	for _, o := range m.orders {
		cp := *o
		out = append(out, &cp)
	}
	return out
}

// ============================================
// product.Catalog
// ============================================

func (m *MemoryStore) FindPublishedProduct(ctx context.Context, id int64) (*product.Product, error) {
	m.mu.Lock()
	m.FindProductCalls = append(m.FindProductCalls, id)
	m.mu.Unlock()

	if m.FindPublishedErr != nil {
		return nil, m.FindPublishedErr
	}
	p, err := m.findProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsPublished() {
		return nil, product.ErrProductNotFound
	}
	return p, nil
}

func (m *MemoryStore) findProduct(ctx context.Context, id int64) (*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, product.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

// ============================================
// order.Repository
// ============================================

func (m *MemoryStore) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindBySessionCalls = append(m.FindBySessionCalls, sessionID)

	if m.FindBySessionErr != nil {
		return nil, m.FindBySessionErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, o := range m.orders {
		if o.ProviderSessionID == sessionID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (m *MemoryStore) FindByID(_ context.Context, id string) (*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MemoryStore) ListByCustomer(_ context.Context, customerID string, page order.Page) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOrders(page, func(o *order.Order) bool { return o.CustomerID == customerID }), nil
}

func (m *MemoryStore) ListAll(_ context.Context, page order.Page) ([]*order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listOrders(page, func(*order.Order) bool { return true }), nil
}

// listOrders pages newest first, ties broken by id. Caller holds mu.
func (m *MemoryStore) listOrders(page order.Page, keep func(*order.Order) bool) []*order.Order {
	matched := []*order.Order{}
	for _, o := range m.orders {
		if keep(o) {
			cp := *o
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	if page.Offset >= len(matched) {
		return []*order.Order{}
	}
	matched = matched[page.Offset:]
	if page.Limit > 0 && page.Limit < len(matched) {
		matched = matched[:page.Limit]
	}
	return matched
}

func (m *MemoryStore) UpdateStatus(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateStatusCalls = append(m.UpdateStatusCalls, o)
	if _, ok := m.orders[o.ID]; !ok {
		return order.ErrOrderNotFound
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

// insertOrder enforces one order per provider session. Caller holds mu.
func (m *MemoryStore) insertOrder(o *order.Order) error {
	for _, existing := range m.orders {
		if existing.ProviderSessionID == o.ProviderSessionID {
			return order.ErrDuplicateSettlement
		}
	}
	cp := *o
	m.orders[o.ID] = &cp
	return nil
}

// ============================================
// settlement.Settler
// ============================================

func (m *MemoryStore) Settle(ctx context.Context, s order.Settlement) ([]inventory.Adjustment, error) {
	if m.BeforeSettleCallback != nil {
		m.BeforeSettleCallback(ctx, s)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.SettleCalls = append(m.SettleCalls, s)

	if m.SettleErr != nil {
		return nil, m.SettleErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage every change, then apply only if the order insert succeeds.
	staged := make(map[int64]product.Variants)
	var adjustments []inventory.Adjustment
	for _, d := range s.Deductions {
		p, ok := m.products[d.ProductID]
		if !ok {
			return nil, fmt.Errorf("settle product %d: %w", d.ProductID, product.ErrProductNotFound)
		}
		if d.VariantID == nil {
			continue
		}
		variants, ok := staged[d.ProductID]
		if !ok {
			current, isVariants := p.Options.(product.Variants)
			if !isVariants {
				continue
			}
			variants = append(product.Variants(nil), current...)
		}
		for i := range variants {
			if variants[i].ID != *d.VariantID {
				continue
			}
			before := variants[i].Stock
			variants[i].Stock = inventory.Deduct(before, d.Quantity)
			adjustments = append(adjustments, inventory.Adjustment{
				ProductID: d.ProductID,
				VariantID: variants[i].ID,
				Before:    before,
				After:     variants[i].Stock,
			})
		}
		staged[d.ProductID] = variants
	}

	if err := m.insertOrder(s.Order); err != nil {
		return nil, err
	}
	for id, variants := range staged {
		m.products[id].Options = variants
	}
	return adjustments, nil
}

// ============================================
// user.Directory
// ============================================

func (m *MemoryStore) FindUser(ctx context.Context, id string) (*user.User, error) {
	if m.FindUserErr != nil {
		return nil, m.FindUserErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func cloneProduct(p *product.Product) *product.Product {
	cp := *p
	if variants, ok := p.Options.(product.Variants); ok {
		cp.Options = append(product.Variants(nil), variants...)
	}
	return &cp
}
