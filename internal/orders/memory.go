package orders

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore: ledger in-process dengan semantik CAS yang sama dengan Repo.
// Dipakai mode STORAGE=memory dan unit test.
type MemStore struct {
	mu     sync.RWMutex
	orders map[string]Order
	byIdem map[string]string // idempotency key -> order id
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		orders: make(map[string]Order),
		byIdem: make(map[string]string),
	}
}

func cloneOrder(o Order) Order {
	out := o
	out.Items = append([]OrderItem(nil), o.Items...)
	if o.ExpiresAt != nil {
		t := *o.ExpiresAt
		out.ExpiresAt = &t
	}
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		out.CancelledAt = &t
	}
	if o.FinishedAt != nil {
		t := *o.FinishedAt
		out.FinishedAt = &t
	}
	return out
}

func (m *MemStore) CreateOrder(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byIdem[o.IdempotencyKey]; exists {
		return fmt.Errorf("%w: %s", ErrIdempotencyConflict, o.IdempotencyKey)
	}
	m.orders[o.ID] = cloneOrder(o)
	m.byIdem[o.IdempotencyKey] = o.ID
	return nil
}

func (m *MemStore) OrderByID(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *MemStore) OrderByIdempotencyKey(_ context.Context, key string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byIdem[key]
	if !ok {
		return Order{}, ErrNotFound
	}
	return cloneOrder(m.orders[id]), nil
}

func (m *MemStore) UpdateOrder(_ context.Context, o Order) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.orders[o.ID]
	if !ok {
		return Order{}, ErrNotFound
	}
	if stored.Version != o.Version {
		return Order{}, ErrVersionConflict
	}
	o.Version++
	m.orders[o.ID] = cloneOrder(o)
	return cloneOrder(o), nil
}

func (m *MemStore) ListByBuyer(_ context.Context, buyerID string, offset, limit int) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Order
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset < 0 {
		offset = 0
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemStore) CountByBuyer(_ context.Context, buyerID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, o := range m.orders {
		if o.BuyerID == buyerID {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) ListDue(_ context.Context, now time.Time, limit int) ([]Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Order
	for _, o := range m.orders {
		if o.PaymentStatus == PaymentUnpaid && o.ExpiresAt != nil && o.ExpiresAt.Before(now) {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(*out[j].ExpiresAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type memReservation struct {
	qty      int
	released bool
}

// MemInventory: counter stok in-process; satu lock untuk semua produk,
// jadi reserve all-or-nothing per definisi.
type MemInventory struct {
	mu           sync.Mutex
	products     map[string]Product
	reservations map[string]map[string]memReservation // orderID -> productID -> entry
}

var (
	_ ReservationStore = (*MemInventory)(nil)
	_ Catalog          = (*MemInventory)(nil)
)

func NewMemInventory(products ...Product) *MemInventory {
	m := &MemInventory{
		products:     make(map[string]Product),
		reservations: make(map[string]map[string]memReservation),
	}
	for _, p := range products {
		m.products[p.ID] = p
	}
	return m
}

func (m *MemInventory) ReserveAll(_ context.Context, orderID string, items []ItemQty) (bool, []StockShortage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.reservations[orderID]

	var shortages []StockShortage
	for _, it := range items {
		if r, ok := held[it.ProductID]; ok && !r.released {
			continue // sudah direservasi untuk order ini
		}
		p, ok := m.products[it.ProductID]
		if !ok || p.Stock < it.Qty {
			shortages = append(shortages, StockShortage{
				ProductID: it.ProductID, Required: it.Qty, Available: p.Stock,
			})
		}
	}
	if len(shortages) > 0 {
		return false, shortages, nil
	}

	if held == nil {
		held = make(map[string]memReservation)
		m.reservations[orderID] = held
	}
	for _, it := range items {
		if r, ok := held[it.ProductID]; ok && !r.released {
			continue
		}
		p := m.products[it.ProductID]
		p.Stock -= it.Qty
		m.products[it.ProductID] = p
		held[it.ProductID] = memReservation{qty: it.Qty}
	}
	return true, nil, nil
}

func (m *MemInventory) ReleaseAll(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for pid, r := range m.reservations[orderID] {
		if r.released {
			continue
		}
		p := m.products[pid]
		p.Stock += r.qty
		m.products[pid] = p
		r.released = true
		m.reservations[orderID][pid] = r
	}
	return nil
}

func (m *MemInventory) ProductsByID(_ context.Context, ids []string) (map[string]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Product, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (m *MemInventory) ListProducts(_ context.Context) ([]Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Product, 0, len(m.products))
	for _, p := range m.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Stock membaca sisa stok; dipakai test untuk memverifikasi invariat reservasi.
func (m *MemInventory) Stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].Stock
}
