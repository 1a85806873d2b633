package store

import (
	"context"

	"github.com/efreitasn/stockmatch/internal/domain"
)

// memOrders is the in-memory OrderRepository. With a non-nil tx, writes
// are staged and reads see staged writes first.
type memOrders struct {
	m  *Memory
	tx *memTx
}

func (r memOrders) Save(_ context.Context, o *domain.Order) error {
	c := o.Clone()
	if r.tx != nil {
		if _, staged := r.tx.orders[c.ID]; !staged {
			r.tx.orderIDs = append(r.tx.orderIDs, c.ID)
		}
		r.tx.orders[c.ID] = c
		return nil
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	r.m.data.putOrder(c)
	return nil
}

// lookup resolves an order id against the overlay, then the base map.
// The caller must hold at least the read lock.
func (r memOrders) lookup(id string) (*domain.Order, bool) {
	if r.tx != nil {
		if o, ok := r.tx.orders[id]; ok {
			return o, true
		}
	}
	o, ok := r.m.data.orders[id]
	return o, ok
}

func (r memOrders) Get(_ context.Context, id string) (*domain.Order, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	o, ok := r.lookup(id)
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o.Clone(), nil
}

// indexWithStaged appends staged orders that the base index does not know
// yet. keep selects which staged orders belong to the index.
func (r memOrders) indexWithStaged(base []string, keep func(*domain.Order) bool) []string {
	ids := append([]string(nil), base...)
	if r.tx == nil {
		return ids
	}
	for _, id := range r.tx.orderIDs {
		if _, inBase := r.m.data.orders[id]; inBase {
			continue
		}
		if keep(r.tx.orders[id]) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (r memOrders) FindPendingByStock(_ context.Context, stockID string, typ domain.OrderType) ([]*domain.Order, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	ids := r.indexWithStaged(r.m.data.stockOrders[stockID], func(o *domain.Order) bool {
		return o.StockID == stockID
	})

	result := make([]*domain.Order, 0)
	for _, id := range ids {
		o, ok := r.lookup(id)
		if !ok || o.Type != typ || !o.IsActive() {
			continue
		}
		result = append(result, o.Clone())
	}
	return result, nil
}

func (r memOrders) ListByUser(_ context.Context, userID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	ids := r.indexWithStaged(r.m.data.userOrders[userID], func(o *domain.Order) bool {
		return o.UserID == userID
	})

	// Filter by status if provided, collecting in reverse order.
	filtered := make([]*domain.Order, 0)
	for i := len(ids) - 1; i >= 0; i-- {
		o, ok := r.lookup(ids[i])
		if !ok {
			continue
		}
		if status != nil && o.Status != *status {
			continue
		}
		filtered = append(filtered, o)
	}

	total := len(filtered)

	start := (page - 1) * limit
	if start >= total || start < 0 {
		return []*domain.Order{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	result := make([]*domain.Order, 0, end-start)
	for _, o := range filtered[start:end] {
		result = append(result, o.Clone())
	}
	return result, total, nil
}
