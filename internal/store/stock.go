package store

import (
	"context"
	"sort"

	"github.com/efreitasn/stockmatch/internal/domain"
)

// memStocks is the in-memory StockRepository.
type memStocks struct {
	m  *Memory
	tx *memTx
}

func (r memStocks) FindByID(_ context.Context, id string) (*domain.Stock, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	if r.tx != nil {
		if s, ok := r.tx.stocks[id]; ok {
			return s.Clone(), nil
		}
	}
	s, ok := r.m.data.stocks[id]
	if !ok {
		return nil, domain.ErrStockNotFound
	}
	return s.Clone(), nil
}

func (r memStocks) FindBySymbol(ctx context.Context, symbol string) (*domain.Stock, error) {
	r.m.mu.RLock()
	if r.tx != nil {
		for _, id := range r.tx.stockIDs {
			if s := r.tx.stocks[id]; s.Symbol == symbol {
				r.m.mu.RUnlock()
				return s.Clone(), nil
			}
		}
	}
	id, ok := r.m.data.symbols[symbol]
	r.m.mu.RUnlock()

	if !ok {
		return nil, domain.ErrStockNotFound
	}
	return r.FindByID(ctx, id)
}

func (r memStocks) Save(_ context.Context, s *domain.Stock) error {
	c := s.Clone()
	if r.tx != nil {
		r.m.mu.RLock()
		err := r.m.data.checkStock(c)
		r.m.mu.RUnlock()
		if err != nil {
			return err
		}
		for _, id := range r.tx.stockIDs {
			if staged := r.tx.stocks[id]; staged.Symbol == c.Symbol && staged.ID != c.ID {
				return domain.ErrStockAlreadyExists
			}
		}
		if _, staged := r.tx.stocks[c.ID]; !staged {
			r.tx.stockIDs = append(r.tx.stockIDs, c.ID)
		}
		r.tx.stocks[c.ID] = c
		return nil
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.data.checkStock(c); err != nil {
		return err
	}
	r.m.data.putStock(c)
	return nil
}

func (r memStocks) List(_ context.Context) ([]*domain.Stock, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	byID := make(map[string]*domain.Stock, len(r.m.data.stocks))
	for id, s := range r.m.data.stocks {
		byID[id] = s
	}
	if r.tx != nil {
		for id, s := range r.tx.stocks {
			byID[id] = s
		}
	}

	result := make([]*domain.Stock, 0, len(byID))
	for _, s := range byID {
		result = append(result, s.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Symbol < result[j].Symbol
	})
	return result, nil
}
