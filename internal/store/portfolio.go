package store

import (
	"context"

	"github.com/efreitasn/stockmatch/internal/domain"
)

// memPortfolios is the in-memory PortfolioRepository.
type memPortfolios struct {
	m  *Memory
	tx *memTx
}

func (r memPortfolios) FindByUserAndStock(_ context.Context, userID, stockID string) (*domain.Portfolio, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	if r.tx != nil {
		for _, id := range r.tx.portIDs {
			if p := r.tx.portfolios[id]; p.UserID == userID && p.StockID == stockID {
				return p.Clone(), nil
			}
		}
	}
	id, ok := r.m.data.positions[positionKey(userID, stockID)]
	if !ok {
		return nil, domain.ErrPortfolioNotFound
	}
	return r.m.data.portfolios[id].Clone(), nil
}

func (r memPortfolios) ListByUser(_ context.Context, userID string) ([]*domain.Portfolio, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	result := make([]*domain.Portfolio, 0)
	seen := make(map[string]bool)
	for _, id := range r.m.data.userPortfolios[userID] {
		p := r.m.data.portfolios[id]
		if r.tx != nil {
			if staged, ok := r.tx.portfolios[id]; ok {
				p = staged
			}
		}
		seen[id] = true
		result = append(result, p.Clone())
	}
	if r.tx != nil {
		for _, id := range r.tx.portIDs {
			if p := r.tx.portfolios[id]; !seen[id] && p.UserID == userID {
				result = append(result, p.Clone())
			}
		}
	}
	return result, nil
}

func (r memPortfolios) Save(_ context.Context, p *domain.Portfolio) error {
	c := p.Clone()
	if r.tx != nil {
		r.m.mu.RLock()
		err := r.m.data.checkPortfolio(c)
		r.m.mu.RUnlock()
		if err != nil {
			return err
		}
		if _, staged := r.tx.portfolios[c.ID]; !staged {
			r.tx.portIDs = append(r.tx.portIDs, c.ID)
		}
		r.tx.portfolios[c.ID] = c
		return nil
	}

	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.data.checkPortfolio(c); err != nil {
		return err
	}
	r.m.data.putPortfolio(c)
	return nil
}
