package engine

import "sync"

// StockLocks hands out one mutex per stock. Everything that reads the book
// to make a decision and then writes on it runs under that stock's lock,
// so a stock has a single writer at a time.
type StockLocks struct {
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
}

// NewStockLocks creates an empty lock registry.
func NewStockLocks() *StockLocks {
	return &StockLocks{
		locks: make(map[string]*sync.Mutex),
	}
}

// Get returns the mutex for stockID, creating it on first use.
func (l *StockLocks) Get(stockID string) *sync.Mutex {
	l.mu.RLock()
	mu, ok := l.locks[stockID]
	l.mu.RUnlock()
	if ok {
		return mu
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Double-check after acquiring write lock.
	if mu, ok = l.locks[stockID]; ok {
		return mu
	}
	mu = &sync.Mutex{}
	l.locks[stockID] = mu
	return mu
}
