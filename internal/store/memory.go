package store

import (
	"context"
	"sync"

	"github.com/efreitasn/stockmatch/internal/domain"
)

// Memory is a thread-safe in-memory Store. Entities are copied on the way
// in and on the way out, so callers never share state with the store.
type Memory struct {
	mu   sync.RWMutex
	data *memData
}

// memData holds the primary maps and their secondary indexes.
type memData struct {
	orders      map[string]*domain.Order
	stockOrders map[string][]string // stock_id → order ids (submission order)
	userOrders  map[string][]string // user_id → order ids (submission order)

	stocks  map[string]*domain.Stock
	symbols map[string]string // symbol → stock_id

	portfolios     map[string]*domain.Portfolio
	positions      map[string]string   // user_id|stock_id → portfolio id
	userPortfolios map[string][]string // user_id → portfolio ids

	trades map[string][]*domain.Trade // stock_id → trades (chronological)
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: &memData{
			orders:         make(map[string]*domain.Order),
			stockOrders:    make(map[string][]string),
			userOrders:     make(map[string][]string),
			stocks:         make(map[string]*domain.Stock),
			symbols:        make(map[string]string),
			portfolios:     make(map[string]*domain.Portfolio),
			positions:      make(map[string]string),
			userPortfolios: make(map[string][]string),
			trades:         make(map[string][]*domain.Trade),
		},
	}
}

func (m *Memory) Orders() OrderRepository         { return memOrders{m: m} }
func (m *Memory) Stocks() StockRepository         { return memStocks{m: m} }
func (m *Memory) Portfolios() PortfolioRepository { return memPortfolios{m: m} }
func (m *Memory) Trades() TradeRepository         { return memTrades{m: m} }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() error { return nil }

// InTx stages every write made through the repositories passed to fn and
// applies them under a single write lock once fn succeeds.
func (m *Memory) InTx(ctx context.Context, fn func(Repositories) error) error {
	tx := newMemTx()
	if err := fn(memTxRepos{m: m, tx: tx}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return tx.commit(m.data)
}

// memTx is the write overlay of one unit of work.
type memTx struct {
	orders     map[string]*domain.Order
	orderIDs   []string // first-write order
	stocks     map[string]*domain.Stock
	stockIDs   []string
	portfolios map[string]*domain.Portfolio
	portIDs    []string
	trades     []*domain.Trade
}

func newMemTx() *memTx {
	return &memTx{
		orders:     make(map[string]*domain.Order),
		stocks:     make(map[string]*domain.Stock),
		portfolios: make(map[string]*domain.Portfolio),
	}
}

// commit validates the whole overlay before applying any of it.
func (tx *memTx) commit(d *memData) error {
	for _, id := range tx.stockIDs {
		if err := d.checkStock(tx.stocks[id]); err != nil {
			return err
		}
	}
	for _, id := range tx.portIDs {
		if err := d.checkPortfolio(tx.portfolios[id]); err != nil {
			return err
		}
	}

	for _, id := range tx.orderIDs {
		d.putOrder(tx.orders[id])
	}
	for _, id := range tx.stockIDs {
		d.putStock(tx.stocks[id])
	}
	for _, id := range tx.portIDs {
		d.putPortfolio(tx.portfolios[id])
	}
	for _, t := range tx.trades {
		d.trades[t.StockID] = append(d.trades[t.StockID], t)
	}
	return nil
}

// memTxRepos exposes the overlay through the Repositories interface.
type memTxRepos struct {
	m  *Memory
	tx *memTx
}

func (r memTxRepos) Orders() OrderRepository         { return memOrders{m: r.m, tx: r.tx} }
func (r memTxRepos) Stocks() StockRepository         { return memStocks{m: r.m, tx: r.tx} }
func (r memTxRepos) Portfolios() PortfolioRepository { return memPortfolios{m: r.m, tx: r.tx} }
func (r memTxRepos) Trades() TradeRepository         { return memTrades{m: r.m, tx: r.tx} }

func positionKey(userID, stockID string) string {
	return userID + "|" + stockID
}

func (d *memData) putOrder(o *domain.Order) {
	if _, exists := d.orders[o.ID]; !exists {
		d.stockOrders[o.StockID] = append(d.stockOrders[o.StockID], o.ID)
		d.userOrders[o.UserID] = append(d.userOrders[o.UserID], o.ID)
	}
	d.orders[o.ID] = o
}

func (d *memData) checkStock(s *domain.Stock) error {
	if owner, ok := d.symbols[s.Symbol]; ok && owner != s.ID {
		return domain.ErrStockAlreadyExists
	}
	return nil
}

func (d *memData) putStock(s *domain.Stock) {
	if prev, ok := d.stocks[s.ID]; ok && prev.Symbol != s.Symbol {
		delete(d.symbols, prev.Symbol)
	}
	d.stocks[s.ID] = s
	d.symbols[s.Symbol] = s.ID
}

func (d *memData) checkPortfolio(p *domain.Portfolio) error {
	if owner, ok := d.positions[positionKey(p.UserID, p.StockID)]; ok && owner != p.ID {
		return &domain.ValidationError{Message: "portfolio already exists for user and stock"}
	}
	return nil
}

func (d *memData) putPortfolio(p *domain.Portfolio) {
	if _, exists := d.portfolios[p.ID]; !exists {
		d.positions[positionKey(p.UserID, p.StockID)] = p.ID
		d.userPortfolios[p.UserID] = append(d.userPortfolios[p.UserID], p.ID)
	}
	d.portfolios[p.ID] = p
}
