package engine

import (
	"time"

	"github.com/google/btree"

	"github.com/efreitasn/stockmatch/internal/domain"
)

// OrderBookEntry represents a single order resting on the book. Seq is the
// order's position in submission order within the book.
type OrderBookEntry struct {
	Price     domain.Money
	CreatedAt time.Time
	Seq       uint64
	OrderID   string
	Order     *domain.Order
}

// PriceLevel represents an aggregated price level in the order book.
type PriceLevel struct {
	Price         domain.Money
	TotalQuantity int64
	OrderCount    int
}

// bidLess orders the bid side by price descending, then time priority,
// so Min() is the best bid.
func bidLess(a, b OrderBookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return earlier(a, b)
}

// askLess orders the ask side by price ascending, then time priority,
// so Min() is the best ask.
func askLess(a, b OrderBookEntry) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return earlier(a, b)
}

// earlier breaks price ties by created_at, then submission sequence. The
// order id only separates entries inserted with the same sequence.
func earlier(a, b OrderBookEntry) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.OrderID < b.OrderID
}

// OrderBook is a price-time ordered snapshot of one stock's active orders.
// It is built fresh for every pass and is not safe for concurrent use;
// callers serialize through StockLocks.
type OrderBook struct {
	stockID string
	bids    *btree.BTreeG[OrderBookEntry]
	asks    *btree.BTreeG[OrderBookEntry]
	nextSeq uint64
}

// NewOrderBook creates an empty order book for the given stock.
func NewOrderBook(stockID string) *OrderBook {
	const degree = 32
	return &OrderBook{
		stockID: stockID,
		bids:    btree.NewG[OrderBookEntry](degree, bidLess),
		asks:    btree.NewG[OrderBookEntry](degree, askLess),
	}
}

// BuildOrderBook loads buys and sells into a new book. Each slice must be in
// submission order, as the repositories return it, since equal timestamps
// are ranked by insertion. Orders that can no longer trade are left out.
func BuildOrderBook(stockID string, buys, sells []*domain.Order) *OrderBook {
	ob := NewOrderBook(stockID)
	for _, o := range buys {
		ob.Insert(o)
	}
	for _, o := range sells {
		ob.Insert(o)
	}
	return ob
}

// Insert adds an active order to the side matching its type, behind every
// order already inserted at the same price and time.
func (ob *OrderBook) Insert(o *domain.Order) {
	if !o.IsActive() || o.RemainingQuantity <= 0 {
		return
	}
	ob.nextSeq++
	entry := OrderBookEntry{
		Price:     o.PricePerShare,
		CreatedAt: o.CreatedAt,
		Seq:       ob.nextSeq,
		OrderID:   o.ID,
		Order:     o,
	}
	if o.Type == domain.OrderTypeBuy {
		ob.bids.ReplaceOrInsert(entry)
	} else {
		ob.asks.ReplaceOrInsert(entry)
	}
}

// StockID returns the stock the book belongs to.
func (ob *OrderBook) StockID() string {
	return ob.stockID
}

// BestBid returns the highest-priority bid (highest price, earliest time).
func (ob *OrderBook) BestBid() (OrderBookEntry, bool) {
	return ob.bids.Min()
}

// BestAsk returns the highest-priority ask (lowest price, earliest time).
func (ob *OrderBook) BestAsk() (OrderBookEntry, bool) {
	return ob.asks.Min()
}

// TopBids returns up to n aggregated price levels from the bid side,
// ordered by price descending.
func (ob *OrderBook) TopBids(n int) []PriceLevel {
	return topLevels(ob.bids, n)
}

// TopAsks returns up to n aggregated price levels from the ask side,
// ordered by price ascending.
func (ob *OrderBook) TopAsks(n int) []PriceLevel {
	return topLevels(ob.asks, n)
}

func topLevels(tree *btree.BTreeG[OrderBookEntry], n int) []PriceLevel {
	levels := make([]PriceLevel, 0)
	if n <= 0 {
		return levels
	}
	tree.Ascend(func(entry OrderBookEntry) bool {
		qty := entry.Order.RemainingQuantity
		if len(levels) > 0 && levels[len(levels)-1].Price.Equal(entry.Price) {
			levels[len(levels)-1].TotalQuantity += qty
			levels[len(levels)-1].OrderCount++
			return true
		}
		if len(levels) >= n {
			return false
		}
		levels = append(levels, PriceLevel{
			Price:         entry.Price,
			TotalQuantity: qty,
			OrderCount:    1,
		})
		return true
	})
	return levels
}

// WalkBids iterates bids in priority order. The callback returns false to stop.
func (ob *OrderBook) WalkBids(fn func(OrderBookEntry) bool) {
	ob.bids.Ascend(fn)
}

// WalkAsks iterates asks in priority order. The callback returns false to stop.
func (ob *OrderBook) WalkAsks(fn func(OrderBookEntry) bool) {
	ob.asks.Ascend(fn)
}

// BidVolume is the total remaining quantity on the bid side.
func (ob *OrderBook) BidVolume() int64 {
	return sideVolume(ob.bids)
}

// AskVolume is the total remaining quantity on the ask side.
func (ob *OrderBook) AskVolume() int64 {
	return sideVolume(ob.asks)
}

func sideVolume(tree *btree.BTreeG[OrderBookEntry]) int64 {
	var total int64
	tree.Ascend(func(entry OrderBookEntry) bool {
		total += entry.Order.RemainingQuantity
		return true
	})
	return total
}

// BidCount returns the number of individual bid orders on the book.
func (ob *OrderBook) BidCount() int {
	return ob.bids.Len()
}

// AskCount returns the number of individual ask orders on the book.
func (ob *OrderBook) AskCount() int {
	return ob.asks.Len()
}

// Prices returns every distinct price present on either side, highest first.
func (ob *OrderBook) Prices() []domain.Money {
	seen := btree.NewG[domain.Money](8, func(a, b domain.Money) bool {
		return a.GreaterThan(b)
	})
	collect := func(entry OrderBookEntry) bool {
		seen.ReplaceOrInsert(entry.Price)
		return true
	}
	ob.bids.Ascend(collect)
	ob.asks.Ascend(collect)

	prices := make([]domain.Money, 0, seen.Len())
	seen.Ascend(func(p domain.Money) bool {
		prices = append(prices, p)
		return true
	})
	return prices
}
