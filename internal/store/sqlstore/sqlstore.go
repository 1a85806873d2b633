// Package sqlstore implements store.Store on SQLite using the pure Go
// modernc.org/sqlite driver.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/efreitasn/stockmatch/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS stocks (
	id            TEXT PRIMARY KEY,
	symbol        TEXT NOT NULL UNIQUE,
	company_name  TEXT NOT NULL,
	status        TEXT NOT NULL,
	current_price TEXT,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
	id                 TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL,
	stock_id           TEXT NOT NULL,
	type               TEXT NOT NULL,
	quantity           INTEGER NOT NULL,
	price_per_share    TEXT NOT NULL,
	remaining_quantity INTEGER NOT NULL,
	fees               TEXT NOT NULL,
	status             TEXT NOT NULL,
	created_at         INTEGER NOT NULL,
	updated_at         INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_book ON orders (stock_id, type, status);
CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id);

CREATE TABLE IF NOT EXISTS portfolios (
	id                     TEXT PRIMARY KEY,
	user_id                TEXT NOT NULL,
	stock_id               TEXT NOT NULL,
	quantity               INTEGER NOT NULL,
	average_purchase_price TEXT NOT NULL,
	created_at             INTEGER NOT NULL,
	updated_at             INTEGER NOT NULL,
	UNIQUE (user_id, stock_id)
);

CREATE TABLE IF NOT EXISTS trades (
	id            TEXT PRIMARY KEY,
	stock_id      TEXT NOT NULL,
	buy_order_id  TEXT NOT NULL,
	sell_order_id TEXT NOT NULL,
	buyer_id      TEXT NOT NULL,
	seller_id     TEXT NOT NULL,
	quantity      INTEGER NOT NULL,
	price         TEXT NOT NULL,
	executed_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_stock_time ON trades (stock_id, executed_at);
`

// querier is the subset of *sql.DB and *sql.Tx the repositories need.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a SQLite-backed store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database file at path and applies
// the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	if path != ":memory:" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		path = abs
	}

	db, err := sql.Open("sqlite", connectionString(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:"
	// databases shared across calls.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection. The schema is not applied.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func connectionString(path string) string {
	var b strings.Builder
	b.WriteString(path)
	b.WriteString("?_pragma=journal_mode(WAL)")
	b.WriteString("&_pragma=synchronous(NORMAL)")
	b.WriteString("&_pragma=busy_timeout(5000)")
	b.WriteString("&_pragma=foreign_keys(1)")
	return b.String()
}

// Migrate creates the tables and indexes if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Orders() store.OrderRepository         { return orderRepo{q: s.db} }
func (s *Store) Stocks() store.StockRepository         { return stockRepo{q: s.db} }
func (s *Store) Portfolios() store.PortfolioRepository { return portfolioRepo{q: s.db} }
func (s *Store) Trades() store.TradeRepository         { return tradeRepo{q: s.db} }

// InTx runs fn inside a database transaction, rolling back on any error.
func (s *Store) InTx(ctx context.Context, fn func(store.Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(txRepos{q: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

type txRepos struct {
	q querier
}

func (r txRepos) Orders() store.OrderRepository         { return orderRepo{q: r.q} }
func (r txRepos) Stocks() store.StockRepository         { return stockRepo{q: r.q} }
func (r txRepos) Portfolios() store.PortfolioRepository { return portfolioRepo{q: r.q} }
func (r txRepos) Trades() store.TradeRepository         { return tradeRepo{q: r.q} }

func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func isUniqueViolation(err error, column string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+column)
}
