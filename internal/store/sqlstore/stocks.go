package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/stockmatch/internal/domain"
)

const stockColumns = `id, symbol, company_name, status, current_price, created_at, updated_at`

type stockRepo struct {
	q querier
}

func (r stockRepo) FindByID(ctx context.Context, id string) (*domain.Stock, error) {
	return r.findOne(ctx, `SELECT `+stockColumns+` FROM stocks WHERE id = ?`, id)
}

func (r stockRepo) FindBySymbol(ctx context.Context, symbol string) (*domain.Stock, error) {
	return r.findOne(ctx, `SELECT `+stockColumns+` FROM stocks WHERE symbol = ?`, symbol)
}

func (r stockRepo) findOne(ctx context.Context, query string, arg string) (*domain.Stock, error) {
	s, err := scanStock(r.q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrStockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get stock %s: %w", arg, err)
	}
	return s, nil
}

func (r stockRepo) Save(ctx context.Context, s *domain.Stock) error {
	var price any
	if s.CurrentPrice != nil {
		price = s.CurrentPrice.String()
	}
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO stocks (`+stockColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			symbol = excluded.symbol,
			company_name = excluded.company_name,
			status = excluded.status,
			current_price = excluded.current_price,
			updated_at = excluded.updated_at`,
		s.ID, s.Symbol, s.CompanyName, string(s.Status), price, toUnix(s.CreatedAt), toUnix(s.UpdatedAt),
	)
	if isUniqueViolation(err, "stocks.symbol") {
		return domain.ErrStockAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("save stock %s: %w", s.Symbol, err)
	}
	return nil
}

func (r stockRepo) List(ctx context.Context) ([]*domain.Stock, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+stockColumns+` FROM stocks ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Stock, 0)
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stocks: %w", err)
	}
	return result, nil
}

func scanStock(sc scanner) (*domain.Stock, error) {
	var (
		s                domain.Stock
		status           string
		price            decimal.NullDecimal
		created, updated int64
	)
	if err := sc.Scan(&s.ID, &s.Symbol, &s.CompanyName, &status, &price, &created, &updated); err != nil {
		return nil, err
	}
	s.Status = domain.StockStatus(status)
	if price.Valid {
		p := domain.NewMoney(price.Decimal)
		s.CurrentPrice = &p
	}
	s.CreatedAt = fromUnix(created)
	s.UpdatedAt = fromUnix(updated)
	return &s, nil
}
