package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/efreitasn/stockmatch/internal/domain"
)

const portfolioColumns = `id, user_id, stock_id, quantity, average_purchase_price, created_at, updated_at`

type portfolioRepo struct {
	q querier
}

func (r portfolioRepo) FindByUserAndStock(ctx context.Context, userID, stockID string) (*domain.Portfolio, error) {
	row := r.q.QueryRowContext(ctx,
		`SELECT `+portfolioColumns+` FROM portfolios WHERE user_id = ? AND stock_id = ?`, userID, stockID)
	p, err := scanPortfolio(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPortfolioNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio: %w", err)
	}
	return p, nil
}

func (r portfolioRepo) ListByUser(ctx context.Context, userID string) ([]*domain.Portfolio, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT `+portfolioColumns+` FROM portfolios WHERE user_id = ? ORDER BY rowid`, userID)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.Portfolio, 0)
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("scan portfolio: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolios: %w", err)
	}
	return result, nil
}

func (r portfolioRepo) Save(ctx context.Context, p *domain.Portfolio) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO portfolios (`+portfolioColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			quantity = excluded.quantity,
			average_purchase_price = excluded.average_purchase_price,
			updated_at = excluded.updated_at`,
		p.ID, p.UserID, p.StockID, p.Quantity, p.AveragePurchasePrice, toUnix(p.CreatedAt), toUnix(p.UpdatedAt),
	)
	if isUniqueViolation(err, "portfolios.user_id") {
		return &domain.ValidationError{Message: "portfolio already exists for user and stock"}
	}
	if err != nil {
		return fmt.Errorf("save portfolio %s: %w", p.ID, err)
	}
	return nil
}

func scanPortfolio(sc scanner) (*domain.Portfolio, error) {
	var (
		p                domain.Portfolio
		created, updated int64
	)
	if err := sc.Scan(&p.ID, &p.UserID, &p.StockID, &p.Quantity, &p.AveragePurchasePrice, &created, &updated); err != nil {
		return nil, err
	}
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	return &p, nil
}
