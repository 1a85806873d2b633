package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/efreitasn/stockmatch/internal/domain"
)

const orderColumns = `id, user_id, stock_id, type, quantity, price_per_share,
	remaining_quantity, fees, status, created_at, updated_at`

type orderRepo struct {
	q querier
}

func (r orderRepo) Save(ctx context.Context, o *domain.Order) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			remaining_quantity = excluded.remaining_quantity,
			fees = excluded.fees,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		o.ID, o.UserID, o.StockID, string(o.Type), o.Quantity, o.PricePerShare,
		o.RemainingQuantity, o.Fees, string(o.Status), toUnix(o.CreatedAt), toUnix(o.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save order %s: %w", o.ID, err)
	}
	return nil
}

func (r orderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return o, nil
}

func (r orderRepo) FindPendingByStock(ctx context.Context, stockID string, typ domain.OrderType) ([]*domain.Order, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT `+orderColumns+` FROM orders
		WHERE stock_id = ? AND type = ? AND status IN (?, ?)
		ORDER BY rowid`,
		stockID, string(typ), string(domain.OrderStatusPending), string(domain.OrderStatusPartiallyFilled),
	)
	if err != nil {
		return nil, fmt.Errorf("find pending orders: %w", err)
	}
	return collectOrders(rows)
}

func (r orderRepo) ListByUser(ctx context.Context, userID string, status *domain.OrderStatus, page, limit int) ([]*domain.Order, int, error) {
	where := `WHERE user_id = ?`
	args := []any{userID}
	if status != nil {
		where += ` AND status = ?`
		args = append(args, string(*status))
	}

	var total int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	offset := (page - 1) * limit
	if offset < 0 || offset >= total {
		return []*domain.Order{}, total, nil
	}

	rows, err := r.q.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders `+where+` ORDER BY rowid DESC LIMIT ? OFFSET ?`,
		append(args, limit, offset)...,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	orders, err := collectOrders(rows)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*domain.Order, error) {
	var (
		o                domain.Order
		typ, status      string
		created, updated int64
	)
	if err := s.Scan(&o.ID, &o.UserID, &o.StockID, &typ, &o.Quantity, &o.PricePerShare,
		&o.RemainingQuantity, &o.Fees, &status, &created, &updated); err != nil {
		return nil, err
	}
	o.Type = domain.OrderType(typ)
	o.Status = domain.OrderStatus(status)
	o.CreatedAt = fromUnix(created)
	o.UpdatedAt = fromUnix(updated)
	return &o, nil
}

func collectOrders(rows *sql.Rows) ([]*domain.Order, error) {
	defer rows.Close()

	result := make([]*domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		result = append(result, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return result, nil
}
