package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/services/lending/domain"
)

const (
	lockStockSQL = `SELECT stock_quantity FROM catalog_items WHERE id = $1 FOR UPDATE`
	decrementSQL = `UPDATE catalog_items SET stock_quantity = stock_quantity - 1 WHERE id = $1`
	incrementSQL = `UPDATE catalog_items SET stock_quantity = stock_quantity + 1 WHERE id = $1`
)

type inventoryStore struct {
	tx *sql.Tx
}

func (s *inventoryStore) LockAndGetStock(ctx context.Context, itemID uuid.UUID) (int, error) {
	var stock int
	if err := s.tx.QueryRowContext(ctx, lockStockSQL, itemID).Scan(&stock); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrItemNotFound
		}
		return 0, fmt.Errorf("lock stock: %w", err)
	}
	return stock, nil
}

func (s *inventoryStore) Decrement(ctx context.Context, itemID uuid.UUID) error {
	return s.adjust(ctx, decrementSQL, itemID)
}

func (s *inventoryStore) Increment(ctx context.Context, itemID uuid.UUID) error {
	return s.adjust(ctx, incrementSQL, itemID)
}

func (s *inventoryStore) adjust(ctx context.Context, stmt string, itemID uuid.UUID) error {
	res, err := s.tx.ExecContext(ctx, stmt, itemID)
	if err != nil {
		return mapPgError(err, nil)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrItemNotFound
	}
	return nil
}
