package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
)

const (
	insertRecordSQL = `
INSERT INTO lending_records (id, holder_id, item_id, borrowed_at, due_at, status)
VALUES ($1, $2, $3, $4, $5, 'borrowed')`

	lockRecordSQL = `
SELECT id, holder_id, item_id, borrowed_at, due_at, returned_at, status
FROM lending_records
WHERE id = $1
FOR UPDATE`

	markReturnedSQL = `UPDATE lending_records SET status = 'returned', returned_at = $2 WHERE id = $1`

	hasActiveLoanSQL = `
SELECT EXISTS (
    SELECT 1 FROM lending_records
    WHERE holder_id = $1 AND item_id = $2 AND status = 'borrowed'
)`
)

type recordStore struct {
	tx *sql.Tx
}

func (s *recordStore) Create(ctx context.Context, holderID, itemID uuid.UUID, borrowedAt, dueAt time.Time) (*models.LendingRecord, error) {
	r := &models.LendingRecord{
		ID:         uuid.New(),
		HolderID:   holderID,
		ItemID:     itemID,
		BorrowedAt: borrowedAt.UTC(),
		DueAt:      dueAt.UTC(),
		Status:     models.StatusBorrowed,
	}
	if _, err := s.tx.ExecContext(ctx, insertRecordSQL, r.ID, r.HolderID, r.ItemID, r.BorrowedAt, r.DueAt); err != nil {
		return nil, mapPgError(err, domain.ErrItemNotFound)
	}
	return r, nil
}

func (s *recordStore) LockAndGetByID(ctx context.Context, recordID uuid.UUID) (*models.LendingRecord, error) {
	var row recordRow
	err := s.tx.QueryRowContext(ctx, lockRecordSQL, recordID).Scan(
		&row.ID, &row.HolderID, &row.ItemID, &row.BorrowedAt, &row.DueAt, &row.ReturnedAt, &row.Status,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("lock record: %w", err)
	}
	return row.toModel(), nil
}

func (s *recordStore) MarkReturned(ctx context.Context, recordID uuid.UUID, returnedAt time.Time) error {
	res, err := s.tx.ExecContext(ctx, markReturnedSQL, recordID, returnedAt.UTC())
	if err != nil {
		return fmt.Errorf("mark returned: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (s *recordStore) HasActiveLoan(ctx context.Context, holderID, itemID uuid.UUID) (bool, error) {
	var exists bool
	if err := s.tx.QueryRowContext(ctx, hasActiveLoanSQL, holderID, itemID).Scan(&exists); err != nil {
		return false, fmt.Errorf("has active loan: %w", err)
	}
	return exists, nil
}

// recordRow is the scan target shared by the tx path and the query facade.
type recordRow struct {
	ID         uuid.UUID    `db:"id"`
	HolderID   uuid.UUID    `db:"holder_id"`
	ItemID     uuid.UUID    `db:"item_id"`
	BorrowedAt time.Time    `db:"borrowed_at"`
	DueAt      time.Time    `db:"due_at"`
	ReturnedAt sql.NullTime `db:"returned_at"`
	Status     string       `db:"status"`
	ItemTitle  string       `db:"item_title"`
}

func (r recordRow) toModel() *models.LendingRecord {
	m := &models.LendingRecord{
		ID:         r.ID,
		HolderID:   r.HolderID,
		ItemID:     r.ItemID,
		BorrowedAt: r.BorrowedAt.UTC(),
		DueAt:      r.DueAt.UTC(),
		Status:     models.Status(r.Status),
		ItemTitle:  r.ItemTitle,
	}
	if r.ReturnedAt.Valid {
		t := r.ReturnedAt.Time.UTC()
		m.ReturnedAt = &t
	}
	return m
}
