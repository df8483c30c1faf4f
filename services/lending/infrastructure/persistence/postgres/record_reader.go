package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ghuser/lendingdesk/pkg/database"
	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

const (
	dialectPostgres = "postgres"

	tableRecords = "lending_records"
	tableItems   = "catalog_items"
	aliasRecord  = "r"
	aliasItem    = "i"

	colID          = "id"
	colHolderID    = "holder_id"
	colItemID      = "item_id"
	colBorrowedAt  = "borrowed_at"
	colDueAt       = "due_at"
	colReturnedAt  = "returned_at"
	colStatus      = "status"
	colTitle       = "title"
	colStock       = "stock_quantity"
	colTotalCopies = "total_copies"
	aliasItemTitle = "item_title"
	statusBorrowed = "borrowed"
	statusReturned = "returned"
)

// RecordReader implements repositories.RecordReader and
// repositories.OverdueReader. Reads see only committed data and take no locks.
type RecordReader struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

// NewRecordReader returns a RecordReader over the shared pool.
func NewRecordReader(db *database.Database) *RecordReader {
	return &RecordReader{
		db:      sqlx.NewDb(db.DB(), database.DriverName),
		dialect: goqu.Dialect(dialectPostgres),
	}
}

func rcol(name string) exp.IdentifierExpression { return goqu.I(aliasRecord + "." + name) }

func (r *RecordReader) selectRecords() *goqu.SelectDataset {
	return r.dialect.
		From(goqu.T(tableRecords).As(aliasRecord)).
		Join(goqu.T(tableItems).As(aliasItem), goqu.On(goqu.I(aliasItem+"."+colID).Eq(rcol(colItemID)))).
		Select(
			rcol(colID), rcol(colHolderID), rcol(colItemID),
			rcol(colBorrowedAt), rcol(colDueAt), rcol(colReturnedAt), rcol(colStatus),
			goqu.I(aliasItem+"."+colTitle).As(aliasItemTitle),
		)
}

// statusCondition expresses an effective status as a predicate at now.
func statusCondition(status models.Status, now time.Time) (exp.Expression, error) {
	switch status {
	case models.StatusReturned:
		return rcol(colStatus).Eq(statusReturned), nil
	case models.StatusBorrowed:
		return goqu.And(rcol(colStatus).Eq(statusBorrowed), rcol(colDueAt).Gte(now)), nil
	case models.StatusOverdue:
		return goqu.And(rcol(colStatus).Eq(statusBorrowed), rcol(colDueAt).Lt(now)), nil
	default:
		return nil, fmt.Errorf("unknown status %q", status)
	}
}

func (r *RecordReader) buildListQuery(filter repositories.RecordFilter, now time.Time) (string, []any, error) {
	ds := r.selectRecords().Order(rcol(colBorrowedAt).Desc(), rcol(colID).Desc())

	if filter.HolderID != nil {
		ds = ds.Where(rcol(colHolderID).Eq(filter.HolderID.String()))
	}
	if filter.Status != nil {
		cond, err := statusCondition(*filter.Status, now)
		if err != nil {
			return "", nil, err
		}
		ds = ds.Where(cond)
	}
	if filter.Limit > 0 {
		ds = ds.Limit(uint(filter.Limit))
	}
	if filter.Offset > 0 {
		ds = ds.Offset(uint(filter.Offset))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("build list query: %w", err)
	}
	return query, args, nil
}

// List implements repositories.RecordReader.
func (r *RecordReader) List(ctx context.Context, filter repositories.RecordFilter, now time.Time) ([]*models.LendingRecord, error) {
	query, args, err := r.buildListQuery(filter, now)
	if err != nil {
		return nil, err
	}

	var rows []recordRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	out := make([]*models.LendingRecord, len(rows))
	for i, row := range rows {
		out[i] = row.toModel()
	}
	return out, nil
}

// GetByID implements repositories.RecordReader.
func (r *RecordReader) GetByID(ctx context.Context, recordID uuid.UUID) (*models.LendingRecord, error) {
	query, args, err := r.selectRecords().
		Where(rcol(colID).Eq(recordID.String())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	var row recordRow
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("get record: %w", err)
	}
	return row.toModel(), nil
}

// Delete implements repositories.RecordReader. The status guard in the
// statement keeps a concurrent borrow-and-return race from deleting an
// active loan that the caller checked a moment ago.
func (r *RecordReader) Delete(ctx context.Context, recordID uuid.UUID) error {
	query, args, err := r.dialect.
		Delete(tableRecords).
		Where(goqu.C(colID).Eq(recordID.String()), goqu.C(colStatus).Eq(statusReturned)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return r.deleteMiss(ctx, recordID)
	}
	return nil
}

// deleteMiss tells an absent record from one the status guard kept.
func (r *RecordReader) deleteMiss(ctx context.Context, recordID uuid.UUID) error {
	query, args, err := r.dialect.
		From(tableRecords).
		Select(goqu.L("1")).
		Where(goqu.C(colID).Eq(recordID.String())).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build exists query: %w", err)
	}

	var one int
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrRecordNotFound
		}
		return fmt.Errorf("check record: %w", err)
	}
	return domain.ErrRecordActive
}

// CountOverdue implements repositories.OverdueReader.
func (r *RecordReader) CountOverdue(ctx context.Context, now time.Time) (int, error) {
	cond, _ := statusCondition(models.StatusOverdue, now)
	query, args, err := r.dialect.
		From(goqu.T(tableRecords).As(aliasRecord)).
		Select(goqu.COUNT(goqu.Star())).
		Where(cond).
		Prepared(true).
		ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build overdue query: %w", err)
	}

	var n int
	if err := r.db.GetContext(ctx, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count overdue: %w", err)
	}
	return n, nil
}

var (
	_ repositories.RecordReader  = (*RecordReader)(nil)
	_ repositories.OverdueReader = (*RecordReader)(nil)
)
