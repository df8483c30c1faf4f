// Package postgres implements the lending stores on PostgreSQL.
//
// The borrow and return paths use hand-written statements with FOR UPDATE row
// locks on a *sql.Tx. The read-only query facade builds its SQL with goqu and
// scans with sqlx.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ghuser/lendingdesk/pkg/database"
	"github.com/ghuser/lendingdesk/pkg/events"
	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

const (
	pgCheckViolation      = "23514"
	pgForeignKeyViolation = "23503"
)

// ErrOutboxUnavailable is returned by Outbox.Append when the Transactor was
// built without an event bus.
var ErrOutboxUnavailable = errors.New("outbox not configured")

// OutboxPublisher writes messages on an open transaction. *events.EventBus
// satisfies it.
type OutboxPublisher interface {
	PublishInTx(ctx context.Context, tx *sql.Tx, topic string, msgs ...*message.Message) error
}

// Transactor implements repositories.Transactor on a database.Database.
type Transactor struct {
	db     *database.Database
	outbox OutboxPublisher
}

// NewTransactor returns a Transactor. Loan events are written to outbox on
// the same transaction as the stock change.
func NewTransactor(db *database.Database, outbox OutboxPublisher) *Transactor {
	return &Transactor{db: db, outbox: outbox}
}

// WithinTx implements repositories.Transactor.
func (t *Transactor) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Tx) error) error {
	return t.db.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &pgTx{tx: tx, outbox: t.outbox})
	})
}

type pgTx struct {
	tx     *sql.Tx
	outbox OutboxPublisher
}

func (t *pgTx) Inventory() repositories.InventoryStore   { return &inventoryStore{tx: t.tx} }
func (t *pgTx) Records() repositories.LendingRecordStore { return &recordStore{tx: t.tx} }
func (t *pgTx) Outbox() repositories.Outbox              { return &txOutbox{tx: t.tx, pub: t.outbox} }

type txOutbox struct {
	tx  *sql.Tx
	pub OutboxPublisher
}

func (o *txOutbox) Append(ctx context.Context, topic string, evt events.Envelope) error {
	if o.pub == nil {
		return ErrOutboxUnavailable
	}
	msg, err := events.NewMessage(evt)
	if err != nil {
		return err
	}
	if err := o.pub.PublishInTx(ctx, o.tx, topic, msg); err != nil {
		return fmt.Errorf("outbox %s: %w", topic, err)
	}
	return nil
}

// mapPgError translates constraint violations into domain errors and leaves
// everything else for the manager to classify as transient.
func mapPgError(err error, notFound error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgCheckViolation:
		return fmt.Errorf("%w: %s", domain.ErrStockInvariant, pgErr.ConstraintName)
	case pgForeignKeyViolation:
		if notFound != nil {
			return notFound
		}
	}
	return err
}
