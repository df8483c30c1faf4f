package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ghuser/lendingdesk/pkg/logger"
	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/events"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
	domainsvcs "github.com/ghuser/lendingdesk/services/lending/domain/services"
)

// Policy holds the lending rules that are deployment decisions rather than
// invariants.
type Policy struct {
	// PrivilegedRole may return any holder's loan. Compared ignoring case.
	PrivilegedRole string
	// EnforceSingleActiveLoan rejects a second concurrent loan of the same
	// item by the same holder.
	EnforceSingleActiveLoan bool
}

// Option configures a LendingManager or LendingQueries.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides time.Now. Tests use it to pin borrow and due dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LendingManager runs borrow and return as single all-or-nothing units of
// work. It holds no state between calls and is safe for concurrent use; the
// per-item stock lock taken inside the transaction is the only serialization
// point.
type LendingManager struct {
	tx      repositories.Transactor
	records repositories.RecordReader
	policy  Policy
	log     logger.Logger
	now     func() time.Time
	inst    instruments
}

// NewLendingManager returns a LendingManager. records is used only by
// DeleteRecord, which runs outside a transaction.
func NewLendingManager(tx repositories.Transactor, records repositories.RecordReader, policy Policy, log logger.Logger, opts ...Option) *LendingManager {
	o := buildOptions(opts)
	return &LendingManager{
		tx:      tx,
		records: records,
		policy:  policy,
		log:     log,
		now:     o.now,
		inst:    newInstruments(),
	}
}

// Borrow lends one copy of itemID to holderID. The stock row is locked before
// it is read, so two borrowers racing for the last copy cannot both succeed.
//
// Returns ErrItemNotFound, ErrNotAvailable, ErrAlreadyBorrowed (policy on) or
// ErrTransient. On any error nothing was written.
func (m *LendingManager) Borrow(ctx context.Context, holderID, itemID uuid.UUID) (_ *models.LendingRecord, err error) {
	ctx, span := m.inst.tracer.Start(ctx, "LendingManager.Borrow", trace.WithAttributes(
		attribute.String("lending.holder_id", holderID.String()),
		attribute.String("lending.item_id", itemID.String()),
	))
	start := time.Now()
	defer func() {
		count(ctx, m.inst.borrowOutcomes, err)
		m.inst.observe(ctx, "borrow", start, err)
		finishSpan(span, err)
	}()

	var record *models.LendingRecord
	err = m.tx.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		stock, err := tx.Inventory().LockAndGetStock(ctx, itemID)
		if err != nil {
			return fmt.Errorf("lock stock for item %s: %w", itemID, err)
		}
		if err := domainsvcs.CanBorrow(stock); err != nil {
			return fmt.Errorf("borrow item %s: %w", itemID, err)
		}

		if m.policy.EnforceSingleActiveLoan {
			active, err := tx.Records().HasActiveLoan(ctx, holderID, itemID)
			if err != nil {
				return fmt.Errorf("check active loan: %w", err)
			}
			if active {
				return fmt.Errorf("borrow item %s: %w", itemID, domain.ErrAlreadyBorrowed)
			}
		}

		draft := models.NewLendingRecord(holderID, itemID, m.now())
		created, err := tx.Records().Create(ctx, holderID, itemID, draft.BorrowedAt, draft.DueAt)
		if err != nil {
			return fmt.Errorf("create lending record: %w", err)
		}

		if err := tx.Inventory().Decrement(ctx, itemID); err != nil {
			return fmt.Errorf("decrement stock for item %s: %w", itemID, err)
		}

		evt := events.NewLoanBorrowed(created.ID, holderID, itemID, created.BorrowedAt, created.DueAt)
		if err := tx.Outbox().Append(ctx, events.TopicLoanBorrowed, evt); err != nil {
			return fmt.Errorf("append borrowed event: %w", err)
		}

		record = created
		return nil
	})
	if err != nil {
		err = classify(err)
		m.logFailure(ctx, "borrow failed", err, "holder_id", holderID, "item_id", itemID)
		return nil, err
	}

	m.log.InfoContext(ctx, "item borrowed",
		"record_id", record.ID, "holder_id", holderID, "item_id", itemID, "due_at", record.DueAt)
	return record, nil
}

// Return closes the loan recordID on behalf of caller and puts the copy back.
// Only the holder or a privileged caller may return; authorization is checked
// before the record's state.
//
// Returns ErrRecordNotFound, ErrForbidden, ErrAlreadyReturned,
// ErrStockInvariant or ErrTransient. On any error nothing was written.
func (m *LendingManager) Return(ctx context.Context, recordID uuid.UUID, caller models.Identity) (_ *models.ReturnConfirmation, err error) {
	ctx, span := m.inst.tracer.Start(ctx, "LendingManager.Return", trace.WithAttributes(
		attribute.String("lending.record_id", recordID.String()),
		attribute.String("lending.caller_id", caller.HolderID.String()),
	))
	start := time.Now()
	defer func() {
		count(ctx, m.inst.returnOutcomes, err)
		m.inst.observe(ctx, "return", start, err)
		finishSpan(span, err)
	}()

	var confirmation *models.ReturnConfirmation
	err = m.tx.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		record, err := tx.Records().LockAndGetByID(ctx, recordID)
		if err != nil {
			return fmt.Errorf("lock record %s: %w", recordID, err)
		}
		if err := domainsvcs.CanReturn(record, caller, m.policy.PrivilegedRole); err != nil {
			return err
		}

		returnedAt := m.now().UTC()
		if err := tx.Records().MarkReturned(ctx, recordID, returnedAt); err != nil {
			return fmt.Errorf("mark record %s returned: %w", recordID, err)
		}
		if err := tx.Inventory().Increment(ctx, record.ItemID); err != nil {
			return fmt.Errorf("increment stock for item %s: %w", record.ItemID, err)
		}

		evt := events.NewLoanReturned(record.ID, record.HolderID, record.ItemID, caller.HolderID, returnedAt)
		if err := tx.Outbox().Append(ctx, events.TopicLoanReturned, evt); err != nil {
			return fmt.Errorf("append returned event: %w", err)
		}

		confirmation = &models.ReturnConfirmation{
			RecordID:   record.ID,
			ItemID:     record.ItemID,
			ReturnedAt: returnedAt,
		}
		return nil
	})
	if err != nil {
		err = classify(err)
		m.logFailure(ctx, "return failed", err, "record_id", recordID, "caller_id", caller.HolderID)
		return nil, err
	}

	m.log.InfoContext(ctx, "item returned",
		"record_id", confirmation.RecordID, "item_id", confirmation.ItemID, "caller_id", caller.HolderID)
	return confirmation, nil
}

// DeleteRecord hard-deletes a returned record. Active loans are kept so stock
// can never drift from the records that explain it.
//
// Returns ErrRecordNotFound, ErrRecordActive or ErrTransient.
func (m *LendingManager) DeleteRecord(ctx context.Context, recordID uuid.UUID) error {
	record, err := m.records.GetByID(ctx, recordID)
	if err != nil {
		return classify(fmt.Errorf("get record %s: %w", recordID, err))
	}
	if err := domainsvcs.CanDelete(record); err != nil {
		return err
	}
	if err := m.records.Delete(ctx, recordID); err != nil {
		return classify(fmt.Errorf("delete record %s: %w", recordID, err))
	}
	m.log.InfoContext(ctx, "lending record deleted", "record_id", recordID)
	return nil
}

func (m *LendingManager) logFailure(ctx context.Context, msg string, err error, args ...any) {
	args = append(args, "error", err, "outcome", outcomeOf(err))
	switch outcomeOf(err) {
	case "transient", "stock_invariant":
		m.log.ErrorContext(ctx, msg, args...)
	default:
		m.log.WarnContext(ctx, msg, args...)
	}
}
