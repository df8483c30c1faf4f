package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/pkg/events"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
)

// Transactor opens a unit of work. Everything done through tx inside fn
// commits together when fn returns nil and rolls back together otherwise.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the handle passed to a unit of work. Stores obtained from it run on
// the same underlying transaction.
type Tx interface {
	Inventory() InventoryStore
	Records() LendingRecordStore
	Outbox() Outbox
}

// InventoryStore moves stock. Only reachable through a Tx.
type InventoryStore interface {
	// LockAndGetStock locks the item's stock row until the Tx ends and
	// returns the current count. Returns domain.ErrItemNotFound if absent.
	LockAndGetStock(ctx context.Context, itemID uuid.UUID) (int, error)

	// Decrement lowers stock by one. The caller must hold the lock and have
	// checked stock > 0.
	Decrement(ctx context.Context, itemID uuid.UUID) error

	// Increment raises stock by one. Returns domain.ErrStockInvariant if that
	// would exceed total copies.
	Increment(ctx context.Context, itemID uuid.UUID) error
}

// LendingRecordStore persists lending records inside a Tx.
type LendingRecordStore interface {
	// Create inserts a Borrowed record and returns it with its assigned ID.
	Create(ctx context.Context, holderID, itemID uuid.UUID, borrowedAt, dueAt time.Time) (*models.LendingRecord, error)

	// LockAndGetByID locks the record until the Tx ends.
	// Returns domain.ErrRecordNotFound if absent.
	LockAndGetByID(ctx context.Context, recordID uuid.UUID) (*models.LendingRecord, error)

	MarkReturned(ctx context.Context, recordID uuid.UUID, returnedAt time.Time) error

	// HasActiveLoan reports whether holder has a non-returned record for item.
	HasActiveLoan(ctx context.Context, holderID, itemID uuid.UUID) (bool, error)
}

// Outbox queues domain events on the Tx. They become visible to subscribers
// only once the Tx commits.
type Outbox interface {
	Append(ctx context.Context, topic string, evt events.Envelope) error
}

// RecordFilter narrows ListRecords. Nil fields match everything.
type RecordFilter struct {
	HolderID *uuid.UUID
	// Status filters on the effective status, so Overdue selects Borrowed
	// records past due and Borrowed selects those not yet due.
	Status *models.Status
	Limit  int
	Offset int
}

// RecordReader serves reads outside any transaction. Results may be stale by
// the time the caller looks at them.
type RecordReader interface {
	// List returns matching records ordered by borrowed_at descending.
	List(ctx context.Context, filter RecordFilter, now time.Time) ([]*models.LendingRecord, error)

	// GetByID returns domain.ErrRecordNotFound if absent.
	GetByID(ctx context.Context, recordID uuid.UUID) (*models.LendingRecord, error)

	// Delete removes a returned record. It returns domain.ErrRecordNotFound if
	// absent and domain.ErrRecordActive if the record is not returned.
	Delete(ctx context.Context, recordID uuid.UUID) error
}

// CatalogReader is the narrow view this context has of the catalog.
type CatalogReader interface {
	// GetItem returns domain.ErrItemNotFound if absent.
	GetItem(ctx context.Context, itemID uuid.UUID) (*models.CatalogItem, error)

	// ListItems returns every item, used to reconcile the availability cache.
	ListItems(ctx context.Context) ([]*models.CatalogItem, error)
}

// OverdueReader feeds the overdue report.
type OverdueReader interface {
	CountOverdue(ctx context.Context, now time.Time) (int, error)
}
