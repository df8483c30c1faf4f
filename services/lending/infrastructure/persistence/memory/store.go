// Package memory is an in-process implementation of the lending stores.
//
// Row locks are channel semaphores held from first touch until the unit of
// work ends, which gives the same serialization as SELECT ... FOR UPDATE.
// Writes are applied in place and undone on rollback, so a concurrent reader
// can observe uncommitted state; readers here are display-only anyway.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ghuser/lendingdesk/pkg/events"
	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

// Op names a store operation that can be made to fail.
type Op string

const (
	OpLockStock     Op = "lock_stock"
	OpDecrement     Op = "decrement"
	OpIncrement     Op = "increment"
	OpCreateRecord  Op = "create_record"
	OpLockRecord    Op = "lock_record"
	OpMarkReturned  Op = "mark_returned"
	OpHasActiveLoan Op = "has_active_loan"
	OpAppendEvent   Op = "append_event"
	OpCommit        Op = "commit"
)

// PublishedEvent is an outbox entry that survived commit.
type PublishedEvent struct {
	Topic string
	Event events.Envelope
}

type rowLock chan struct{}

func newRowLock() rowLock { return make(rowLock, 1) }

func (l rowLock) acquire(ctx context.Context) error {
	select {
	case l <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l rowLock) release() { <-l }

type itemRow struct {
	lock rowLock
	item models.CatalogItem
}

type recordRow struct {
	lock   rowLock
	record models.LendingRecord
}

// Store holds catalog items, lending records and the committed outbox.
// The zero value is not usable; call New.
type Store struct {
	mu        sync.Mutex
	items     map[uuid.UUID]*itemRow
	records   map[uuid.UUID]*recordRow
	published []PublishedEvent
	faults    map[Op]error
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		items:   make(map[uuid.UUID]*itemRow),
		records: make(map[uuid.UUID]*recordRow),
		faults:  make(map[Op]error),
	}
}

// Seed adds or replaces a catalog item.
func (s *Store) Seed(item models.CatalogItem) error {
	if item.StockQuantity < 0 || item.StockQuantity > item.TotalCopies {
		return fmt.Errorf("seed item %s: %w", item.ID, domain.ErrStockInvariant)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if row, ok := s.items[item.ID]; ok {
		row.item = item
		return nil
	}
	s.items[item.ID] = &itemRow{lock: newRowLock(), item: item}
	return nil
}

// InjectFault makes every later call of op fail with err until cleared with
// a nil err.
func (s *Store) InjectFault(op Op, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults[op]
}

// Stock returns the current stock of itemID, or -1 if it does not exist.
func (s *Store) Stock(itemID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.items[itemID]
	if !ok {
		return -1
	}
	return row.item.StockQuantity
}

// ActiveLoans counts non-returned records for itemID.
func (s *Store) ActiveLoans(itemID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.records {
		if row.record.ItemID == itemID && row.record.Status != models.StatusReturned {
			n++
		}
	}
	return n
}

// Published returns a copy of every committed outbox entry in commit order.
func (s *Store) Published() []PublishedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PublishedEvent(nil), s.published...)
}

// WithinTx implements repositories.Transactor.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repositories.Tx) error) (err error) {
	tx := &memTx{store: s, held: make(map[rowLock]struct{})}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	if err = s.fault(OpCommit); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	tx.commit()
	return nil
}

// memTx tracks the locks and undo steps of one unit of work.
type memTx struct {
	store   *Store
	held    map[rowLock]struct{}
	undo    []func()
	pending []PublishedEvent
}

func (t *memTx) Inventory() repositories.InventoryStore   { return inventoryStore{t} }
func (t *memTx) Records() repositories.LendingRecordStore { return recordStore{t} }
func (t *memTx) Outbox() repositories.Outbox              { return outbox{t} }

func (t *memTx) lock(ctx context.Context, l rowLock) error {
	if _, ok := t.held[l]; ok {
		return nil
	}
	if err := l.acquire(ctx); err != nil {
		return err
	}
	t.held[l] = struct{}{}
	return nil
}

func (t *memTx) commit() {
	t.store.mu.Lock()
	t.store.published = append(t.store.published, t.pending...)
	t.store.mu.Unlock()
	t.releaseAll()
}

func (t *memTx) rollback() {
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.releaseAll()
}

func (t *memTx) releaseAll() {
	for l := range t.held {
		l.release()
	}
	t.held = nil
}

func (t *memTx) itemRow(id uuid.UUID) (*itemRow, bool) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	row, ok := t.store.items[id]
	return row, ok
}

func (t *memTx) recordRow(id uuid.UUID) (*recordRow, bool) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	row, ok := t.store.records[id]
	return row, ok
}

// lockItem locks the item row, like the implicit row lock an UPDATE takes.
func (t *memTx) lockItem(ctx context.Context, id uuid.UUID) (*itemRow, error) {
	row, ok := t.itemRow(id)
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrItemNotFound)
	}
	if err := t.lock(ctx, row.lock); err != nil {
		return nil, err
	}
	return row, nil
}

func (t *memTx) lockRecord(ctx context.Context, id uuid.UUID) (*recordRow, error) {
	row, ok := t.recordRow(id)
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}
	if err := t.lock(ctx, row.lock); err != nil {
		return nil, err
	}
	// The record may have been deleted while we waited.
	if _, ok := t.recordRow(id); !ok {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrRecordNotFound)
	}
	return row, nil
}

type inventoryStore struct{ tx *memTx }

func (s inventoryStore) LockAndGetStock(ctx context.Context, itemID uuid.UUID) (int, error) {
	if err := s.tx.store.fault(OpLockStock); err != nil {
		return 0, err
	}
	row, err := s.tx.lockItem(ctx, itemID)
	if err != nil {
		return 0, err
	}
	s.tx.store.mu.Lock()
	defer s.tx.store.mu.Unlock()
	return row.item.StockQuantity, nil
}

func (s inventoryStore) Decrement(ctx context.Context, itemID uuid.UUID) error {
	return s.adjust(ctx, itemID, -1, OpDecrement)
}

func (s inventoryStore) Increment(ctx context.Context, itemID uuid.UUID) error {
	return s.adjust(ctx, itemID, +1, OpIncrement)
}

func (s inventoryStore) adjust(ctx context.Context, itemID uuid.UUID, delta int, op Op) error {
	if err := s.tx.store.fault(op); err != nil {
		return err
	}
	row, err := s.tx.lockItem(ctx, itemID)
	if err != nil {
		return err
	}

	s.tx.store.mu.Lock()
	defer s.tx.store.mu.Unlock()
	next := row.item.StockQuantity + delta
	if next < 0 || next > row.item.TotalCopies {
		return fmt.Errorf("item %s stock %d: %w", itemID, next, domain.ErrStockInvariant)
	}
	row.item.StockQuantity = next
	s.tx.undo = append(s.tx.undo, func() { row.item.StockQuantity -= delta })
	return nil
}

type recordStore struct{ tx *memTx }

func (s recordStore) Create(ctx context.Context, holderID, itemID uuid.UUID, borrowedAt, dueAt time.Time) (*models.LendingRecord, error) {
	if err := s.tx.store.fault(OpCreateRecord); err != nil {
		return nil, err
	}
	if _, ok := s.tx.itemRow(itemID); !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrItemNotFound)
	}

	row := &recordRow{
		lock: newRowLock(),
		record: models.LendingRecord{
			ID:         uuid.New(),
			HolderID:   holderID,
			ItemID:     itemID,
			BorrowedAt: borrowedAt,
			DueAt:      dueAt,
			Status:     models.StatusBorrowed,
		},
	}
	// A fresh row is locked by its inserter until commit.
	if err := s.tx.lock(ctx, row.lock); err != nil {
		return nil, err
	}

	s.tx.store.mu.Lock()
	s.tx.store.records[row.record.ID] = row
	s.tx.store.mu.Unlock()
	s.tx.undo = append(s.tx.undo, func() { delete(s.tx.store.records, row.record.ID) })

	out := row.record
	return &out, nil
}

func (s recordStore) LockAndGetByID(ctx context.Context, recordID uuid.UUID) (*models.LendingRecord, error) {
	if err := s.tx.store.fault(OpLockRecord); err != nil {
		return nil, err
	}
	row, err := s.tx.lockRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	s.tx.store.mu.Lock()
	defer s.tx.store.mu.Unlock()
	out := row.record
	return &out, nil
}

func (s recordStore) MarkReturned(ctx context.Context, recordID uuid.UUID, returnedAt time.Time) error {
	if err := s.tx.store.fault(OpMarkReturned); err != nil {
		return err
	}
	row, err := s.tx.lockRecord(ctx, recordID)
	if err != nil {
		return err
	}

	s.tx.store.mu.Lock()
	defer s.tx.store.mu.Unlock()
	prevStatus, prevReturnedAt := row.record.Status, row.record.ReturnedAt
	at := returnedAt
	row.record.Status = models.StatusReturned
	row.record.ReturnedAt = &at
	s.tx.undo = append(s.tx.undo, func() {
		row.record.Status = prevStatus
		row.record.ReturnedAt = prevReturnedAt
	})
	return nil
}

func (s recordStore) HasActiveLoan(_ context.Context, holderID, itemID uuid.UUID) (bool, error) {
	if err := s.tx.store.fault(OpHasActiveLoan); err != nil {
		return false, err
	}
	s.tx.store.mu.Lock()
	defer s.tx.store.mu.Unlock()
	for _, row := range s.tx.store.records {
		r := row.record
		if r.HolderID == holderID && r.ItemID == itemID && r.Status != models.StatusReturned {
			return true, nil
		}
	}
	return false, nil
}

type outbox struct{ tx *memTx }

func (o outbox) Append(_ context.Context, topic string, evt events.Envelope) error {
	if err := o.tx.store.fault(OpAppendEvent); err != nil {
		return err
	}
	o.tx.pending = append(o.tx.pending, PublishedEvent{Topic: topic, Event: evt})
	return nil
}

// List implements repositories.RecordReader.
func (s *Store) List(_ context.Context, filter repositories.RecordFilter, now time.Time) ([]*models.LendingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.LendingRecord, 0)
	for _, row := range s.records {
		r := row.record
		if filter.HolderID != nil && r.HolderID != *filter.HolderID {
			continue
		}
		if filter.Status != nil && r.EffectiveStatus(now) != *filter.Status {
			continue
		}
		if item, ok := s.items[r.ItemID]; ok {
			r.ItemTitle = item.item.Title
		}
		out = append(out, &r)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].BorrowedAt.Equal(out[j].BorrowedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].BorrowedAt.After(out[j].BorrowedAt)
	})

	if filter.Offset >= len(out) {
		return []*models.LendingRecord{}, nil
	}
	out = out[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetByID implements repositories.RecordReader.
func (s *Store) GetByID(_ context.Context, recordID uuid.UUID) (*models.LendingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.records[recordID]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", recordID, domain.ErrRecordNotFound)
	}
	r := row.record
	if item, ok := s.items[r.ItemID]; ok {
		r.ItemTitle = item.item.Title
	}
	return &r, nil
}

// Delete implements repositories.RecordReader. It waits for any transaction
// holding the record to finish and only removes returned records.
func (s *Store) Delete(ctx context.Context, recordID uuid.UUID) error {
	s.mu.Lock()
	row, ok := s.records[recordID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("record %s: %w", recordID, domain.ErrRecordNotFound)
	}
	if err := row.lock.acquire(ctx); err != nil {
		return err
	}
	defer row.lock.release()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[recordID]; !ok {
		return fmt.Errorf("record %s: %w", recordID, domain.ErrRecordNotFound)
	}
	// Re-checked under the row lock: the caller's view may have come from a
	// transaction that has since rolled back.
	if row.record.Status != models.StatusReturned {
		return fmt.Errorf("record %s: %w", recordID, domain.ErrRecordActive)
	}
	delete(s.records, recordID)
	return nil
}

// GetItem implements repositories.CatalogReader.
func (s *Store) GetItem(_ context.Context, itemID uuid.UUID) (*models.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrItemNotFound)
	}
	item := row.item
	return &item, nil
}

// ListItems implements repositories.CatalogReader.
func (s *Store) ListItems(_ context.Context) ([]*models.CatalogItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.CatalogItem, 0, len(s.items))
	for _, row := range s.items {
		item := row.item
		out = append(out, &item)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

// CountOverdue implements repositories.OverdueReader.
func (s *Store) CountOverdue(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.records {
		if row.record.EffectiveStatus(now) == models.StatusOverdue {
			n++
		}
	}
	return n, nil
}

var (
	_ repositories.Transactor    = (*Store)(nil)
	_ repositories.RecordReader  = (*Store)(nil)
	_ repositories.CatalogReader = (*Store)(nil)
	_ repositories.OverdueReader = (*Store)(nil)
)
