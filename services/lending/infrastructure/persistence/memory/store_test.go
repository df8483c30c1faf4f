package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

func seeded(t *testing.T, stock, total int) (*Store, uuid.UUID) {
	t.Helper()
	s := New()
	id := uuid.New()
	require.NoError(t, s.Seed(models.CatalogItem{ID: id, Title: "Dune", StockQuantity: stock, TotalCopies: total}))
	return s, id
}

func TestSeed_RejectsInvalidStock(t *testing.T) {
	s := New()
	err := s.Seed(models.CatalogItem{ID: uuid.New(), StockQuantity: 4, TotalCopies: 3})
	assert.ErrorIs(t, err, domain.ErrStockInvariant)
	err = s.Seed(models.CatalogItem{ID: uuid.New(), StockQuantity: -1, TotalCopies: 3})
	assert.ErrorIs(t, err, domain.ErrStockInvariant)
}

func TestWithinTx_CommitAppliesWrites(t *testing.T) {
	s, item := seeded(t, 2, 2)
	holder := uuid.New()
	now := time.Now().UTC()

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		if _, err := tx.Inventory().LockAndGetStock(ctx, item); err != nil {
			return err
		}
		if _, err := tx.Records().Create(ctx, holder, item, now, now.Add(models.LoanPeriod)); err != nil {
			return err
		}
		return tx.Inventory().Decrement(ctx, item)
	})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Stock(item))
	assert.Equal(t, 1, s.ActiveLoans(item))
}

func TestWithinTx_RollbackUndoesWrites(t *testing.T) {
	s, item := seeded(t, 2, 2)
	boom := errors.New("boom")

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		now := time.Now()
		if _, err := tx.Records().Create(ctx, uuid.New(), item, now, now); err != nil {
			return err
		}
		if err := tx.Inventory().Decrement(ctx, item); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, 2, s.Stock(item))
	assert.Equal(t, 0, s.ActiveLoans(item))
	assert.Empty(t, s.Published())
}

func TestWithinTx_PanicRollsBackAndRepanics(t *testing.T) {
	s, item := seeded(t, 1, 1)

	assert.Panics(t, func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
			_ = tx.Inventory().Decrement(ctx, item)
			panic("kaboom")
		})
	})
	assert.Equal(t, 1, s.Stock(item))

	// The lock must have been released.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		_, err := tx.Inventory().LockAndGetStock(ctx, item)
		return err
	}))
}

func TestLockAndGetStock_HeldUntilCommit(t *testing.T) {
	s, item := seeded(t, 1, 1)

	locked := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
			if _, err := tx.Inventory().LockAndGetStock(ctx, item); err != nil {
				return err
			}
			close(locked)
			<-release
			return tx.Inventory().Decrement(ctx, item)
		})
	}()
	<-locked

	secondSaw := make(chan int, 1)
	go func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
			stock, err := tx.Inventory().LockAndGetStock(ctx, item)
			secondSaw <- stock
			return err
		})
	}()

	select {
	case <-secondSaw:
		t.Fatal("second transaction read stock while the first held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-firstDone)
	assert.Equal(t, 0, <-secondSaw, "second transaction must see the committed decrement")
}

func TestLockAndGetStock_CancelledWhileWaiting(t *testing.T) {
	s, item := seeded(t, 1, 1)

	locked := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
			_, _ = tx.Inventory().LockAndGetStock(ctx, item)
			close(locked)
			<-release
			return nil
		})
	}()
	<-locked
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := s.WithinTx(ctx, func(ctx context.Context, tx repositories.Tx) error {
		_, err := tx.Inventory().LockAndGetStock(ctx, item)
		return err
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLockAndGetStock_MissingItem(t *testing.T) {
	s := New()
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		_, err := tx.Inventory().LockAndGetStock(ctx, uuid.New())
		return err
	})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestIncrement_BeyondTotalCopies(t *testing.T) {
	s, item := seeded(t, 3, 3)
	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		return tx.Inventory().Increment(ctx, item)
	})
	assert.ErrorIs(t, err, domain.ErrStockInvariant)
	assert.Equal(t, 3, s.Stock(item))
}

func TestInjectFault(t *testing.T) {
	s, item := seeded(t, 1, 1)
	injected := errors.New("disk on fire")
	s.InjectFault(OpDecrement, injected)

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		return tx.Inventory().Decrement(ctx, item)
	})
	assert.ErrorIs(t, err, injected)

	s.InjectFault(OpDecrement, nil)
	err = s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		return tx.Inventory().Decrement(ctx, item)
	})
	assert.NoError(t, err)
	assert.Equal(t, 0, s.Stock(item))
}

func TestCommitFault_DiscardsOutbox(t *testing.T) {
	s, item := seeded(t, 1, 1)
	s.InjectFault(OpCommit, errors.New("commit lost"))

	err := s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.Inventory().Decrement(ctx, item); err != nil {
			return err
		}
		return tx.Outbox().Append(ctx, "lending.borrowed", nil)
	})
	require.Error(t, err)
	assert.Equal(t, 1, s.Stock(item))
	assert.Empty(t, s.Published())
}

func TestList_FilterAndOrder(t *testing.T) {
	s, item := seeded(t, 3, 3)
	alice, bob := uuid.New(), uuid.New()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	create := func(holder uuid.UUID, at time.Time) uuid.UUID {
		var id uuid.UUID
		require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
			r, err := tx.Records().Create(ctx, holder, item, at, at.Add(models.LoanPeriod))
			if err != nil {
				return err
			}
			id = r.ID
			return nil
		}))
		return id
	}
	oldest := create(alice, base)
	middle := create(bob, base.Add(time.Hour))
	newest := create(alice, base.Add(2*time.Hour))

	all, err := s.List(context.Background(), repositories.RecordFilter{}, base)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []uuid.UUID{newest, middle, oldest}, []uuid.UUID{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "Dune", all[0].ItemTitle)

	mine, err := s.List(context.Background(), repositories.RecordFilter{HolderID: &alice}, base)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	paged, err := s.List(context.Background(), repositories.RecordFilter{Limit: 1, Offset: 1}, base)
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, middle, paged[0].ID)

	overdue := models.StatusOverdue
	late, err := s.List(context.Background(), repositories.RecordFilter{Status: &overdue}, base.Add(models.LoanPeriod+90*time.Minute))
	require.NoError(t, err)
	assert.Len(t, late, 2, "the two oldest loans are past due")

	n, err := s.CountOverdue(context.Background(), base.Add(models.LoanPeriod+90*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestDelete(t *testing.T) {
	s, item := seeded(t, 1, 1)
	var id uuid.UUID
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		r, err := tx.Records().Create(ctx, uuid.New(), item, time.Now(), time.Now())
		if err != nil {
			return err
		}
		id = r.ID
		return nil
	}))

	assert.ErrorIs(t, s.Delete(context.Background(), id), domain.ErrRecordActive)
	require.NoError(t, s.WithinTx(context.Background(), func(ctx context.Context, tx repositories.Tx) error {
		return tx.Records().MarkReturned(ctx, id, time.Now())
	}))

	require.NoError(t, s.Delete(context.Background(), id))
	_, err := s.GetByID(context.Background(), id)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), id), domain.ErrRecordNotFound)
}
