package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgcache "github.com/ghuser/lendingdesk/pkg/cache"
	pkgevents "github.com/ghuser/lendingdesk/pkg/events"
	"github.com/ghuser/lendingdesk/pkg/logger"
	"github.com/ghuser/lendingdesk/services/lending/domain/events"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/infrastructure/persistence/memory"
)

type failingSetCache struct {
	*fakeCache
	err error
}

func (c failingSetCache) Set(context.Context, *pkgcache.CachedAvailability) error { return c.err }

func TestProjector_BorrowedEventRefreshesFromCatalog(t *testing.T) {
	m, store, item := newManager(t, 3, 3, Policy{})
	cache := newFakeCache()
	p := NewAvailabilityProjector(store, cache, logger.Nop(), WithClock(func() time.Time { return fixedNow }))
	ctx := context.Background()

	_, err := m.Borrow(ctx, uuid.New(), item)
	require.NoError(t, err)

	published := store.Published()
	require.Len(t, published, 1)
	msg, err := pkgevents.NewMessage(published[0].Event)
	require.NoError(t, err)

	require.NoError(t, p.HandleBorrowed(ctx, msg))
	got, err := cache.Get(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Available)
	assert.Equal(t, 3, got.TotalCopies)
	assert.True(t, got.RefreshedAt.Equal(fixedNow))

	// Redelivery converges on the same value.
	require.NoError(t, p.HandleBorrowed(ctx, msg))
	got, err = cache.Get(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Available)
}

func TestProjector_ReturnedEvent(t *testing.T) {
	m, store, item := newManager(t, 1, 1, Policy{})
	cache := newFakeCache()
	p := NewAvailabilityProjector(store, cache, logger.Nop())
	ctx := context.Background()

	holder := uuid.New()
	record, err := m.Borrow(ctx, holder, item)
	require.NoError(t, err)
	_, err = m.Return(ctx, record.ID, models.Identity{HolderID: holder, Role: "member"})
	require.NoError(t, err)

	published := store.Published()
	require.Len(t, published, 2)
	assert.Equal(t, events.TopicLoanReturned, published[1].Topic)
	msg, err := pkgevents.NewMessage(published[1].Event)
	require.NoError(t, err)

	require.NoError(t, p.HandleReturned(ctx, msg))
	got, err := cache.Get(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Available)
}

func TestProjector_MalformedPayload(t *testing.T) {
	store := memory.New()
	p := NewAvailabilityProjector(store, newFakeCache(), logger.Nop())

	err := p.HandleBorrowed(context.Background(), message.NewMessage("m-1", []byte("{not json")))
	assert.Error(t, err)
}

func TestProjector_RefreshEvictsMissingItem(t *testing.T) {
	store := memory.New()
	cache := newFakeCache()
	ctx := context.Background()
	gone := uuid.New()
	require.NoError(t, cache.Set(ctx, &pkgcache.CachedAvailability{ItemID: gone, Available: 1, TotalCopies: 1}))

	p := NewAvailabilityProjector(store, cache, logger.Nop())
	require.NoError(t, p.Refresh(ctx, gone))

	_, err := cache.Get(ctx, gone)
	assert.Error(t, err)
}

func TestProjector_Reconcile(t *testing.T) {
	store := memory.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Seed(models.CatalogItem{ID: uuid.New(), Title: "copy", StockQuantity: i, TotalCopies: 3}))
	}
	cache := newFakeCache()
	p := NewAvailabilityProjector(store, cache, logger.Nop())

	n, err := p.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, cache.sets)
}

func TestProjector_ReconcileKeepsGoingOnWriteFailure(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Seed(models.CatalogItem{ID: uuid.New(), Title: "a", StockQuantity: 1, TotalCopies: 1}))
	require.NoError(t, store.Seed(models.CatalogItem{ID: uuid.New(), Title: "b", StockQuantity: 1, TotalCopies: 1}))

	boom := errors.New("redis down")
	p := NewAvailabilityProjector(store, failingSetCache{fakeCache: newFakeCache(), err: boom}, logger.Nop())

	n, err := p.Reconcile(context.Background())
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, boom)
}
