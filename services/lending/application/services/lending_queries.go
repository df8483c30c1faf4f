package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	pkgcache "github.com/ghuser/lendingdesk/pkg/cache"
	"github.com/ghuser/lendingdesk/pkg/logger"
	"github.com/ghuser/lendingdesk/services/lending/domain/models"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AvailabilityCache is the display read model in front of the catalog.
// *pkgcache.AvailabilityCache satisfies it.
type AvailabilityCache interface {
	Get(ctx context.Context, itemID uuid.UUID) (*pkgcache.CachedAvailability, error)
	Set(ctx context.Context, a *pkgcache.CachedAvailability) error
	Delete(ctx context.Context, itemID uuid.UUID) error
}

// LendingQueries serves read-only views. Nothing here takes a lock and
// nothing here may be used to decide whether a mutation is allowed.
type LendingQueries struct {
	records repositories.RecordReader
	catalog repositories.CatalogReader
	cache   AvailabilityCache
	log     logger.Logger
	now     func() time.Time
}

// NewLendingQueries returns a LendingQueries. cache may be nil, in which case
// every availability read goes to the catalog.
func NewLendingQueries(records repositories.RecordReader, catalog repositories.CatalogReader, cache AvailabilityCache, log logger.Logger, opts ...Option) *LendingQueries {
	o := buildOptions(opts)
	return &LendingQueries{records: records, catalog: catalog, cache: cache, log: log, now: o.now}
}

// ListRecords returns records matching filter, newest first. Status on the
// returned records is the effective status, so overdue loans read as Overdue.
func (q *LendingQueries) ListRecords(ctx context.Context, filter repositories.RecordFilter) ([]*models.LendingRecord, error) {
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	now := q.now()
	records, err := q.records.List(ctx, filter, now)
	if err != nil {
		return nil, classify(fmt.Errorf("list records: %w", err))
	}
	for _, r := range records {
		r.Status = r.EffectiveStatus(now)
	}
	return records, nil
}

// ListForHolder is ListRecords scoped to one holder.
func (q *LendingQueries) ListForHolder(ctx context.Context, holderID uuid.UUID, limit, offset int) ([]*models.LendingRecord, error) {
	return q.ListRecords(ctx, repositories.RecordFilter{HolderID: &holderID, Limit: limit, Offset: offset})
}

// GetRecord returns one record with its effective status.
// Returns ErrRecordNotFound if absent.
func (q *LendingQueries) GetRecord(ctx context.Context, recordID uuid.UUID) (*models.LendingRecord, error) {
	record, err := q.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, classify(fmt.Errorf("get record %s: %w", recordID, err))
	}
	record.Status = record.EffectiveStatus(q.now())
	return record, nil
}

// Availability returns a display snapshot of itemID's stock using a
// read-through cache:
//  1. Check Redis first.
//  2. On a miss or cache error, read the catalog.
//  3. Warm the cache with the catalog result.
func (q *LendingQueries) Availability(ctx context.Context, itemID uuid.UUID) (*models.Availability, error) {
	if q.cache != nil {
		cached, err := q.cache.Get(ctx, itemID)
		if err == nil {
			return &models.Availability{
				ItemID:          cached.ItemID,
				Title:           cached.Title,
				AvailableCopies: cached.Available,
				TotalCopies:     cached.TotalCopies,
				OnLoan:          cached.TotalCopies - cached.Available,
			}, nil
		}
		if !errors.Is(err, redis.Nil) {
			q.log.WarnContext(ctx, "availability cache read failed", "item_id", itemID, "error", err)
		}
	}

	item, err := q.catalog.GetItem(ctx, itemID)
	if err != nil {
		return nil, classify(fmt.Errorf("get item %s: %w", itemID, err))
	}

	if q.cache != nil {
		if err := q.cache.Set(ctx, CachedFromItem(item, q.now())); err != nil {
			q.log.WarnContext(ctx, "availability cache write failed", "item_id", itemID, "error", err)
		}
	}
	return models.AvailabilityOf(item), nil
}

// CachedFromItem builds the cache entry for item as observed at refreshedAt.
func CachedFromItem(item *models.CatalogItem, refreshedAt time.Time) *pkgcache.CachedAvailability {
	return &pkgcache.CachedAvailability{
		ItemID:      item.ID,
		Title:       item.Title,
		Available:   item.StockQuantity,
		TotalCopies: item.TotalCopies,
		RefreshedAt: refreshedAt.UTC(),
	}
}
