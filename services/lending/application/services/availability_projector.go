package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	pkgevents "github.com/ghuser/lendingdesk/pkg/events"
	"github.com/ghuser/lendingdesk/pkg/logger"
	"github.com/ghuser/lendingdesk/services/lending/domain"
	"github.com/ghuser/lendingdesk/services/lending/domain/events"
	"github.com/ghuser/lendingdesk/services/lending/domain/repositories"
)

// AvailabilityProjector keeps the availability cache in step with committed
// loans. Every update re-reads the catalog rather than applying a delta, so
// redelivered or reordered events converge on the stored stock.
type AvailabilityProjector struct {
	catalog repositories.CatalogReader
	cache   AvailabilityCache
	log     logger.Logger
	now     func() time.Time
}

// NewAvailabilityProjector returns a projector writing to cache.
func NewAvailabilityProjector(catalog repositories.CatalogReader, cache AvailabilityCache, log logger.Logger, opts ...Option) *AvailabilityProjector {
	o := buildOptions(opts)
	return &AvailabilityProjector{catalog: catalog, cache: cache, log: log, now: o.now}
}

// HandleBorrowed is the lending.borrowed subscriber.
func (p *AvailabilityProjector) HandleBorrowed(ctx context.Context, msg *message.Message) error {
	var evt events.LoanBorrowedEvent
	if err := pkgevents.Decode(msg, &evt); err != nil {
		return err
	}
	return p.Refresh(ctx, evt.ItemID)
}

// HandleReturned is the lending.returned subscriber.
func (p *AvailabilityProjector) HandleReturned(ctx context.Context, msg *message.Message) error {
	var evt events.LoanReturnedEvent
	if err := pkgevents.Decode(msg, &evt); err != nil {
		return err
	}
	return p.Refresh(ctx, evt.ItemID)
}

// Refresh rewrites the cache entry for itemID from the catalog. An item that
// no longer exists is evicted.
func (p *AvailabilityProjector) Refresh(ctx context.Context, itemID uuid.UUID) error {
	item, err := p.catalog.GetItem(ctx, itemID)
	if errors.Is(err, domain.ErrItemNotFound) {
		if err := p.cache.Delete(ctx, itemID); err != nil {
			return fmt.Errorf("evict availability %s: %w", itemID, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read item %s: %w", itemID, err)
	}

	if err := p.cache.Set(ctx, CachedFromItem(item, p.now())); err != nil {
		return fmt.Errorf("cache availability %s: %w", itemID, err)
	}
	p.log.DebugContext(ctx, "availability refreshed", "item_id", itemID, "available", item.StockQuantity)
	return nil
}

// Reconcile rewrites every catalog item's cache entry and returns how many
// were written. A failed write does not stop the sweep.
func (p *AvailabilityProjector) Reconcile(ctx context.Context) (int, error) {
	items, err := p.catalog.ListItems(ctx)
	if err != nil {
		return 0, fmt.Errorf("list items: %w", err)
	}

	refreshedAt := p.now()
	var (
		written int
		errs    []error
	)
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := p.cache.Set(ctx, CachedFromItem(item, refreshedAt)); err != nil {
			errs = append(errs, fmt.Errorf("cache availability %s: %w", item.ID, err))
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}
