package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// AvailabilityCacheTTL bounds how stale a display read can get if the
	// worker misses an event and the reconcile job has not yet run.
	AvailabilityCacheTTL = 10 * time.Minute

	availabilityKeyPrefix = "availability"
)

// CachedAvailability is the denormalized display read model for one catalog
// item. It is a dirty read: never use it to authorize a borrow.
type CachedAvailability struct {
	ItemID      uuid.UUID `json:"item_id"`
	Title       string    `json:"title"`
	Available   int       `json:"available"`
	TotalCopies int       `json:"total_copies"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// AvailabilityCache stores CachedAvailability entries as Redis hashes.
// Key format: "availability:{itemID}"
type AvailabilityCache struct {
	client *RedisClient
}

// NewAvailabilityCache creates an AvailabilityCache backed by the given RedisClient.
func NewAvailabilityCache(r *RedisClient) *AvailabilityCache {
	return &AvailabilityCache{client: r}
}

// Get returns the cached entry for itemID.
// Returns redis.Nil when the key does not exist or has expired.
func (c *AvailabilityCache) Get(ctx context.Context, itemID uuid.UUID) (*CachedAvailability, error) {
	vals, err := c.client.Client().HGetAll(ctx, c.key(itemID)).Result()
	if err != nil {
		return nil, fmt.Errorf("cache get: %w", err)
	}
	if len(vals) == 0 {
		return nil, redis.Nil
	}
	return decodeAvailability(vals)
}

// Set writes the entry and its TTL in one pipeline.
func (c *AvailabilityCache) Set(ctx context.Context, a *CachedAvailability) error {
	key := c.key(a.ItemID)
	pipe := c.client.Client().TxPipeline()
	pipe.HSet(ctx, key, encodeAvailability(a))
	pipe.Expire(ctx, key, AvailabilityCacheTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Delete invalidates the entry for itemID.
func (c *AvailabilityCache) Delete(ctx context.Context, itemID uuid.UUID) error {
	if err := c.client.Client().Del(ctx, c.key(itemID)).Err(); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (c *AvailabilityCache) key(itemID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", availabilityKeyPrefix, itemID)
}

func encodeAvailability(a *CachedAvailability) map[string]any {
	return map[string]any{
		"item_id":      a.ItemID.String(),
		"title":        a.Title,
		"available":    strconv.Itoa(a.Available),
		"total_copies": strconv.Itoa(a.TotalCopies),
		"refreshed_at": a.RefreshedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeAvailability(vals map[string]string) (*CachedAvailability, error) {
	id, err := uuid.Parse(vals["item_id"])
	if err != nil {
		return nil, fmt.Errorf("cache parse item_id: %w", err)
	}
	available, err := strconv.Atoi(vals["available"])
	if err != nil {
		return nil, fmt.Errorf("cache parse available: %w", err)
	}
	total, err := strconv.Atoi(vals["total_copies"])
	if err != nil {
		return nil, fmt.Errorf("cache parse total_copies: %w", err)
	}
	refreshed, err := time.Parse(time.RFC3339Nano, vals["refreshed_at"])
	if err != nil {
		return nil, fmt.Errorf("cache parse refreshed_at: %w", err)
	}
	return &CachedAvailability{
		ItemID:      id,
		Title:       vals["title"],
		Available:   available,
		TotalCopies: total,
		RefreshedAt: refreshed,
	}, nil
}
