package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/predexlabs/oppengine/internal/domain"
)

// SnapshotCache implements domain.SnapshotCache using plain JSON values with
// a per-venue TTL. The TTL tracks each venue's expected update cadence so
// entries from a dead ingestion feed expire instead of serving forever.
//
// Key schema: snap:{venue}:{outcomeID}
type SnapshotCache struct {
	rdb        *redis.Client
	ttl        map[string]time.Duration
	defaultTTL time.Duration
}

// NewSnapshotCache creates a SnapshotCache. ttlByVenue may be nil; venues
// without an entry use defaultTTL.
func NewSnapshotCache(c *Client, ttlByVenue map[string]time.Duration, defaultTTL time.Duration) *SnapshotCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Second
	}
	return &SnapshotCache{
		rdb:        c.Underlying(),
		ttl:        ttlByVenue,
		defaultTTL: defaultTTL,
	}
}

func snapKey(venue, outcomeID string) string {
	return "snap:" + venue + ":" + outcomeID
}

// Set stores the latest snapshot for its (venue, outcome) key.
func (sc *SnapshotCache) Set(ctx context.Context, snap domain.LiquiditySnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal snapshot: %w", err)
	}
	key := snapKey(snap.Venue, snap.OutcomeID)
	if err := sc.rdb.Set(ctx, key, data, sc.ttlFor(snap.Venue)).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", key, err)
	}
	return nil
}

// Get returns the cached snapshot or domain.ErrNotFound on a miss.
func (sc *SnapshotCache) Get(ctx context.Context, venue, outcomeID string) (domain.LiquiditySnapshot, error) {
	key := snapKey(venue, outcomeID)
	data, err := sc.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.LiquiditySnapshot{}, domain.ErrNotFound
		}
		return domain.LiquiditySnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", key, err)
	}
	var snap domain.LiquiditySnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.LiquiditySnapshot{}, fmt.Errorf("redis: decode snapshot %s: %w", key, err)
	}
	return snap, nil
}

func (sc *SnapshotCache) ttlFor(venue string) time.Duration {
	if d, ok := sc.ttl[venue]; ok && d > 0 {
		return d
	}
	return sc.defaultTTL
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)
