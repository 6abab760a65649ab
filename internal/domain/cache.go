package domain

import (
	"context"
	"time"
)

// SnapshotCache provides low-latency access to the latest snapshot per
// (venue, outcome). Entries carry a short TTL on the order of the venue's
// expected update cadence, so a dead ingestion feed naturally falls back to
// store freshness checks.
type SnapshotCache interface {
	Set(ctx context.Context, snap LiquiditySnapshot) error
	Get(ctx context.Context, venue, outcomeID string) (LiquiditySnapshot, error)
}

// RateLimiter gates requests per key within a sliding window. Allow reports
// whether the caller identified by key may proceed given the limit.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
