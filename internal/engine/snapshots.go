package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/predexlabs/oppengine/internal/domain"
)

// SnapshotFacade is the engine's only path to market data: cache first,
// durable store second. It is strictly read-only; writing snapshots is the
// ingestion boundary's job.
type SnapshotFacade struct {
	cache  domain.SnapshotCache
	store  domain.SnapshotStore
	logger *slog.Logger
}

// NewSnapshotFacade creates a facade. cache may be nil, in which case every
// read goes straight to the store.
func NewSnapshotFacade(cache domain.SnapshotCache, store domain.SnapshotStore, logger *slog.Logger) *SnapshotFacade {
	return &SnapshotFacade{
		cache:  cache,
		store:  store,
		logger: logger.With(slog.String("component", "snapshot_facade")),
	}
}

// Latest returns the most recent snapshot for (venue, outcomeID). Cache
// errors are swallowed and treated as a miss; a missing snapshot is a normal
// absence, not an error. Store errors propagate so the caller can skip the
// pair rather than fail the scan.
func (f *SnapshotFacade) Latest(ctx context.Context, venue, outcomeID string) (domain.LiquiditySnapshot, bool, error) {
	if f.cache != nil {
		snap, err := f.cache.Get(ctx, venue, outcomeID)
		if err == nil {
			return snap, true, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			f.logger.DebugContext(ctx, "cache read failed, falling back to store",
				slog.String("venue", venue),
				slog.String("outcome_id", outcomeID),
				slog.String("error", err.Error()),
			)
		}
	}

	snap, err := f.store.Latest(ctx, venue, outcomeID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.LiquiditySnapshot{}, false, nil
		}
		return domain.LiquiditySnapshot{}, false, fmt.Errorf("snapshot facade: %s/%s: %w", venue, outcomeID, err)
	}
	return snap, true, nil
}
