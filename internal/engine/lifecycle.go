package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/predexlabs/oppengine/internal/domain"
)

// expiryReason is written once when an open row ages out without being
// re-confirmed by a scan.
const expiryReason = "not re-confirmed within expiry window"

// Lifecycle owns the open/expired transitions of opportunity rows. Both of
// its operations are idempotent per key: Upsert is lookup-then-update so at
// most one open row per key ever exists, and Expire only touches rows still
// open. Executed and dismissed rows belong to the gateway and are never
// modified here.
type Lifecycle struct {
	store  domain.OpportunityStore
	logger *slog.Logger
	now    func() time.Time
}

// NewLifecycle creates a lifecycle manager over the given store.
func NewLifecycle(store domain.OpportunityStore, logger *slog.Logger) *Lifecycle {
	return &Lifecycle{
		store:  store,
		logger: logger.With(slog.String("component", "lifecycle")),
		now:    time.Now,
	}
}

// Candidate is a qualifying edge produced by one scan of one ordered pair.
type Candidate struct {
	Key        domain.OpportunityKey
	Confidence float64
	Profile    domain.EdgeProfile
	Snapshots  domain.SnapshotReference
	Flags      domain.OpportunityFlags
}

// Upsert refreshes the open row for the candidate's key, or inserts a new
// open row if none exists. It reports whether a new row was created.
func (l *Lifecycle) Upsert(ctx context.Context, c Candidate) (created bool, err error) {
	now := l.now().UTC()

	existing, err := l.store.GetOpen(ctx, c.Key)
	if err == nil {
		upd := domain.ScanUpdate{
			Confidence: c.Confidence,
			Profile:    c.Profile,
			Snapshots:  c.Snapshots,
			Flags:      c.Flags,
			LastSeenAt: now,
		}
		if err := l.store.UpdateScan(ctx, existing.ID, upd); err != nil {
			return false, fmt.Errorf("lifecycle: update %s: %w", existing.ID, err)
		}
		return false, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("lifecycle: lookup open row: %w", err)
	}

	opp := domain.Opportunity{
		ID:         uuid.NewString(),
		Key:        c.Key,
		Status:     domain.OpportunityOpen,
		Confidence: c.Confidence,
		Profile:    c.Profile,
		Snapshots:  c.Snapshots,
		Flags:      c.Flags,
		CreatedAt:  now,
		LastSeenAt: now,
	}
	if err := l.store.Insert(ctx, opp); err != nil {
		return false, fmt.Errorf("lifecycle: insert: %w", err)
	}
	l.logger.InfoContext(ctx, "opportunity opened",
		slog.String("id", opp.ID),
		slog.String("event_id", c.Key.EventID),
		slog.String("buy_venue", c.Key.BuyVenue),
		slog.String("sell_venue", c.Key.SellVenue),
		slog.Float64("confidence", c.Confidence),
	)
	return true, nil
}

// Expire transitions every open row whose last-seen timestamp is older than
// the window to expired, setting the invalidation reason exactly once.
// Already-expired rows are untouched on subsequent passes.
func (l *Lifecycle) Expire(ctx context.Context, window time.Duration) (int64, error) {
	cutoff := l.now().UTC().Add(-window)
	n, err := l.store.ExpireBefore(ctx, cutoff, expiryReason)
	if err != nil {
		return 0, fmt.Errorf("lifecycle: expire: %w", err)
	}
	if n > 0 {
		l.logger.InfoContext(ctx, "opportunities expired",
			slog.Int64("count", n),
			slog.Duration("window", window),
		)
	}
	return n, nil
}
