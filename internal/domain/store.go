package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination for list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// SnapshotStore persists validated liquidity snapshots. The ingestion
// boundary writes; the engine reads the latest row per (venue, outcome) and
// the replay verifier locates historical rows by fingerprint.
type SnapshotStore interface {
	Insert(ctx context.Context, snap LiquiditySnapshot) error
	Latest(ctx context.Context, venue, outcomeID string) (LiquiditySnapshot, error)
	ByFingerprint(ctx context.Context, venue, outcomeID, fingerprint string) (LiquiditySnapshot, error)
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ScanUpdate carries the per-scan refresh of an open opportunity row.
type ScanUpdate struct {
	Confidence float64
	Profile    EdgeProfile
	Snapshots  SnapshotReference
	Flags      OpportunityFlags
	LastSeenAt time.Time
}

// OpportunityStore persists opportunity records. GetOpen/Insert/UpdateScan/
// ExpireBefore are the engine's lifecycle operations; UpdateStatus is the
// gateway's and must refuse to touch rows already executed or dismissed.
type OpportunityStore interface {
	GetOpen(ctx context.Context, key OpportunityKey) (Opportunity, error)
	Insert(ctx context.Context, opp Opportunity) error
	UpdateScan(ctx context.Context, id string, upd ScanUpdate) error
	ExpireBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error)
	GetByID(ctx context.Context, id string) (Opportunity, error)
	List(ctx context.Context, status OpportunityStatus, opts ListOpts) ([]Opportunity, error)
	UpdateStatus(ctx context.Context, id string, status OpportunityStatus, reason string) error
	ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Opportunity, error)
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)
}

// EventGroupStore reads curated canonical event groups. The engine only
// consumes open groups that span at least two distinct venues.
type EventGroupStore interface {
	ListScannable(ctx context.Context) ([]CanonicalEventGroup, error)
	GetByID(ctx context.Context, id string) (CanonicalEventGroup, error)
}

// HealthStore reads per-venue feed health written by the ingestion boundary.
type HealthStore interface {
	List(ctx context.Context) ([]VenueHealth, error)
	AnyRed(ctx context.Context) (bool, error)
}
