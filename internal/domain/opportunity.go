package domain

import "time"

// EdgeSchemaVersion tags persisted edge profiles and snapshot references so
// the serialization boundary can reject blobs written by an incompatible
// build.
const EdgeSchemaVersion = 1

// OpportunityStatus is the lifecycle state of a persisted opportunity.
type OpportunityStatus string

const (
	OpportunityOpen      OpportunityStatus = "open"
	OpportunityExpired   OpportunityStatus = "expired"
	OpportunityInvalid   OpportunityStatus = "invalid"
	OpportunityExecuted  OpportunityStatus = "executed"
	OpportunityDismissed OpportunityStatus = "dismissed"
)

// QBucketResult is the edge evaluation at one notional trade size.
// NetEdge is a decimal fraction; multiply by 10,000 for basis points.
type QBucketResult struct {
	SizeUSD    float64 `json:"size_usd"`
	BuyPrice   float64 `json:"buy_price"`
	SellPrice  float64 `json:"sell_price"`
	NetEdge    float64 `json:"net_edge"`
	Executable bool    `json:"executable"`
}

// EdgeProfile is the computed result for one ordered (buy, sell) venue pair
// at one evaluation instant. It is recomputed every scan and embedded in the
// opportunity row, never persisted standalone.
type EdgeProfile struct {
	SchemaVersion     int             `json:"schema_version"`
	Buckets           []QBucketResult `json:"buckets"`
	BestQ             *float64        `json:"best_q,omitempty"`
	MaxExecutableSize float64         `json:"max_executable_size"`
}

// BestBucket returns the bucket matching BestQ, if any.
func (p EdgeProfile) BestBucket() (QBucketResult, bool) {
	if p.BestQ == nil {
		return QBucketResult{}, false
	}
	for _, b := range p.Buckets {
		if b.SizeUSD == *p.BestQ {
			return b, true
		}
	}
	return QBucketResult{}, false
}

// OpportunityFlags are independent data-quality markers computed per scan.
// They are advisory; none of them alone disqualifies an opportunity.
type OpportunityFlags struct {
	Stale          bool `json:"stale"`
	NearResolution bool `json:"near_resolution"`
	HighAmbiguity  bool `json:"high_ambiguity"`
	WideSpread     bool `json:"wide_spread"`
	LowDepth       bool `json:"low_depth"`
}

// OpportunityKey identifies the logical opportunity an ordered venue pair
// represents. At most one row with status open exists per key at any time.
type OpportunityKey struct {
	EventID       string `json:"event_id"`
	BuyVenue      string `json:"buy_venue"`
	SellVenue     string `json:"sell_venue"`
	BuyOutcomeID  string `json:"buy_outcome_id"`
	SellOutcomeID string `json:"sell_outcome_id"`
}

// Opportunity is the durable record of a detected, qualifying edge.
//
// The engine creates rows as open, refreshes them on every scan that still
// finds a qualifying edge, and expires rows not re-confirmed within the
// expiry window. The executed and dismissed states are owned by the gateway
// and are never overwritten by the engine.
type Opportunity struct {
	ID                 string            `json:"id"`
	Key                OpportunityKey    `json:"key"`
	Status             OpportunityStatus `json:"status"`
	Confidence         float64           `json:"confidence"` // [0,100]
	Profile            EdgeProfile       `json:"edge_profile"`
	Snapshots          SnapshotReference `json:"snapshots"`
	Flags              OpportunityFlags  `json:"flags"`
	CreatedAt          time.Time         `json:"created_at"`
	LastSeenAt         time.Time         `json:"last_seen_at"`
	InvalidationReason string            `json:"invalidation_reason,omitempty"`
}

// ReplayStatus is the outcome of re-verifying a stored opportunity against
// its referenced snapshots.
type ReplayStatus string

const (
	ReplayMatch            ReplayStatus = "MATCH"
	ReplayMismatch         ReplayStatus = "MISMATCH"
	ReplaySnapshotNotFound ReplayStatus = "SNAPSHOT_NOT_FOUND"
)

// ReplayResult is the audit verdict for one opportunity. EdgeDiffBps is only
// meaningful for MATCH and MISMATCH.
type ReplayResult struct {
	OpportunityID string       `json:"opportunity_id"`
	Status        ReplayStatus `json:"status"`
	EdgeDiffBps   float64      `json:"edge_diff_bps,omitempty"`
}
