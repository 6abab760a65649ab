package domain

import "time"

// SlippageSample is a measured slippage estimate at a fixed trade size,
// supplied by AMM venue adapters alongside the constant-product reference
// price.
type SlippageSample struct {
	SizeUSD float64 `json:"size_usd"`
	Bps     float64 `json:"bps"`
}

// LiquiditySnapshot is one venue/outcome's market state at a point in time.
// Snapshots are written by the ingestion boundary and are immutable once
// created; the engine only ever reads the latest one per (venue, outcome).
//
// BestBid/BestAsk are pointers because an empty book has neither. The AMM
// fields are only set for venues that price via a liquidity curve.
type LiquiditySnapshot struct {
	Venue        string     `json:"venue"`
	OutcomeID    string     `json:"outcome_id"`
	Timestamp    time.Time  `json:"timestamp"`
	BestBid      *float64   `json:"best_bid,omitempty"`
	BestAsk      *float64   `json:"best_ask,omitempty"`
	Mid          float64    `json:"mid"`
	Spread       float64    `json:"spread"`
	DepthUSD1Pct float64    `json:"depth_usd_1pct"`
	DepthUSD5Pct float64    `json:"depth_usd_5pct"`

	AMMRefPrice *float64         `json:"amm_ref_price,omitempty"`
	AMMSlippage []SlippageSample `json:"amm_slippage,omitempty"`

	LastUpdate  time.Time `json:"last_update"`
	Fingerprint string    `json:"fingerprint"`
}

// IsAMM reports whether the snapshot came from an automated-market-maker
// venue and should be priced with the constant-product approximation.
func (s LiquiditySnapshot) IsAMM() bool {
	return s.AMMRefPrice != nil
}

// SnapshotReference pins the exact pair of snapshots behind a computed
// edge profile. It is the unit of replay identity: the referenced snapshots
// can be re-located by (venue, outcome, fingerprint) and the profile
// recomputed from them.
type SnapshotReference struct {
	SchemaVersion int       `json:"schema_version"`
	BuyVenue      string    `json:"buy_venue"`
	BuyOutcomeID  string    `json:"buy_outcome_id"`
	BuyHash       string    `json:"buy_hash"`
	BuyTimestamp  time.Time `json:"buy_timestamp"`
	SellVenue     string    `json:"sell_venue"`
	SellOutcomeID string    `json:"sell_outcome_id"`
	SellHash      string    `json:"sell_hash"`
	SellTimestamp time.Time `json:"sell_timestamp"`
}
