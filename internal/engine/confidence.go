package engine

import (
	"math"
	"time"

	"github.com/predexlabs/oppengine/internal/domain"
)

// Component caps. They sum to 100; the composite score is a capped sum of
// the five components and is clamped to [0,100].
const (
	capEdgeMargin       = 40.0
	capDepthRobustness  = 25.0
	capFreshness        = 15.0
	capTruthClarity     = 10.0
	capResolutionBuffer = 10.0

	// depthFullScaleUSD is the 1%-depth at which the depth component maxes out.
	depthFullScaleUSD = 5000.0
)

// ConfidenceInputs collects everything the scoring model looks at for one
// candidate opportunity.
type ConfidenceInputs struct {
	Profile domain.EdgeProfile
	Buy     domain.LiquiditySnapshot
	Sell    domain.LiquiditySnapshot

	// Per-venue staleness thresholds for the two legs.
	BuyStaleAfter  time.Duration
	SellStaleAfter time.Duration

	// Max truth-ambiguity across the two legs, [0,1].
	TruthAmbiguity float64

	// Earliest resolution timestamp across the two legs; nil when unknown.
	ResolveAt *time.Time

	Now time.Time
}

// ConfidenceScore computes the composite 0-100 trust/executability score.
func ConfidenceScore(in ConfidenceInputs) float64 {
	score := edgeMargin(in.Profile) +
		depthRobustness(in.Buy, in.Sell) +
		freshness(in) +
		truthClarity(in.TruthAmbiguity) +
		resolutionBuffer(in.ResolveAt, in.Now)
	return clamp(score, 0, 100)
}

// edgeMargin awards one point per basis point of best-bucket net edge, up to
// the cap.
func edgeMargin(p domain.EdgeProfile) float64 {
	best, ok := p.BestBucket()
	if !ok || best.NetEdge <= 0 {
		return 0
	}
	return math.Min(capEdgeMargin, best.NetEdge*10_000)
}

// depthRobustness scales with the thinner leg's 1%-depth.
func depthRobustness(buy, sell domain.LiquiditySnapshot) float64 {
	minDepth := math.Min(buy.DepthUSD1Pct, sell.DepthUSD1Pct)
	if minDepth <= 0 {
		return 0
	}
	return math.Min(capDepthRobustness, minDepth/depthFullScaleUSD*capDepthRobustness)
}

// freshness decays linearly with the worse leg's age relative to its venue
// staleness threshold and reaches zero exactly at the threshold, matching
// the stale flag.
func freshness(in ConfidenceInputs) float64 {
	worst := math.Max(
		staleRatio(in.Buy.LastUpdate, in.BuyStaleAfter, in.Now),
		staleRatio(in.Sell.LastUpdate, in.SellStaleAfter, in.Now),
	)
	if worst >= 1 {
		return 0
	}
	return capFreshness * (1 - worst)
}

func staleRatio(lastUpdate time.Time, staleAfter time.Duration, now time.Time) float64 {
	if staleAfter <= 0 || lastUpdate.IsZero() {
		return 1
	}
	age := now.Sub(lastUpdate)
	if age <= 0 {
		return 0
	}
	return float64(age) / float64(staleAfter)
}

func truthClarity(ambiguity float64) float64 {
	return (1 - clamp(ambiguity, 0, 1)) * capTruthClarity
}

// resolutionBuffer favors opportunities neither imminent nor indefinitely
// far from resolution: a linear ramp to the cap over the first hour (so the
// score is already halved inside the 30-minute near-resolution window), flat
// at the cap out to 30 days, then easing back to half beyond 180 days.
// Unknown resolution time scores the neutral midpoint.
func resolutionBuffer(resolveAt *time.Time, now time.Time) float64 {
	if resolveAt == nil {
		return capResolutionBuffer / 2
	}
	ttr := resolveAt.Sub(now)
	switch {
	case ttr <= 0:
		return 0
	case ttr < time.Hour:
		return capResolutionBuffer * float64(ttr) / float64(time.Hour)
	case ttr <= 30*24*time.Hour:
		return capResolutionBuffer
	case ttr >= 180*24*time.Hour:
		return capResolutionBuffer / 2
	default:
		// Linear ease from the cap at 30 days down to half at 180 days.
		frac := float64(ttr-30*24*time.Hour) / float64(150*24*time.Hour)
		return capResolutionBuffer * (1 - 0.5*frac)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
