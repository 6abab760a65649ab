package engine

import (
	"time"

	"github.com/predexlabs/oppengine/internal/domain"
)

// Flag thresholds. These line up with the confidence model: freshness is
// zero at the stale threshold and the resolution buffer is already degraded
// inside the near-resolution window.
const (
	nearResolutionWindow = 30 * time.Minute
	highAmbiguityAbove   = 0.5
	wideSpreadFracOfMid  = 0.03
	lowDepthBelowUSD     = 500.0
)

// FlagInputs collects the per-pair data the flag computation looks at.
type FlagInputs struct {
	Buy            domain.LiquiditySnapshot
	Sell           domain.LiquiditySnapshot
	BuyStaleAfter  time.Duration
	SellStaleAfter time.Duration
	TruthAmbiguity float64
	ResolveAt      *time.Time
	Now            time.Time
}

// ComputeFlags evaluates the independent data-quality flags for one
// candidate opportunity. Flags are not mutually exclusive.
func ComputeFlags(in FlagInputs) domain.OpportunityFlags {
	return domain.OpportunityFlags{
		Stale: staleRatio(in.Buy.LastUpdate, in.BuyStaleAfter, in.Now) >= 1 ||
			staleRatio(in.Sell.LastUpdate, in.SellStaleAfter, in.Now) >= 1,
		NearResolution: in.ResolveAt != nil && in.ResolveAt.Sub(in.Now) < nearResolutionWindow,
		HighAmbiguity:  in.TruthAmbiguity > highAmbiguityAbove,
		WideSpread:     wideSpread(in.Buy) || wideSpread(in.Sell),
		LowDepth:       in.Buy.DepthUSD1Pct < lowDepthBelowUSD || in.Sell.DepthUSD1Pct < lowDepthBelowUSD,
	}
}

func wideSpread(s domain.LiquiditySnapshot) bool {
	return s.Mid > 0 && s.Spread > wideSpreadFracOfMid*s.Mid
}
