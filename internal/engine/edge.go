// Package engine implements the opportunity engine core: the deterministic
// edge-calculation math, confidence scoring, snapshot fingerprinting and
// replay verification, the opportunity lifecycle, and the health-gated scan
// orchestrator that ties them together.
package engine

import (
	"math"

	"github.com/predexlabs/oppengine/internal/domain"
)

// DefaultBuckets is the canonical set of notional evaluation sizes (USD).
var DefaultBuckets = []float64{100, 250, 500, 1000, 2500, 5000}

// ComputeEdgeProfile evaluates the ordered (buy, sell) pair across the given
// size buckets. It is a pure function of its inputs: identical inputs always
// yield an identical profile, which is what replay verification relies on.
//
// Fees and the risk buffer are in basis points; NetEdge comes back as a
// decimal fraction of notional.
func ComputeEdgeProfile(buy, sell domain.LiquiditySnapshot, buyFeeBps, sellFeeBps, riskBufferBps float64, buckets []float64) domain.EdgeProfile {
	if len(buckets) == 0 {
		buckets = DefaultBuckets
	}
	costs := (buyFeeBps + sellFeeBps + riskBufferBps) / 10_000

	profile := domain.EdgeProfile{
		SchemaVersion: domain.EdgeSchemaVersion,
		Buckets:       make([]domain.QBucketResult, 0, len(buckets)),
	}

	bestProfit := 0.0
	for _, q := range buckets {
		buyPx, buyExec, buyOK := executionPrice(buy, q, sideBuy)
		sellPx, sellExec, sellOK := executionPrice(sell, q, sideSell)

		res := domain.QBucketResult{SizeUSD: q}
		if buyOK && sellOK {
			res.BuyPrice = buyPx
			res.SellPrice = sellPx
			res.NetEdge = sellPx - buyPx - costs
			res.Executable = buyExec && sellExec
		}
		profile.Buckets = append(profile.Buckets, res)

		if res.Executable {
			if q > profile.MaxExecutableSize {
				profile.MaxExecutableSize = q
			}
			// Representative size: maximize realized profit NetEdge*Q among
			// executable positive-edge buckets; strict > keeps the smaller Q
			// on ties.
			if profit := res.NetEdge * q; res.NetEdge > 0 && profit > bestProfit {
				bestProfit = profit
				bq := q
				profile.BestQ = &bq
			}
		}
	}
	return profile
}

type side int

const (
	sideBuy side = iota
	sideSell
)

// executionPrice models the volume-weighted price to trade q USD of notional
// on one leg. The returned ok is false when the leg cannot be priced at all
// (empty book side, or an AMM snapshot without usable calibration samples);
// executable is false whenever the model had to extrapolate past the leg's
// depth guarantees.
func executionPrice(snap domain.LiquiditySnapshot, q float64, s side) (price float64, executable, ok bool) {
	if q <= 0 {
		return 0, false, false
	}
	if snap.IsAMM() {
		return ammPrice(snap, q, s)
	}
	return bookPrice(snap, q, s)
}

// ammPrice applies the constant-product linear approximation
// P(Q) = P0 * (1 ± Q/2L), with the pool depth L calibrated from the
// adapter-supplied slippage samples. The approximation only holds for small
// Q, so the leg stops being executable past the largest calibrated size.
func ammPrice(snap domain.LiquiditySnapshot, q float64, s side) (float64, bool, bool) {
	p0 := *snap.AMMRefPrice
	if p0 <= 0 {
		return 0, false, false
	}

	var sumL float64
	var n int
	maxSize := 0.0
	for _, sample := range snap.AMMSlippage {
		if sample.SizeUSD <= 0 || sample.Bps <= 0 {
			continue
		}
		// slip = Q/2L  =>  L = Q / (2*slip)
		sumL += sample.SizeUSD / (2 * sample.Bps / 10_000)
		n++
		if sample.SizeUSD > maxSize {
			maxSize = sample.SizeUSD
		}
	}
	if n == 0 {
		return 0, false, false
	}
	l := sumL / float64(n)

	slip := q / (2 * l)
	price := p0 * (1 + slip)
	if s == sideSell {
		price = p0 * (1 - slip)
		if price < 0 {
			price = 0
		}
	}
	return price, q <= maxSize, true
}

// bookPrice models a summarized order-book leg. The marginal-price curve is
// piecewise linear through the known points: best quote at zero cumulative
// notional, 1% slippage at DepthUSD1Pct, 5% slippage at DepthUSD5Pct, and
// extrapolates the final slope beyond the 5% point. The execution price is
// the exact average of that curve over [0, q]. The leg's depth guarantee
// ends at the 5% point, so anything past it is priced but not executable.
func bookPrice(snap domain.LiquiditySnapshot, q float64, s side) (float64, bool, bool) {
	var best *float64
	slipSign := 1.0
	if s == sideBuy {
		best = snap.BestAsk
	} else {
		best = snap.BestBid
		slipSign = -1.0
	}
	if best == nil || *best <= 0 || snap.Mid <= 0 {
		return 0, false, false
	}

	pts := []curvePoint{{0, *best}}
	if snap.DepthUSD1Pct > 0 {
		pts = append(pts, curvePoint{snap.DepthUSD1Pct, snap.Mid * (1 + slipSign*0.01)})
	}
	if snap.DepthUSD5Pct > pts[len(pts)-1].x {
		pts = append(pts, curvePoint{snap.DepthUSD5Pct, snap.Mid * (1 + slipSign*0.05)})
	}
	if len(pts) == 1 {
		// Best quote with no depth behind it: priceable at the top of book
		// but never executable for a full bucket.
		return *best, false, true
	}

	guaranteed := pts[len(pts)-1].x
	price := curveVWAP(pts, q)
	if price < 0 {
		price = 0
	}
	return price, q <= guaranteed, true
}

type curvePoint struct {
	x float64 // cumulative notional, USD
	p float64 // marginal price at x
}

// curveVWAP integrates the piecewise-linear marginal-price curve over [0, q]
// and returns the average. Beyond the last breakpoint the final segment's
// slope continues.
func curveVWAP(pts []curvePoint, q float64) float64 {
	total := 0.0
	filled := 0.0
	lastSlope := 0.0

	for i := 1; i < len(pts) && filled < q; i++ {
		a, b := pts[i-1], pts[i]
		width := b.x - a.x
		if width <= 0 {
			continue
		}
		slope := (b.p - a.p) / width
		lastSlope = slope

		take := math.Min(b.x, q) - filled
		pStart := a.p + slope*(filled-a.x)
		pEnd := pStart + slope*take
		total += take * (pStart + pEnd) / 2
		filled += take
	}

	if filled < q {
		rem := q - filled
		pStart := pts[len(pts)-1].p
		pEnd := pStart + lastSlope*rem
		total += rem * (pStart + pEnd) / 2
	}
	return total / q
}
