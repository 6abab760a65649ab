package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/predexlabs/oppengine/internal/domain"
)

func TestComputeFlagsClean(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	resolve := now.Add(48 * time.Hour)

	flags := ComputeFlags(FlagInputs{
		Buy:            bookSnap("a", "o1", 0.49, 0.50, 2000, 8000, now),
		Sell:           bookSnap("b", "o2", 0.55, 0.56, 2000, 8000, now),
		BuyStaleAfter:  time.Minute,
		SellStaleAfter: time.Minute,
		TruthAmbiguity: 0.1,
		ResolveAt:      &resolve,
		Now:            now,
	})

	assert.Equal(t, domain.OpportunityFlags{}, flags)
}

func TestComputeFlagsStale(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	flags := ComputeFlags(FlagInputs{
		Buy:            bookSnap("a", "o1", 0.49, 0.50, 2000, 8000, now.Add(-2*time.Minute)),
		Sell:           bookSnap("b", "o2", 0.55, 0.56, 2000, 8000, now),
		BuyStaleAfter:  time.Minute,
		SellStaleAfter: time.Minute,
		Now:            now,
	})
	assert.True(t, flags.Stale)

	// A leg exactly at its threshold is stale, matching zero freshness.
	flags = ComputeFlags(FlagInputs{
		Buy:            bookSnap("a", "o1", 0.49, 0.50, 2000, 8000, now.Add(-time.Minute)),
		Sell:           bookSnap("b", "o2", 0.55, 0.56, 2000, 8000, now),
		BuyStaleAfter:  time.Minute,
		SellStaleAfter: time.Minute,
		Now:            now,
	})
	assert.True(t, flags.Stale)
}

func TestComputeFlagsThresholds(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	soon := now.Add(20 * time.Minute)

	wide := bookSnap("a", "o1", 0.47, 0.53, 2000, 8000, now) // 6c spread on 0.50 mid
	thin := bookSnap("b", "o2", 0.55, 0.56, 400, 8000, now)

	flags := ComputeFlags(FlagInputs{
		Buy:            wide,
		Sell:           thin,
		BuyStaleAfter:  time.Minute,
		SellStaleAfter: time.Minute,
		TruthAmbiguity: 0.6,
		ResolveAt:      &soon,
		Now:            now,
	})

	assert.True(t, flags.NearResolution)
	assert.True(t, flags.HighAmbiguity)
	assert.True(t, flags.WideSpread)
	assert.True(t, flags.LowDepth)
	assert.False(t, flags.Stale)
}

func TestComputeFlagsAmbiguityBoundary(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	in := FlagInputs{
		Buy:            bookSnap("a", "o1", 0.49, 0.50, 2000, 8000, now),
		Sell:           bookSnap("b", "o2", 0.55, 0.56, 2000, 8000, now),
		BuyStaleAfter:  time.Minute,
		SellStaleAfter: time.Minute,
		TruthAmbiguity: 0.5,
		Now:            now,
	}
	// The flag trips strictly above 0.5.
	assert.False(t, ComputeFlags(in).HighAmbiguity)

	in.TruthAmbiguity = 0.51
	assert.True(t, ComputeFlags(in).HighAmbiguity)
}
