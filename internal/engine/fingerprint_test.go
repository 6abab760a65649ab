package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predexlabs/oppengine/internal/domain"
)

func TestFingerprintStable(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	snap := bookSnap("polymarket", "o1", 0.49, 0.50, 1000, 5000, ts)

	assert.Equal(t, Fingerprint(snap), Fingerprint(snap))
	assert.Len(t, Fingerprint(snap), 64)
}

func TestFingerprintIgnoresDepthFields(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	a := bookSnap("polymarket", "o1", 0.49, 0.50, 1000, 5000, ts)

	// Depth and AMM calibration can be recomputed without changing replay
	// identity.
	b := a
	b.DepthUSD1Pct = 9999
	b.DepthUSD5Pct = 99_999
	b.AMMSlippage = []domain.SlippageSample{{SizeUSD: 100, Bps: 10}}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprintSensitiveToCoreFields(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	base := bookSnap("polymarket", "o1", 0.49, 0.50, 1000, 5000, ts)

	bidChanged := base
	bidChanged.BestBid = f64(0.48)
	assert.NotEqual(t, Fingerprint(base), Fingerprint(bidChanged))

	tsChanged := base
	tsChanged.Timestamp = ts.Add(time.Millisecond)
	assert.NotEqual(t, Fingerprint(base), Fingerprint(tsChanged))

	venueChanged := base
	venueChanged.Venue = "kalshi"
	assert.NotEqual(t, Fingerprint(base), Fingerprint(venueChanged))

	// A missing quote is distinct from a zero quote.
	nilBid := base
	nilBid.BestBid = nil
	zeroBid := base
	zeroBid.BestBid = f64(0)
	assert.NotEqual(t, Fingerprint(nilBid), Fingerprint(zeroBid))
}

func TestReferenceUsesStoredFingerprint(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	buy := bookSnap("polymarket", "o1", 0.49, 0.50, 1000, 5000, ts)
	buy.Fingerprint = "precomputed"
	sell := bookSnap("kalshi", "o2", 0.55, 0.56, 1000, 5000, ts)

	ref := Reference(buy, sell)

	require.Equal(t, domain.EdgeSchemaVersion, ref.SchemaVersion)
	assert.Equal(t, "precomputed", ref.BuyHash)
	assert.Equal(t, Fingerprint(sell), ref.SellHash)
	assert.Equal(t, "polymarket", ref.BuyVenue)
	assert.Equal(t, "o2", ref.SellOutcomeID)
}
