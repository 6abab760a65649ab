package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/predexlabs/oppengine/internal/domain"
)

// Fingerprint computes the deterministic digest of a snapshot's core pricing
// fields: timestamp, venue, outcome id, best bid, best ask, mid. Depth and
// AMM-slippage fields are deliberately excluded — they may be recomputed
// transiently without changing replay identity. Two snapshots that agree on
// the hashed subset fingerprint identically no matter how often they are
// serialized.
func Fingerprint(s domain.LiquiditySnapshot) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(s.Timestamp.UTC().UnixNano(), 10))
	b.WriteByte('|')
	b.WriteString(s.Venue)
	b.WriteByte('|')
	b.WriteString(s.OutcomeID)
	b.WriteByte('|')
	writePrice(&b, s.BestBid)
	b.WriteByte('|')
	writePrice(&b, s.BestAsk)
	b.WriteByte('|')
	b.WriteString(strconv.FormatFloat(s.Mid, 'g', -1, 64))

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func writePrice(b *strings.Builder, p *float64) {
	if p == nil {
		b.WriteByte('-')
		return
	}
	b.WriteString(strconv.FormatFloat(*p, 'g', -1, 64))
}

// Reference builds the snapshot reference tying an edge profile to its two
// input snapshots. Stored fingerprints are trusted when present; otherwise
// they are computed on the spot.
func Reference(buy, sell domain.LiquiditySnapshot) domain.SnapshotReference {
	return domain.SnapshotReference{
		SchemaVersion: domain.EdgeSchemaVersion,
		BuyVenue:      buy.Venue,
		BuyOutcomeID:  buy.OutcomeID,
		BuyHash:       fingerprintOf(buy),
		BuyTimestamp:  buy.Timestamp,
		SellVenue:     sell.Venue,
		SellOutcomeID: sell.OutcomeID,
		SellHash:      fingerprintOf(sell),
		SellTimestamp: sell.Timestamp,
	}
}

func fingerprintOf(s domain.LiquiditySnapshot) string {
	if s.Fingerprint != "" {
		return s.Fingerprint
	}
	return Fingerprint(s)
}
