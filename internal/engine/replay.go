package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/predexlabs/oppengine/internal/domain"
)

// replayToleranceBps is the absolute net-edge difference below which a
// recomputation counts as a match.
const replayToleranceBps = 1.0

// ReplayVerifier rechecks a stored opportunity against the exact snapshots
// referenced by its fingerprints. It is the platform's audit contract: every
// persisted opportunity must be independently reproducible from its inputs.
type ReplayVerifier struct {
	opps          domain.OpportunityStore
	snapshots     domain.SnapshotStore
	groups        domain.EventGroupStore
	riskBufferBps float64
	buckets       []float64
	venueFees     map[string]float64
	logger        *slog.Logger
}

// NewReplayVerifier creates a verifier that recomputes profiles with the
// given risk buffer, bucket, and venue fee-schedule configuration (the values
// in effect for the running engine).
func NewReplayVerifier(
	opps domain.OpportunityStore,
	snapshots domain.SnapshotStore,
	groups domain.EventGroupStore,
	riskBufferBps float64,
	buckets []float64,
	venueFees map[string]float64,
	logger *slog.Logger,
) *ReplayVerifier {
	return &ReplayVerifier{
		opps:          opps,
		snapshots:     snapshots,
		groups:        groups,
		riskBufferBps: riskBufferBps,
		buckets:       buckets,
		venueFees:     venueFees,
		logger:        logger.With(slog.String("component", "replay")),
	}
}

// Replay loads the opportunity, re-locates both referenced snapshots by
// (venue, outcome, fingerprint), recomputes the edge profile with the same
// fee and risk-buffer inputs, and compares the net edge at the stored
// best_q. Integrity failures come back as result values; only store access
// failures surface as errors.
func (v *ReplayVerifier) Replay(ctx context.Context, opportunityID string) (domain.ReplayResult, error) {
	opp, err := v.opps.GetByID(ctx, opportunityID)
	if err != nil {
		return domain.ReplayResult{}, fmt.Errorf("replay: load opportunity %s: %w", opportunityID, err)
	}
	result := domain.ReplayResult{OpportunityID: opp.ID}

	ref := opp.Snapshots
	buySnap, err := v.snapshots.ByFingerprint(ctx, ref.BuyVenue, ref.BuyOutcomeID, ref.BuyHash)
	if err != nil {
		return v.missingOr(result, err, "buy")
	}
	sellSnap, err := v.snapshots.ByFingerprint(ctx, ref.SellVenue, ref.SellOutcomeID, ref.SellHash)
	if err != nil {
		return v.missingOr(result, err, "sell")
	}

	buyFee, sellFee, err := v.legFees(ctx, opp.Key)
	if err != nil {
		return domain.ReplayResult{}, err
	}

	recomputed := ComputeEdgeProfile(buySnap, sellSnap, buyFee, sellFee, v.riskBufferBps, v.buckets)

	stored, ok := opp.Profile.BestBucket()
	if !ok {
		// Opportunities are only persisted with a best bucket; a row without
		// one cannot be verified and is reported as a mismatch.
		result.Status = domain.ReplayMismatch
		return result, nil
	}

	var replayed *domain.QBucketResult
	for i := range recomputed.Buckets {
		if recomputed.Buckets[i].SizeUSD == stored.SizeUSD {
			replayed = &recomputed.Buckets[i]
			break
		}
	}
	if replayed == nil {
		result.Status = domain.ReplayMismatch
		result.EdgeDiffBps = math.Abs(stored.NetEdge) * 10_000
		return result, nil
	}

	diffBps := math.Abs(replayed.NetEdge-stored.NetEdge) * 10_000
	result.EdgeDiffBps = diffBps
	if diffBps < replayToleranceBps {
		result.Status = domain.ReplayMatch
	} else {
		result.Status = domain.ReplayMismatch
	}
	return result, nil
}

func (v *ReplayVerifier) missingOr(result domain.ReplayResult, err error, leg string) (domain.ReplayResult, error) {
	if errors.Is(err, domain.ErrNotFound) {
		v.logger.Warn("referenced snapshot not found",
			slog.String("opportunity_id", result.OpportunityID),
			slog.String("leg", leg),
		)
		result.Status = domain.ReplaySnapshotNotFound
		return result, nil
	}
	return domain.ReplayResult{}, fmt.Errorf("replay: locate %s snapshot: %w", leg, err)
}

// legFees resolves the fee inputs that were in effect for the pair: the
// curated leg fee, falling back to the venue schedule when the leg carries
// none, mirroring the scanner. A group that has since disappeared degrades to
// zero fees rather than blocking the audit.
func (v *ReplayVerifier) legFees(ctx context.Context, key domain.OpportunityKey) (buyFee, sellFee float64, err error) {
	group, err := v.groups.GetByID(ctx, key.EventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("replay: load event group %s: %w", key.EventID, err)
	}
	for _, leg := range group.Legs {
		if leg.Venue == key.BuyVenue && leg.OutcomeID == key.BuyOutcomeID {
			buyFee = leg.FeeBps
		}
		if leg.Venue == key.SellVenue && leg.OutcomeID == key.SellOutcomeID {
			sellFee = leg.FeeBps
		}
	}
	if buyFee == 0 {
		buyFee = v.venueFees[key.BuyVenue]
	}
	if sellFee == 0 {
		sellFee = v.venueFees[key.SellVenue]
	}
	return buyFee, sellFee, nil
}
