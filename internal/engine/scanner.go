package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/predexlabs/oppengine/internal/domain"
)

// Alerter receives an event when a new opportunity row is opened. It matches
// the notify package; a nil Alerter disables alerts.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Broadcaster pushes opportunity updates to live subscribers (the WebSocket
// hub). A nil Broadcaster disables broadcasting.
type Broadcaster interface {
	Broadcast(event string, payload any)
}

// ScanConfig holds the orchestrator's tuning knobs.
type ScanConfig struct {
	Interval      time.Duration
	ExpiryWindow  time.Duration
	MinConfidence float64
	MinEdgeBps    float64
	RiskBufferBps float64
	Buckets       []float64
	Concurrency   int

	// Per-venue staleness thresholds; venues not listed use the default.
	StaleAfter        map[string]time.Duration
	DefaultStaleAfter time.Duration

	// Per-venue fallback fees (bps) for legs that carry no fee of their own.
	VenueFees map[string]float64
}

// Scanner is the health-gated periodic driver: enumerate canonical event
// groups, evaluate every ordered venue pair, persist qualifying edges, and
// expire rows that were not re-confirmed.
type Scanner struct {
	cfg       ScanConfig
	facade    *SnapshotFacade
	lifecycle *Lifecycle
	groups    domain.EventGroupStore
	health    domain.HealthStore
	alerter   Alerter
	hub       Broadcaster
	logger    *slog.Logger
	now       func() time.Time
}

// NewScanner creates a scanner. alerter and hub are optional.
func NewScanner(
	cfg ScanConfig,
	facade *SnapshotFacade,
	lifecycle *Lifecycle,
	groups domain.EventGroupStore,
	health domain.HealthStore,
	alerter Alerter,
	hub Broadcaster,
	logger *slog.Logger,
) *Scanner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 8
	}
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = DefaultBuckets
	}
	return &Scanner{
		cfg:       cfg,
		facade:    facade,
		lifecycle: lifecycle,
		groups:    groups,
		health:    health,
		alerter:   alerter,
		hub:       hub,
		logger:    logger.With(slog.String("component", "scanner")),
		now:       time.Now,
	}
}

// Run drives the scan loop until ctx is cancelled. The loop is single-flight:
// each scan runs to completion before the next tick is considered, and
// time.Ticker drops ticks that fire while a scan is still running, so two
// scans never overlap. A failed scan is logged and the schedule continues.
func (s *Scanner) Run(ctx context.Context) error {
	s.logger.Info("scanner starting",
		slog.Duration("interval", s.cfg.Interval),
		slog.Duration("expiry_window", s.cfg.ExpiryWindow),
	)
	defer s.logger.Info("scanner stopped")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("scan cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// ScanOnce performs one full scan cycle: health gate, pair sweep, expiry.
// When any venue reports red, the whole cycle is skipped — no upserts and no
// expirations — which is the platform-wide read-only mode during upstream
// outages.
func (s *Scanner) ScanOnce(ctx context.Context) error {
	red, err := s.health.AnyRed(ctx)
	if err != nil {
		return fmt.Errorf("scanner: health check: %w", err)
	}
	if red {
		s.logger.Warn("scan skipped: venue health red")
		return nil
	}

	groups, err := s.groups.ListScannable(ctx)
	if err != nil {
		return fmt.Errorf("scanner: list event groups: %w", err)
	}

	start := s.now()
	var scanned, upserted int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	results := make(chan bool, s.cfg.Concurrency)
	done := make(chan struct{})
	go func() {
		for created := range results {
			scanned++
			if created {
				upserted++
			}
		}
		close(done)
	}()

	for _, group := range groups {
		if group.DistinctVenues() < 2 {
			continue
		}
		for i := range group.Legs {
			for j := range group.Legs {
				if i == j || group.Legs[i].Venue == group.Legs[j].Venue {
					continue
				}
				grp, buyLeg, sellLeg := group, group.Legs[i], group.Legs[j]
				g.Go(func() error {
					// A per-pair failure must not take down the sweep.
					created, err := s.evaluatePair(gctx, grp, buyLeg, sellLeg)
					if err != nil {
						s.logger.Warn("pair skipped",
							slog.String("event_id", grp.ID),
							slog.String("buy", buyLeg.Venue+"/"+buyLeg.OutcomeID),
							slog.String("sell", sellLeg.Venue+"/"+sellLeg.OutcomeID),
							slog.String("error", err.Error()),
						)
						return nil
					}
					results <- created
					return nil
				})
			}
		}
	}
	_ = g.Wait()
	close(results)
	<-done

	if _, err := s.lifecycle.Expire(ctx, s.cfg.ExpiryWindow); err != nil {
		return err
	}

	s.logger.Debug("scan cycle complete",
		slog.Int("groups", len(groups)),
		slog.Int("pairs_scored", scanned),
		slog.Int("upserts", upserted),
		slog.Duration("took", s.now().Sub(start)),
	)
	return nil
}

// evaluatePair runs the full pipeline for one ordered (buy, sell) pair:
// fetch both snapshots, compute the edge profile, score it, and upsert when
// it qualifies. Returns whether a new opportunity row was created. A missing
// snapshot on either leg is a normal skip, not an error.
func (s *Scanner) evaluatePair(ctx context.Context, group domain.CanonicalEventGroup, buyLeg, sellLeg domain.EventLeg) (bool, error) {
	buySnap, ok, err := s.facade.Latest(ctx, buyLeg.Venue, buyLeg.OutcomeID)
	if err != nil || !ok {
		return false, err
	}
	sellSnap, ok, err := s.facade.Latest(ctx, sellLeg.Venue, sellLeg.OutcomeID)
	if err != nil || !ok {
		return false, err
	}

	profile := ComputeEdgeProfile(buySnap, sellSnap, s.legFee(buyLeg), s.legFee(sellLeg), s.cfg.RiskBufferBps, s.cfg.Buckets)
	best, hasBest := profile.BestBucket()
	if !hasBest {
		return false, nil
	}
	if best.NetEdge*10_000 < s.cfg.MinEdgeBps {
		return false, nil
	}

	now := s.now().UTC()
	ambiguity := maxFloat(buyLeg.TruthAmbiguity, sellLeg.TruthAmbiguity)
	resolveAt := earliestResolve(buyLeg.ResolveAt, sellLeg.ResolveAt)

	confidence := ConfidenceScore(ConfidenceInputs{
		Profile:        profile,
		Buy:            buySnap,
		Sell:           sellSnap,
		BuyStaleAfter:  s.staleAfter(buyLeg.Venue),
		SellStaleAfter: s.staleAfter(sellLeg.Venue),
		TruthAmbiguity: ambiguity,
		ResolveAt:      resolveAt,
		Now:            now,
	})
	if confidence < s.cfg.MinConfidence {
		return false, nil
	}

	flags := ComputeFlags(FlagInputs{
		Buy:            buySnap,
		Sell:           sellSnap,
		BuyStaleAfter:  s.staleAfter(buyLeg.Venue),
		SellStaleAfter: s.staleAfter(sellLeg.Venue),
		TruthAmbiguity: ambiguity,
		ResolveAt:      resolveAt,
		Now:            now,
	})

	candidate := Candidate{
		Key: domain.OpportunityKey{
			EventID:       group.ID,
			BuyVenue:      buyLeg.Venue,
			SellVenue:     sellLeg.Venue,
			BuyOutcomeID:  buyLeg.OutcomeID,
			SellOutcomeID: sellLeg.OutcomeID,
		},
		Confidence: confidence,
		Profile:    profile,
		Snapshots:  Reference(buySnap, sellSnap),
		Flags:      flags,
	}

	created, err := s.lifecycle.Upsert(ctx, candidate)
	if err != nil {
		return false, err
	}
	if created {
		s.announce(ctx, group, candidate, best)
	}
	if s.hub != nil {
		event := "opportunity_updated"
		if created {
			event = "opportunity_opened"
		}
		s.hub.Broadcast(event, candidate)
	}
	return created, nil
}

func (s *Scanner) announce(ctx context.Context, group domain.CanonicalEventGroup, c Candidate, best domain.QBucketResult) {
	if s.alerter == nil {
		return
	}
	title := fmt.Sprintf("Opportunity: %s", group.Title)
	msg := fmt.Sprintf("%s -> %s | edge %.1f bps at $%.0f | confidence %.0f",
		c.Key.BuyVenue, c.Key.SellVenue, best.NetEdge*10_000, best.SizeUSD, c.Confidence)
	if err := s.alerter.Notify(ctx, "opportunity_opened", title, msg); err != nil {
		s.logger.Warn("alert failed", slog.String("error", err.Error()))
	}
}

// legFee resolves the fee for one leg: the curated leg fee wins, and a leg
// without one falls back to the venue's configured schedule.
func (s *Scanner) legFee(leg domain.EventLeg) float64 {
	if leg.FeeBps > 0 {
		return leg.FeeBps
	}
	return s.cfg.VenueFees[leg.Venue]
}

func (s *Scanner) staleAfter(venue string) time.Duration {
	if d, ok := s.cfg.StaleAfter[venue]; ok && d > 0 {
		return d
	}
	return s.cfg.DefaultStaleAfter
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func earliestResolve(a, b *time.Time) *time.Time {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Before(*b):
		return a
	default:
		return b
	}
}
