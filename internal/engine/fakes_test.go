package engine

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/predexlabs/oppengine/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// In-memory store and cache implementations shared by the engine tests.

func snapKey(venue, outcomeID string) string {
	return venue + "|" + outcomeID
}

type fakeSnapshotStore struct {
	mu    sync.Mutex
	snaps map[string][]domain.LiquiditySnapshot
	err   error // when set, every call fails with this error
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snaps: make(map[string][]domain.LiquiditySnapshot)}
}

func (s *fakeSnapshotStore) Insert(_ context.Context, snap domain.LiquiditySnapshot) error {
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	k := snapKey(snap.Venue, snap.OutcomeID)
	s.snaps[k] = append(s.snaps[k], snap)
	return nil
}

func (s *fakeSnapshotStore) Latest(_ context.Context, venue, outcomeID string) (domain.LiquiditySnapshot, error) {
	if s.err != nil {
		return domain.LiquiditySnapshot{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.snaps[snapKey(venue, outcomeID)]
	if len(list) == 0 {
		return domain.LiquiditySnapshot{}, domain.ErrNotFound
	}
	return list[len(list)-1], nil
}

func (s *fakeSnapshotStore) ByFingerprint(_ context.Context, venue, outcomeID, fingerprint string) (domain.LiquiditySnapshot, error) {
	if s.err != nil {
		return domain.LiquiditySnapshot{}, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range s.snaps[snapKey(venue, outcomeID)] {
		if snap.Fingerprint == fingerprint {
			return snap, nil
		}
	}
	return domain.LiquiditySnapshot{}, domain.ErrNotFound
}

func (s *fakeSnapshotStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var pruned int64
	for k, list := range s.snaps {
		kept := list[:0]
		for _, snap := range list {
			if snap.Timestamp.Before(cutoff) {
				pruned++
				continue
			}
			kept = append(kept, snap)
		}
		s.snaps[k] = kept
	}
	return pruned, nil
}

type fakeOpportunityStore struct {
	mu   sync.Mutex
	rows map[string]domain.Opportunity
}

func newFakeOpportunityStore() *fakeOpportunityStore {
	return &fakeOpportunityStore{rows: make(map[string]domain.Opportunity)}
}

func (s *fakeOpportunityStore) GetOpen(_ context.Context, key domain.OpportunityKey) (domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.rows {
		if o.Status == domain.OpportunityOpen && o.Key == key {
			return o, nil
		}
	}
	return domain.Opportunity{}, domain.ErrNotFound
}

func (s *fakeOpportunityStore) Insert(_ context.Context, opp domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[opp.ID]; ok {
		return domain.ErrAlreadyExists
	}
	s.rows[opp.ID] = opp
	return nil
}

func (s *fakeOpportunityStore) UpdateScan(_ context.Context, id string, upd domain.ScanUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok || o.Status != domain.OpportunityOpen {
		return domain.ErrNotFound
	}
	o.Confidence = upd.Confidence
	o.Profile = upd.Profile
	o.Snapshots = upd.Snapshots
	o.Flags = upd.Flags
	o.LastSeenAt = upd.LastSeenAt
	s.rows[id] = o
	return nil
}

func (s *fakeOpportunityStore) ExpireBefore(_ context.Context, cutoff time.Time, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, o := range s.rows {
		if o.Status == domain.OpportunityOpen && o.LastSeenAt.Before(cutoff) {
			o.Status = domain.OpportunityExpired
			o.InvalidationReason = reason
			s.rows[id] = o
			n++
		}
	}
	return n, nil
}

func (s *fakeOpportunityStore) GetByID(_ context.Context, id string) (domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok {
		return domain.Opportunity{}, domain.ErrNotFound
	}
	return o, nil
}

func (s *fakeOpportunityStore) List(_ context.Context, status domain.OpportunityStatus, _ domain.ListOpts) ([]domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Opportunity
	for _, o := range s.rows {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeOpportunityStore) UpdateStatus(_ context.Context, id string, status domain.OpportunityStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	if o.Status == domain.OpportunityExecuted || o.Status == domain.OpportunityDismissed {
		return domain.ErrGatewayOwned
	}
	o.Status = status
	o.InvalidationReason = reason
	s.rows[id] = o
	return nil
}

func (s *fakeOpportunityStore) ListClosedBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Opportunity
	for _, o := range s.rows {
		if o.Status != domain.OpportunityOpen && o.LastSeenAt.Before(cutoff) {
			out = append(out, o)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *fakeOpportunityStore) DeleteByIDs(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.rows[id]; ok {
			delete(s.rows, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeOpportunityStore) open() []domain.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Opportunity
	for _, o := range s.rows {
		if o.Status == domain.OpportunityOpen {
			out = append(out, o)
		}
	}
	return out
}

type fakeEventGroupStore struct {
	groups []domain.CanonicalEventGroup
}

func (s *fakeEventGroupStore) ListScannable(_ context.Context) ([]domain.CanonicalEventGroup, error) {
	return s.groups, nil
}

func (s *fakeEventGroupStore) GetByID(_ context.Context, id string) (domain.CanonicalEventGroup, error) {
	for _, g := range s.groups {
		if g.ID == id {
			return g, nil
		}
	}
	return domain.CanonicalEventGroup{}, domain.ErrNotFound
}

type fakeHealthStore struct {
	red bool
}

func (s *fakeHealthStore) List(_ context.Context) ([]domain.VenueHealth, error) {
	return nil, nil
}

func (s *fakeHealthStore) AnyRed(_ context.Context) (bool, error) {
	return s.red, nil
}

type fakeCache struct {
	mu    sync.Mutex
	snaps map[string]domain.LiquiditySnapshot
	err   error // when set, Get fails with this error
}

func newFakeCache() *fakeCache {
	return &fakeCache{snaps: make(map[string]domain.LiquiditySnapshot)}
}

func (c *fakeCache) Set(_ context.Context, snap domain.LiquiditySnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[snapKey(snap.Venue, snap.OutcomeID)] = snap
	return nil
}

func (c *fakeCache) Get(_ context.Context, venue, outcomeID string) (domain.LiquiditySnapshot, error) {
	if c.err != nil {
		return domain.LiquiditySnapshot{}, c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	snap, ok := c.snaps[snapKey(venue, outcomeID)]
	if !ok {
		return domain.LiquiditySnapshot{}, domain.ErrNotFound
	}
	return snap, nil
}
