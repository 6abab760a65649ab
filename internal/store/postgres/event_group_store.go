package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predexlabs/oppengine/internal/domain"
)

// EventGroupStore implements domain.EventGroupStore using PostgreSQL. The
// engine only reads groups; curation happens outside.
type EventGroupStore struct {
	pool *pgxpool.Pool
}

// NewEventGroupStore creates an EventGroupStore backed by the given pool.
func NewEventGroupStore(pool *pgxpool.Pool) *EventGroupStore {
	return &EventGroupStore{pool: pool}
}

// ListScannable returns open groups whose legs span at least two distinct
// venues, with legs attached.
func (s *EventGroupStore) ListScannable(ctx context.Context) ([]domain.CanonicalEventGroup, error) {
	const query = `
		SELECT g.id, g.title, g.status, g.created_at, g.updated_at
		FROM canonical_event_groups g
		WHERE g.status = 'open'
		  AND (SELECT COUNT(DISTINCT l.venue) FROM canonical_event_legs l WHERE l.group_id = g.id) >= 2
		ORDER BY g.id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list scannable groups: %w", err)
	}
	defer rows.Close()

	var groups []domain.CanonicalEventGroup
	for rows.Next() {
		var g domain.CanonicalEventGroup
		if err := rows.Scan(&g.ID, &g.Title, &g.Status, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list scannable groups rows: %w", err)
	}

	for i := range groups {
		legs, err := s.legs(ctx, groups[i].ID)
		if err != nil {
			return nil, err
		}
		groups[i].Legs = legs
	}
	return groups, nil
}

// GetByID returns one group with its legs.
func (s *EventGroupStore) GetByID(ctx context.Context, id string) (domain.CanonicalEventGroup, error) {
	const query = `
		SELECT id, title, status, created_at, updated_at
		FROM canonical_event_groups WHERE id = $1`

	var g domain.CanonicalEventGroup
	err := s.pool.QueryRow(ctx, query, id).Scan(&g.ID, &g.Title, &g.Status, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CanonicalEventGroup{}, domain.ErrNotFound
		}
		return domain.CanonicalEventGroup{}, fmt.Errorf("postgres: get group %s: %w", id, err)
	}

	legs, err := s.legs(ctx, g.ID)
	if err != nil {
		return domain.CanonicalEventGroup{}, err
	}
	g.Legs = legs
	return g, nil
}

func (s *EventGroupStore) legs(ctx context.Context, groupID string) ([]domain.EventLeg, error) {
	const query = `
		SELECT venue, outcome_id, fee_bps, resolve_at, truth_ambiguity
		FROM canonical_event_legs
		WHERE group_id = $1
		ORDER BY venue, outcome_id`

	rows, err := s.pool.Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list legs %s: %w", groupID, err)
	}
	defer rows.Close()

	var legs []domain.EventLeg
	for rows.Next() {
		var leg domain.EventLeg
		if err := rows.Scan(&leg.Venue, &leg.OutcomeID, &leg.FeeBps, &leg.ResolveAt, &leg.TruthAmbiguity); err != nil {
			return nil, fmt.Errorf("postgres: scan leg: %w", err)
		}
		legs = append(legs, leg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list legs rows: %w", err)
	}
	return legs, nil
}

var _ domain.EventGroupStore = (*EventGroupStore)(nil)
