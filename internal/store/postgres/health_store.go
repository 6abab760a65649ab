package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predexlabs/oppengine/internal/domain"
)

// HealthStore implements domain.HealthStore using PostgreSQL. The ingestion
// boundary upserts rows; the engine only queries them.
type HealthStore struct {
	pool *pgxpool.Pool
}

// NewHealthStore creates a HealthStore backed by the given pool.
func NewHealthStore(pool *pgxpool.Pool) *HealthStore {
	return &HealthStore{pool: pool}
}

// List returns the latest health state per venue.
func (s *HealthStore) List(ctx context.Context) ([]domain.VenueHealth, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT venue, status, detail, checked_at FROM venue_health ORDER BY venue")
	if err != nil {
		return nil, fmt.Errorf("postgres: list venue health: %w", err)
	}
	defer rows.Close()

	var out []domain.VenueHealth
	for rows.Next() {
		var h domain.VenueHealth
		var status string
		if err := rows.Scan(&h.Venue, &status, &h.Detail, &h.CheckedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan venue health: %w", err)
		}
		h.Status = domain.HealthStatus(status)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list venue health rows: %w", err)
	}
	return out, nil
}

// AnyRed reports whether any venue currently reports a hard failure.
func (s *HealthStore) AnyRed(ctx context.Context) (bool, error) {
	var red bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM venue_health WHERE status = 'red')").Scan(&red)
	if err != nil {
		return false, fmt.Errorf("postgres: any red: %w", err)
	}
	return red, nil
}

var _ domain.HealthStore = (*HealthStore)(nil)
