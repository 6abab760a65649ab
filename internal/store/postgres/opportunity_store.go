package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predexlabs/oppengine/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL. The
// edge profile, snapshot reference, and flags columns are JSONB holding the
// explicit tagged types from the domain package; their schema version is
// validated on every decode.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppCols = `id, event_id, buy_venue, sell_venue, buy_outcome_id, sell_outcome_id,
	status, confidence, edge_profile, snapshot_ref, flags,
	created_at, last_seen_at, invalidation_reason`

// GetOpen returns the single open row for the key, or domain.ErrNotFound.
func (s *OpportunityStore) GetOpen(ctx context.Context, key domain.OpportunityKey) (domain.Opportunity, error) {
	query := `SELECT ` + oppCols + ` FROM opportunities
		WHERE status = 'open'
		  AND event_id = $1 AND buy_venue = $2 AND sell_venue = $3
		  AND buy_outcome_id = $4 AND sell_outcome_id = $5
		LIMIT 1`
	return s.scanOne(s.pool.QueryRow(ctx, query,
		key.EventID, key.BuyVenue, key.SellVenue, key.BuyOutcomeID, key.SellOutcomeID))
}

// Insert stores a new opportunity row.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	profile, ref, flags, err := encodeBlobs(opp.Profile, opp.Snapshots, opp.Flags)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO opportunities (` + oppCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.Key.EventID, opp.Key.BuyVenue, opp.Key.SellVenue,
		opp.Key.BuyOutcomeID, opp.Key.SellOutcomeID,
		string(opp.Status), opp.Confidence, profile, ref, flags,
		opp.CreatedAt, opp.LastSeenAt, opp.InvalidationReason,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// UpdateScan refreshes the per-scan fields of an open row.
func (s *OpportunityStore) UpdateScan(ctx context.Context, id string, upd domain.ScanUpdate) error {
	profile, ref, flags, err := encodeBlobs(upd.Profile, upd.Snapshots, upd.Flags)
	if err != nil {
		return err
	}
	const query = `
		UPDATE opportunities SET
			confidence   = $2,
			edge_profile = $3,
			snapshot_ref = $4,
			flags        = $5,
			last_seen_at = $6
		WHERE id = $1 AND status = 'open'`
	tag, err := s.pool.Exec(ctx, query, id, upd.Confidence, profile, ref, flags, upd.LastSeenAt)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ExpireBefore transitions open rows last seen before cutoff to expired,
// writing the invalidation reason once. Rows already expired (or in any
// other state) are never touched, so repeated sweeps are no-ops.
func (s *OpportunityStore) ExpireBefore(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	const query = `
		UPDATE opportunities SET
			status              = 'expired',
			invalidation_reason = $2
		WHERE status = 'open' AND last_seen_at < $1`
	tag, err := s.pool.Exec(ctx, query, cutoff, reason)
	if err != nil {
		return 0, fmt.Errorf("postgres: expire opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

// GetByID returns one opportunity by id.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	query := `SELECT ` + oppCols + ` FROM opportunities WHERE id = $1`
	return s.scanOne(s.pool.QueryRow(ctx, query, id))
}

// List returns opportunities, optionally filtered by status, newest first.
func (s *OpportunityStore) List(ctx context.Context, status domain.OpportunityStatus, opts domain.ListOpts) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppCols + ` FROM opportunities`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY last_seen_at DESC`
	if opts.Limit > 0 {
		query += fmt.Sprintf(` LIMIT $%d`, len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		opp, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return opps, nil
}

// UpdateStatus applies a gateway-owned transition (dismissed, invalid,
// executed). Rows already executed or dismissed are final and refuse further
// transitions with domain.ErrGatewayOwned.
func (s *OpportunityStore) UpdateStatus(ctx context.Context, id string, status domain.OpportunityStatus, reason string) error {
	const query = `
		UPDATE opportunities SET
			status              = $2,
			invalidation_reason = $3
		WHERE id = $1 AND status NOT IN ('executed', 'dismissed')`
	tag, err := s.pool.Exec(ctx, query, id, string(status), reason)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity status %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a missing row from a final one.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM opportunities WHERE id = $1)", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("postgres: check opportunity %s: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrGatewayOwned
	}
	return nil
}

// ListClosedBefore returns non-open rows last seen before cutoff, oldest
// first, for archival.
func (s *OpportunityStore) ListClosedBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	query := `SELECT ` + oppCols + ` FROM opportunities
		WHERE status <> 'open' AND last_seen_at < $1
		ORDER BY last_seen_at ASC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list closed opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		opp, err := s.scanOne(rows)
		if err != nil {
			return nil, err
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list closed opportunities rows: %w", err)
	}
	return opps, nil
}

// DeleteByIDs removes archived rows and returns the count.
func (s *OpportunityStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM opportunities WHERE id = ANY($1)", ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities: %w", err)
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *OpportunityStore) scanOne(row rowScanner) (domain.Opportunity, error) {
	var opp domain.Opportunity
	var status string
	var profile, ref, flags []byte

	err := row.Scan(
		&opp.ID, &opp.Key.EventID, &opp.Key.BuyVenue, &opp.Key.SellVenue,
		&opp.Key.BuyOutcomeID, &opp.Key.SellOutcomeID,
		&status, &opp.Confidence, &profile, &ref, &flags,
		&opp.CreatedAt, &opp.LastSeenAt, &opp.InvalidationReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, domain.ErrNotFound
		}
		return domain.Opportunity{}, fmt.Errorf("postgres: scan opportunity: %w", err)
	}
	opp.Status = domain.OpportunityStatus(status)

	if err := json.Unmarshal(profile, &opp.Profile); err != nil {
		return domain.Opportunity{}, fmt.Errorf("postgres: decode edge profile: %w", err)
	}
	if opp.Profile.SchemaVersion != domain.EdgeSchemaVersion {
		return domain.Opportunity{}, fmt.Errorf("postgres: edge profile v%d: %w",
			opp.Profile.SchemaVersion, domain.ErrBadSchema)
	}
	if err := json.Unmarshal(ref, &opp.Snapshots); err != nil {
		return domain.Opportunity{}, fmt.Errorf("postgres: decode snapshot ref: %w", err)
	}
	if opp.Snapshots.SchemaVersion != domain.EdgeSchemaVersion {
		return domain.Opportunity{}, fmt.Errorf("postgres: snapshot ref v%d: %w",
			opp.Snapshots.SchemaVersion, domain.ErrBadSchema)
	}
	if err := json.Unmarshal(flags, &opp.Flags); err != nil {
		return domain.Opportunity{}, fmt.Errorf("postgres: decode flags: %w", err)
	}
	return opp, nil
}

func encodeBlobs(profile domain.EdgeProfile, ref domain.SnapshotReference, flags domain.OpportunityFlags) ([]byte, []byte, []byte, error) {
	p, err := json.Marshal(profile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: marshal edge profile: %w", err)
	}
	r, err := json.Marshal(ref)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: marshal snapshot ref: %w", err)
	}
	f, err := json.Marshal(flags)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("postgres: marshal flags: %w", err)
	}
	return p, r, f, nil
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
