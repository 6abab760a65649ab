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

// SnapshotStore implements domain.SnapshotStore using PostgreSQL.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotCols = `venue, outcome_id, ts, best_bid, best_ask, mid, spread,
	depth_usd_1pct, depth_usd_5pct, amm_ref_price, amm_slippage, last_update, fingerprint`

// Insert stores a validated snapshot. Snapshots are immutable; a duplicate
// (venue, outcome, ts) key is reported as domain.ErrAlreadyExists.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.LiquiditySnapshot) error {
	var slippage []byte
	if len(snap.AMMSlippage) > 0 {
		var err error
		slippage, err = json.Marshal(snap.AMMSlippage)
		if err != nil {
			return fmt.Errorf("postgres: marshal amm slippage: %w", err)
		}
	}

	const query = `
		INSERT INTO liquidity_snapshots (` + snapshotCols + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (venue, outcome_id, ts) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		snap.Venue, snap.OutcomeID, snap.Timestamp, snap.BestBid, snap.BestAsk,
		snap.Mid, snap.Spread, snap.DepthUSD1Pct, snap.DepthUSD5Pct,
		snap.AMMRefPrice, slippage, snap.LastUpdate, snap.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot %s/%s: %w", snap.Venue, snap.OutcomeID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// Latest returns the most recent snapshot for (venue, outcomeID).
func (s *SnapshotStore) Latest(ctx context.Context, venue, outcomeID string) (domain.LiquiditySnapshot, error) {
	query := `SELECT ` + snapshotCols + `
		FROM liquidity_snapshots
		WHERE venue = $1 AND outcome_id = $2
		ORDER BY ts DESC
		LIMIT 1`
	return s.scanOne(ctx, query, venue, outcomeID)
}

// ByFingerprint locates a historical snapshot by its replay identity.
func (s *SnapshotStore) ByFingerprint(ctx context.Context, venue, outcomeID, fingerprint string) (domain.LiquiditySnapshot, error) {
	query := `SELECT ` + snapshotCols + `
		FROM liquidity_snapshots
		WHERE venue = $1 AND outcome_id = $2 AND fingerprint = $3
		ORDER BY ts DESC
		LIMIT 1`
	return s.scanOne(ctx, query, venue, outcomeID, fingerprint)
}

// PruneBefore deletes snapshots older than cutoff and returns the count.
func (s *SnapshotStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM liquidity_snapshots WHERE ts < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *SnapshotStore) scanOne(ctx context.Context, query string, args ...any) (domain.LiquiditySnapshot, error) {
	var snap domain.LiquiditySnapshot
	var slippage []byte

	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&snap.Venue, &snap.OutcomeID, &snap.Timestamp, &snap.BestBid, &snap.BestAsk,
		&snap.Mid, &snap.Spread, &snap.DepthUSD1Pct, &snap.DepthUSD5Pct,
		&snap.AMMRefPrice, &slippage, &snap.LastUpdate, &snap.Fingerprint,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LiquiditySnapshot{}, domain.ErrNotFound
		}
		return domain.LiquiditySnapshot{}, fmt.Errorf("postgres: scan snapshot: %w", err)
	}
	if len(slippage) > 0 {
		if err := json.Unmarshal(slippage, &snap.AMMSlippage); err != nil {
			return domain.LiquiditySnapshot{}, fmt.Errorf("postgres: decode amm slippage: %w", err)
		}
	}
	return snap, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
