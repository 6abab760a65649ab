package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/predexlabs/oppengine/internal/domain"
)

// BlobWriter is the narrow upload interface the archiver needs. *Writer
// satisfies it; tests substitute an in-memory implementation.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Config holds the archival schedule and retention windows.
type Config struct {
	// Interval between archival sweeps.
	Interval time.Duration

	// OpportunityMaxAge is how long closed opportunities stay in Postgres
	// before being moved to cold storage.
	OpportunityMaxAge time.Duration

	// SnapshotMaxAge is how long liquidity snapshots are retained. Snapshots
	// are pruned without upload; replay verification only reaches back within
	// this window.
	SnapshotMaxAge time.Duration

	// BatchSize caps the number of opportunities moved per sweep.
	BatchSize int
}

// Archiver periodically moves closed opportunities (expired, invalid,
// executed, dismissed) older than the retention window out of Postgres into
// JSONL objects in the bucket, and prunes old liquidity snapshots.
//
// Rows are deleted only after the upload succeeds, so a failed sweep leaves
// the hot store intact and the next sweep retries the same batch.
type Archiver struct {
	writer    BlobWriter
	opps      domain.OpportunityStore
	snapshots domain.SnapshotStore
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

// NewArchiver creates an Archiver.
func NewArchiver(writer BlobWriter, opps domain.OpportunityStore, snapshots domain.SnapshotStore, cfg Config, logger *slog.Logger) *Archiver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	return &Archiver{
		writer:    writer,
		opps:      opps,
		snapshots: snapshots,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "archiver")),
		now:       time.Now,
	}
}

// Run executes archival sweeps on the configured interval until ctx is
// cancelled. Sweep errors are logged; the loop keeps going.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.logger.InfoContext(ctx, "archiver started",
		slog.Duration("interval", a.cfg.Interval),
		slog.Duration("opportunity_max_age", a.cfg.OpportunityMaxAge),
		slog.Duration("snapshot_max_age", a.cfg.SnapshotMaxAge),
	)

	for {
		select {
		case <-ctx.Done():
			a.logger.InfoContext(ctx, "archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil {
				a.logger.ErrorContext(ctx, "archival sweep failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// Sweep archives one batch of closed opportunities and prunes expired
// snapshots. It is safe to call concurrently with the scanner: only rows in
// terminal statuses older than the cutoff are touched.
func (a *Archiver) Sweep(ctx context.Context) error {
	now := a.now().UTC()

	archived, err := a.archiveOpportunities(ctx, now.Add(-a.cfg.OpportunityMaxAge))
	if err != nil {
		return err
	}

	pruned, err := a.snapshots.PruneBefore(ctx, now.Add(-a.cfg.SnapshotMaxAge))
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}

	if archived > 0 || pruned > 0 {
		a.logger.InfoContext(ctx, "archival sweep complete",
			slog.Int("opportunities_archived", archived),
			slog.Int64("snapshots_pruned", pruned),
		)
	}
	return nil
}

func (a *Archiver) archiveOpportunities(ctx context.Context, before time.Time) (int, error) {
	opps, err := a.opps.ListClosedBefore(ctx, before, a.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list closed opportunities: %w", err)
	}
	if len(opps) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(opps)
	if err != nil {
		return 0, fmt.Errorf("marshal opportunities: %w", err)
	}

	path := archivePath("opportunities", a.now().UTC())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("upload %s: %w", path, err)
	}

	ids := make([]string, len(opps))
	for i, o := range opps {
		ids[i] = o.ID
	}
	if _, err := a.opps.DeleteByIDs(ctx, ids); err != nil {
		// The objects are already uploaded; a re-upload on retry overwrites
		// the same key for this sweep window, so this is not data loss.
		return 0, fmt.Errorf("delete archived opportunities: %w", err)
	}

	a.logger.DebugContext(ctx, "opportunity batch archived",
		slog.String("path", path),
		slog.Int("count", len(opps)),
	)
	return len(opps), nil
}

// archivePath builds the object key for an archive batch, partitioned by day
// with a timestamp suffix so successive sweeps never collide.
//
//	archive/opportunities/2026-08-31/143005.jsonl
func archivePath(kind string, at time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl", kind, at.Format("2006-01-02"), at.Format("150405"))
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
