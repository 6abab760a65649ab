package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotFacadeCacheHit(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	cache := newFakeCache()
	store := newFakeSnapshotStore()
	snap := bookSnap("polymarket", "o1", 0.49, 0.50, 1000, 5000, ts)
	require.NoError(t, cache.Set(ctx, snap))

	facade := NewSnapshotFacade(cache, store, testLogger())

	got, ok, err := facade.Latest(ctx, "polymarket", "o1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestSnapshotFacadeCacheErrorFallsBackToStore(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	cache := newFakeCache()
	cache.err = errors.New("connection refused")

	store := newFakeSnapshotStore()
	snap := bookSnap("polymarket", "o1", 0.49, 0.50, 1000, 5000, ts)
	require.NoError(t, store.Insert(ctx, snap))

	facade := NewSnapshotFacade(cache, store, testLogger())

	got, ok, err := facade.Latest(ctx, "polymarket", "o1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, got)
}

func TestSnapshotFacadeAbsenceIsNotAnError(t *testing.T) {
	ctx := context.Background()

	facade := NewSnapshotFacade(newFakeCache(), newFakeSnapshotStore(), testLogger())

	_, ok, err := facade.Latest(ctx, "polymarket", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSnapshotFacadeStoreErrorPropagates(t *testing.T) {
	ctx := context.Background()

	store := newFakeSnapshotStore()
	store.err = errors.New("relation does not exist")

	facade := NewSnapshotFacade(newFakeCache(), store, testLogger())

	_, _, err := facade.Latest(ctx, "polymarket", "o1")
	require.Error(t, err)
	assert.ErrorContains(t, err, "relation does not exist")
}

func TestSnapshotFacadeNilCache(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	store := newFakeSnapshotStore()
	snap := bookSnap("kalshi", "o2", 0.55, 0.56, 1000, 5000, ts)
	require.NoError(t, store.Insert(ctx, snap))

	facade := NewSnapshotFacade(nil, store, testLogger())

	got, ok, err := facade.Latest(ctx, "kalshi", "o2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snap, got)
}
