package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/predexlabs/oppengine/internal/domain"
)

// stubOpportunityStore backs the handler tests with a canned set of rows.
// Write paths record the last call so tests can assert on the arguments.
type stubOpportunityStore struct {
	rows []domain.Opportunity

	lastStatus domain.OpportunityStatus
	lastReason string
	statusErr  error
	listErr    error
}

func (s *stubOpportunityStore) GetOpen(context.Context, domain.OpportunityKey) (domain.Opportunity, error) {
	return domain.Opportunity{}, domain.ErrNotFound
}

func (s *stubOpportunityStore) Insert(context.Context, domain.Opportunity) error { return nil }

func (s *stubOpportunityStore) UpdateScan(context.Context, string, domain.ScanUpdate) error {
	return nil
}

func (s *stubOpportunityStore) ExpireBefore(context.Context, time.Time, string) (int64, error) {
	return 0, nil
}

func (s *stubOpportunityStore) GetByID(_ context.Context, id string) (domain.Opportunity, error) {
	for _, o := range s.rows {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Opportunity{}, domain.ErrNotFound
}

func (s *stubOpportunityStore) List(_ context.Context, status domain.OpportunityStatus, _ domain.ListOpts) ([]domain.Opportunity, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Opportunity
	for _, o := range s.rows {
		if status == "" || o.Status == status {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *stubOpportunityStore) UpdateStatus(_ context.Context, id string, status domain.OpportunityStatus, reason string) error {
	if s.statusErr != nil {
		return s.statusErr
	}
	if _, err := s.GetByID(context.Background(), id); err != nil {
		return err
	}
	s.lastStatus = status
	s.lastReason = reason
	return nil
}

func (s *stubOpportunityStore) ListClosedBefore(context.Context, time.Time, int) ([]domain.Opportunity, error) {
	return nil, nil
}

func (s *stubOpportunityStore) DeleteByIDs(context.Context, []string) (int64, error) { return 0, nil }

type stubReplayer struct {
	result domain.ReplayResult
	err    error
}

func (s *stubReplayer) Replay(context.Context, string) (domain.ReplayResult, error) {
	return s.result, s.err
}

func newTestHandler(store *stubOpportunityStore, replayer Replayer) *OpportunityHandler {
	return NewOpportunityHandler(store, replayer, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func pathRequest(method, target, id, body string) *http.Request {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if id != "" {
		r.SetPathValue("id", id)
	}
	return r
}

func TestListEmptyReturnsEmptyArray(t *testing.T) {
	h := newTestHandler(&stubOpportunityStore{}, nil)
	rec := httptest.NewRecorder()

	h.List(rec, pathRequest(http.MethodGet, "/api/opportunities", "", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"opportunities":[]}`, rec.Body.String())
}

func TestListRejectsUnknownStatus(t *testing.T) {
	h := newTestHandler(&stubOpportunityStore{}, nil)
	rec := httptest.NewRecorder()

	h.List(rec, pathRequest(http.MethodGet, "/api/opportunities?status=pending", "", ""))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFiltersByStatus(t *testing.T) {
	store := &stubOpportunityStore{rows: []domain.Opportunity{
		{ID: "a", Status: domain.OpportunityOpen},
		{ID: "b", Status: domain.OpportunityExpired},
	}}
	h := newTestHandler(store, nil)
	rec := httptest.NewRecorder()

	h.List(rec, pathRequest(http.MethodGet, "/api/opportunities?status=open", "", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Opportunities []domain.Opportunity `json:"opportunities"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Opportunities, 1)
	assert.Equal(t, "a", resp.Opportunities[0].ID)
}

func TestGetNotFound(t *testing.T) {
	h := newTestHandler(&stubOpportunityStore{}, nil)
	rec := httptest.NewRecorder()

	h.Get(rec, pathRequest(http.MethodGet, "/api/opportunities/nope", "nope", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReplayReturnsResult(t *testing.T) {
	replayer := &stubReplayer{result: domain.ReplayResult{
		OpportunityID: "a",
		Status:        domain.ReplayMatch,
		EdgeDiffBps:   0.2,
	}}
	h := newTestHandler(&stubOpportunityStore{}, replayer)
	rec := httptest.NewRecorder()

	h.Replay(rec, pathRequest(http.MethodPost, "/api/opportunities/a/replay", "a", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	var result domain.ReplayResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, domain.ReplayMatch, result.Status)
}

func TestReplayUnknownOpportunity(t *testing.T) {
	h := newTestHandler(&stubOpportunityStore{}, &stubReplayer{err: domain.ErrNotFound})
	rec := httptest.NewRecorder()

	h.Replay(rec, pathRequest(http.MethodPost, "/api/opportunities/x/replay", "x", ""))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDismissDefaultsReason(t *testing.T) {
	store := &stubOpportunityStore{rows: []domain.Opportunity{{ID: "a", Status: domain.OpportunityOpen}}}
	h := newTestHandler(store, nil)
	rec := httptest.NewRecorder()

	h.Dismiss(rec, pathRequest(http.MethodPost, "/api/opportunities/a/dismiss", "a", ""))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OpportunityDismissed, store.lastStatus)
	assert.Equal(t, "dismissed via api", store.lastReason)
}

func TestDismissWithReason(t *testing.T) {
	store := &stubOpportunityStore{rows: []domain.Opportunity{{ID: "a", Status: domain.OpportunityOpen}}}
	h := newTestHandler(store, nil)
	rec := httptest.NewRecorder()

	h.Dismiss(rec, pathRequest(http.MethodPost, "/api/opportunities/a/dismiss", "a", `{"reason":"stale market"}`))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stale market", store.lastReason)
}

func TestDismissMalformedBody(t *testing.T) {
	h := newTestHandler(&stubOpportunityStore{}, nil)
	rec := httptest.NewRecorder()

	h.Dismiss(rec, pathRequest(http.MethodPost, "/api/opportunities/a/dismiss", "a", "{not json"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDismissGatewayOwnedConflicts(t *testing.T) {
	store := &stubOpportunityStore{statusErr: domain.ErrGatewayOwned}
	h := newTestHandler(store, nil)
	rec := httptest.NewRecorder()

	h.Dismiss(rec, pathRequest(http.MethodPost, "/api/opportunities/a/dismiss", "a", ""))

	assert.Equal(t, http.StatusConflict, rec.Code)
}
