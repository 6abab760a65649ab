package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/predexlabs/oppengine/internal/domain"
)

// Replayer re-verifies a stored opportunity against its referenced snapshots.
// *engine.ReplayVerifier satisfies it.
type Replayer interface {
	Replay(ctx context.Context, id string) (domain.ReplayResult, error)
}

// OpportunityHandler serves the opportunity query, replay, and dismiss
// endpoints.
type OpportunityHandler struct {
	store    domain.OpportunityStore
	replayer Replayer
	logger   *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler.
func NewOpportunityHandler(store domain.OpportunityStore, replayer Replayer, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, replayer: replayer, logger: logger}
}

// listResponse wraps the opportunity list response.
type listResponse struct {
	Opportunities []domain.Opportunity `json:"opportunities"`
}

// List returns opportunities, optionally filtered by status.
// GET /api/opportunities?status=open&limit=50&offset=0
func (h *OpportunityHandler) List(w http.ResponseWriter, r *http.Request) {
	var status domain.OpportunityStatus
	if v := r.URL.Query().Get("status"); v != "" {
		status = domain.OpportunityStatus(v)
		switch status {
		case domain.OpportunityOpen, domain.OpportunityExpired, domain.OpportunityInvalid,
			domain.OpportunityExecuted, domain.OpportunityDismissed:
		default:
			writeError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
	}

	opps, err := h.store.List(r.Context(), status, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	if opps == nil {
		opps = []domain.Opportunity{}
	}
	writeJSON(w, http.StatusOK, listResponse{Opportunities: opps})
}

// Get returns a single opportunity by id.
// GET /api/opportunities/{id}
func (h *OpportunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing opportunity id")
		return
	}

	opp, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "opportunity not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get opportunity failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get opportunity")
		return
	}
	writeJSON(w, http.StatusOK, opp)
}

// Replay re-runs the edge calculation against the stored snapshots and
// reports whether the result still matches.
// POST /api/opportunities/{id}/replay
func (h *OpportunityHandler) Replay(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing opportunity id")
		return
	}

	result, err := h.replayer.Replay(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "opportunity not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: replay failed",
			slog.String("opportunity_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "replay failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// dismissRequest is the optional body for Dismiss.
type dismissRequest struct {
	Reason string `json:"reason"`
}

// Dismiss marks an opportunity as dismissed. Dismissed rows are never
// reopened or refreshed by the engine.
// POST /api/opportunities/{id}/dismiss
func (h *OpportunityHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing opportunity id")
		return
	}

	// Body is optional; an empty body means no reason was supplied.
	var req dismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "dismissed via api"
	}

	err := h.store.UpdateStatus(r.Context(), id, domain.OpportunityDismissed, reason)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "opportunity not found")
		case errors.Is(err, domain.ErrGatewayOwned):
			writeError(w, http.StatusConflict, "opportunity already executed or dismissed")
		default:
			h.logger.ErrorContext(r.Context(), "handler: dismiss failed",
				slog.String("opportunity_id", id),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "failed to dismiss opportunity")
		}
		return
	}

	h.logger.InfoContext(r.Context(), "opportunity dismissed",
		slog.String("opportunity_id", id),
		slog.String("reason", reason),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id,
		"status": string(domain.OpportunityDismissed),
	})
}
