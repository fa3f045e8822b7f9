package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ashureev/covenant/internal/metrics"
	"github.com/ashureev/covenant/internal/store"
)

const (
	defaultGalleryLimit = 20
	maxGalleryLimit     = 100
)

type upvoteRequest struct {
	ID interface{} `json:"id"`
}

type upvoteResponse struct {
	Upvotes int `json:"upvotes"`
}

// Upvote handles POST /api/upvote.
func (h *Handler) Upvote(w http.ResponseWriter, r *http.Request) {
	var req upvoteRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	id, _ := req.ID.(string)
	if id == "" {
		Error(w, http.StatusBadRequest, "Missing covenant id")
		return
	}

	upvotes, err := h.repo.IncrementUpvotes(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		h.metrics.Upvote(metrics.OutcomeFailure)
		Error(w, http.StatusNotFound, "Covenant not found")
		return
	}
	if err != nil {
		slog.Error("Failed to upvote covenant", "error", err, "covenant_id", id)
		h.metrics.Upvote(metrics.OutcomeFailure)
		Error(w, http.StatusInternalServerError, "Failed to upvote covenant.")
		return
	}

	h.metrics.Upvote(metrics.OutcomeSuccess)
	JSON(w, http.StatusOK, upvoteResponse{Upvotes: upvotes})
}

// ListCovenants handles GET /api/covenants?limit=N, newest first.
func (h *Handler) ListCovenants(w http.ResponseWriter, r *http.Request) {
	limit := defaultGalleryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxGalleryLimit)
	}

	covenants, err := h.repo.RecentCovenants(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to list covenants", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to load covenants.")
		return
	}
	JSON(w, http.StatusOK, covenants)
}

// Insights handles GET /api/insights.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	summary, err := h.insights.Summary(r.Context())
	if err != nil {
		slog.Error("Failed to build insights", "error", err)
		Error(w, http.StatusInternalServerError, "Failed to load covenants.")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	JSON(w, http.StatusOK, summary)
}
