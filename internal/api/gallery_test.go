//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/insights"
)

func TestUpvote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		upvoteErr  error
		wantStatus int
		wantError  string
	}{
		{name: "malformed", body: `{"id":`, wantStatus: http.StatusBadRequest, wantError: "Invalid JSON body."},
		{name: "missing id", body: `{}`, wantStatus: http.StatusBadRequest, wantError: "Missing covenant id"},
		{name: "non-string id", body: `{"id": 42}`, wantStatus: http.StatusBadRequest, wantError: "Missing covenant id"},
		{name: "unknown id", body: `{"id": "nope"}`, wantStatus: http.StatusNotFound, wantError: "Covenant not found"},
		{name: "store failure", body: `{"id": "c1"}`, upvoteErr: errors.New("locked"), wantStatus: http.StatusInternalServerError, wantError: "Failed to upvote covenant."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := newFakeRepo()
			repo.upvotes["c1"] = 3
			repo.upvoteErr = tt.upvoteErr
			_, router := newTestHandler(repo, &fakeGenerator{})

			rec := do(t, router, http.MethodPost, "/api/upvote", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if msg := errorMessage(t, rec); msg != tt.wantError {
				t.Errorf("Expected %q, got %q", tt.wantError, msg)
			}
		})
	}
}

func TestUpvoteReturnsNewCount(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.upvotes["c1"] = 3
	_, router := newTestHandler(repo, &fakeGenerator{})

	rec := do(t, router, http.MethodPost, "/api/upvote", `{"id": "c1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body upvoteResponse
	decodeJSON(t, rec, &body)
	if body.Upvotes != 4 {
		t.Errorf("Expected 4 upvotes, got %d", body.Upvotes)
	}
}

func TestListCovenantsLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query     string
		wantLimit int
	}{
		{query: "", wantLimit: defaultGalleryLimit},
		{query: "?limit=5", wantLimit: 5},
		{query: "?limit=1000", wantLimit: maxGalleryLimit},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			repo := newFakeRepo()
			_, router := newTestHandler(repo, &fakeGenerator{})

			rec := do(t, router, http.MethodGet, "/api/covenants"+tt.query, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", rec.Code)
			}
			if rec.Body.String() != "[]" {
				t.Errorf("Expected empty array, got %s", rec.Body.String())
			}
			repo.mu.Lock()
			got := repo.lastLimit
			repo.mu.Unlock()
			if got != tt.wantLimit {
				t.Errorf("Expected limit %d, got %d", tt.wantLimit, got)
			}
		})
	}
}

func TestListCovenantsErrors(t *testing.T) {
	t.Parallel()

	for _, q := range []string{"?limit=0", "?limit=-3", "?limit=ten"} {
		_, router := newTestHandler(newFakeRepo(), &fakeGenerator{})
		rec := do(t, router, http.MethodGet, "/api/covenants"+q, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, rec.Code)
		}
	}

	repo := newFakeRepo()
	repo.listErr = errors.New("connection refused")
	_, router := newTestHandler(repo, &fakeGenerator{})
	rec := do(t, router, http.MethodGet, "/api/covenants", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
}

func TestListCovenantsReturnsRows(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	for i := 0; i < 3; i++ {
		repo.covenants = append(repo.covenants, domain.Covenant{
			ID:           fmt.Sprintf("c%d", i),
			DisplayName:  "Anonymous",
			Answers:      domain.Answers{"a long enough answer"},
			CovenantText: "text",
			CreatedAt:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	_, router := newTestHandler(repo, &fakeGenerator{})

	rec := do(t, router, http.MethodGet, "/api/covenants?limit=2", "")
	var got []domain.Covenant
	decodeJSON(t, rec, &got)
	if len(got) != 2 || got[0].ID != "c0" {
		t.Fatalf("Unexpected covenants: %+v", got)
	}
}

func TestInsightsEmpty(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{text: "unused"}
	_, router := newTestHandler(newFakeRepo(), gen)

	rec := do(t, router, http.MethodGet, "/api/insights", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("Insights must not be cached by clients")
	}
	var got insights.Summary
	decodeJSON(t, rec, &got)
	if got != (insights.Summary{}) {
		t.Errorf("Expected zero summary, got %+v", got)
	}
	if gen.calls() != 0 {
		t.Error("No narrative should be generated without covenants")
	}
}

func TestInsightsNarrative(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.covenants = []domain.Covenant{
		{ID: "a", CovenantText: "Phones stay off at dinner.", Upvotes: 2, CreatedAt: time.Now().Add(-time.Hour)},
		{ID: "b", CovenantText: "No email after 7pm.", Upvotes: 1, CreatedAt: time.Now().Add(-60 * 24 * time.Hour)},
	}
	gen := &fakeGenerator{text: "People are reclaiming their evenings."}
	_, router := newTestHandler(repo, gen)

	rec := do(t, router, http.MethodGet, "/api/insights", "")
	var got insights.Summary
	decodeJSON(t, rec, &got)
	want := insights.Summary{TotalCovenants: 2, TotalUpvotes: 3, RecentCovenants: 1, Narrative: "People are reclaiming their evenings."}
	if got != want {
		t.Errorf("Expected %+v, got %+v", want, got)
	}
}

func TestInsightsReadFailure(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	repo.listErr = errors.New("timeout")
	_, router := newTestHandler(repo, &fakeGenerator{})

	rec := do(t, router, http.MethodGet, "/api/insights", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if msg := errorMessage(t, rec); msg != "Failed to load covenants." {
		t.Errorf("Unexpected message %q", msg)
	}
}
