//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"errors"
	"net/http"
	"strings"
	"testing"
)

const suggestBody = `{
	"questionLabel": "Boundaries",
	"questionText": "Where will you draw the line with your devices?",
	"currentText": "I want to",
	"previousAnswers": [
		{"label": "Values", "answer": "Presence with my family matters most."},
		{"label": "Habits", "answer": "I scroll too much after dinner."},
		{"label": "Work", "answer": "Email follows me everywhere."}
	]
}`

func suggestions(t *testing.T, router http.Handler, body string) []string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/suggest", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var out struct {
		Suggestions []string `json:"suggestions"`
	}
	decodeJSON(t, rec, &out)
	if out.Suggestions == nil {
		t.Fatalf("Suggestions must always be an array, got %s", rec.Body.String())
	}
	return out.Suggestions
}

func TestSuggestReturnsThreeTrimmedSuggestions(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{text: `{"suggestions": [" I want to keep dinners screen free ", "I want my mornings offline", "I want to stop checking email late"]}`}
	_, router := newTestHandler(newFakeRepo(), gen)

	got := suggestions(t, router, suggestBody)
	if len(got) != 3 || got[0] != "I want to keep dinners screen free" {
		t.Fatalf("Unexpected suggestions: %q", got)
	}

	req := gen.lastRequest(t)
	if req.Schema == nil || req.Temperature != 0.9 {
		t.Errorf("Expected structured output at temperature 0.9, got %+v", req)
	}
	text := req.Messages[0].Text
	if strings.Contains(text, "Presence with my family") {
		t.Error("Only the last two previous answers should be included")
	}
	if !strings.Contains(text, "Email follows me everywhere.") {
		t.Error("Most recent previous answer should be included")
	}
}

func TestSuggestDegradesToEmptyList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		gen  *fakeGenerator
	}{
		{name: "malformed body", body: `{"questionLabel":`, gen: &fakeGenerator{text: `{"suggestions":["a","b","c"]}`}},
		{name: "missing question", body: `{"questionLabel": "Values"}`, gen: &fakeGenerator{text: `{"suggestions":["a","b","c"]}`}},
		{name: "generator error", body: suggestBody, gen: &fakeGenerator{err: errors.New("timeout")}},
		{name: "wrong count", body: suggestBody, gen: &fakeGenerator{text: `{"suggestions":["a","b"]}`}},
		{name: "blank suggestion", body: suggestBody, gen: &fakeGenerator{text: `{"suggestions":["a"," ","c"]}`}},
		{name: "not json", body: suggestBody, gen: &fakeGenerator{text: `Here are some ideas`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, router := newTestHandler(newFakeRepo(), tt.gen)
			if got := suggestions(t, router, tt.body); len(got) != 0 {
				t.Errorf("Expected no suggestions, got %q", got)
			}
		})
	}
}
