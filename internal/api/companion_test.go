//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/llm"
)

const companionBody = `{
	"messages": [
		{"role": "user", "parts": [{"type": "text", "text": "How do I keep my phone out of the bedroom?"}]},
		{"role": "assistant", "parts": [{"type": "reasoning", "text": "hidden"}, {"type": "text", "text": "Try a charging spot in the kitchen."}]},
		{"role": "system", "parts": [{"type": "text", "text": "ignored"}]},
		{"role": "user", "parts": [{"type": "text", "text": "What if I need an alarm?"}]}
	],
	"answers": ["I want calmer evenings"],
	"covenantText": "I will keep screens out of the bedroom.",
	"displayName": "Sam"
}`

func TestCompanionStreamsReply(t *testing.T) {
	t.Parallel()

	repo := newFakeRepo()
	gen := &fakeGenerator{steps: textParts("Use a ", "simple alarm clock.")}
	h, router := newTestHandler(repo, gen)

	rec := do(t, router, http.MethodPost, "/api/companion", companionBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	events := parseSSE(t, rec.Body.String())
	if len(events) != 3 || events[2].Event != eventFinish {
		t.Fatalf("Unexpected events: %+v", events)
	}

	req := gen.lastRequest(t)
	want := []llm.Message{
		{Role: llm.RoleUser, Text: "How do I keep my phone out of the bedroom?"},
		{Role: llm.RoleModel, Text: "Try a charging spot in the kitchen."},
		{Role: llm.RoleUser, Text: "What if I need an alarm?"},
	}
	if len(req.Messages) != len(want) {
		t.Fatalf("Expected %d turns, got %d: %+v", len(want), len(req.Messages), req.Messages)
	}
	for i := range want {
		if req.Messages[i] != want[i] {
			t.Errorf("turn %d: expected %+v, got %+v", i, want[i], req.Messages[i])
		}
	}
	if !strings.Contains(req.System, "I will keep screens out of the bedroom.") || !strings.Contains(req.System, "Sam") {
		t.Error("System prompt should carry the covenant and name")
	}
	if req.IncludeReasoning {
		t.Error("Companion replies do not request reasoning")
	}

	h.Wait()
	if len(repo.saved()) != 0 {
		t.Error("Companion conversations are never persisted")
	}
}

func TestCompanionRequiresMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "malformed", body: `{"messages": [`, want: "Invalid JSON body."},
		{name: "no messages", body: `{"messages": []}`, want: "At least one message is required."},
		{name: "only empty text", body: `{"messages": [{"role": "user", "parts": [{"type": "text", "text": "  "}]}]}`, want: "At least one message is required."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			gen := &fakeGenerator{}
			_, router := newTestHandler(newFakeRepo(), gen)

			rec := do(t, router, http.MethodPost, "/api/companion", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("Expected 400, got %d", rec.Code)
			}
			if msg := errorMessage(t, rec); msg != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, msg)
			}
			if gen.calls() != 0 {
				t.Error("Generator must not run")
			}
		})
	}
}

func TestCompanionEarlyFailureIsPlain500(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{steps: []step{{err: errors.New("quota exceeded")}}}
	_, router := newTestHandler(newFakeRepo(), gen)

	rec := do(t, router, http.MethodPost, "/api/companion", companionBody)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}
	if body := rec.Body.String(); body != "Internal Server Error\n" {
		t.Errorf("Unexpected body %q", body)
	}
}

func TestToModelTurnsSkipsReasoning(t *testing.T) {
	t.Parallel()

	turns := toModelTurns([]domain.ChatMessage{
		{Role: domain.RoleAssistant, Parts: []domain.ChatPart{{Type: domain.PartReasoning, Text: "thinking"}}},
		{Role: domain.RoleUser, Parts: []domain.ChatPart{{Text: "untyped "}, {Type: domain.PartText, Text: "parts"}}},
	})
	if len(turns) != 1 || turns[0].Text != "untyped parts" || turns[0].Role != llm.RoleUser {
		t.Fatalf("Unexpected turns: %+v", turns)
	}
}
