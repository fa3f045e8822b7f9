package api

import (
	"net/http"
	"strings"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/llm"
	"github.com/ashureev/covenant/internal/prompt"
)

const (
	companionTemperature = 0.7
	companionMaxTokens   = 2048
)

type companionRequest struct {
	Messages     []domain.ChatMessage `json:"messages"`
	Answers      []string             `json:"answers"`
	CovenantText string               `json:"covenantText"`
	DisplayName  string               `json:"displayName"`
}

// Companion handles POST /api/companion, streaming a coaching reply grounded
// in the caller's own covenant.
func (h *Handler) Companion(w http.ResponseWriter, r *http.Request) {
	var req companionRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	turns := toModelTurns(req.Messages)
	if len(turns) == 0 {
		Error(w, http.StatusBadRequest, "At least one message is required.")
		return
	}

	h.streamParts(w, r, h.gen.Stream(r.Context(), llm.Request{
		System:          prompt.CompanionSystem(req.DisplayName, req.CovenantText, req.Answers),
		Messages:        turns,
		Temperature:     companionTemperature,
		MaxOutputTokens: companionMaxTokens,
	}), func(w http.ResponseWriter) {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	})
}

// toModelTurns converts chat messages to model turns. Reasoning parts are
// dropped, as are turns with no text or an unknown role.
func toModelTurns(msgs []domain.ChatMessage) []llm.Message {
	turns := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		var role llm.Role
		switch m.Role {
		case domain.RoleUser:
			role = llm.RoleUser
		case domain.RoleAssistant:
			role = llm.RoleModel
		default:
			continue
		}
		text := m.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		turns = append(turns, llm.Message{Role: role, Text: text})
	}
	return turns
}
