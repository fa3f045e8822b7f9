package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/llm"
	"github.com/ashureev/covenant/internal/metrics"
	"github.com/ashureev/covenant/internal/prompt"
	"google.golang.org/genai"
)

const (
	suggestTemperature = 0.9
	suggestMaxTokens   = 1024
)

var errWrongSuggestionCount = errors.New("model returned the wrong number of suggestions")

type suggestRequest struct {
	QuestionLabel   string                  `json:"questionLabel" validate:"required"`
	QuestionText    string                  `json:"questionText" validate:"required"`
	CurrentText     string                  `json:"currentText"`
	PreviousAnswers []domain.PreviousAnswer `json:"previousAnswers"`
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

var suggestionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestions": {
			Type:     genai.TypeArray,
			Items:    &genai.Schema{Type: genai.TypeString},
			MinItems: genai.Ptr[int64](prompt.SuggestionCount),
			MaxItems: genai.Ptr[int64](prompt.SuggestionCount),
		},
	},
	Required: []string{"suggestions"},
}

// Suggest handles POST /api/suggest. Every failure degrades to an empty list
// with status 200.
func (h *Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	suggestions, err := h.suggest(w, r)
	if err != nil {
		slog.Warn("Suggestions unavailable", "error", err)
		h.metrics.Suggestion(metrics.OutcomeFailure)
		JSON(w, http.StatusOK, suggestResponse{Suggestions: []string{}})
		return
	}
	h.metrics.Suggestion(metrics.OutcomeSuccess)
	JSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

func (h *Handler) suggest(w http.ResponseWriter, r *http.Request) ([]string, error) {
	var req suggestRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		return nil, err
	}
	if err := domain.Validator().Struct(req); err != nil {
		return nil, err
	}

	genReq := llm.Prompt(prompt.Suggest(req.QuestionLabel, req.QuestionText, req.CurrentText, req.PreviousAnswers))
	genReq.Temperature = suggestTemperature
	genReq.MaxOutputTokens = suggestMaxTokens
	genReq.Schema = suggestionSchema

	raw, err := h.gen.Generate(r.Context(), genReq)
	if err != nil {
		return nil, err
	}

	var out suggestResponse
	if err := jsonAPI.UnmarshalFromString(raw, &out); err != nil {
		return nil, err
	}
	if len(out.Suggestions) != prompt.SuggestionCount {
		return nil, errWrongSuggestionCount
	}
	for i, s := range out.Suggestions {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, errWrongSuggestionCount
		}
		out.Suggestions[i] = s
	}
	return out.Suggestions, nil
}
