package llm

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"google.golang.org/genai"
)

// Gemini implements Generator with the Google GenAI SDK.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini generator for model.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Gemini{client: client, model: model}, nil
}

// Model returns the configured model name.
func (g *Gemini) Model() string { return g.model }

// Stream implements Generator.
func (g *Gemini) Stream(ctx context.Context, req Request) iter.Seq2[Part, error] {
	return func(yield func(Part, error) bool) {
		contents := buildContents(req.Messages)
		cfg := buildConfig(req)

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
			if err != nil {
				yield(Part{}, fmt.Errorf("gemini stream: %w", err))
				return
			}
			for _, p := range responseParts(resp) {
				if !yield(p, nil) {
					return
				}
			}
		}
	}
}

// Generate implements Generator.
func (g *Gemini) Generate(ctx context.Context, req Request) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, buildContents(req.Messages), buildConfig(req))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	var b strings.Builder
	for _, p := range responseParts(resp) {
		if p.Kind == PartText {
			b.WriteString(p.Text)
		}
	}
	if b.Len() == 0 {
		return "", ErrEmptyResponse
	}
	return b.String(), nil
}

func buildContents(msgs []Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if m.Role == RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Text, role))
	}
	return contents
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(req.Temperature),
		MaxOutputTokens: req.MaxOutputTokens,
	}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.IncludeReasoning || req.ThinkingBudget > 0 {
		tc := &genai.ThinkingConfig{IncludeThoughts: req.IncludeReasoning}
		if req.ThinkingBudget > 0 {
			tc.ThinkingBudget = genai.Ptr(req.ThinkingBudget)
		}
		cfg.ThinkingConfig = tc
	}
	if req.Schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = req.Schema
	}
	return cfg
}

// responseParts flattens the first candidate into tagged parts, dropping empty text.
func responseParts(resp *genai.GenerateContentResponse) []Part {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return nil
	}

	parts := make([]Part, 0, len(cand.Content.Parts))
	for _, p := range cand.Content.Parts {
		if p == nil || p.Text == "" {
			continue
		}
		kind := PartText
		if p.Thought {
			kind = PartReasoning
		}
		parts = append(parts, Part{Kind: kind, Text: p.Text})
	}
	return parts
}
