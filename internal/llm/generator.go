// Package llm defines the text generation collaborator and its Gemini backend.
package llm

import (
	"context"
	"errors"
	"iter"

	"google.golang.org/genai"
)

// PartKind tags a streamed part as model reasoning or answer text.
type PartKind string

// Part kinds, in the wire vocabulary of the streaming endpoints.
const (
	PartReasoning PartKind = "reasoning"
	PartText      PartKind = "text"
)

// Part is one incremental piece of a streamed generation.
type Part struct {
	Kind PartKind `json:"type"`
	Text string   `json:"text"`
}

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles.
const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Message is a single conversation turn sent to the model.
type Message struct {
	Role Role
	Text string
}

// Request describes one generation call.
type Request struct {
	System          string
	Messages        []Message
	Temperature     float32
	MaxOutputTokens int32

	// ThinkingBudget caps reasoning tokens; zero leaves the model default.
	ThinkingBudget int32
	// IncludeReasoning asks the model to return its reasoning as separate parts.
	IncludeReasoning bool

	// Schema, when set, constrains the response to JSON matching it.
	Schema *genai.Schema
}

// Prompt builds a single-turn request.
func Prompt(text string) Request {
	return Request{Messages: []Message{{Role: RoleUser, Text: text}}}
}

// Generator produces model output for a request.
type Generator interface {
	// Stream yields parts in generation order. A non-nil error ends the
	// sequence. Cancelling ctx stops the upstream call.
	Stream(ctx context.Context, req Request) iter.Seq2[Part, error]

	// Generate returns the complete answer text, excluding reasoning.
	Generate(ctx context.Context, req Request) (string, error)
}

// Errors returned by generators.
var (
	ErrUnavailable   = errors.New("generation backend not configured")
	ErrEmptyResponse = errors.New("model returned no content")
)

// Unavailable is a Generator for deployments without model credentials.
// Every call fails with ErrUnavailable.
type Unavailable struct{}

// Stream implements Generator.
func (Unavailable) Stream(context.Context, Request) iter.Seq2[Part, error] {
	return func(yield func(Part, error) bool) {
		yield(Part{}, ErrUnavailable)
	}
}

// Generate implements Generator.
func (Unavailable) Generate(context.Context, Request) (string, error) {
	return "", ErrUnavailable
}
