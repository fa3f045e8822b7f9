package api

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/identity"
	"github.com/ashureev/covenant/internal/llm"
	"github.com/ashureev/covenant/internal/metrics"
	"github.com/ashureev/covenant/internal/prompt"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const (
	covenantTemperature    = 0.8
	covenantMaxTokens      = 4096
	covenantThinkingBudget = 4096
)

// Error messages returned by the generation endpoint.
const (
	msgRateLimited      = "Too many requests. Please try again in a minute."
	msgAnswerCount      = "Exactly 7 answers are required."
	msgAnswerTooShort   = "Each answer must be at least 10 characters."
	msgGenerationFailed = "Failed to generate covenant."
	msgStreamFailed     = "Generation was interrupted. Please try again."
)

type generateRequest struct {
	Answers     interface{} `json:"answers"`
	DisplayName interface{} `json:"displayName"`
}

// GenerateCovenant handles POST /api/generate-covenant. The rate limit is
// checked before the body is read, so malformed requests still spend budget.
func (h *Handler) GenerateCovenant(w http.ResponseWriter, r *http.Request) {
	clientKey := identity.ClientKey(r)
	decision := h.limiter.Admit(clientKey)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if !decision.Allowed {
		retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
		h.metrics.RateLimited()
		slog.Warn("Covenant generation rate limited", "client_key", clientKey, "retry_after", retryAfter)
		Error(w, http.StatusTooManyRequests, msgRateLimited)
		return
	}

	var req generateRequest
	if err := h.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	answers, err := domain.ParseAnswers(req.Answers)
	switch {
	case errors.Is(err, domain.ErrAnswerCount):
		Error(w, http.StatusBadRequest, msgAnswerCount)
		return
	case err != nil:
		Error(w, http.StatusBadRequest, msgAnswerTooShort)
		return
	}

	displayName, _ := req.DisplayName.(string)
	displayName = domain.NameOrDefault(strings.TrimSpace(displayName))
	reqID := chiMiddleware.GetReqID(r.Context())

	slog.Info("Covenant generation request", "client_key", clientKey, "request_id", reqID)

	text, ok := h.streamParts(w, r, h.gen.Stream(r.Context(), llm.Request{
		System:           prompt.CovenantSystem,
		Messages:         []llm.Message{{Role: llm.RoleUser, Text: prompt.CovenantMessage(answers)}},
		Temperature:      covenantTemperature,
		MaxOutputTokens:  covenantMaxTokens,
		ThinkingBudget:   covenantThinkingBudget,
		IncludeReasoning: true,
	}), func(w http.ResponseWriter) {
		Error(w, http.StatusInternalServerError, msgGenerationFailed)
	})
	if !ok {
		h.metrics.Generation(metrics.OutcomeFailure)
		return
	}
	h.metrics.Generation(metrics.OutcomeSuccess)

	h.persistCovenant(&domain.Covenant{
		DisplayName:  displayName,
		Answers:      answers,
		CovenantText: text,
	}, reqID)
}

// streamParts relays parts as SSE events in generation order. If the stream
// fails before its first part, onEarlyFailure writes the response instead and
// nothing is streamed. It returns the concatenated answer text and whether
// the stream completed and reached the client.
func (h *Handler) streamParts(w http.ResponseWriter, r *http.Request, seq iter.Seq2[llm.Part, error], onEarlyFailure func(http.ResponseWriter)) (string, bool) {
	next, stop := iter.Pull2(seq)
	defer stop()

	first, err, more := next()
	if err != nil || !more {
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		slog.Error("Generation failed before streaming", "error", err)
		onEarlyFailure(w)
		return "", false
	}

	sse, err := startSSE(w)
	if err != nil {
		Error(w, http.StatusInternalServerError, "streaming not supported")
		return "", false
	}

	var text strings.Builder
	part := first
	for {
		if part.Kind == llm.PartText {
			text.WriteString(part.Text)
		}
		event := eventText
		if part.Kind == llm.PartReasoning {
			event = eventReasoning
		}
		if err := sse.send(event, part); err != nil {
			slog.Warn("Failed to write SSE part, client likely gone", "error", err)
			return "", false
		}

		part, err, more = next()
		if err != nil {
			slog.Error("Generation stream failed", "error", err)
			if writeErr := sse.fail(msgStreamFailed); writeErr != nil {
				slog.Warn("Failed to write SSE error event", "error", writeErr)
			}
			return "", false
		}
		if !more {
			break
		}
	}

	if r.Context().Err() != nil {
		slog.Info("Generation stream cancelled", "error", r.Context().Err())
		return "", false
	}
	if err := sse.finish(); err != nil {
		slog.Warn("Failed to write SSE finish event", "error", err)
		return "", false
	}
	return text.String(), true
}

// persistCovenant stores c in the background. Failures are logged and counted
// but never reach the client, whose stream has already finished.
func (h *Handler) persistCovenant(c *domain.Covenant, reqID string) {
	if strings.TrimSpace(c.CovenantText) == "" {
		slog.Warn("Skipping covenant with empty text", "request_id", reqID)
		h.metrics.PersistFailed()
		return
	}

	h.persists.Add(1)
	go func() {
		defer h.persists.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.persistTimeout)
		defer cancel()

		if err := h.repo.CreateCovenant(ctx, c); err != nil {
			slog.Error("Failed to save covenant", "error", err, "request_id", reqID)
			h.metrics.PersistFailed()
			return
		}
		slog.Info("Covenant saved", "covenant_id", c.ID, "request_id", reqID)
	}()
}
