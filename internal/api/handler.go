// Package api provides HTTP handlers for the covenant API.
package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/covenant/internal/config"
	"github.com/ashureev/covenant/internal/insights"
	"github.com/ashureev/covenant/internal/llm"
	"github.com/ashureev/covenant/internal/metrics"
	"github.com/ashureev/covenant/internal/ratelimit"
	"github.com/ashureev/covenant/internal/store"
	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
)

const (
	defaultMaxRequestBodySize = 1 << 20
	defaultPersistTimeout     = 10 * time.Second
)

var jsonAPI = sonic.Config{
	EscapeHTML:       false,
	SortMapKeys:      false,
	CompactMarshaler: true,
	NoNullSliceOrMap: true,
}.Froze()

var errBodyTooLarge = errors.New("request body too large")

// Pinger is a dependency whose reachability is reported by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators of Handler.
type Deps struct {
	Repo     store.Repository
	Gen      llm.Generator
	Insights *insights.Service
	Limiter  *ratelimit.SlidingWindow
	Metrics  *metrics.Metrics
	// Cache is the shared narrative cache, if any.
	Cache Pinger

	// Timeouts bound each endpoint; zero values fall back to the defaults.
	Timeouts           config.TimeoutConfig
	MaxRequestBodySize int64
	PersistTimeout     time.Duration
}

// Handler serves every /api endpoint.
type Handler struct {
	repo     store.Repository
	gen      llm.Generator
	insights *insights.Service
	limiter  *ratelimit.SlidingWindow
	metrics  *metrics.Metrics
	cache    Pinger

	timeouts       config.TimeoutConfig
	maxBodySize    int64
	persistTimeout time.Duration

	// persists tracks covenant writes that outlive their request.
	persists sync.WaitGroup
}

// NewHandler creates a Handler. A nil Limiter gets the default limiter; a nil
// Insights service is built from Repo and Gen.
func NewHandler(d Deps) *Handler {
	h := &Handler{
		repo:           d.Repo,
		gen:            d.Gen,
		insights:       d.Insights,
		limiter:        d.Limiter,
		metrics:        d.Metrics,
		cache:          d.Cache,
		timeouts:       d.Timeouts,
		maxBodySize:    d.MaxRequestBodySize,
		persistTimeout: d.PersistTimeout,
	}
	if h.gen == nil {
		h.gen = llm.Unavailable{}
	}
	if h.limiter == nil {
		h.limiter = ratelimit.NewDefault()
	}
	if h.insights == nil {
		h.insights = insights.NewService(h.repo, h.gen, insights.WithMetrics(h.metrics))
	}
	if h.maxBodySize <= 0 {
		h.maxBodySize = defaultMaxRequestBodySize
	}
	if h.persistTimeout <= 0 {
		h.persistTimeout = defaultPersistTimeout
	}
	if h.timeouts.Generate <= 0 {
		h.timeouts.Generate = 30 * time.Second
	}
	if h.timeouts.Companion <= 0 {
		h.timeouts.Companion = 30 * time.Second
	}
	if h.timeouts.Insights <= 0 {
		h.timeouts.Insights = 20 * time.Second
	}
	if h.timeouts.Suggest <= 0 {
		h.timeouts.Suggest = 15 * time.Second
	}
	return h
}

// RegisterRoutes registers the API routes, each under its own deadline.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.With(deadline(h.timeouts.Generate)).Post("/generate-covenant", h.GenerateCovenant)
		r.With(deadline(h.timeouts.Companion)).Post("/companion", h.Companion)
		r.With(deadline(h.timeouts.Insights)).Get("/insights", h.Insights)
		r.With(deadline(h.timeouts.Suggest)).Post("/suggest", h.Suggest)
		r.Post("/upvote", h.Upvote)
		r.Get("/covenants", h.ListCovenants)
		r.Get("/health", h.Health)
	})
}

// deadline cancels the request context after d. Unlike chi's Timeout it never
// writes a 504: streaming handlers have committed their headers by then, and
// the others degrade to their own responses when the context ends.
func deadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Wait blocks until every background covenant write has finished.
func (h *Handler) Wait() {
	h.persists.Wait()
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := jsonAPI.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode response", "error", err)
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		slog.Debug("Failed to write response", "error", err)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decodeBody reads at most the configured body size and unmarshals it into v.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return err
	}
	return jsonAPI.Unmarshal(body, v)
}

// writeDecodeError maps a decodeBody failure to a response.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, "Request body too large.")
		return
	}
	Error(w, http.StatusBadRequest, "Invalid JSON body.")
}
