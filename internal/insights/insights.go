// Package insights computes community statistics and the AI narrative shown
// alongside the gallery.
package insights

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ashureev/covenant/internal/cache"
	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/llm"
	"github.com/ashureev/covenant/internal/metrics"
	"github.com/ashureev/covenant/internal/prompt"
	"golang.org/x/sync/singleflight"
)

const (
	// RecentWindow bounds the "recent covenants" count.
	RecentWindow = 30 * 24 * time.Hour
	// SampleSize is the number of most recent covenants shown to the model.
	SampleSize = 10
	// SampleChars is the per-covenant excerpt length, in characters.
	SampleChars = 200
	// SampleSeparator joins excerpts in the narrative prompt.
	SampleSeparator = "\n---\n"

	narrativeTemperature = 0.7
	narrativeMaxTokens   = 1024
	defaultCacheTTL      = 5 * time.Minute
	defaultNarrativeWait = 15 * time.Second
)

// Summary is the insights payload.
type Summary struct {
	TotalCovenants  int    `json:"totalCovenants"`
	TotalUpvotes    int    `json:"totalUpvotes"`
	RecentCovenants int    `json:"recentCovenants"`
	Narrative       string `json:"narrative"`
}

// Reader lists every stored covenant.
type Reader interface {
	ListCovenants(ctx context.Context) ([]domain.Covenant, error)
}

// Summarize computes the statistics for covenants at time now. Narrative is left empty.
func Summarize(covenants []domain.Covenant, now time.Time) Summary {
	cutoff := now.Add(-RecentWindow)
	s := Summary{TotalCovenants: len(covenants)}
	for _, c := range covenants {
		s.TotalUpvotes += c.Upvotes
		if !c.CreatedAt.Before(cutoff) {
			s.RecentCovenants++
		}
	}
	return s
}

// Sample excerpts the SampleSize most recent covenants, newest first.
func Sample(covenants []domain.Covenant) string {
	sorted := newestFirst(covenants)
	if len(sorted) > SampleSize {
		sorted = sorted[:SampleSize]
	}
	excerpts := make([]string, len(sorted))
	for i, c := range sorted {
		excerpts[i] = prompt.Truncate(c.CovenantText, SampleChars)
	}
	return strings.Join(excerpts, SampleSeparator)
}

func newestFirst(covenants []domain.Covenant) []domain.Covenant {
	sorted := slices.Clone(covenants)
	slices.SortStableFunc(sorted, func(a, b domain.Covenant) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return sorted
}

// Service builds insight summaries. Concurrent callers for the same data
// share one narrative generation, and narratives are cached until the data
// changes or the TTL passes.
type Service struct {
	repo     Reader
	gen      llm.Generator
	cache    cache.Cache
	cacheTTL time.Duration
	wait     time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
	group    singleflight.Group
}

// Option configures a Service.
type Option func(*Service)

// WithCache stores narratives in c for ttl.
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithMetrics records narrative lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithNarrativeTimeout bounds a single narrative generation.
func WithNarrativeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.wait = d
		}
	}
}

// NewService creates an insights service.
func NewService(repo Reader, gen llm.Generator, opts ...Option) *Service {
	s := &Service{
		repo:     repo,
		gen:      gen,
		cacheTTL: defaultCacheTTL,
		wait:     defaultNarrativeWait,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summary reads every covenant and returns statistics plus a narrative. Only
// a read failure is returned as an error; narrative problems yield "".
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	covenants, err := s.repo.ListCovenants(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list covenants: %w", err)
	}

	summary := Summarize(covenants, s.now())
	if summary.TotalCovenants == 0 {
		return summary, nil
	}

	summary.Narrative = s.narrative(ctx, covenants)
	return summary, nil
}

func (s *Service) narrative(ctx context.Context, covenants []domain.Covenant) string {
	newest := newestFirst(covenants)[0]
	key := fmt.Sprintf("insights:%d:%s", len(covenants), newest.ID)

	if s.cache != nil {
		text, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("Insights cache read failed", "error", err)
		} else if ok {
			s.metrics.Narrative("cache")
			return text
		}
	}

	ch := s.group.DoChan(key, func() (any, error) {
		// Detached so one caller leaving does not fail the shared call.
		genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.wait)
		defer cancel()

		req := llm.Prompt(prompt.Insights(len(covenants), Sample(covenants)))
		req.Temperature = narrativeTemperature
		req.MaxOutputTokens = narrativeMaxTokens

		text, err := s.gen.Generate(genCtx, req)
		if err != nil {
			return "", err
		}

		if s.cache != nil {
			if err := s.cache.Set(genCtx, key, text, s.cacheTTL); err != nil {
				slog.Warn("Insights cache write failed", "error", err)
			}
		}
		return text, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			slog.Error("Failed to generate insights narrative", "error", res.Err)
			s.metrics.Narrative("failed")
			return ""
		}
		s.metrics.Narrative("generated")
		return res.Val.(string)
	case <-ctx.Done():
		slog.Warn("Insights narrative abandoned", "error", ctx.Err())
		s.metrics.Narrative("failed")
		return ""
	}
}
