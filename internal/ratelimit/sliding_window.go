// Package ratelimit provides an in-memory sliding-window request limiter.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultLimit is the number of admitted requests per key per window.
	DefaultLimit = 5
	// DefaultWindow is the length of the sliding window.
	DefaultWindow = 60 * time.Second

	// UnknownKey is the shared bucket for requests without a usable client key.
	UnknownKey = "unknown"
)

// Decision describes the outcome of a single admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	// RetryAfter is the time until the oldest in-window request leaves the
	// window. Zero when the request was admitted.
	RetryAfter time.Duration
}

// SlidingWindow admits at most limit requests per key within any window-long
// interval. State is process-local and lost on restart.
type SlidingWindow struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time

	started  bool
	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a limiter. Call Start to run the background sweeper.
func New(limit int, window time.Duration) *SlidingWindow {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &SlidingWindow{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// NewDefault creates a limiter with DefaultLimit and DefaultWindow.
func NewDefault() *SlidingWindow {
	return New(DefaultLimit, DefaultWindow)
}

// WithClock replaces the time source. Intended for tests.
func (s *SlidingWindow) WithClock(now func() time.Time) *SlidingWindow {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
	return s
}

// Allow reports whether a request for key is admitted, recording it if so.
func (s *SlidingWindow) Allow(key string) bool {
	return s.Admit(key).Allowed
}

// Admit checks and records a request for key. Timestamps that have left the
// window are dropped on every call, admitted or not; a rejected request is
// not recorded.
func (s *SlidingWindow) Admit(key string) Decision {
	if key == "" {
		key = UnknownKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	recent := s.filter(s.requests[key], now)

	if len(recent) >= s.limit {
		s.requests[key] = recent
		return Decision{
			Allowed:    false,
			Limit:      s.limit,
			Remaining:  0,
			RetryAfter: recent[0].Add(s.window).Sub(now),
		}
	}

	recent = append(recent, now)
	s.requests[key] = recent
	return Decision{
		Allowed:   true,
		Limit:     s.limit,
		Remaining: s.limit - len(recent),
	}
}

// Sweep drops expired timestamps for every key, deletes keys left empty and
// returns how many keys it deleted.
func (s *SlidingWindow) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for key, times := range s.requests {
		fresh := s.filter(times, now)
		if len(fresh) == 0 {
			delete(s.requests, key)
			evicted++
			continue
		}
		s.requests[key] = fresh
	}
	return evicted
}

// Len returns the number of tracked keys.
func (s *SlidingWindow) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Start runs Sweep once per window until ctx is cancelled or Close is called.
// It must be called at most once.
func (s *SlidingWindow) Start(ctx context.Context) {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.window)
	go func() {
		defer close(s.done)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if evicted := s.Sweep(); evicted > 0 {
					slog.Debug("Rate limiter sweep evicted idle keys", "evicted", evicted)
				}
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			}
		}
	}()
}

// Close stops the sweeper started by Start and waits for it to exit.
// Calling Close without Start is a no-op.
func (s *SlidingWindow) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
	})

	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if started {
		<-s.done
	}
}

func (s *SlidingWindow) filter(times []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-s.window)
	var recent []time.Time
	for _, t := range times {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	return recent
}
