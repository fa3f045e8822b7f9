// Package gallery holds the client side of the community gallery: the
// displayed covenants, the session's upvotes, and the optimistic upvote
// protocol that keeps them consistent with the server.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/ashureev/covenant/internal/domain"
)

// ErrNotDisplayed is returned when upvoting a covenant the gallery does not show.
var ErrNotDisplayed = errors.New("covenant is not displayed")

// State is the lifecycle of one covenant's upvote within a session.
type State int

// Upvote states. A covenant with no upvote attempt is Idle.
const (
	Idle State = iota
	Pending
	Committed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Voter records an upvote remotely and returns the authoritative count.
type Voter interface {
	Upvote(ctx context.Context, id string) (int, error)
}

// Gallery is safe for concurrent use. The voted set lives only as long as
// the Gallery; nothing is persisted.
type Gallery struct {
	voter Voter

	mu        sync.Mutex
	covenants []domain.Covenant
	// generation counts Replace calls. A rollback only undoes the optimistic
	// +1 on the list that received it.
	generation uint64
	voted      map[string]struct{}
	states     map[string]State
}

// New creates a gallery showing covenants.
func New(voter Voter, covenants []domain.Covenant) *Gallery {
	return &Gallery{
		voter:     voter,
		covenants: slices.Clone(covenants),
		voted:     make(map[string]struct{}),
		states:    make(map[string]State),
	}
}

// Replace swaps the displayed covenants, for example after a refresh. The
// voted set is kept.
func (g *Gallery) Replace(covenants []domain.Covenant) {
	g.mu.Lock()
	g.covenants = slices.Clone(covenants)
	g.generation++
	g.mu.Unlock()
}

// Covenants returns a copy of the displayed covenants.
func (g *Gallery) Covenants() []domain.Covenant {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.covenants)
}

// Upvotes returns the displayed count for id.
func (g *Gallery) Upvotes(id string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.indexOf(id)
	if i < 0 {
		return 0, false
	}
	return g.covenants[i].Upvotes, true
}

// Voted reports whether id is in the session's voted set.
func (g *Gallery) Voted(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.voted[id]
	return ok
}

// State returns the upvote state of id.
func (g *Gallery) State(id string) State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.states[id]
}

// Upvote applies an optimistic +1 to id, asks the Voter to record it, then
// either reconciles with the server's count or rolls the +1 back. Upvoting a
// covenant that was already voted for in this session is a no-op.
//
// The returned error is the Voter's; by then the rollback has already been
// applied and callers are free to ignore it.
func (g *Gallery) Upvote(ctx context.Context, id string) error {
	g.mu.Lock()
	if _, ok := g.voted[id]; ok {
		g.mu.Unlock()
		return nil
	}
	i := g.indexOf(id)
	if i < 0 {
		g.mu.Unlock()
		return ErrNotDisplayed
	}
	g.voted[id] = struct{}{}
	g.covenants[i].Upvotes++
	g.states[id] = Pending
	applied := g.generation
	g.mu.Unlock()

	upvotes, err := g.voter.Upvote(ctx, id)

	g.mu.Lock()
	defer g.mu.Unlock()

	// The list may have been replaced while the call was in flight.
	i = g.indexOf(id)
	if err != nil {
		delete(g.voted, id)
		if i >= 0 && g.generation == applied {
			g.covenants[i].Upvotes--
		}
		g.states[id] = RolledBack
		return fmt.Errorf("upvote %s: %w", id, err)
	}

	if i >= 0 {
		g.covenants[i].Upvotes = upvotes
	}
	g.states[id] = Committed
	return nil
}

func (g *Gallery) indexOf(id string) int {
	return slices.IndexFunc(g.covenants, func(c domain.Covenant) bool { return c.ID == id })
}
