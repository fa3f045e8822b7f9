// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned when a covenant id does not exist.
var ErrNotFound = errors.New("covenant not found")

// Repository defines the interface for persisting covenants.
type Repository interface {
	// CreateCovenant inserts a new covenant. A missing ID, creation time or
	// display name is filled in before insert; Upvotes always starts at zero.
	CreateCovenant(ctx context.Context, c *domain.Covenant) error

	// ListCovenants returns every covenant, newest first.
	ListCovenants(ctx context.Context) ([]domain.Covenant, error)

	// RecentCovenants returns up to limit covenants, newest first, read with
	// the restricted gallery credentials where the backend has them.
	RecentCovenants(ctx context.Context, limit int) ([]domain.Covenant, error)

	// IncrementUpvotes atomically adds one upvote and returns the new count.
	// Unknown ids yield ErrNotFound and alter nothing.
	IncrementUpvotes(ctx context.Context, id string) (int, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}

// prepareCovenant fills server-assigned fields on a new covenant.
func prepareCovenant(c *domain.Covenant, now time.Time) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now.UTC()
	}
	c.DisplayName = domain.NameOrDefault(c.DisplayName)
	c.Upvotes = 0
}

// validID reports whether id can name a stored covenant.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
