package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/covenant/internal/domain"
	"github.com/ashureev/covenant/internal/shared"
	_ "modernc.org/sqlite"
)

const (
	writeRetries   = 3
	writeRetryBase = 50 * time.Millisecond
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Pragmas are applied per connection so every pooled connection waits on locks.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS covenants (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL DEFAULT 'Anonymous',
		answers TEXT NOT NULL,
		covenant_text TEXT NOT NULL,
		upvotes INTEGER NOT NULL DEFAULT 0 CHECK (upvotes >= 0),
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_covenants_created_at ON covenants(created_at DESC);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// CreateCovenant inserts a new covenant, retrying on lock conflicts.
func (s *SQLiteStore) CreateCovenant(ctx context.Context, c *domain.Covenant) error {
	prepareCovenant(c, time.Now())

	answers, err := c.Answers.Value()
	if err != nil {
		return err
	}

	query := `
	INSERT INTO covenants (id, display_name, answers, covenant_text, upvotes, created_at)
	VALUES (?, ?, ?, ?, 0, ?)`

	err = shared.RetryOnConflict(ctx, "create covenant", writeRetries, writeRetryBase, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			c.ID, c.DisplayName, answers, c.CovenantText, c.CreatedAt.UnixMilli(),
		)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert covenant: %w", err)
	}
	return nil
}

// ListCovenants returns every covenant, newest first.
func (s *SQLiteStore) ListCovenants(ctx context.Context) ([]domain.Covenant, error) {
	return s.queryCovenants(ctx, `
		SELECT id, display_name, answers, covenant_text, upvotes, created_at
		FROM covenants ORDER BY created_at DESC, id`)
}

// RecentCovenants returns up to limit covenants, newest first.
func (s *SQLiteStore) RecentCovenants(ctx context.Context, limit int) ([]domain.Covenant, error) {
	if limit <= 0 {
		return []domain.Covenant{}, nil
	}
	return s.queryCovenants(ctx, `
		SELECT id, display_name, answers, covenant_text, upvotes, created_at
		FROM covenants ORDER BY created_at DESC, id LIMIT ?`, limit)
}

func (s *SQLiteStore) queryCovenants(ctx context.Context, query string, args ...any) ([]domain.Covenant, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query covenants: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close covenant rows", "error", closeErr)
		}
	}()

	covenants := []domain.Covenant{}
	for rows.Next() {
		var c domain.Covenant
		var createdAt int64
		if err := rows.Scan(
			&c.ID, &c.DisplayName, &c.Answers,
			&c.CovenantText, &c.Upvotes, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan covenant row: %w", err)
		}
		c.CreatedAt = time.UnixMilli(createdAt).UTC()
		covenants = append(covenants, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate covenants: %w", err)
	}

	return covenants, nil
}

// IncrementUpvotes adds one upvote in a single statement and returns the new count.
func (s *SQLiteStore) IncrementUpvotes(ctx context.Context, id string) (int, error) {
	if !validID(id) {
		return 0, ErrNotFound
	}

	query := `UPDATE covenants SET upvotes = upvotes + 1 WHERE id = ? RETURNING upvotes`

	var upvotes int
	err := shared.RetryOnConflict(ctx, "increment upvotes", writeRetries, writeRetryBase, func() error {
		return s.db.QueryRowContext(ctx, query, id).Scan(&upvotes)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment upvotes: %w", err)
	}
	return upvotes, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
