package store

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/ashureev/covenant/internal/domain"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresConfig configures PostgresStore.
type PostgresConfig struct {
	// URL is the database endpoint without credentials, e.g.
	// postgres://db.internal:5432/covenants?sslmode=require.
	URL string
	// WriteCredential is the privileged "user:password" used for inserts and upvotes.
	WriteCredential string
	// ReadCredential is the restricted "user:password" used for gallery reads.
	// Empty reuses the write connection.
	ReadCredential string

	ConnectAttempts  int
	ConnectRetryBase time.Duration
}

// PostgresStore implements Repository on PostgreSQL through GORM. Writes use
// the privileged connection; gallery reads go through the restricted one so
// row-level policies apply.
type PostgresStore struct {
	writer *gorm.DB
	reader *gorm.DB
}

// NewPostgres connects both roles, retrying with exponential backoff, and
// migrates the covenants table with the privileged role.
func NewPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	writeDSN, err := BuildDSN(cfg.URL, cfg.WriteCredential)
	if err != nil {
		return nil, fmt.Errorf("build write dsn: %w", err)
	}

	writer, err := openWithRetry(ctx, "writer", writeDSN, cfg.ConnectAttempts, cfg.ConnectRetryBase)
	if err != nil {
		return nil, err
	}

	reader := writer
	if cfg.ReadCredential != "" {
		readDSN, err := BuildDSN(cfg.URL, cfg.ReadCredential)
		if err != nil {
			return nil, fmt.Errorf("build read dsn: %w", err)
		}
		reader, err = openWithRetry(ctx, "reader", readDSN, cfg.ConnectAttempts, cfg.ConnectRetryBase)
		if err != nil {
			closeGorm(writer)
			return nil, err
		}
	}

	if err := writer.WithContext(ctx).AutoMigrate(&domain.Covenant{}); err != nil {
		closeGorm(writer)
		if reader != writer {
			closeGorm(reader)
		}
		return nil, fmt.Errorf("migrate covenants: %w", err)
	}

	return &PostgresStore{writer: writer, reader: reader}, nil
}

// BuildDSN injects a "user:password" credential into a postgres URL.
func BuildDSN(rawURL, credential string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("unsupported database url scheme %q", u.Scheme)
	}
	if credential == "" {
		return u.String(), nil
	}

	user, password, hasPassword := strings.Cut(credential, ":")
	if user == "" {
		return "", fmt.Errorf("credential is missing a user name")
	}
	if hasPassword {
		u.User = url.UserPassword(user, password)
	} else {
		u.User = url.User(user)
	}
	return u.String(), nil
}

func openWithRetry(ctx context.Context, role, dsn string, attempts int, delay time.Duration) (*gorm.DB, error) {
	if attempts < 1 {
		attempts = 1
	}
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Error),
		})
		if err == nil {
			if err = pingGorm(ctx, db); err == nil {
				slog.Info("Connected to postgres", "role", role, "attempt", attempt)
				return db, nil
			}
			closeGorm(db)
		}
		lastErr = err

		if attempt == attempts {
			break
		}

		slog.Warn("Postgres connection failed, retrying",
			"role", role,
			"attempt", attempt,
			"max_attempts", attempts,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}
	}

	return nil, fmt.Errorf("connect postgres %s after %d attempts: %w", role, attempts, lastErr)
}

// CreateCovenant inserts a new covenant with the privileged role.
func (s *PostgresStore) CreateCovenant(ctx context.Context, c *domain.Covenant) error {
	prepareCovenant(c, time.Now())
	if err := s.writer.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("insert covenant: %w", err)
	}
	return nil
}

// ListCovenants returns every covenant, newest first.
func (s *PostgresStore) ListCovenants(ctx context.Context) ([]domain.Covenant, error) {
	covenants := []domain.Covenant{}
	err := s.writer.WithContext(ctx).
		Order("created_at DESC").Order("id").
		Find(&covenants).Error
	if err != nil {
		return nil, fmt.Errorf("query covenants: %w", err)
	}
	return covenants, nil
}

// RecentCovenants returns up to limit covenants via the restricted role.
func (s *PostgresStore) RecentCovenants(ctx context.Context, limit int) ([]domain.Covenant, error) {
	covenants := []domain.Covenant{}
	if limit <= 0 {
		return covenants, nil
	}
	err := s.reader.WithContext(ctx).
		Order("created_at DESC").Order("id").
		Limit(limit).
		Find(&covenants).Error
	if err != nil {
		return nil, fmt.Errorf("query recent covenants: %w", err)
	}
	return covenants, nil
}

// IncrementUpvotes adds one upvote in a single statement and returns the new count.
func (s *PostgresStore) IncrementUpvotes(ctx context.Context, id string) (int, error) {
	if !validID(id) {
		return 0, ErrNotFound
	}

	var upvotes int
	res := s.writer.WithContext(ctx).
		Raw(`UPDATE covenants SET upvotes = upvotes + 1 WHERE id = ? RETURNING upvotes`, id).
		Scan(&upvotes)
	if res.Error != nil {
		return 0, fmt.Errorf("increment upvotes: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	return upvotes, nil
}

// Ping verifies connectivity of both roles.
func (s *PostgresStore) Ping(ctx context.Context) error {
	for _, db := range s.conns() {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("get sql db: %w", err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes both connections.
func (s *PostgresStore) Close() error {
	var firstErr error
	for _, db := range s.conns() {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Close()
		}
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close database: %w", err)
		}
	}
	return firstErr
}

func (s *PostgresStore) conns() []*gorm.DB {
	if s.reader == s.writer {
		return []*gorm.DB{s.writer}
	}
	return []*gorm.DB{s.writer, s.reader}
}

func pingGorm(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

func closeGorm(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
