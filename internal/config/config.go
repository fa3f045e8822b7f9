// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	AllowedOrigins     []string
	MaxRequestBodySize int64
	MetricsEnabled     bool
	Store              StoreConfig
	Gemini             GeminiConfig
	Insights           InsightsConfig
	Timeouts           TimeoutConfig
}

// StoreConfig selects and configures the covenant store.
//
// For Postgres, DatabaseURL is the endpoint (host, port, database, options) and
// the two credentials are "user:password" pairs: the privileged one is used for
// server-side writes, the restricted one for gallery reads under row-level policies.
type StoreConfig struct {
	Driver           string
	DBPath           string
	DatabaseURL      string
	WriteCredential  string
	ReadCredential   string
	ConnectAttempts  int
	ConnectRetryBase time.Duration
}

// GeminiConfig configures the generation backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// InsightsConfig controls narrative caching.
type InsightsConfig struct {
	RedisURL string
	CacheTTL time.Duration
}

// TimeoutConfig holds the maximum wall-clock duration per endpoint.
type TimeoutConfig struct {
	Generate  time.Duration
	Companion time.Duration
	Insights  time.Duration
	Suggest   time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	apiKey := getEnv("GEMINI_API_KEY", "")
	if apiKey == "" {
		apiKey = getEnv("GOOGLE_API_KEY", "")
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		AllowedOrigins:     getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		Store: StoreConfig{
			Driver:           strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
			DBPath:           getEnv("DB_PATH", "./data/covenants.db"),
			DatabaseURL:      getEnv("DATABASE_URL", ""),
			WriteCredential:  getEnv("DATABASE_WRITE_CREDENTIAL", ""),
			ReadCredential:   getEnv("DATABASE_READ_CREDENTIAL", ""),
			ConnectAttempts:  getEnvInt("DB_CONNECT_ATTEMPTS", 10),
			ConnectRetryBase: getEnvDuration("DB_CONNECT_RETRY_BASE", time.Second),
		},
		Gemini: GeminiConfig{
			APIKey: apiKey,
			Model:  getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Insights: InsightsConfig{
			RedisURL: getEnv("REDIS_URL", ""),
			CacheTTL: getEnvDuration("INSIGHTS_CACHE_TTL", 5*time.Minute),
		},
		Timeouts: TimeoutConfig{
			Generate:  getEnvDuration("GENERATE_TIMEOUT", 30*time.Second),
			Companion: getEnvDuration("COMPANION_TIMEOUT", 30*time.Second),
			Insights:  getEnvDuration("INSIGHTS_TIMEOUT", 20*time.Second),
			Suggest:   getEnvDuration("SUGGEST_TIMEOUT", 15*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
		if c.Store.WriteCredential == "" {
			return fmt.Errorf("DATABASE_WRITE_CREDENTIAL is required for the postgres store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Gemini.Model == "" {
		return fmt.Errorf("GEMINI_MODEL cannot be empty")
	}
	t := c.Timeouts
	if t.Generate <= 0 || t.Companion <= 0 || t.Insights <= 0 || t.Suggest <= 0 {
		return fmt.Errorf("endpoint timeouts must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AIEnabled reports whether a generation backend can be constructed.
func (c *Config) AIEnabled() bool {
	return c.Gemini.APIKey != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
