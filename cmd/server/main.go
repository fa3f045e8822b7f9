// Covenant - technology covenant generator and community gallery server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/covenant/internal/api"
	"github.com/ashureev/covenant/internal/cache"
	"github.com/ashureev/covenant/internal/config"
	"github.com/ashureev/covenant/internal/insights"
	"github.com/ashureev/covenant/internal/llm"
	"github.com/ashureev/covenant/internal/metrics"
	"github.com/ashureev/covenant/internal/middleware"
	"github.com/ashureev/covenant/internal/ratelimit"
	"github.com/ashureev/covenant/internal/store"
	"github.com/ashureev/covenant/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(), "store", cfg.Store.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := openStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	var gen llm.Generator = llm.Unavailable{}
	if cfg.AIEnabled() {
		gemini, err := llm.NewGemini(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
		if err != nil {
			slog.Error("Failed to initialize Gemini client", "error", err)
			os.Exit(1)
		}
		gen = gemini
		slog.Info("AI generation enabled", "model", gemini.Model())
	} else {
		slog.Warn("AI features disabled (GEMINI_API_KEY not set)")
	}

	narrativeCache, closeCache := openCache(ctx, cfg.Insights.RedisURL)
	defer closeCache()

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	limiter := ratelimit.NewDefault()
	limiter.Start(ctx)
	defer limiter.Close()

	insightsSvc := insights.NewService(repo, gen,
		insights.WithCache(narrativeCache, cfg.Insights.CacheTTL),
		insights.WithMetrics(m),
		insights.WithNarrativeTimeout(cfg.Timeouts.Insights),
	)

	var cachePing api.Pinger
	if p, ok := narrativeCache.(api.Pinger); ok {
		cachePing = p
	}

	handler := api.NewHandler(api.Deps{
		Repo:               repo,
		Gen:                gen,
		Insights:           insightsSvc,
		Limiter:            limiter,
		Metrics:            m,
		Cache:              cachePing,
		Timeouts:           cfg.Timeouts,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(m.Middleware)

	if m != nil {
		r.Handle("/metrics", m.Handler())
	}

	handler.RegisterRoutes(r)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// SSE responses stream for up to the generation timeout, so there is no
	// WriteTimeout; per-route deadlines bound each handler instead.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Covenants generated just before shutdown are still being written.
	handler.Wait()

	slog.Info("Server stopped successfully")
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Repository, error) {
	if cfg.Driver == config.StorePostgres {
		return store.NewPostgres(ctx, store.PostgresConfig{
			URL:              cfg.DatabaseURL,
			WriteCredential:  cfg.WriteCredential,
			ReadCredential:   cfg.ReadCredential,
			ConnectAttempts:  cfg.ConnectAttempts,
			ConnectRetryBase: cfg.ConnectRetryBase,
		})
	}
	return store.NewSQLite(cfg.DBPath)
}

// openCache returns Redis when redisURL is set and reachable, and an
// in-process cache otherwise.
func openCache(ctx context.Context, redisURL string) (cache.Cache, func()) {
	if redisURL == "" {
		return cache.NewMemory(), func() {}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rdb, err := cache.NewRedis(pingCtx, redisURL)
	if err != nil {
		slog.Warn("Redis unavailable, caching insights in memory", "error", err)
		return cache.NewMemory(), func() {}
	}
	slog.Info("Redis connected for insights cache")
	return rdb, func() {
		if err := rdb.Close(); err != nil {
			slog.Error("Failed to close Redis client", "error", err)
		}
	}
}
