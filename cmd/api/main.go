package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"healthlens/internal/cache"
	"healthlens/internal/config"
	"healthlens/internal/content"
	"healthlens/internal/database"
	"healthlens/internal/geminiservice"
	"healthlens/internal/orchestrator"
	"healthlens/internal/records"
	"healthlens/internal/server"
	"healthlens/internal/telemetry"
	"healthlens/internal/utility"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func gracefulShutdown(apiServer *http.Server, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

func setupLogger(cfg config.Config) {
	zerolog.SetGlobalLevel(cfg.LogLevel)
	if cfg.Local() {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// cacheStores holds the primary store and the handles /health reports on.
type cacheStores struct {
	primary cache.Store
	db      database.Service
	redis   *cache.RedisStore
}

func (s cacheStores) Close() {
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
}

// openCacheStore connects the configured backend. Connection failures fall
// back to the in-memory store with a warning.
func openCacheStore(ctx context.Context, cfg config.Config) cacheStores {
	switch cfg.CacheBackend {
	case config.BackendRedis:
		rs, err := cache.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
			return cacheStores{}
		}
		return cacheStores{primary: rs, redis: rs}

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Warn().Err(err).Msg("Postgres unavailable, using in-memory cache")
			return cacheStores{}
		}
		ps, err := cache.NewPostgresStore(ctx, db.Pool())
		if err != nil {
			log.Warn().Err(err).Msg("Postgres cache table could not be prepared, using in-memory cache")
			db.Close()
			return cacheStores{}
		}
		return cacheStores{primary: ps, db: db}
	}
	return cacheStores{}
}

func main() {
	cfg, err := config.Load()
	setupLogger(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx := context.Background()

	stores := openCacheStore(ctx, cfg)
	defer stores.Close()

	metrics := telemetry.DefaultMetrics()
	responseCache := cache.NewResponseCache(
		stores.primary,
		cache.NewMemoryStore(cfg.CacheMemorySize),
		cfg.CacheTTL,
		log.Logger,
		metrics,
	)

	gemini := geminiservice.NewClient(geminiservice.Config{
		APIKey:           cfg.GeminiAPIKey,
		Model:            cfg.GeminiModel,
		Endpoint:         cfg.GeminiEndpoint,
		AllowInsecureTLS: cfg.GeminiAllowInsecureTLS,
	}, log.Logger)
	if !gemini.Available() {
		log.Warn().Msg("GEMINI_API_KEY is not set, content will use local rules only")
	}

	var generator content.Generator
	if gemini.Available() {
		generator = geminiservice.NewDegrading(gemini, cfg.GeminiTimeout, log.Logger, metrics)
	}
	contentService := content.NewService(generator)

	salt := cfg.BehaviorSalt
	if salt == "" {
		salt = telemetry.DefaultSalt
		if !cfg.Local() {
			log.Warn().Msg("BEHAVIOR_SALT is not set, using the built-in salt")
		}
	}

	source := records.NewMemorySource()
	audit := telemetry.NewAudit(log.Logger, 0)
	behavior := telemetry.NewBehavior(log.Logger, salt, 0)
	hub := utility.NewHub()

	pipeline := orchestrator.New(orchestrator.Deps{
		Source:   source,
		Cache:    responseCache,
		Content:  contentService,
		Audit:    audit,
		Behavior: behavior,
		Notifier: hub,
		Metrics:  metrics,
		Log:      log.Logger,
		TTL:      cfg.CacheTTL,
	})

	deps := server.Deps{
		Config:       cfg,
		Pipeline:     pipeline,
		Source:       source,
		Content:      contentService,
		Audit:        audit,
		Behavior:     behavior,
		Hub:          hub,
		DB:           stores.db,
		CacheBackend: responseCache.Backend(),
		Log:          log.Logger,
	}
	// A nil *RedisStore must not become a non-nil interface.
	if stores.redis != nil {
		deps.Redis = stores.redis
	}
	apiServer := server.NewServer(deps)

	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(apiServer, done)

	log.Info().
		Str("addr", apiServer.Addr).
		Str("cache_backend", responseCache.Backend()).
		Str("gemini_model", gemini.Model()).
		Msg("Starting HealthLens API")

	err = apiServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("http server error")
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Info().Msg("Graceful shutdown complete.")
}
