/*
Package config reads the service configuration from the environment. A .env
file in the working directory is loaded first when present.
*/
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
)

// Cache backends.
const (
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type Config struct {
	Port     int
	AppEnv   string
	LogLevel zerolog.Level

	CacheBackend    string
	RedisURL        string
	DatabaseURL     string
	CacheTTL        time.Duration
	CacheMemorySize int

	GeminiAPIKey           string
	GeminiModel            string
	GeminiEndpoint         string
	GeminiTimeout          time.Duration
	GeminiAllowInsecureTLS bool

	BehaviorSalt   string
	CORSOrigins    []string
	AIRateLimitRPS float64

	// TrustedProxies are the ranges whose X-Forwarded-For is believed in
	// addition to loopback and private networks.
	TrustedProxies []*net.IPNet
}

// Load parses the current environment.
func Load() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup parses configuration through lookup, which has the shape of
// os.LookupEnv.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	var errs []string
	intVar := func(key string, def int) int {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive integer, got %q", key, raw))
			return def
		}
		return v
	}
	floatVar := func(key string, def float64) float64 {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v <= 0 {
			errs = append(errs, fmt.Sprintf("%s must be a positive number, got %q", key, raw))
			return def
		}
		return v
	}
	boolVar := func(key string) bool {
		raw := get(key, "")
		if raw == "" {
			return false
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be a boolean, got %q", key, raw))
		}
		return v
	}

	cfg := Config{
		Port:                   intVar("PORT", 8080),
		AppEnv:                 get("APP_ENV", "local"),
		CacheBackend:           strings.ToLower(get("CACHE_BACKEND", BackendRedis)),
		RedisURL:               get("REDIS_URL", "redis://localhost:6379/0"),
		DatabaseURL:            get("DATABASE_URL", ""),
		CacheTTL:               time.Duration(intVar("CACHE_TTL_SECONDS", 3600)) * time.Second,
		CacheMemorySize:        intVar("CACHE_MEMORY_SIZE", 1024),
		GeminiAPIKey:           get("GEMINI_API_KEY", ""),
		GeminiModel:            strings.TrimPrefix(get("GEMINI_MODEL", "gemini-2.5-flash"), "models/"),
		GeminiEndpoint:         get("GEMINI_ENDPOINT", ""),
		GeminiTimeout:          time.Duration(intVar("GEMINI_TIMEOUT_SECONDS", 90)) * time.Second,
		GeminiAllowInsecureTLS: boolVar("GEMINI_ALLOW_INSECURE_TLS"),
		BehaviorSalt:           get("BEHAVIOR_SALT", ""),
		CORSOrigins:            splitList(get("CORS_ORIGINS", "https://*,http://*")),
		AIRateLimitRPS:         floatVar("AI_RATE_LIMIT_PER_SEC", 5),
	}

	for _, raw := range splitList(get("TRUSTED_PROXIES", "")) {
		_, ipNet, err := net.ParseCIDR(raw)
		if err != nil {
			errs = append(errs, fmt.Sprintf("TRUSTED_PROXIES must list CIDR ranges, got %q", raw))
			continue
		}
		cfg.TrustedProxies = append(cfg.TrustedProxies, ipNet)
	}

	level, err := zerolog.ParseLevel(strings.ToLower(get("LOG_LEVEL", "info")))
	if err != nil {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL: %v", err))
		level = zerolog.InfoLevel
	}
	cfg.LogLevel = level

	switch cfg.CacheBackend {
	case BackendRedis, BackendPostgres, BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("CACHE_BACKEND must be one of redis, postgres, memory; got %q", cfg.CacheBackend))
	}

	if len(errs) > 0 {
		return cfg, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// Local reports whether the service runs on a developer machine.
func (c Config) Local() bool {
	return c.AppEnv == "local" || c.AppEnv == "development"
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
