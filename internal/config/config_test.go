package config

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, BackendRedis, cfg.CacheBackend)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 1024, cfg.CacheMemorySize)
	assert.Equal(t, "gemini-2.5-flash", cfg.GeminiModel)
	assert.Equal(t, 90*time.Second, cfg.GeminiTimeout)
	assert.False(t, cfg.GeminiAllowInsecureTLS)
	assert.Equal(t, 5.0, cfg.AIRateLimitRPS)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.Equal(t, []string{"https://*", "http://*"}, cfg.CORSOrigins)
	assert.True(t, cfg.Local())
	assert.Empty(t, cfg.TrustedProxies)
}

func TestTrustedProxies(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"TRUSTED_PROXIES": "203.0.113.0/24, 2001:db8::/32",
	}))
	require.NoError(t, err)
	require.Len(t, cfg.TrustedProxies, 2)
	assert.Equal(t, "203.0.113.0/24", cfg.TrustedProxies[0].String())
	assert.Equal(t, "2001:db8::/32", cfg.TrustedProxies[1].String())

	_, err = FromLookup(lookupFrom(map[string]string{"TRUSTED_PROXIES": "10.0.0.1"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TRUSTED_PROXIES")
}

func TestOverrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"PORT":                      "9090",
		"APP_ENV":                   "production",
		"LOG_LEVEL":                 "DEBUG",
		"CACHE_BACKEND":             "Postgres",
		"CACHE_TTL_SECONDS":         "60",
		"GEMINI_MODEL":              "models/gemini-pro",
		"GEMINI_ALLOW_INSECURE_TLS": "true",
		"CORS_ORIGINS":              " https://app.example.com , ",
	}))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, BackendPostgres, cfg.CacheBackend)
	assert.Equal(t, time.Minute, cfg.CacheTTL)
	assert.Equal(t, "gemini-pro", cfg.GeminiModel)
	assert.True(t, cfg.GeminiAllowInsecureTLS)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSOrigins)
	assert.False(t, cfg.Local())
}

func TestInvalidValues(t *testing.T) {
	_, err := FromLookup(lookupFrom(map[string]string{
		"PORT":          "abc",
		"CACHE_BACKEND": "memcached",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "CACHE_BACKEND")
}
