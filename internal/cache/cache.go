/*
Package cache stores assembled UI responses keyed by user and report. A
ResponseCache sits on top of a primary Store (Redis, Postgres or memory) and
serves from an in-process LRU while the primary is failing.
*/
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"healthlens/internal/view"

	"github.com/rs/zerolog"
)

// ErrMiss is returned by a Store when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// DefaultReport replaces an empty report id in keys.
const DefaultReport = "default"

// Store is a byte-oriented TTL store. Patterns use '*' as the only wildcard.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, pattern string) (int, error)
	Name() string
}

// Observer receives cache events. *telemetry.Metrics satisfies it.
type Observer interface {
	CacheLookup(hit bool)
	CacheDegraded(operation string)
}

var (
	// keyEscaper keeps a ':' inside a user id from reading as the separator.
	keyEscaper = strings.NewReplacer(`\`, `\\`, `:`, `\:`)

	// globEscaper quotes the metacharacters SCAN MATCH understands.
	globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)
)

// Key builds the cache key for a user and report.
func Key(userID, reportID string) string {
	if reportID == "" {
		reportID = DefaultReport
	}
	return keyEscaper.Replace(userID) + ":" + reportID
}

// UserPattern matches every key of userID and nothing else. Patterns use '*'
// as the wildcard and '\' to quote the next character.
func UserPattern(userID string) string {
	return globEscaper.Replace(keyEscaper.Replace(userID)) + ":*"
}

// ResponseCache caches UI responses. Store failures are logged and absorbed.
type ResponseCache struct {
	primary  Store
	fallback *MemoryStore
	ttl      time.Duration
	log      zerolog.Logger
	obs      Observer
}

// NewResponseCache wraps primary. A nil primary uses the fallback alone. A
// zero ttl means one hour.
func NewResponseCache(primary Store, fallback *MemoryStore, ttl time.Duration, log zerolog.Logger, obs Observer) *ResponseCache {
	if fallback == nil {
		fallback = NewMemoryStore(defaultMemorySize)
	}
	if primary == nil {
		primary = fallback
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ResponseCache{
		primary:  primary,
		fallback: fallback,
		ttl:      ttl,
		log:      log.With().Str("component", "cache").Str("backend", primary.Name()).Logger(),
		obs:      obs,
	}
}

// Backend names the primary store.
func (c *ResponseCache) Backend() string { return c.primary.Name() }

// TTL is the default entry lifetime.
func (c *ResponseCache) TTL() time.Duration { return c.ttl }

// Get returns the cached response with CacheHit set, or false on a miss.
func (c *ResponseCache) Get(ctx context.Context, key string) (*view.UIResponse, bool) {
	raw, err := c.primary.Get(ctx, key)
	if err != nil && !errors.Is(err, ErrMiss) {
		c.degraded("get", key, err)
		raw, err = c.fallback.Get(ctx, key)
	}
	if err != nil {
		c.lookup(false)
		return nil, false
	}

	var resp view.UIResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Dropping undecodable cache entry")
		_ = c.primary.Delete(ctx, key)
		c.lookup(false)
		return nil, false
	}
	resp.CacheHit = true
	c.lookup(true)
	return &resp, true
}

// Set stores resp under key. A non-positive ttl uses the cache default.
func (c *ResponseCache) Set(ctx context.Context, key string, resp *view.UIResponse, ttl time.Duration) {
	if resp == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}

	stored := *resp
	stored.CacheHit = false
	raw, err := json.Marshal(stored)
	if err != nil {
		c.log.Error().Err(err).Str("key", key).Msg("Failed to encode response for cache")
		return
	}

	if err := c.primary.Set(ctx, key, raw, ttl); err != nil {
		c.degraded("set", key, err)
		_ = c.fallback.Set(ctx, key, raw, ttl)
	}
}

// Invalidate removes every key matching pattern from the primary and the
// fallback and returns how many were removed.
func (c *ResponseCache) Invalidate(ctx context.Context, pattern string) int {
	n, err := c.primary.DeletePattern(ctx, pattern)
	if err != nil {
		c.degraded("invalidate", pattern, err)
		n = 0
	}
	if Store(c.fallback) != c.primary {
		m, _ := c.fallback.DeletePattern(ctx, pattern)
		n += m
	}
	c.log.Debug().Str("pattern", pattern).Int("removed", n).Msg("Cache invalidated")
	return n
}

func (c *ResponseCache) degraded(op, key string, err error) {
	c.log.Warn().Err(err).Str("operation", op).Str("key", key).Msg("Cache backend unavailable, using in-memory fallback")
	if c.obs != nil {
		c.obs.CacheDegraded(op)
	}
}

func (c *ResponseCache) lookup(hit bool) {
	if c.obs != nil {
		c.obs.CacheLookup(hit)
	}
}

// matchPattern reports whether key matches pattern, where an unquoted '*'
// matches any run of characters.
func matchPattern(pattern, key string) bool {
	parts := splitPattern(pattern)
	if len(parts) == 1 {
		return parts[0] == key
	}
	if !strings.HasPrefix(key, parts[0]) {
		return false
	}
	key = key[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(key, mid)
		if i < 0 {
			return false
		}
		key = key[i+len(mid):]
	}
	return strings.HasSuffix(key, last)
}

// splitPattern cuts pattern at every unquoted '*' and unquotes the literals.
func splitPattern(pattern string) []string {
	var parts []string
	var b strings.Builder
	for i := 0; i < len(pattern); i++ {
		switch ch := pattern[i]; {
		case ch == '\\' && i+1 < len(pattern):
			i++
			b.WriteByte(pattern[i])
		case ch == '*':
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteByte(ch)
		}
	}
	return append(parts, b.String())
}
