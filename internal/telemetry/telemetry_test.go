package telemetry

import (
	"encoding/hex"
	"regexp"
	"sync"
	"testing"
	"time"

	"healthlens/internal/persona"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

/* ============================ Audit ============================ */

func TestAudit_SystemMetrics(t *testing.T) {
	clock := newClock()
	a := NewAudit(zerolog.Nop(), 0)
	a.now = clock.Now

	a.LogInteraction("123", "adaptive_view", "success", 200*time.Millisecond, nil)
	a.LogInteraction("123", "adaptive_view", ResultCacheHit, 10*time.Millisecond, nil)
	a.LogInteraction("456", "adaptive_view", ResultCacheHit, 30*time.Millisecond, nil)
	a.LogError("456", "adaptive_view", "boom", nil)
	a.LogCacheOperation("get", "123:default", true, 0)

	m := a.SystemMetrics(24 * time.Hour)
	assert.Equal(t, 4, m.TotalRequests)
	assert.Equal(t, 1, m.Errors)
	assert.Equal(t, 50.0, m.CacheHitRate)
	assert.Equal(t, 25.0, m.ErrorRate)
	assert.Equal(t, 80.0, m.AvgResponseTimeMS)
	assert.Equal(t, 24.0, m.PeriodHours)

	clock.Advance(25 * time.Hour)
	assert.Zero(t, a.SystemMetrics(24*time.Hour).TotalRequests)
}

func TestAudit_UserActivityNewestFirst(t *testing.T) {
	clock := newClock()
	a := NewAudit(zerolog.Nop(), 0)
	a.now = clock.Now

	for _, result := range []string{"first", "second", "third"} {
		a.LogInteraction("123", "adaptive_view", result, time.Millisecond, nil)
		clock.Advance(time.Minute)
	}
	a.LogInteraction("456", "adaptive_view", "other", time.Millisecond, nil)

	got := a.UserActivity("123", 2)
	require.Len(t, got, 2)
	assert.Equal(t, "third", got[0].Result)
	assert.Equal(t, "second", got[1].Result)
	assert.Equal(t, "123_2026030112", got[1].SessionID)
}

func TestAudit_Bounded(t *testing.T) {
	a := NewAudit(zerolog.Nop(), 3)
	for i := 0; i < 10; i++ {
		a.LogInteraction("u", "a", "r", time.Millisecond, nil)
	}
	assert.Len(t, a.UserActivity("u", 100), 3)
}

func TestAudit_BoundedKeepsNewest(t *testing.T) {
	clock := newClock()
	a := NewAudit(zerolog.Nop(), 3)
	a.now = clock.Now

	for _, result := range []string{"r1", "r2", "r3", "r4", "r5"} {
		a.LogInteraction("u", "a", result, time.Millisecond, nil)
		clock.Advance(time.Second)
	}

	got := a.UserActivity("u", 10)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"r5", "r4", "r3"}, []string{got[0].Result, got[1].Result, got[2].Result})
	assert.Equal(t, 3, a.SystemMetrics(time.Hour).TotalRequests)
}

func TestRing(t *testing.T) {
	r := newRing[int](3)
	collect := func() []int {
		var out []int
		for v := range r.all() {
			out = append(out, v)
		}
		return out
	}

	assert.Empty(t, collect())
	r.push(1)
	r.push(2)
	assert.Equal(t, []int{1, 2}, collect())

	for v := 3; v <= 7; v++ {
		r.push(v)
	}
	assert.Equal(t, 3, r.len())
	assert.Equal(t, []int{5, 6, 7}, collect())
}

/* ============================ Behavior ============================ */

func TestBehavior_AnonymizesAndSanitizes(t *testing.T) {
	b := NewBehavior(zerolog.Nop(), "", 0)
	b.Track("123", "adaptive_view", persona.HealthConscious, 150*time.Millisecond, map[string]any{
		"lab_results_count": 10,
		"cache_hit":         false,
		"email":             "sue@example.com",
		"user_id":           "123",
	})

	events := b.Events()
	require.Len(t, events, 1)
	e := events[0]
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), e.AnonymizedID)
	assert.Len(t, e.SessionHash, 8)
	assert.Equal(t, map[string]any{"lab_results_count": 10, "cache_hit": false}, e.Metadata)

	assert.Equal(t, b.Anonymize("123"), e.AnonymizedID)
	assert.NotEqual(t, b.Anonymize("123"), NewBehavior(zerolog.Nop(), "other-salt", 0).Anonymize("123"))
}

func TestBehavior_SessionHashIsKeyed(t *testing.T) {
	clock := newClock()
	a := NewBehavior(zerolog.Nop(), "salt-A", 0)
	b := NewBehavior(zerolog.Nop(), "salt-B", 0)
	a.now, b.now = clock.Now, clock.Now

	a.Track("123", "adaptive_view", persona.Balanced, time.Millisecond, nil)
	b.Track("123", "adaptive_view", persona.Balanced, time.Millisecond, nil)

	ha, hb := a.Events()[0].SessionHash, b.Events()[0].SessionHash
	assert.NotEqual(t, ha, hb)

	unkeyed := blake2b.Sum256([]byte("123_" + clock.Now().Format("2006010215")))
	assert.NotEqual(t, hex.EncodeToString(unkeyed[:])[:8], ha)

	// Same user within the hour keeps its session.
	clock.Advance(10 * time.Minute)
	a.Track("123", "adaptive_view", persona.Balanced, time.Millisecond, nil)
	assert.Equal(t, ha, a.Events()[1].SessionHash)
}

func TestBehavior_TrackContentEngagement(t *testing.T) {
	b := NewBehavior(zerolog.Nop(), "", 0)
	b.TrackContentEngagement("123", "summary", persona.Beginner, 4500*time.Millisecond)

	events := b.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventContentEngagement, events[0].EventType)
	assert.Equal(t, "summary", events[0].ContentType)
	require.NotNil(t, events[0].ResponseTimeMS)
	assert.Equal(t, 4500.0, *events[0].ResponseTimeMS)
}

func TestBehavior_LongSalt(t *testing.T) {
	salt := string(make([]byte, 200))
	assert.Len(t, NewBehavior(zerolog.Nop(), salt, 0).Anonymize("x"), 16)
}

func TestBehavior_PersonaAnalytics(t *testing.T) {
	clock := newClock()
	b := NewBehavior(zerolog.Nop(), "", 0)
	b.now = clock.Now

	b.Track("1", "adaptive_view", persona.Casual, 100*time.Millisecond, nil)
	b.Track("2", "adaptive_view", persona.Casual, 300*time.Millisecond, nil)
	b.Track("3", "adaptive_view", persona.Beginner, 50*time.Millisecond, nil)
	b.TrackPersonaInteraction("1", persona.Beginner, "expand_card", true, nil)
	b.TrackPersonaInteraction("1", persona.Beginner, "expand_card", false, nil)

	got := b.PersonaAnalytics(30 * 24 * time.Hour)
	assert.Equal(t, 30.0, got.PeriodDays)
	assert.Equal(t, 5, got.TotalInteractions)
	assert.Equal(t, 2, got.PersonaDistribution[persona.Casual])
	assert.Equal(t, 3, got.PersonaDistribution[persona.Beginner])
	assert.Equal(t, 200.0, got.AvgResponseTimesMS[persona.Casual])
	assert.Equal(t, 50.0, got.SuccessRatesPercent[persona.Beginner])
	require.NotNil(t, got.MostPopularPersona)
	assert.Equal(t, persona.Beginner, *got.MostPopularPersona)

	clock.Advance(31 * 24 * time.Hour)
	empty := b.PersonaAnalytics(30 * 24 * time.Hour)
	assert.Zero(t, empty.TotalInteractions)
	assert.Nil(t, empty.MostPopularPersona)
}

/* ============================ Metrics ============================ */

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.CacheLookup(true)
	m.CacheLookup(false)
	m.CacheLookup(false)
	m.CacheDegraded("get")
	m.GenerationOutcome("fallback")
	m.ObservePipeline("success", 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheDegraded.WithLabelValues("get")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.generations.WithLabelValues("fallback")))

	again := MustNewMetrics(reg)
	again.CacheDegraded("get")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheDegraded.WithLabelValues("get")))

	var nilMetrics *Metrics
	assert.NotPanics(t, func() {
		nilMetrics.CacheLookup(true)
		nilMetrics.ObservePipeline("x", time.Second)
	})
}
