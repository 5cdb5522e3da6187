/*
Package telemetry holds the audit trail, the anonymized behavior tracker and
the Prometheus metrics. The audit and behavior sinks are in-memory, bounded
and safe for concurrent use.
*/
package telemetry

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	LevelInfo  = "INFO"
	LevelError = "ERROR"

	// ResultCacheHit marks an interaction served from the response cache.
	ResultCacheHit = "cache_hit"

	defaultCapacity = 10000
)

// AuditEntry is one audit record. Interaction, error and cache entries share
// the shape; fields that don't apply are left empty.
type AuditEntry struct {
	Timestamp      time.Time      `json:"timestamp"`
	Level          string         `json:"level"`
	UserID         string         `json:"user_id,omitempty"`
	Action         string         `json:"action,omitempty"`
	Result         string         `json:"result,omitempty"`
	Error          string         `json:"error,omitempty"`
	ResponseTimeMS float64        `json:"response_time_ms,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	Operation      string         `json:"operation,omitempty"`
	CacheKey       string         `json:"cache_key,omitempty"`
	CacheHit       *bool          `json:"cache_hit,omitempty"`
}

// SystemMetrics summarizes recent audit entries.
type SystemMetrics struct {
	PeriodHours       float64 `json:"period_hours"`
	TotalRequests     int     `json:"total_requests"`
	CacheHitRate      float64 `json:"cache_hit_rate"`
	ErrorRate         float64 `json:"error_rate"`
	AvgResponseTimeMS float64 `json:"avg_response_time_ms"`
	Errors            int     `json:"errors"`
}

// Audit is the audit sink.
type Audit struct {
	mu       sync.Mutex
	entries *ring[AuditEntry]
	log     zerolog.Logger
	now     func() time.Time
}

// NewAudit returns an audit sink keeping at most capacity entries (0 means the
// default). Every entry is also written to log.
func NewAudit(log zerolog.Logger, capacity int) *Audit {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Audit{
		entries: newRing[AuditEntry](capacity),
		log:     log.With().Str("component", "audit").Logger(),
		now:     time.Now,
	}
}

// LogInteraction records a completed request.
func (a *Audit) LogInteraction(userID, action, result string, elapsed time.Duration, metadata map[string]any) {
	now := a.now()
	e := AuditEntry{
		Timestamp:      now,
		Level:          LevelInfo,
		UserID:         userID,
		Action:         action,
		Result:         result,
		ResponseTimeMS: millis(elapsed),
		Metadata:       metadata,
		SessionID:      userID + "_" + now.Format("2006010215"),
	}
	a.append(e)
	a.log.Info().
		Str("user_id", userID).
		Str("action", action).
		Str("result", result).
		Float64("response_time_ms", e.ResponseTimeMS).
		Msg("Audit interaction")
}

// LogError records a failed request.
func (a *Audit) LogError(userID, action, message string, metadata map[string]any) {
	a.append(AuditEntry{
		Timestamp: a.now(),
		Level:     LevelError,
		UserID:    userID,
		Action:    action,
		Error:     message,
		Metadata:  metadata,
	})
	a.log.Error().
		Str("user_id", userID).
		Str("action", action).
		Str("error", message).
		Msg("Audit error")
}

// LogCacheOperation records a cache access.
func (a *Audit) LogCacheOperation(operation, key string, hit bool, elapsed time.Duration) {
	a.append(AuditEntry{
		Timestamp:      a.now(),
		Level:          LevelInfo,
		Operation:      operation,
		CacheKey:       key,
		CacheHit:       &hit,
		ResponseTimeMS: millis(elapsed),
	})
}

// UserActivity returns up to limit entries for userID, newest first.
func (a *Audit) UserActivity(userID string, limit int) []AuditEntry {
	if limit <= 0 {
		limit = 100
	}
	a.mu.Lock()
	var out []AuditEntry
	for e := range a.entries.all() {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	a.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SystemMetrics aggregates entries newer than window.
func (a *Audit) SystemMetrics(window time.Duration) SystemMetrics {
	cutoff := a.now().Add(-window)

	var requests, hits, errs, timed int
	var totalMS float64

	a.mu.Lock()
	for e := range a.entries.all() {
		if !e.Timestamp.After(cutoff) {
			continue
		}
		if e.Action != "" {
			requests++
		}
		if e.Result == ResultCacheHit {
			hits++
		}
		if e.Level == LevelError {
			errs++
		}
		if e.ResponseTimeMS > 0 {
			timed++
			totalMS += e.ResponseTimeMS
		}
	}
	a.mu.Unlock()

	m := SystemMetrics{PeriodHours: window.Hours(), TotalRequests: requests, Errors: errs}
	if requests > 0 {
		m.CacheHitRate = round2(float64(hits) / float64(requests) * 100)
		m.ErrorRate = round2(float64(errs) / float64(requests) * 100)
	}
	if timed > 0 {
		m.AvgResponseTimeMS = round2(totalMS / float64(timed))
	}
	return m
}

func (a *Audit) append(e AuditEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries.push(e)
}

func millis(d time.Duration) float64 {
	return round2(float64(d) / float64(time.Millisecond))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
