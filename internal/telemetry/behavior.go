package telemetry

import (
	"encoding/hex"
	"sync"
	"time"

	"healthlens/internal/persona"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/blake2b"
)

// DefaultSalt keys the user id hash when no salt is configured.
const DefaultSalt = "healthlens_behavior_salt_2024"

const (
	EventBehavior           = "behavior"
	EventPersonaInteraction = "persona_interaction"
	EventContentEngagement  = "content_engagement"
)

// allowedMetadata is the only metadata that survives sanitization.
var allowedMetadata = map[string]struct{}{
	"action_type":       {},
	"persona":           {},
	"lab_results_count": {},
	"abnormal_count":    {},
	"response_time":     {},
	"cache_hit":         {},
	"error_type":        {},
	"feature_used":      {},
	"ui_component":      {},
	"content_type":      {},
}

// BehaviorEvent is one anonymized event. It never carries the raw user id.
type BehaviorEvent struct {
	Timestamp       time.Time      `json:"timestamp"`
	EventType       string         `json:"event_type"`
	AnonymizedID    string         `json:"anonymized_user_id"`
	SessionHash     string         `json:"session_hash"`
	Action          string         `json:"action,omitempty"`
	Persona         persona.ID     `json:"persona"`
	ResponseTimeMS  *float64       `json:"response_time_ms,omitempty"`
	Success         *bool          `json:"success,omitempty"`
	InteractionType string         `json:"interaction_type,omitempty"`
	ContentType     string         `json:"content_type,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// PersonaAnalytics summarizes recent behavior per persona.
type PersonaAnalytics struct {
	PeriodDays          float64                `json:"period_days"`
	TotalInteractions   int                    `json:"total_interactions"`
	PersonaDistribution map[persona.ID]int     `json:"persona_distribution"`
	AvgResponseTimesMS  map[persona.ID]float64 `json:"avg_response_times_ms"`
	SuccessRatesPercent map[persona.ID]float64 `json:"success_rates_percent"`
	MostPopularPersona  *persona.ID            `json:"most_popular_persona"`
}

// Behavior is the anonymized behavior sink.
type Behavior struct {
	mu     sync.Mutex
	events *ring[BehaviorEvent]
	key    []byte
	log    zerolog.Logger
	now    func() time.Time
}

// NewBehavior returns a sink whose user hashes are keyed with salt.
func NewBehavior(log zerolog.Logger, salt string, capacity int) *Behavior {
	if salt == "" {
		salt = DefaultSalt
	}
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Behavior{
		events: newRing[BehaviorEvent](capacity),
		key:    key,
		log:    log.With().Str("component", "behavior").Logger(),
		now:    time.Now,
	}
}

// Anonymize returns the 16 hex character keyed hash of userID.
func (b *Behavior) Anonymize(userID string) string {
	return b.keyedHex(userID, 16)
}

// sessionHash buckets a user's events by hour. It is keyed like Anonymize so
// it cannot be rebuilt from the user id and the clock alone.
func (b *Behavior) sessionHash(userID string, now time.Time) string {
	return b.keyedHex(userID+"_"+now.Format("2006010215"), 8)
}

func (b *Behavior) keyedHex(data string, n int) string {
	h, err := blake2b.New256(b.key)
	if err != nil {
		// Only reachable with an oversized key, which NewBehavior prevents.
		panic(err)
	}
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))[:n]
}

// Track records a pipeline action.
func (b *Behavior) Track(userID, action string, p persona.ID, elapsed time.Duration, metadata map[string]any) {
	ms := millis(elapsed)
	b.record(userID, BehaviorEvent{
		EventType:      EventBehavior,
		Action:         action,
		Persona:        p,
		ResponseTimeMS: &ms,
		Metadata:       Sanitize(metadata),
	})
}

// TrackPersonaInteraction records whether a persona-specific UI interaction worked.
func (b *Behavior) TrackPersonaInteraction(userID string, p persona.ID, interactionType string, success bool, details map[string]any) {
	b.record(userID, BehaviorEvent{
		EventType:       EventPersonaInteraction,
		Persona:         p,
		InteractionType: interactionType,
		Success:         &success,
		Metadata:        Sanitize(details),
	})
}

// TrackContentEngagement records time spent on a content block.
func (b *Behavior) TrackContentEngagement(userID, contentType string, p persona.ID, engaged time.Duration) {
	ms := millis(engaged)
	b.record(userID, BehaviorEvent{
		EventType:      EventContentEngagement,
		Persona:        p,
		ContentType:    contentType,
		ResponseTimeMS: &ms,
	})
}

func (b *Behavior) record(userID string, e BehaviorEvent) {
	now := b.now()
	e.Timestamp = now
	e.AnonymizedID = b.Anonymize(userID)
	e.SessionHash = b.sessionHash(userID, now)

	b.mu.Lock()
	b.events.push(e)
	b.mu.Unlock()

	b.log.Debug().
		Str("event_type", e.EventType).
		Str("anonymized_user_id", e.AnonymizedID).
		Str("persona", string(e.Persona)).
		Msg("Behavior tracked")
}

// Events returns a copy of the recorded events, oldest first.
func (b *Behavior) Events() []BehaviorEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BehaviorEvent, 0, b.events.len())
	for e := range b.events.all() {
		out = append(out, e)
	}
	return out
}

// PersonaAnalytics aggregates events newer than window.
func (b *Behavior) PersonaAnalytics(window time.Duration) PersonaAnalytics {
	cutoff := b.now().Add(-window)
	out := PersonaAnalytics{
		PeriodDays:          window.Hours() / 24,
		PersonaDistribution: map[persona.ID]int{},
		AvgResponseTimesMS:  map[persona.ID]float64{},
		SuccessRatesPercent: map[persona.ID]float64{},
	}

	type acc struct {
		totalMS          float64
		timed            int
		tried, succeeded int
	}
	per := map[persona.ID]*acc{}

	b.mu.Lock()
	for e := range b.events.all() {
		if !e.Timestamp.After(cutoff) {
			continue
		}
		out.TotalInteractions++
		if e.Persona == "" {
			continue
		}
		out.PersonaDistribution[e.Persona]++
		a := per[e.Persona]
		if a == nil {
			a = &acc{}
			per[e.Persona] = a
		}
		if e.ResponseTimeMS != nil {
			a.totalMS += *e.ResponseTimeMS
			a.timed++
		}
		if e.EventType == EventPersonaInteraction && e.Success != nil {
			a.tried++
			if *e.Success {
				a.succeeded++
			}
		}
	}
	b.mu.Unlock()

	var best persona.ID
	for p, a := range per {
		if a.timed > 0 {
			out.AvgResponseTimesMS[p] = round2(a.totalMS / float64(a.timed))
		}
		if a.tried > 0 {
			out.SuccessRatesPercent[p] = round2(float64(a.succeeded) / float64(a.tried) * 100)
		}
		n := out.PersonaDistribution[p]
		if best == "" || n > out.PersonaDistribution[best] || (n == out.PersonaDistribution[best] && p < best) {
			best = p
		}
	}
	if best != "" {
		out.MostPopularPersona = &best
	}
	return out
}

// Sanitize drops every metadata key outside the allow-list.
func Sanitize(metadata map[string]any) map[string]any {
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		if _, ok := allowedMetadata[k]; ok {
			out[k] = v
		}
	}
	return out
}
