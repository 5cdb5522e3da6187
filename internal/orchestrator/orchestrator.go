/*
Package orchestrator runs the adaptive view pipeline: cache lookup, input
fetch, persona classification, template selection, content generation,
assembly, caching and telemetry.
*/
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"healthlens/internal/cache"
	"healthlens/internal/content"
	"healthlens/internal/persona"
	"healthlens/internal/records"
	"healthlens/internal/uitemplate"
	"healthlens/internal/view"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// ErrInternal wraps every failure other than a missing user.
var ErrInternal = errors.New("internal error")

// ActionAdaptiveView names the pipeline in audit and behavior records.
const ActionAdaptiveView = "adaptive_view"

// Audit results of runs that did not produce a response.
const (
	ResultNotFound  = "not_found"
	ResultCancelled = "cancelled"
)

// State names a pipeline step. Transitions are logged at debug level.
type State string

const (
	StateCheckCache      State = "CHECK_CACHE"
	StateFetchInputs     State = "FETCH_INPUTS"
	StateClassify        State = "CLASSIFY"
	StateSelectTemplate  State = "SELECT_TEMPLATE"
	StateGenerateContent State = "GENERATE_CONTENT"
	StateAssemble        State = "ASSEMBLE"
	StateStoreCache      State = "STORE_CACHE"
	StateEmitTelemetry   State = "EMIT_TELEMETRY"
	StateReturn          State = "RETURN"
)

// Cache is the response cache. *cache.ResponseCache satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (*view.UIResponse, bool)
	Set(ctx context.Context, key string, resp *view.UIResponse, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string) int
}

// ContentProducer formats findings for a persona. *content.Service satisfies it.
type ContentProducer interface {
	Produce(ctx context.Context, id persona.ID, findings []records.LabFinding, uc content.Context) content.Result
}

// AuditSink is satisfied by *telemetry.Audit.
type AuditSink interface {
	LogInteraction(userID, action, result string, elapsed time.Duration, metadata map[string]any)
	LogError(userID, action, message string, metadata map[string]any)
	LogCacheOperation(operation, key string, hit bool, elapsed time.Duration)
}

// BehaviorSink is satisfied by *telemetry.Behavior.
type BehaviorSink interface {
	Track(userID, action string, p persona.ID, elapsed time.Duration, metadata map[string]any)
}

// Notifier pushes refresh signals to connected clients. *utility.Hub satisfies it.
type Notifier interface {
	Notify(userID string) int
}

// Recorder is satisfied by *telemetry.Metrics.
type Recorder interface {
	ObservePipeline(outcome string, d time.Duration)
}

// Deps are the pipeline collaborators. Source, Cache and Content are required.
type Deps struct {
	Source   records.Source
	Cache    Cache
	Content  ContentProducer
	Audit    AuditSink
	Behavior BehaviorSink
	Notifier Notifier
	Metrics  Recorder
	Log      zerolog.Logger
	TTL      time.Duration
}

// Pipeline is safe for concurrent use.
type Pipeline struct {
	source   records.Source
	cache    Cache
	content  ContentProducer
	audit    AuditSink
	behavior BehaviorSink
	notifier Notifier
	metrics  Recorder
	log      zerolog.Logger
	ttl      time.Duration
}

func New(d Deps) *Pipeline {
	p := &Pipeline{
		source:   d.Source,
		cache:    d.Cache,
		content:  d.Content,
		audit:    d.Audit,
		behavior: d.Behavior,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      d.Log.With().Str("component", "orchestrator").Logger(),
		ttl:      d.TTL,
	}
	if p.audit == nil {
		p.audit = nopAudit{}
	}
	if p.behavior == nil {
		p.behavior = nopBehavior{}
	}
	if p.metrics == nil {
		p.metrics = nopRecorder{}
	}
	return p
}

type inputs struct {
	profile  records.UserProfile
	findings []records.LabFinding
	history  map[string]any
}

// AdaptiveView returns the persona-tailored response for a user's report.
// A cached response is returned with CacheHit set. records.ErrNotFound and
// context.Canceled are passed through; every other failure is wrapped in
// ErrInternal.
func (p *Pipeline) AdaptiveView(ctx context.Context, userID, reportID string) (*view.UIResponse, error) {
	start := time.Now()
	log := p.log.With().Str("user_id", userID).Str("report_id", reportID).Logger()
	key := cache.Key(userID, reportID)

	p.enter(log, StateCheckCache)
	if cached, ok := p.cache.Get(ctx, key); ok {
		elapsed := time.Since(start)
		p.enter(log, StateReturn)
		p.audit.LogCacheOperation("get", key, true, elapsed)
		p.audit.LogInteraction(userID, ActionAdaptiveView, "cache_hit", elapsed, nil)
		p.behavior.Track(userID, ActionAdaptiveView, cached.Persona, elapsed, map[string]any{
			"cache_hit":         true,
			"lab_results_count": len(cached.LabResults),
		})
		p.metrics.ObservePipeline("cache_hit", elapsed)
		return cached, nil
	}
	p.audit.LogCacheOperation("get", key, false, time.Since(start))

	p.enter(log, StateFetchInputs)
	in, err := p.fetch(ctx, userID, reportID)
	if err != nil {
		return nil, p.fail(log, userID, start, StateFetchInputs, err)
	}

	p.enter(log, StateClassify)
	id := persona.Classify(persona.Signals{
		Age:           in.profile.Age,
		Conditions:    in.profile.ConditionsText(),
		History:       in.history,
		Questionnaire: questionnaireFrom(in.history),
	})
	log = log.With().Str("persona", id.String()).Logger()

	p.enter(log, StateSelectTemplate)
	tmpl := uitemplate.Get(id)

	p.enter(log, StateGenerateContent)
	res := p.content.Produce(ctx, id, in.findings, content.Context{
		Age:        in.profile.Age,
		Gender:     in.profile.Gender,
		Conditions: in.profile.ConditionsText(),
		History:    in.history,
	})
	if err := ctx.Err(); err != nil {
		return nil, p.fail(log, userID, start, StateGenerateContent, err)
	}

	p.enter(log, StateAssemble)
	resp := view.Assemble(id, tmpl, res.Content, res.Recommendations, in.findings)
	resp.GeneratedBy = res.Source
	resp.UIComponents.Components.Header.HealthScore = res.Insights.HealthScore

	p.enter(log, StateStoreCache)
	p.cache.Set(ctx, key, &resp, p.ttl)

	p.enter(log, StateEmitTelemetry)
	elapsed := time.Since(start)
	abnormal := len(records.Abnormal(in.findings))
	p.audit.LogInteraction(userID, ActionAdaptiveView, "cache_miss", elapsed, map[string]any{
		"persona":           id,
		"lab_results_count": len(in.findings),
		"generated_by":      res.Source,
	})
	p.behavior.Track(userID, ActionAdaptiveView, id, elapsed, map[string]any{
		"cache_hit":         false,
		"lab_results_count": len(in.findings),
		"abnormal_count":    abnormal,
		"content_type":      res.Source,
	})
	p.metrics.ObservePipeline("cache_miss", elapsed)

	p.enter(log, StateReturn)
	return &resp, nil
}

// fetch loads profile, findings and history concurrently. The first error
// cancels the others.
func (p *Pipeline) fetch(ctx context.Context, userID, reportID string) (inputs, error) {
	var in inputs
	g, grpCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		profile, err := p.source.UserProfile(grpCtx, userID)
		if err != nil {
			return fmt.Errorf("user profile: %w", err)
		}
		in.profile = profile
		return nil
	})
	g.Go(func() error {
		findings, err := p.source.LabFindings(grpCtx, userID, reportID)
		if err != nil {
			return fmt.Errorf("lab findings: %w", err)
		}
		in.findings = findings
		return nil
	})
	g.Go(func() error {
		history, err := p.source.UserHistory(grpCtx, userID)
		if err != nil {
			return fmt.Errorf("user history: %w", err)
		}
		in.history = history
		return nil
	})

	if err := g.Wait(); err != nil {
		return inputs{}, err
	}
	return in, nil
}

func (p *Pipeline) fail(log zerolog.Logger, userID string, start time.Time, state State, err error) error {
	elapsed := time.Since(start)
	if errors.Is(err, records.ErrNotFound) {
		log.Info().Err(err).Str("state", string(state)).Msg("User not found")
		p.audit.LogInteraction(userID, ActionAdaptiveView, ResultNotFound, elapsed, nil)
		p.metrics.ObservePipeline(ResultNotFound, elapsed)
		return err
	}
	// A caller that went away is not a service failure.
	if errors.Is(err, context.Canceled) {
		log.Info().Err(err).Str("state", string(state)).Msg("Adaptive view cancelled by caller")
		p.audit.LogInteraction(userID, ActionAdaptiveView, ResultCancelled, elapsed, map[string]any{"state": string(state)})
		p.metrics.ObservePipeline(ResultCancelled, elapsed)
		return err
	}

	log.Error().Err(err).Str("state", string(state)).Msg("Adaptive view failed")
	p.audit.LogError(userID, ActionAdaptiveView, err.Error(), map[string]any{"state": string(state)})
	p.behavior.Track(userID, ActionAdaptiveView, "", elapsed, map[string]any{"error_type": string(state)})
	p.metrics.ObservePipeline("error", elapsed)
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// Invalidate drops every cached response of userID and tells the user's open
// clients to refresh. It returns the number of removed entries.
func (p *Pipeline) Invalidate(ctx context.Context, userID string) int {
	removed := p.cache.Invalidate(ctx, cache.UserPattern(userID))
	notified := 0
	if p.notifier != nil {
		notified = p.notifier.Notify(userID)
	}
	p.audit.LogCacheOperation("invalidate", cache.UserPattern(userID), false, 0)
	p.log.Info().Str("user_id", userID).Int("removed", removed).Int("notified", notified).Msg("User cache invalidated")
	return removed
}

func (p *Pipeline) enter(log zerolog.Logger, s State) {
	log.Debug().Str("state", string(s)).Msg("Pipeline transition")
}

// questionnaireFrom reads onboarding answers stored in the history under
// "questionnaire", if any.
func questionnaireFrom(history map[string]any) *persona.Questionnaire {
	switch q := history["questionnaire"].(type) {
	case *persona.Questionnaire:
		return q
	case persona.Questionnaire:
		return &q
	case map[string]any:
		str := func(k string) string {
			s, _ := q[k].(string)
			return s
		}
		return &persona.Questionnaire{
			TrackingStyle:       str("tracking_style"),
			Motivation:          str("motivation"),
			TimeSpent:           str("time_spent"),
			TechComfort:         str("tech_comfort"),
			DashboardPreference: str("dashboard_preference"),
		}
	default:
		return nil
	}
}

type nopAudit struct{}

func (nopAudit) LogInteraction(string, string, string, time.Duration, map[string]any) {}
func (nopAudit) LogError(string, string, string, map[string]any)                      {}
func (nopAudit) LogCacheOperation(string, string, bool, time.Duration)                {}

type nopBehavior struct{}

func (nopBehavior) Track(string, string, persona.ID, time.Duration, map[string]any) {}

type nopRecorder struct{}

func (nopRecorder) ObservePipeline(string, time.Duration) {}
