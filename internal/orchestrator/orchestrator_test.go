package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"healthlens/internal/cache"
	"healthlens/internal/content"
	"healthlens/internal/persona"
	"healthlens/internal/records"
	"healthlens/internal/telemetry"
	"healthlens/internal/view"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu    sync.Mutex
	users []string
}

func (n *recordingNotifier) Notify(userID string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	return 1
}

type failingSource struct {
	records.Source
	err error
}

func (f failingSource) UserHistory(context.Context, string) (map[string]any, error) {
	return nil, f.err
}

type questionnaireSource struct {
	*records.MemorySource
	history map[string]any
}

func (q questionnaireSource) UserHistory(context.Context, string) (map[string]any, error) {
	return q.history, nil
}

type fixture struct {
	pipeline *Pipeline
	audit    *telemetry.Audit
	behavior *telemetry.Behavior
	notifier *recordingNotifier
	cache    *cache.ResponseCache
}

func newFixture(src records.Source) fixture {
	audit := telemetry.NewAudit(zerolog.Nop(), 0)
	behavior := telemetry.NewBehavior(zerolog.Nop(), "", 0)
	notifier := &recordingNotifier{}
	rc := cache.NewResponseCache(nil, cache.NewMemoryStore(64), time.Hour, zerolog.Nop(), nil)
	p := New(Deps{
		Source:   src,
		Cache:    rc,
		Content:  content.NewService(nil),
		Audit:    audit,
		Behavior: behavior,
		Notifier: notifier,
		Log:      zerolog.Nop(),
	})
	return fixture{pipeline: p, audit: audit, behavior: behavior, notifier: notifier, cache: rc}
}

func TestAdaptiveView_MissThenHit(t *testing.T) {
	f := newFixture(records.NewMemorySource())
	ctx := context.Background()

	first, err := f.pipeline.AdaptiveView(ctx, "123", "")
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	assert.Equal(t, persona.HealthConscious, first.Persona)
	assert.Equal(t, content.SourceLocal, first.GeneratedBy)
	assert.Len(t, first.LabResults, 10)
	assert.Equal(t, first.LabResults, first.UIComponents.Components.ResultsView.Data)
	assert.Contains(t, first.UIComponents.Components.Summary.Content, "You have 2 result(s) that need attention")
	assert.NotEmpty(t, first.Recommendations)
	assert.LessOrEqual(t, len(first.Recommendations), content.MaxRecommendations)
	assert.Equal(t, 70, first.UIComponents.Components.Header.HealthScore)

	second, err := f.pipeline.AdaptiveView(ctx, "123", "")
	require.NoError(t, err)
	assert.True(t, second.CacheHit)

	second.CacheHit = false
	assert.Equal(t, *first, *second)

	activity := f.audit.UserActivity("123", 10)
	require.Len(t, activity, 2)
	results := []string{activity[0].Result, activity[1].Result}
	assert.ElementsMatch(t, []string{"cache_miss", "cache_hit"}, results)
	assert.Len(t, f.behavior.Events(), 2)
}

func TestAdaptiveView_UserWithoutFindings(t *testing.T) {
	f := newFixture(records.NewMemorySource())
	resp, err := f.pipeline.AdaptiveView(context.Background(), "456", "r1")
	require.NoError(t, err)
	assert.Equal(t, persona.Balanced, resp.Persona)
	assert.Empty(t, resp.LabResults)
	assert.Equal(t, "All your lab results are within normal ranges. This is a positive indicator of your current health status.",
		resp.UIComponents.Components.Summary.Content)
}

func TestAdaptiveView_NotFound(t *testing.T) {
	f := newFixture(records.NewMemorySource())
	_, err := f.pipeline.AdaptiveView(context.Background(), "999", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, records.ErrNotFound))
	assert.False(t, errors.Is(err, ErrInternal))
	assert.Zero(t, f.audit.SystemMetrics(time.Hour).Errors)
}

func TestAdaptiveView_InternalErrorIsAudited(t *testing.T) {
	f := newFixture(failingSource{Source: records.NewMemorySource(), err: errors.New("history store down")})
	_, err := f.pipeline.AdaptiveView(context.Background(), "123", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInternal))
	assert.Contains(t, err.Error(), "history store down")

	activity := f.audit.UserActivity("123", 10)
	require.Len(t, activity, 1)
	assert.Equal(t, telemetry.LevelError, activity[0].Level)
	assert.Equal(t, ActionAdaptiveView, activity[0].Action)
}

func TestAdaptiveView_QuestionnaireFromHistory(t *testing.T) {
	src := questionnaireSource{
		MemorySource: records.NewMemorySource(),
		history:      map[string]any{"questionnaire": map[string]any{"motivation": "Goal-Focused"}},
	}
	f := newFixture(src)
	resp, err := f.pipeline.AdaptiveView(context.Background(), "456", "")
	require.NoError(t, err)
	assert.Equal(t, persona.GoalFocused, resp.Persona)
}

func TestAdaptiveView_ConcurrentMisses(t *testing.T) {
	f := newFixture(records.NewMemorySource())

	var wg sync.WaitGroup
	out := make([]*view.UIResponse, 2)
	errs := make([]error, 2)
	for i := range out {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out[i], errs[i] = f.pipeline.AdaptiveView(context.Background(), "123", "r1")
		}(i)
	}
	wg.Wait()

	for i := range out {
		require.NoError(t, errs[i])
		require.NotNil(t, out[i])
		out[i].CacheHit = false
	}
	assert.Equal(t, *out[0], *out[1])
}

func TestAdaptiveView_CancelledContext(t *testing.T) {
	f := newFixture(records.NewMemorySource())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.pipeline.AdaptiveView(ctx, "123", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, errors.Is(err, ErrInternal))

	assert.Zero(t, f.audit.SystemMetrics(time.Hour).Errors)
	activity := f.audit.UserActivity("123", 10)
	require.Len(t, activity, 1)
	assert.Equal(t, ResultCancelled, activity[0].Result)
	assert.Equal(t, telemetry.LevelInfo, activity[0].Level)
	assert.Empty(t, f.behavior.Events())
}

func TestAdaptiveView_DeadlineIsInternal(t *testing.T) {
	f := newFixture(records.NewMemorySource())
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := f.pipeline.AdaptiveView(ctx, "123", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInternal))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, 1, f.audit.SystemMetrics(time.Hour).Errors)
}

func TestInvalidate(t *testing.T) {
	f := newFixture(records.NewMemorySource())
	ctx := context.Background()

	_, err := f.pipeline.AdaptiveView(ctx, "123", "")
	require.NoError(t, err)
	_, err = f.pipeline.AdaptiveView(ctx, "123", "r2")
	require.NoError(t, err)

	assert.Equal(t, 2, f.pipeline.Invalidate(ctx, "123"))
	assert.Equal(t, []string{"123"}, f.notifier.users)

	resp, err := f.pipeline.AdaptiveView(ctx, "123", "")
	require.NoError(t, err)
	assert.False(t, resp.CacheHit)
}

func TestQuestionnaireFrom(t *testing.T) {
	assert.Nil(t, questionnaireFrom(nil))
	assert.Nil(t, questionnaireFrom(map[string]any{"questionnaire": 42}))

	q := persona.Questionnaire{TrackingStyle: "quick-bold"}
	assert.Equal(t, &q, questionnaireFrom(map[string]any{"questionnaire": q}))
}
