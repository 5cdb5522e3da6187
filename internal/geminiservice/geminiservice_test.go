package geminiservice

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"healthlens/internal/records"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiBody(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	})
	return string(b)
}

func newTestClient(endpoint string, insecure bool) *Client {
	c := NewClient(Config{APIKey: "test-key", Model: "models/gemini-test", Endpoint: endpoint, AllowInsecureTLS: insecure}, zerolog.Nop())
	c.backoff = 0
	return c
}

/* ============================ ParseInsights ============================ */

func TestParseInsights_ExtractsFirstObject(t *testing.T) {
	text := "Sure! Here you go:\n```json\n" +
		`{"overall_health_score": 82, "key_insights": ["Potassium is {slightly} low"], "recommendations": ["Eat bananas"], "risk_factors": [], "positive_indicators": ["Normal glucose"], "summary": "Mostly fine"}` +
		"\n```\nAnd another {\"ignored\": true}"

	got, err := ParseInsights(text)
	require.NoError(t, err)
	assert.Equal(t, 82, got.HealthScore)
	assert.Equal(t, []string{"Potassium is {slightly} low"}, got.KeyInsights)
	assert.Equal(t, []string{"Eat bananas"}, got.Recommendations)
	assert.Empty(t, got.RiskFactors)
	assert.Equal(t, "Mostly fine", got.Summary)
}

func TestParseInsights_BackfillsMissingFields(t *testing.T) {
	got, err := ParseInsights(`{"risk_factors": ["High WBC"]}`)
	require.NoError(t, err)
	assert.Equal(t, DefaultHealthScore, got.HealthScore)
	assert.Equal(t, []string{"Personalized health insights generated"}, got.KeyInsights)
	assert.Equal(t, []string{"Maintain healthy lifestyle habits"}, got.Recommendations)
	assert.Equal(t, DefaultSummary, got.Summary)
	assert.Equal(t, []string{"High WBC"}, got.RiskFactors)
	assert.Equal(t, []string{"Active health monitoring"}, got.PositiveIndicators)
}

func TestParseInsights_ClampsAndAcceptsStringScore(t *testing.T) {
	got, err := ParseInsights(`{"overall_health_score": 140}`)
	require.NoError(t, err)
	assert.Equal(t, 100, got.HealthScore)

	got, err = ParseInsights(`{"overall_health_score": -3}`)
	require.NoError(t, err)
	assert.Equal(t, 0, got.HealthScore)

	got, err = ParseInsights(`{"overall_health_score": "64"}`)
	require.NoError(t, err)
	assert.Equal(t, 64, got.HealthScore)
}

func TestParseInsights_RepairsTrailingComma(t *testing.T) {
	got, err := ParseInsights(`{"overall_health_score": 70, "summary": "ok",}`)
	require.NoError(t, err)
	assert.Equal(t, 70, got.HealthScore)
	assert.Equal(t, "ok", got.Summary)
}

func TestParseInsights_NoJSON(t *testing.T) {
	_, err := ParseInsights("I'm sorry, I can't help with that.")
	assert.True(t, errors.Is(err, ErrNoJSON))
}

func TestParseInsights_DefaultsAreNotShared(t *testing.T) {
	a, err := ParseInsights(`{}`)
	require.NoError(t, err)
	a.KeyInsights[0] = "mutated"

	b, err := ParseInsights(`{}`)
	require.NoError(t, err)
	assert.Equal(t, "Personalized health insights generated", b.KeyInsights[0])
}

/* ============================ LocalInsights ============================ */

func TestLocalInsights(t *testing.T) {
	findings := []records.LabFinding{
		{Name: "Glucose", Status: records.StatusNormal},
		{Name: "Potassium", Status: records.StatusLow},
		{Name: "WBC", Status: records.StatusHigh},
	}

	simple := LocalInsights(findings, DepthSimple, 72)
	assert.Equal(t, 70, simple.HealthScore)
	assert.Contains(t, simple.KeyInsights, "2 values need attention")

	detailed := LocalInsights(findings, DepthDetailed, 72)
	assert.Equal(t, 70, detailed.HealthScore)
	assert.Contains(t, detailed.RiskFactors[0], "age: 72")
	assert.Len(t, detailed.RiskFactors, 2)

	assert.Equal(t, DefaultHealthScore, LocalInsights(nil, DepthSimple, 0).HealthScore)

	many := make([]records.LabFinding, 10)
	for i := range many {
		many[i].Status = records.StatusHigh
	}
	assert.Equal(t, 50, LocalInsights(many, DepthSimple, 0).HealthScore)
}

/* ============================ Client ============================ */

func TestClient_Success(t *testing.T) {
	var gotPath, gotKey string
	var gotPayload GeminiPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotPayload)
		_, _ = io.WriteString(w, geminiBody(`{"overall_health_score": 90}`))
	}))
	defer srv.Close()

	text, err := newTestClient(srv.URL, false).Generate(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, `{"overall_health_score": 90}`, text)
	assert.Equal(t, "/gemini-test:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	require.Len(t, gotPayload.Contents, 1)
	assert.Equal(t, "hello", gotPayload.Contents[0].Parts[0].Text)
	assert.Equal(t, "application/json", gotPayload.GenerationConfig.ResponseMimeType)
}

func TestClient_RetriesThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, geminiBody("{}"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, false).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_AttemptCeiling(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, false).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_LeakedKeyStopsImmediately(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "Your API key was reported as leaked.", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, false).Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyRevoked))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_RelaxedTLSOnFinalAttempt(t *testing.T) {
	var calls int32
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, geminiBody("{}"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, false).Generate(context.Background(), "p")
	require.Error(t, err, "self-signed certificate must be rejected when relaxing is not allowed")
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	_, err = newTestClient(srv.URL, true).Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_NotConfigured(t *testing.T) {
	c := NewClient(Config{}, zerolog.Nop())
	assert.False(t, c.Available())
	assert.Equal(t, DefaultModel, c.Model())
	_, err := c.Generate(context.Background(), "p")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

/* ============================ Degrading ============================ */

type stubGenerator struct {
	text string
	err  error
	wait time.Duration
}

func (s stubGenerator) Generate(ctx context.Context, _ string) (string, error) {
	if s.wait > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.wait):
		}
	}
	return s.text, s.err
}

type outcomes []string

func (o *outcomes) GenerationOutcome(v string) { *o = append(*o, v) }

func TestDegrading(t *testing.T) {
	var rec outcomes
	ctx := context.Background()

	ok := NewDegrading(stubGenerator{text: `{"overall_health_score": 88}`}, time.Second, zerolog.Nop(), &rec)
	got := ok.Insights(ctx, "p")
	require.NotNil(t, got)
	assert.Equal(t, 88, got.HealthScore)

	assert.Nil(t, NewDegrading(stubGenerator{err: errors.New("boom")}, time.Second, zerolog.Nop(), &rec).Insights(ctx, "p"))
	assert.Nil(t, NewDegrading(stubGenerator{text: "no json here"}, time.Second, zerolog.Nop(), &rec).Insights(ctx, "p"))
	assert.Nil(t, NewDegrading(stubGenerator{wait: time.Second}, 10*time.Millisecond, zerolog.Nop(), &rec).Insights(ctx, "p"))
	assert.Nil(t, NewDegrading(nil, 0, zerolog.Nop(), &rec).Insights(ctx, "p"))

	assert.Equal(t, []string{OutcomeExternal, OutcomeFallback, OutcomeFallback, OutcomeFallback, OutcomeFallback}, []string(rec))
}

func TestBuildInsightsPrompt(t *testing.T) {
	p := BuildInsightsPrompt("persona says hi", DepthDetailed, PatientData{
		Age:    72,
		Gender: "Female",
		Findings: []records.LabFinding{
			{Name: "Potassium", Value: 3.2, Unit: "mmol/L", ReferenceRange: records.Range{Min: 3.5, Max: 5.1}, Status: records.StatusLow},
		},
	})
	assert.True(t, strings.HasPrefix(p, "persona says hi"))
	assert.Contains(t, p, "- Age: 72")
	assert.Contains(t, p, "- Conditions: unknown")
	assert.Contains(t, p, "- Potassium: 3.2 mmol/L (Normal range: 3.5-5.1) [low]")
	assert.Contains(t, p, "comprehensive health analysis")
	assert.Contains(t, p, "Return ONLY valid JSON")
}
