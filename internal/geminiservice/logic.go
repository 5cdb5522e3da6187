package geminiservice

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"healthlens/internal/records"

	"github.com/kaptinlin/jsonrepair"
)

// ErrNoJSON is returned when the response text contains no JSON object.
var ErrNoJSON = errors.New("gemini: no JSON object in response")

// Defaults backfilled into responses that omit a field.
const (
	DefaultHealthScore = 75
	DefaultSummary     = "Health insights generated using AI analysis"
)

var (
	defaultKeyInsights        = []string{"Personalized health insights generated"}
	defaultRecommendations    = []string{"Maintain healthy lifestyle habits"}
	defaultPositiveIndicators = []string{"Active health monitoring"}
	defaultNextSteps          = []string{"Continue health monitoring"}
)

// rawInsights keeps pointer fields so missing keys can be told apart from empty ones.
type rawInsights struct {
	HealthScore        *flexScore `json:"overall_health_score"`
	KeyInsights        *[]string  `json:"key_insights"`
	Recommendations    *[]string  `json:"recommendations"`
	RiskFactors        *[]string  `json:"risk_factors"`
	PositiveIndicators *[]string  `json:"positive_indicators"`
	Summary            *string    `json:"summary"`
	NextSteps          *[]string  `json:"next_steps"`
}

// flexScore accepts 82, 82.4 and "82".
type flexScore float64

func (s *flexScore) UnmarshalJSON(b []byte) error {
	str := strings.Trim(strings.TrimSpace(string(b)), `"`)
	str = strings.TrimSuffix(str, "/100")
	v, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
	if err != nil {
		return fmt.Errorf("health score %s: %w", b, err)
	}
	*s = flexScore(v)
	return nil
}

// ParseInsights pulls the first balanced JSON object out of free-form model text,
// repairs it if needed, and backfills any missing field with its default.
func ParseInsights(text string) (Insights, error) {
	obj, ok := extractObject(text)
	if !ok {
		return Insights{}, ErrNoJSON
	}

	var raw rawInsights
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(obj)
		if repairErr != nil {
			return Insights{}, fmt.Errorf("failed to parse insights: %w", err)
		}
		raw = rawInsights{}
		if err := json.Unmarshal([]byte(repaired), &raw); err != nil {
			return Insights{}, fmt.Errorf("failed to parse repaired insights: %w", err)
		}
	}

	out := Insights{
		HealthScore:        DefaultHealthScore,
		KeyInsights:        defaultKeyInsights,
		Recommendations:    defaultRecommendations,
		RiskFactors:        []string{},
		PositiveIndicators: defaultPositiveIndicators,
		Summary:            DefaultSummary,
		NextSteps:          defaultNextSteps,
	}
	if raw.HealthScore != nil {
		out.HealthScore = clampScore(float64(*raw.HealthScore))
	}
	if raw.KeyInsights != nil {
		out.KeyInsights = nonEmpty(*raw.KeyInsights)
	}
	if raw.Recommendations != nil {
		out.Recommendations = nonEmpty(*raw.Recommendations)
	}
	if raw.RiskFactors != nil {
		out.RiskFactors = nonEmpty(*raw.RiskFactors)
	}
	if raw.PositiveIndicators != nil {
		out.PositiveIndicators = nonEmpty(*raw.PositiveIndicators)
	}
	if raw.Summary != nil && strings.TrimSpace(*raw.Summary) != "" {
		out.Summary = *raw.Summary
	}
	if raw.NextSteps != nil {
		out.NextSteps = nonEmpty(*raw.NextSteps)
	}

	// Copy the shared defaults so callers can't alias package state.
	out.KeyInsights = append([]string(nil), out.KeyInsights...)
	out.Recommendations = append([]string(nil), out.Recommendations...)
	out.PositiveIndicators = append([]string(nil), out.PositiveIndicators...)
	out.NextSteps = append([]string(nil), out.NextSteps...)
	return out, nil
}

// extractObject returns the first balanced {...} span, skipping braces inside
// string literals. An unterminated object is returned as-is for repair.
func extractObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return text[start:], true
}

func clampScore(v float64) int {
	if math.IsNaN(v) {
		return DefaultHealthScore
	}
	return int(math.Round(math.Max(0, math.Min(100, v))))
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

/*=================================================================================
							LOCAL (MOCK) INSIGHTS
=================================================================================*/

// LocalInsights synthesizes a deterministic payload from the findings alone. It is
// what the service reports when Gemini is unreachable.
func LocalInsights(findings []records.LabFinding, depth Depth, age int) Insights {
	total := len(findings)
	abnormal := len(records.Abnormal(findings))

	score := DefaultHealthScore
	if total > 0 {
		score = max(50, 100-abnormal*15)
	}

	if depth == DepthDetailed {
		risks := []string{"Age considerations"}
		if age > 0 {
			risks[0] = fmt.Sprintf("Age-related health considerations (age: %d)", age)
		}
		if abnormal > 0 {
			risks = append(risks, "Values outside normal range require monitoring")
		}
		verdict := "areas requiring attention and improvement"
		if score >= 70 {
			verdict = "good overall health with room for optimization"
		}
		return Insights{
			HealthScore: score,
			KeyInsights: []string{
				fmt.Sprintf("Analyzed %d lab parameters with %d values outside normal range", total, abnormal),
				"Health assessment shows areas for improvement and monitoring",
				"Personalized recommendations provided based on current health data",
				"Regular monitoring recommended for optimal health maintenance",
			},
			Recommendations: []string{
				"Schedule follow-up consultation with healthcare provider",
				"Maintain regular exercise routine (150 minutes moderate activity per week)",
				"Follow balanced nutrition plan with emphasis on whole foods",
				"Monitor key health indicators monthly",
				"Stay hydrated and maintain adequate sleep (7-9 hours)",
			},
			RiskFactors: risks,
			PositiveIndicators: []string{
				"Active health monitoring and engagement",
				"Proactive approach to health management",
				"Comprehensive health data collection",
			},
			Summary: fmt.Sprintf("Comprehensive health analysis complete. Health score of %d/100 indicates %s. Continue monitoring and follow healthcare provider recommendations.", score, verdict),
			NextSteps: []string{
				"Review results with healthcare provider",
				"Implement recommended lifestyle modifications",
				"Schedule follow-up testing as advised",
				"Continue regular health monitoring",
			},
		}
	}

	reviewed := "Health assessment completed"
	if total > 0 {
		reviewed = fmt.Sprintf("Reviewed %d test results", total)
	}
	attention := "Most values look good"
	if abnormal > 0 {
		attention = fmt.Sprintf("%d values need attention", abnormal)
	}
	mood := "There are some areas to focus on."
	if score >= 75 {
		mood = "Keep up the good work!"
	}
	return Insights{
		HealthScore: score,
		KeyInsights: []string{
			fmt.Sprintf("Your health score is %d out of 100", score),
			reviewed,
			attention,
		},
		Recommendations: []string{
			"Talk to your doctor about these results",
			"Keep up with regular exercise",
			"Eat healthy foods",
			"Get enough sleep",
		},
		RiskFactors:        []string{},
		PositiveIndicators: []string{"You're tracking your health", "Taking a proactive approach"},
		Summary:            fmt.Sprintf("Your health score is %d/100. %s Talk to your doctor about these results.", score, mood),
		NextSteps:          []string{"Discuss with your healthcare provider", "Follow their recommendations"},
	}
}
