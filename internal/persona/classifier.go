package persona

import (
	"fmt"
	"strings"
)

// Questionnaire holds the behavioral answers collected during onboarding.
type Questionnaire struct {
	TrackingStyle       string `json:"tracking_style"`
	Motivation          string `json:"motivation"`
	TimeSpent           string `json:"time_spent"`
	TechComfort         string `json:"tech_comfort"`
	DashboardPreference string `json:"dashboard_preference"`
}

// Signals is the classifier input. Questionnaire is nil when the user skipped it.
type Signals struct {
	Age           int
	Conditions    string
	History       map[string]any
	Questionnaire *Questionnaire
}

// Decision is the classifier result with the reasoning surfaced to clients.
type Decision struct {
	Persona    ID      `json:"persona"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

const (
	seniorAge = 65
	midAge    = 45

	// decisionConfidence is fixed; the tree is deterministic.
	decisionConfidence = 0.85
)

var diabetesTags = []string{"diabetes", "diabetic"}

// Classify walks the age-bracket decision tree. The first matching rule wins and
// every bracket has a default, so it never fails.
func Classify(s Signals) ID {
	id, _ := classify(s)
	return id
}

// Explain classifies and describes which rule fired.
func Explain(s Signals) Decision {
	id, rule := classify(s)
	return Decision{
		Persona:    id,
		Confidence: decisionConfidence,
		Reasoning:  fmt.Sprintf("Based on age (%d) and %s, determined as %s", s.Age, rule, GetProfile(id).DisplayName),
	}
}

func classify(s Signals) (ID, string) {
	q := normalize(s.Questionnaire)

	switch {
	case s.Age >= seniorAge:
		// Condition check precedes the questionnaire.
		if mentionsAny(s.Conditions, diabetesTags) {
			return HealthConscious, "a diabetes-related condition"
		}
		if q != nil {
			switch {
			case q.TechComfort == "beginner":
				return Beginner, "beginner tech comfort"
			case q.TrackingStyle == "detail-oriented":
				return DetailOriented, "a detail-oriented tracking style"
			}
		}
		return Casual, "the senior default"

	case s.Age >= midAge:
		if strings.TrimSpace(s.Conditions) != "" {
			return HealthConscious, "reported health conditions"
		}
		if q != nil {
			switch {
			case q.Motivation == "goal-focused":
				return GoalFocused, "goal-focused motivation"
			case q.TrackingStyle == "tech-savvy":
				return TechSavvy, "a tech-savvy tracking style"
			}
		}
		return Balanced, "the mid-life default"

	default:
		if q != nil {
			switch {
			case q.TrackingStyle == "quick-bold":
				return QuickBold, "a quick-bold tracking style"
			case q.TrackingStyle == "detail-oriented":
				return Analytical, "a detail-oriented tracking style"
			case q.TechComfort == "power":
				return TechSavvy, "power-user tech comfort"
			case q.Motivation == "fast-action":
				return FastAction, "fast-action motivation"
			}
		}
		return Intermediate, "the young-adult default"
	}
}

// normalize returns a trimmed, lower-cased copy so answers compare exactly.
func normalize(q *Questionnaire) *Questionnaire {
	if q == nil {
		return nil
	}
	clean := func(v string) string { return strings.ToLower(strings.TrimSpace(v)) }
	return &Questionnaire{
		TrackingStyle:       clean(q.TrackingStyle),
		Motivation:          clean(q.Motivation),
		TimeSpent:           clean(q.TimeSpent),
		TechComfort:         clean(q.TechComfort),
		DashboardPreference: clean(q.DashboardPreference),
	}
}

func mentionsAny(text string, tags []string) bool {
	lower := strings.ToLower(text)
	for _, t := range tags {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
