package persona

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify_Scenarios(t *testing.T) {
	tests := []struct {
		name string
		in   Signals
		want ID
	}{
		{"senior diabetic", Signals{Age: 72, Conditions: "Type 2 Diabetes, Hypertension"}, HealthConscious},
		{"senior diabetic beats questionnaire", Signals{Age: 80, Conditions: "DIABETIC", Questionnaire: &Questionnaire{TechComfort: "beginner"}}, HealthConscious},
		{"senior beginner", Signals{Age: 66, Questionnaire: &Questionnaire{TechComfort: "beginner", TrackingStyle: "detail-oriented"}}, Beginner},
		{"senior detail", Signals{Age: 70, Conditions: "Hypertension", Questionnaire: &Questionnaire{TrackingStyle: "detail-oriented"}}, DetailOriented},
		{"senior default", Signals{Age: 65}, Casual},
		{"mid with conditions", Signals{Age: 50, Conditions: "asthma", Questionnaire: &Questionnaire{Motivation: "goal-focused"}}, HealthConscious},
		{"mid blank conditions", Signals{Age: 50, Conditions: "   ", Questionnaire: &Questionnaire{Motivation: "goal-focused"}}, GoalFocused},
		{"mid tech", Signals{Age: 45, Questionnaire: &Questionnaire{TrackingStyle: "tech-savvy"}}, TechSavvy},
		{"mid default", Signals{Age: 64}, Balanced},
		{"young quick bold", Signals{Age: 30, Questionnaire: &Questionnaire{TrackingStyle: "quick-bold"}}, QuickBold},
		{"young detail", Signals{Age: 30, Questionnaire: &Questionnaire{TrackingStyle: "detail-oriented", TechComfort: "power"}}, Analytical},
		{"young power", Signals{Age: 22, Questionnaire: &Questionnaire{TechComfort: "Power "}}, TechSavvy},
		{"young fast", Signals{Age: 22, Questionnaire: &Questionnaire{Motivation: "fast-action"}}, FastAction},
		{"young ignores conditions", Signals{Age: 30, Conditions: "diabetes"}, Intermediate},
		{"young default", Signals{Age: 0}, Intermediate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.in))
		})
	}
}

func TestClassify_SeniorDiabetesAlwaysHealthConscious(t *testing.T) {
	answers := []*Questionnaire{
		nil,
		{TechComfort: "beginner"},
		{TrackingStyle: "detail-oriented"},
		{TrackingStyle: "quick-bold", Motivation: "fast-action", TechComfort: "power"},
	}
	for age := 65; age <= 110; age += 5 {
		for _, cond := range []string{"diabetes", "Pre-Diabetes", "type 1 DIABETES", "diabetic neuropathy"} {
			for _, q := range answers {
				got := Classify(Signals{Age: age, Conditions: cond, Questionnaire: q})
				require.Equal(t, HealthConscious, got, "age=%d cond=%q", age, cond)
			}
		}
	}
}

func TestExplain(t *testing.T) {
	d := Explain(Signals{Age: 72, Conditions: "Type 2 Diabetes"})
	assert.Equal(t, HealthConscious, d.Persona)
	assert.InDelta(t, 0.85, d.Confidence, 1e-9)
	assert.Contains(t, d.Reasoning, "The Guardian")
	assert.Contains(t, d.Reasoning, "72")
}

func TestParse(t *testing.T) {
	id, err := Parse(" Health_Conscious ")
	require.NoError(t, err)
	assert.Equal(t, HealthConscious, id)

	_, err = Parse("senior_sue")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPersona))
}

func TestRegistry_EveryPersonaHasProfile(t *testing.T) {
	for _, id := range All() {
		p, ok := Lookup(id)
		require.True(t, ok, "missing profile for %s", id)
		assert.Equal(t, id, p.ID)
		assert.NotEmpty(t, p.DisplayName)
		assert.NotEmpty(t, p.Tone)
	}
	assert.Len(t, All(), 13)
}

func TestRegistry_UnknownFallsBackToBalanced(t *testing.T) {
	for _, id := range []ID{"", "senior-sue", "DETAIL-ORIENTED"} {
		p := GetProfile(id)
		assert.Equal(t, Balanced, p.ID)
	}
}

func TestRegistry_ProfilesAreCopies(t *testing.T) {
	p := GetProfile(DetailOriented)
	p.Strengths[0] = "mutated"
	p.UIPreferences["show_raw_data"] = false

	again := GetProfile(DetailOriented)
	assert.Equal(t, "Thorough data analysis", again.Strengths[0])
	assert.Equal(t, true, again.UIPreferences["show_raw_data"])
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Health Conscious", HealthConscious.Title())
	assert.Equal(t, "Balanced", Balanced.Title())
}
