/*
Package content turns lab findings into persona-specific text and a short list
of recommendations. Format is pure; Service adds the external generator in
front of it.
*/
package content

import (
	"fmt"
	"strconv"
	"strings"

	"healthlens/internal/geminiservice"
	"healthlens/internal/persona"
	"healthlens/internal/records"
)

// MaxRecommendations caps every recommendation list.
const MaxRecommendations = 4

// Source values reported in Result.
const (
	SourceExternal = "external"
	SourceLocal    = "local"
)

// Context is the user context handed to the prompt and the formatter.
type Context struct {
	Age        int
	Gender     string
	Conditions string
	History    map[string]any
}

// promptFields flattens the context for uitemplate.BuildGenerationPrompt.
func (c Context) promptFields() map[string]any {
	fields := map[string]any{}
	if c.Age > 0 {
		fields["age"] = c.Age
	}
	if c.Gender != "" {
		fields["gender"] = c.Gender
	}
	if c.Conditions != "" {
		fields["conditions"] = c.Conditions
	}
	for k, v := range c.History {
		fields["history_"+k] = v
	}
	return fields
}

// Result is the formatted output for one request.
type Result struct {
	Content         string
	Recommendations []string
	Source          string
	Insights        geminiservice.Insights
}

// DepthFor picks how much detail the generator is asked for.
func DepthFor(id persona.ID) geminiservice.Depth {
	switch id {
	case persona.DetailOriented, persona.Analytical, persona.TechSavvy, persona.Intermediate, persona.GoalFocused:
		return geminiservice.DepthDetailed
	default:
		return geminiservice.DepthSimple
	}
}

// Format renders findings for id. A non-nil ext is laid out in the persona's
// style; a nil ext runs the local rules. It never fails.
func Format(id persona.ID, findings []records.LabFinding, ext *geminiservice.Insights, ctx Context) Result {
	tone := persona.GetProfile(id).Tone

	if ext == nil {
		return Result{
			Content:         localContent(tone, findings),
			Recommendations: localRecommendations(tone, findings),
			Source:          SourceLocal,
			Insights:        geminiservice.LocalInsights(findings, DepthFor(id), ctx.Age),
		}
	}

	recs := truncate(ext.Recommendations)
	if len(recs) == 0 {
		recs = localRecommendations(tone, findings)
	}
	return Result{
		Content:         externalContent(id, *ext),
		Recommendations: recs,
		Source:          SourceExternal,
		Insights:        *ext,
	}
}

func externalContent(id persona.ID, ins geminiservice.Insights) string {
	var b strings.Builder
	switch id {
	case persona.HealthConscious:
		fmt.Fprintf(&b, "Health Overview (Score: %d/100)\n\n", ins.HealthScore)
		b.WriteString(ins.Summary)
		if len(ins.KeyInsights) > 0 {
			b.WriteString("\n\nKey Insights:")
			for _, s := range ins.KeyInsights[:min(3, len(ins.KeyInsights))] {
				b.WriteString("\n• " + s)
			}
		}

	case persona.DetailOriented:
		b.WriteString("Comprehensive Health Analysis\n\n")
		fmt.Fprintf(&b, "Overall Health Score: %d/100\n\n", ins.HealthScore)
		b.WriteString("Summary: " + ins.Summary)
		if len(ins.KeyInsights) > 0 {
			b.WriteString("\n\nDetailed Insights:")
			for i, s := range ins.KeyInsights {
				fmt.Fprintf(&b, "\n%d. %s", i+1, s)
			}
		}
		if len(ins.RiskFactors) > 0 {
			b.WriteString("\n\nRisk Factors to Monitor:")
			for _, s := range ins.RiskFactors {
				b.WriteString("\n⚠️ " + s)
			}
		}
		if len(ins.PositiveIndicators) > 0 {
			b.WriteString("\n\nPositive Health Indicators:")
			for _, s := range ins.PositiveIndicators {
				b.WriteString("\n✅ " + s)
			}
		}

	default:
		fmt.Fprintf(&b, "Health Score: %d/100\n\n", ins.HealthScore)
		b.WriteString(ins.Summary)
		if len(ins.KeyInsights) > 0 {
			b.WriteString("\n\nKey Point: " + ins.KeyInsights[0])
		}
	}
	return b.String()
}

/*=================================================================================
							LOCAL RULES
=================================================================================*/

var allNormal = map[persona.Tone]string{
	persona.ToneEncouraging: "Good news! All your results are in the healthy range.",
	persona.ToneClinical:    "Analysis complete: All biomarkers are within reference ranges. No abnormal values detected.",
	persona.ToneNeutral:     "All your lab results are within normal ranges. This is a positive indicator of your current health status.",
}

func localContent(tone persona.Tone, findings []records.LabFinding) string {
	abnormal := records.Abnormal(findings)
	if len(abnormal) == 0 {
		if msg, ok := allNormal[tone]; ok {
			return msg
		}
		return allNormal[persona.ToneNeutral]
	}

	var b strings.Builder
	switch tone {
	case persona.ToneEncouraging:
		fmt.Fprintf(&b, "You have %d result(s) that need attention:\n", len(abnormal))
		for _, f := range abnormal {
			direction := "lower than normal"
			if f.Status == records.StatusHigh {
				direction = "higher than normal"
			}
			fmt.Fprintf(&b, "• %s: %s\n", f.Name, direction)
		}
		b.WriteString("\nPlease discuss these with your doctor.")

	case persona.ToneClinical:
		fmt.Fprintf(&b, "Abnormal findings detected (%d total):\n", len(abnormal))
		for _, f := range abnormal {
			direction, deviation := "below normal", f.Value-f.ReferenceRange.Min
			if f.Status == records.StatusHigh {
				direction, deviation = "elevated", f.Value-f.ReferenceRange.Max
			}
			fmt.Fprintf(&b, "• %s: %s (%s %s, %+.2f from reference range %s-%s)\n",
				f.Name, direction, num(f.Value), f.Unit, deviation, num(f.ReferenceRange.Min), num(f.ReferenceRange.Max))
		}
		b.WriteString("\nRecommendation: Clinical correlation advised.")

	default:
		fmt.Fprintf(&b, "Your lab results show %d values outside the normal range:\n", len(abnormal))
		for _, f := range abnormal {
			direction := "below normal"
			if f.Status == records.StatusHigh {
				direction = "elevated"
			}
			fmt.Fprintf(&b, "• %s is %s\n", f.Name, direction)
		}
		b.WriteString("\nPlease review these results with your healthcare provider.")
	}
	return b.String()
}

var (
	glucoseTerms     = []string{"glucose", "sugar", "a1c"}
	cholesterolTerms = []string{"cholesterol", "ldl", "hdl", "triglyceride"}
	bloodTerms       = []string{"blood"}
)

func localRecommendations(tone persona.Tone, findings []records.LabFinding) []string {
	abnormal := records.Abnormal(findings)
	if len(abnormal) == 0 {
		return []string{
			"Continue maintaining your current health routine",
			"Schedule regular check-ups as recommended by your doctor",
			"Keep tracking your health metrics",
		}
	}

	var recs []string
	if anyMentions(abnormal, glucoseTerms) {
		if tone == persona.ToneEncouraging {
			recs = append(recs, "Monitor your blood sugar levels daily", "Follow your diabetes management plan")
		} else {
			recs = append(recs, "Consider glucose monitoring")
		}
	}
	if anyMentions(abnormal, cholesterolTerms) {
		recs = append(recs, "Consider heart-healthy diet modifications", "Discuss cholesterol management with your doctor")
	}
	if anyMentions(abnormal, bloodTerms) {
		recs = append(recs, "Follow up with your healthcare provider", "Consider additional blood work if recommended")
	}

	if len(recs) == 0 {
		recs = []string{
			"Discuss these results with your healthcare provider",
			"Follow any treatment plans recommended by your doctor",
			"Continue monitoring your health regularly",
		}
	}
	return truncate(recs)
}

func anyMentions(findings []records.LabFinding, terms []string) bool {
	for _, f := range findings {
		name := strings.ToLower(f.Name)
		for _, t := range terms {
			if strings.Contains(name, t) {
				return true
			}
		}
	}
	return false
}

func truncate(items []string) []string {
	out := make([]string, 0, min(len(items), MaxRecommendations))
	for _, s := range items {
		if len(out) == MaxRecommendations {
			break
		}
		out = append(out, s)
	}
	return out
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
