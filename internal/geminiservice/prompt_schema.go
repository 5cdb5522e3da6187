package geminiservice

import (
	"fmt"
	"strconv"
	"strings"

	"healthlens/internal/records"
)

/* =================================================================================
							GEMINI SCHEMA DEFINITION
	This is the core structure that tells Gemini how to format its JSON response
=================================================================================*/

// GeminiSchema defines the structure for "Controlled Generation" (Structured Output).
type GeminiSchema struct {
	// Type defines the data type (e.g., "OBJECT", "ARRAY", "STRING", "INTEGER").
	Type string `json:"type"`

	// Description explains the field's purpose to the AI.
	Description string `json:"description,omitempty"`

	// Properties maps field names to their child schemas (used when Type is "OBJECT").
	Properties map[string]*GeminiSchema `json:"properties,omitempty"`

	// Items defines the schema for elements within an array (used when Type is "ARRAY").
	Items *GeminiSchema `json:"items,omitempty"`

	// Required lists the field names that the AI MUST include in the response.
	Required []string `json:"required,omitempty"`
}

var stringList = &GeminiSchema{Type: "ARRAY", Items: &GeminiSchema{Type: "STRING"}}

// InsightsSchema mirrors Insights.
var InsightsSchema = &GeminiSchema{
	Type: "OBJECT",
	Properties: map[string]*GeminiSchema{
		"overall_health_score": {Type: "INTEGER", Description: "Overall health score from 0 to 100; higher when values are normal."},
		"key_insights":         stringList,
		"recommendations":      stringList,
		"risk_factors":         stringList,
		"positive_indicators":  stringList,
		"summary":              {Type: "STRING", Description: "Brief overall health summary."},
		"next_steps":           stringList,
	},
	Required: []string{"overall_health_score", "key_insights", "recommendations", "risk_factors", "positive_indicators", "summary"},
}

// Insights is the structured payload produced by Gemini or by LocalInsights.
// HealthScore is always within [0, 100] once parsed.
type Insights struct {
	HealthScore        int      `json:"overall_health_score"`
	KeyInsights        []string `json:"key_insights"`
	Recommendations    []string `json:"recommendations"`
	RiskFactors        []string `json:"risk_factors"`
	PositiveIndicators []string `json:"positive_indicators"`
	Summary            string   `json:"summary"`
	NextSteps          []string `json:"next_steps,omitempty"`
}

/* =================================================================================
							PROMPT TEMPLATES
=================================================================================*/

const SystemPrompt = `You are a health AI assistant providing personalized health insights.
You never provide diagnoses and you always encourage consultation with healthcare providers for medical concerns.
You respond with a single JSON object and nothing else.`

// depthInstructions tune how much the model explains.
var depthInstructions = map[Depth]string{
	DepthSimple:   "Provide simple, easy-to-understand health insights in plain language. Focus on key takeaways and basic recommendations.",
	DepthDetailed: "Provide comprehensive health analysis with detailed explanations, medical context, and specific recommendations.",
}

// Depth selects between plain and detailed explanations.
type Depth string

const (
	DepthSimple   Depth = "simple"
	DepthDetailed Depth = "detailed"
)

// PatientData is the structured context sent with every request.
type PatientData struct {
	Age        int
	Gender     string
	Conditions string
	Findings   []records.LabFinding
}

const insightsJSONContract = `CRITICAL: Respond with ONLY valid JSON in the exact format below. Do not include any text before or after the JSON:

{
    "overall_health_score": <number between 0-100>,
    "key_insights": ["insight 1", "insight 2", "insight 3"],
    "recommendations": ["recommendation 1", "recommendation 2", "recommendation 3"],
    "risk_factors": ["risk factor 1 if any"],
    "positive_indicators": ["positive indicator 1"],
    "summary": "Brief overall health summary",
    "next_steps": ["suggested next step 1"]
}

IMPORTANT RULES:
- Return ONLY valid JSON, no additional text
- Base insights only on the provided data
- If data is limited, acknowledge limitations in the insights
- Do not provide specific medical diagnoses
- Encourage consultation with healthcare providers for medical concerns
- Health score should reflect the lab results (higher for normal values, lower for abnormal)`

// BuildInsightsPrompt joins the persona instruction with the patient data and the
// strict JSON contract.
func BuildInsightsPrompt(personaPrompt string, depth Depth, data PatientData) string {
	instruction, ok := depthInstructions[depth]
	if !ok {
		instruction = depthInstructions[DepthSimple]
	}

	var b strings.Builder
	b.WriteString(strings.TrimSpace(personaPrompt))
	b.WriteString("\n\nPatient Information:\n")
	fmt.Fprintf(&b, "- Age: %s\n", ageText(data.Age))
	fmt.Fprintf(&b, "- Gender: %s\n", orUnknown(data.Gender))
	fmt.Fprintf(&b, "- Conditions: %s\n", orUnknown(data.Conditions))

	b.WriteString("\nLab Results:\n")
	b.WriteString(FormatFindingsForAI(data.Findings))

	fmt.Fprintf(&b, "\n\nInstructions: %s\n\n", instruction)
	b.WriteString(insightsJSONContract)
	return b.String()
}

// FormatFindingsForAI renders one line per finding.
func FormatFindingsForAI(findings []records.LabFinding) string {
	if len(findings) == 0 {
		return "No lab results available"
	}
	lines := make([]string, 0, len(findings))
	for _, f := range findings {
		lines = append(lines, fmt.Sprintf("- %s: %s %s (Normal range: %s-%s) [%s]",
			f.Name, num(f.Value), f.Unit, num(f.ReferenceRange.Min), num(f.ReferenceRange.Max), f.Status))
	}
	return strings.Join(lines, "\n")
}

func num(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func ageText(age int) string {
	if age <= 0 {
		return "unknown"
	}
	return strconv.Itoa(age)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}
