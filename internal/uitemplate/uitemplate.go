/*
Package uitemplate holds the persona-keyed UI template descriptors: layout,
per-component rendering hints, style tokens and the instruction handed to the
content generator.
*/
package uitemplate

import (
	"fmt"
	"maps"
	"sort"
	"strings"

	"healthlens/internal/persona"
)

// Hint is the free-form rendering configuration of one UI component. "type" is
// always present.
type Hint map[string]any

// Type returns the component type, or "default".
func (h Hint) Type() string {
	if t, ok := h["type"].(string); ok && t != "" {
		return t
	}
	return "default"
}

// Components groups the hints for the three rendered areas.
type Components struct {
	Header      Hint `json:"header"`
	ResultsView Hint `json:"results_view"`
	Summary     Hint `json:"summary"`
}

// Instruction tells the content generator how to speak to the persona.
type Instruction struct {
	Instruction     string `json:"ai_instruction"`
	ToneDescription string `json:"tone"`
	ComplexityLevel string `json:"complexity"`
	FocusArea       string `json:"focus"`
}

// Descriptor is the full template for a persona.
type Descriptor struct {
	Name        string            `json:"name"`
	Layout      string            `json:"layout"`
	Components  Components        `json:"components"`
	Styling     map[string]string `json:"styling"`
	Instruction Instruction       `json:"prompts"`
}

// defaultTemplate backs every persona without a bespoke or shared descriptor.
const defaultTemplate = persona.HealthConscious

var descriptors = map[persona.ID]Descriptor{
	persona.HealthConscious: {
		Name:   "senior_sue_template",
		Layout: "simple_overview",
		Components: Components{
			Header:      Hint{"type": "simple_header", "show_icons": true, "large_text": true},
			ResultsView: Hint{"type": "simplified_cards", "highlight_abnormal": true, "use_plain_language": true, "show_reference_ranges": false},
			Summary:     Hint{"type": "text_summary", "include_recommendations": true, "medical_context": true},
		},
		Styling: map[string]string{"font_size": "large", "contrast": "high", "colors": "medical_safe"},
		Instruction: Instruction{
			Instruction:     "Use simple, clear language. Focus on what the patient needs to know for their diabetes management. Highlight any concerning values but reassure when appropriate.",
			ToneDescription: "caring, professional, reassuring",
			ComplexityLevel: "low",
			FocusArea:       "health_management",
		},
	},
	persona.DetailOriented: {
		Name:   "analyst_template",
		Layout: "comprehensive_dashboard",
		Components: Components{
			Header:      Hint{"type": "detailed_header", "show_metrics": true, "show_trends": true},
			ResultsView: Hint{"type": "detailed_table", "show_all_data": true, "include_charts": true, "show_historical": true},
			Summary:     Hint{"type": "analytical_summary", "include_statistics": true, "show_correlations": true},
		},
		Styling: map[string]string{"font_size": "normal", "contrast": "normal", "colors": "professional"},
		Instruction: Instruction{
			Instruction:     "Provide detailed analysis with specific numbers, ranges, and trends. Include technical context and explain correlations between different biomarkers.",
			ToneDescription: "analytical, detailed, precise",
			ComplexityLevel: "high",
			FocusArea:       "comprehensive_analysis",
		},
	},
	persona.QuickBold: {
		Name:   "achiever_template",
		Layout: "action_focused",
		Components: Components{
			Header:      Hint{"type": "action_header", "show_status": true, "highlight_urgent": true},
			ResultsView: Hint{"type": "summary_cards", "show_only_abnormal": true, "action_buttons": true},
			Summary:     Hint{"type": "action_summary", "bullet_points": true, "next_steps": true},
		},
		Styling: map[string]string{"font_size": "normal", "contrast": "high", "colors": "action_focused"},
		Instruction: Instruction{
			Instruction:     "Be direct and action-oriented. Focus on what needs immediate attention and specific next steps. Keep explanations brief but actionable.",
			ToneDescription: "direct, motivating, action-oriented",
			ComplexityLevel: "medium",
			FocusArea:       "immediate_actions",
		},
	},
	persona.TechSavvy: {
		Name:   "innovator_template",
		Layout: "integrated_dashboard",
		Components: Components{
			Header:      Hint{"type": "tech_header", "show_integrations": true, "api_status": true},
			ResultsView: Hint{"type": "interactive_charts", "real_time_updates": true, "export_options": true},
			Summary:     Hint{"type": "data_driven_summary", "include_apis": true, "show_algorithms": true},
		},
		Styling: map[string]string{"font_size": "normal", "contrast": "normal", "colors": "tech_modern"},
		Instruction: Instruction{
			Instruction:     "Include technical details and data integration possibilities. Mention how values relate to wearable device data and suggest tech-enabled monitoring.",
			ToneDescription: "technical, innovative, data-driven",
			ComplexityLevel: "high",
			FocusArea:       "technology_integration",
		},
	},
	persona.Beginner: {
		Name:   "learner_template",
		Layout: "educational_guided",
		Components: Components{
			Header:      Hint{"type": "educational_header", "show_help": true, "guided_tour": true},
			ResultsView: Hint{"type": "educational_cards", "explanations": true, "tooltips": true},
			Summary:     Hint{"type": "educational_summary", "learn_more_links": true, "step_by_step": true},
		},
		Styling: map[string]string{"font_size": "large", "contrast": "high", "colors": "friendly"},
		Instruction: Instruction{
			Instruction:     "Explain everything in simple terms. Include what each test measures and why it matters. Be encouraging and educational without being overwhelming.",
			ToneDescription: "educational, encouraging, simple",
			ComplexityLevel: "very_low",
			FocusArea:       "learning_and_understanding",
		},
	},
}

// shared maps personas without their own descriptor onto a close relative.
var shared = map[persona.ID]persona.ID{
	persona.Analytical:     persona.DetailOriented,
	persona.FastAction:     persona.QuickBold,
	persona.ActionOriented: persona.QuickBold,
}

// Get returns the descriptor for id. Personas without a bespoke or shared
// descriptor, and ids outside the closed set, get the health-conscious one.
func Get(id persona.ID) Descriptor {
	if d, ok := descriptors[id]; ok {
		return clone(d)
	}
	if alias, ok := shared[id]; ok {
		return clone(descriptors[alias])
	}
	return clone(descriptors[defaultTemplate])
}

// Bespoke reports whether id has its own descriptor (not shared, not default).
func Bespoke(id persona.ID) bool {
	_, ok := descriptors[id]
	return ok
}

// BuildGenerationPrompt renders the persona's instruction and the supplied context
// into the text sent to the content generator. Context keys are sorted so the
// prompt is stable for identical input.
func BuildGenerationPrompt(id persona.ID, context map[string]any) string {
	in := Get(id).Instruction

	var b strings.Builder
	b.WriteString("You are a health AI assistant providing personalized lab result explanations.\n\n")
	b.WriteString("Persona Context:\n")
	fmt.Fprintf(&b, "- Communication Style: %s\n", in.ToneDescription)
	fmt.Fprintf(&b, "- Complexity Level: %s\n", in.ComplexityLevel)
	fmt.Fprintf(&b, "- Primary Focus: %s\n\n", in.FocusArea)
	fmt.Fprintf(&b, "Instructions: %s\n\n", in.Instruction)

	b.WriteString("User Context:\n")
	if len(context) == 0 {
		b.WriteString("- none provided\n")
	}
	keys := make([]string, 0, len(context))
	for k := range context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, context[k])
	}

	b.WriteString("\nPlease analyze the provided lab results and provide a response that matches this persona's preferences.")
	return b.String()
}

func clone(d Descriptor) Descriptor {
	d.Components = Components{
		Header:      maps.Clone(d.Components.Header),
		ResultsView: maps.Clone(d.Components.ResultsView),
		Summary:     maps.Clone(d.Components.Summary),
	}
	d.Styling = maps.Clone(d.Styling)
	return d
}
