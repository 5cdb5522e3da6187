package persona

import "maps"

// Tone groups personas by how guidance text should read.
type Tone string

const (
	ToneEncouraging Tone = "encouraging"
	ToneClinical    Tone = "clinical"
	ToneNeutral     Tone = "neutral"
)

// Profile is the static description of a persona.
type Profile struct {
	ID            ID             `json:"persona_id"`
	DisplayName   string         `json:"name"`
	Category      string         `json:"category"`
	Description   string         `json:"description"`
	Strengths     []string       `json:"strengths"`
	FocusAreas    []string       `json:"focus_areas"`
	DashboardType string         `json:"dashboard_type"`
	UIPreferences map[string]any `json:"ui_preferences"`
	Tone          Tone           `json:"tone"`
}

// defaultProfile is served for ids missing from the table.
const defaultProfile = Balanced

// profiles is built once at init and never mutated; accessors hand out copies.
var profiles = map[ID]Profile{
	DetailOriented: {
		DisplayName:   "The Analyst",
		Category:      "Detail-Focused Management",
		Description:   "You love diving deep into your health data and tracking every detail",
		Strengths:     []string{"Thorough data analysis", "Consistent tracking", "Pattern recognition"},
		FocusAreas:    []string{"Avoid analysis paralysis", "Set actionable goals"},
		DashboardType: "Comprehensive analytics with detailed charts and trends",
		UIPreferences: map[string]any{"show_detailed_charts": true, "show_trends": true, "show_raw_data": true, "complexity_level": "high"},
		Tone:          ToneClinical,
	},
	Analytical: {
		DisplayName:   "The Data Scientist",
		Category:      "Analytics-Driven Health",
		Description:   "You use analytical thinking and data science approaches to health",
		Strengths:     []string{"Statistical analysis", "Hypothesis testing", "Pattern recognition"},
		FocusAreas:    []string{"Actionable insights", "Practical implementation"},
		DashboardType: "Statistical dashboard with correlations and raw values",
		UIPreferences: map[string]any{"show_detailed_charts": true, "show_correlations": true, "show_raw_data": true, "complexity_level": "high"},
		Tone:          ToneClinical,
	},
	TechSavvy: {
		DisplayName:   "The Innovator",
		Category:      "Technology-Enhanced Health",
		Description:   "You leverage technology and devices to automate your health tracking",
		Strengths:     []string{"Device integration", "Automation", "Tech adoption"},
		FocusAreas:    []string{"Data accuracy validation", "Human touch points"},
		DashboardType: "Connected dashboard with device integrations",
		UIPreferences: map[string]any{"show_technical_details": true, "enable_integrations": true, "advanced_features": true, "complexity_level": "high"},
		Tone:          ToneNeutral,
	},
	QuickBold: {
		DisplayName:   "The Achiever",
		Category:      "Fast-Action Health",
		Description:   "You want quick insights and immediate actionable recommendations",
		Strengths:     []string{"Quick decision making", "Goal-oriented", "Action-focused"},
		FocusAreas:    []string{"Patience for long-term trends", "Detailed planning"},
		DashboardType: "Streamlined view with key metrics and instant actions",
		UIPreferences: map[string]any{"show_summary_only": true, "highlight_actions": true, "minimal_details": true, "complexity_level": "low"},
		Tone:          ToneNeutral,
	},
	Casual: {
		DisplayName:   "The Casual User",
		Category:      "Simple Health Tracking",
		Description:   "You prefer simple, easy-to-understand health information",
		Strengths:     []string{"Simplicity", "Low stress", "Easy adoption"},
		FocusAreas:    []string{"Building consistency", "Gradual improvement"},
		DashboardType: "Simple overview with the essentials",
		UIPreferences: map[string]any{"simple_language": true, "minimal_details": true, "complexity_level": "low"},
		Tone:          ToneNeutral,
	},
	FastAction: {
		DisplayName:   "The Quick Responder",
		Category:      "Fast-Action Health",
		Description:   "You want quick insights and immediate actionable recommendations",
		Strengths:     []string{"Quick decision making", "Goal-oriented", "Action-focused"},
		FocusAreas:    []string{"Patience for long-term trends", "Detailed planning"},
		DashboardType: "Streamlined view with key metrics and instant actions",
		UIPreferences: map[string]any{"show_summary_only": true, "highlight_actions": true, "complexity_level": "low"},
		Tone:          ToneNeutral,
	},
	HealthConscious: {
		DisplayName:   "The Guardian",
		Category:      "Preventive Health Focus",
		Description:   "You prioritize managing specific health conditions and prevention",
		Strengths:     []string{"Health awareness", "Preventive mindset", "Medical compliance"},
		FocusAreas:    []string{"Stress management", "Lifestyle balance"},
		DashboardType: "Condition-focused dashboard with medical insights",
		UIPreferences: map[string]any{"show_medical_context": true, "highlight_abnormal": true, "simple_language": true, "complexity_level": "medium"},
		Tone:          ToneEncouraging,
	},
	Balanced: {
		DisplayName:   "The Balanced User",
		Category:      "Balanced Health Management",
		Description:   "You take a moderate approach to health management",
		Strengths:     []string{"Balanced perspective", "Consistent habits", "Realistic goals"},
		FocusAreas:    []string{"Maintaining consistency", "Building healthy routines"},
		DashboardType: "Balanced dashboard with summaries and optional detail",
		UIPreferences: map[string]any{"show_trends": true, "highlight_abnormal": true, "complexity_level": "medium"},
		Tone:          ToneNeutral,
	},
	Passive: {
		DisplayName:   "The Observer",
		Category:      "Passive Health Monitoring",
		Description:   "You prefer to monitor your health data without active intervention",
		Strengths:     []string{"Patient observation", "Stress-free approach", "Long-term perspective"},
		FocusAreas:    []string{"Taking action when needed", "Setting gentle goals"},
		DashboardType: "Quiet monitoring view with gentle alerts",
		UIPreferences: map[string]any{"minimal_notifications": true, "simple_language": true, "complexity_level": "low"},
		Tone:          ToneNeutral,
	},
	Beginner: {
		DisplayName:   "The Learner",
		Category:      "Simple Health Start",
		Description:   "You prefer straightforward, easy-to-understand health information",
		Strengths:     []string{"Willingness to learn", "Appreciation for simplicity", "Step-by-step approach"},
		FocusAreas:    []string{"Building confidence", "Gradual complexity increase"},
		DashboardType: "Simplified interface with educational content",
		UIPreferences: map[string]any{"simple_language": true, "show_explanations": true, "minimal_complexity": true, "complexity_level": "low"},
		Tone:          ToneEncouraging,
	},
	Intermediate: {
		DisplayName:   "The Progressor",
		Category:      "Intermediate Health Management",
		Description:   "You have some experience with health tracking and want to advance",
		Strengths:     []string{"Growing knowledge", "Established habits", "Motivation to improve"},
		FocusAreas:    []string{"Advanced strategies", "Optimization techniques"},
		DashboardType: "Progress dashboard with trends and targets",
		UIPreferences: map[string]any{"show_trends": true, "show_goals": true, "complexity_level": "medium"},
		Tone:          ToneNeutral,
	},
	GoalFocused: {
		DisplayName:   "The Goal Achiever",
		Category:      "Goal-Oriented Health",
		Description:   "You set specific health goals and work systematically to achieve them",
		Strengths:     []string{"Goal setting", "Systematic approach", "Persistence"},
		FocusAreas:    []string{"Flexibility", "Enjoying the journey"},
		DashboardType: "Goal tracker with milestones",
		UIPreferences: map[string]any{"show_goals": true, "show_progress": true, "complexity_level": "medium"},
		Tone:          ToneNeutral,
	},
	ActionOriented: {
		DisplayName:   "The Doer",
		Category:      "Action-Based Health",
		Description:   "You prefer taking immediate action on health insights and recommendations",
		Strengths:     []string{"Quick implementation", "Results-driven", "Proactive"},
		FocusAreas:    []string{"Strategic thinking", "Long-term planning"},
		DashboardType: "Action list with next steps first",
		UIPreferences: map[string]any{"highlight_actions": true, "show_next_steps": true, "complexity_level": "low"},
		Tone:          ToneNeutral,
	},
}

func init() {
	for id, p := range profiles {
		p.ID = id
		profiles[id] = p
	}
}

// GetProfile returns the profile for id, or the balanced profile when id is not
// in the table. Rendering must never block on an unknown persona.
func GetProfile(id ID) Profile {
	if p, ok := Lookup(id); ok {
		return p
	}
	return clone(profiles[defaultProfile])
}

// Lookup returns the profile for id and whether it exists.
func Lookup(id ID) (Profile, bool) {
	p, ok := profiles[id]
	if !ok {
		return Profile{}, false
	}
	return clone(p), true
}

func clone(p Profile) Profile {
	p.Strengths = append([]string(nil), p.Strengths...)
	p.FocusAreas = append([]string(nil), p.FocusAreas...)
	p.UIPreferences = maps.Clone(p.UIPreferences)
	return p
}
