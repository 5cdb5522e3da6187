/*
Package view assembles the final UI response from a persona, its template and
the formatted content.
*/
package view

import (
	"healthlens/internal/persona"
	"healthlens/internal/records"
	"healthlens/internal/uitemplate"
)

// HeaderTitle is the fixed title shown above every result set.
const HeaderTitle = "Your Health Results"

type Header struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Subtitle    string `json:"subtitle"`
	HealthScore int    `json:"health_score,omitempty"`
}

type ResultsView struct {
	Type   string               `json:"type"`
	Data   []records.LabFinding `json:"data"`
	Config uitemplate.Hint      `json:"config"`
}

type Summary struct {
	Type    string          `json:"type"`
	Content string          `json:"content"`
	Config  uitemplate.Hint `json:"config"`
}

type Components struct {
	Header      Header      `json:"header"`
	ResultsView ResultsView `json:"results_view"`
	Summary     Summary     `json:"summary"`
}

// UIComponents is the rendered layout.
type UIComponents struct {
	Layout     string            `json:"layout"`
	Components Components        `json:"components"`
	Styling    map[string]string `json:"styling"`
	Persona    persona.ID        `json:"persona"`
}

// UIResponse is what the adaptive-view endpoint returns and the cache stores.
type UIResponse struct {
	Persona         persona.ID           `json:"persona"`
	UIComponents    UIComponents         `json:"ui_components"`
	LabResults      []records.LabFinding `json:"lab_results"`
	Recommendations []string             `json:"recommendations"`
	CacheHit        bool                 `json:"cache_hit"`
	GeneratedBy     string               `json:"generated_by,omitempty"`
}

// Structure lays content out according to d. findings are passed through
// unmodified.
func Structure(id persona.ID, d uitemplate.Descriptor, content string, findings []records.LabFinding) UIComponents {
	return UIComponents{
		Layout: d.Layout,
		Components: Components{
			Header: Header{
				Type:     d.Components.Header.Type(),
				Title:    HeaderTitle,
				Subtitle: "Personalized for " + id.Title(),
			},
			ResultsView: ResultsView{
				Type:   d.Components.ResultsView.Type(),
				Data:   findings,
				Config: d.Components.ResultsView,
			},
			Summary: Summary{
				Type:    d.Components.Summary.Type(),
				Content: content,
				Config:  d.Components.Summary,
			},
		},
		Styling: d.Styling,
		Persona: id,
	}
}

// Assemble builds a fresh (uncached) response.
func Assemble(id persona.ID, d uitemplate.Descriptor, content string, recs []string, findings []records.LabFinding) UIResponse {
	if recs == nil {
		recs = []string{}
	}
	if findings == nil {
		findings = []records.LabFinding{}
	}
	return UIResponse{
		Persona:         id,
		UIComponents:    Structure(id, d, content, findings),
		LabResults:      findings,
		Recommendations: recs,
		CacheHit:        false,
	}
}
