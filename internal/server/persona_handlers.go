package server

import (
	"net/http"
	"strings"

	"healthlens/internal/content"
	"healthlens/internal/persona"
	"healthlens/internal/records"
	"healthlens/internal/uitemplate"
	"healthlens/internal/utility"
	"healthlens/internal/view"

	"github.com/labstack/echo/v4"
)

// CalculatePersonaRequest is the body of POST /persona/calculate.
type CalculatePersonaRequest struct {
	UserProfile            records.UserProfile    `json:"user_profile"`
	QuestionnaireResponses *persona.Questionnaire `json:"questionnaire_responses"`
}

// GenerateContentRequest is the body of POST /ai/generate.
type GenerateContentRequest struct {
	Persona      string               `json:"persona"`
	LabResults   []records.LabFinding `json:"lab_results"`
	TemplateType string               `json:"template_type"`
	UserContext  map[string]any       `json:"user_context"`
}

// GenerateContentResponse is returned by POST /ai/generate.
type GenerateContentResponse struct {
	Content         string            `json:"content"`
	UIComponents    view.UIComponents `json:"ui_components"`
	Recommendations []string          `json:"recommendations"`
	GeneratedBy     string            `json:"generated_by"`
}

type personaSummary struct {
	ID       persona.ID `json:"id"`
	Name     string     `json:"name"`
	Category string     `json:"category"`
	Tone     string     `json:"tone"`
}

func (s *Server) calculatePersonaHandler(c echo.Context) error {
	var req CalculatePersonaRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if strings.TrimSpace(req.UserProfile.ID) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_profile.id is required"})
	}
	if req.UserProfile.Age < 0 || req.UserProfile.Age > 150 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "user_profile.age is out of range"})
	}

	decision := persona.Explain(persona.Signals{
		Age:           req.UserProfile.Age,
		Conditions:    req.UserProfile.ConditionsText(),
		Questionnaire: req.QuestionnaireResponses,
	})

	s.behavior.TrackPersonaInteraction(req.UserProfile.ID, decision.Persona, "calculate", true, map[string]any{
		"feature_used": "persona_calculate",
	})
	utility.Logger(c).Info().
		Str("user_id", req.UserProfile.ID).
		Str("persona", decision.Persona.String()).
		Msg("Persona calculated")

	return c.JSON(http.StatusOK, decision)
}

func (s *Server) listPersonasHandler(c echo.Context) error {
	ids := persona.All()
	out := make([]personaSummary, 0, len(ids))
	for _, id := range ids {
		p := persona.GetProfile(id)
		out = append(out, personaSummary{ID: id, Name: p.DisplayName, Category: p.Category, Tone: string(p.Tone)})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"personas": out,
		"total":    len(out),
	})
}

func (s *Server) personaInfoHandler(c echo.Context) error {
	id, err := persona.Parse(c.Param("persona_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, persona.GetProfile(id))
}

func (s *Server) personaTemplateHandler(c echo.Context) error {
	id, err := persona.Parse(c.Param("persona_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, persona.GetProfile(id).UIPreferences)
}

/* ====================================================================
                   		Content Generation Handlers
==================================================================== */

// generateContentHandler formats ad-hoc findings for a persona. With
// ?mode=preview the external generator is skipped.
func (s *Server) generateContentHandler(c echo.Context) error {
	var req GenerateContentRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	id, err := persona.Parse(req.Persona)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	// template_type may name another persona's layout
	layout := id
	if req.TemplateType != "" {
		if t, err := persona.Parse(req.TemplateType); err == nil {
			layout = t
		}
	}

	findings := req.LabResults
	if findings == nil {
		findings = []records.LabFinding{}
	}
	uc := contextFrom(req.UserContext)

	var res content.Result
	if c.QueryParam("mode") == "preview" {
		res = content.Format(id, findings, nil, uc)
	} else {
		res = s.content.Produce(c.Request().Context(), id, findings, uc)
	}

	ui := view.Structure(id, uitemplate.Get(layout), res.Content, findings)
	ui.Components.Header.HealthScore = res.Insights.HealthScore

	utility.Logger(c).Info().
		Str("persona", id.String()).
		Str("generated_by", res.Source).
		Int("lab_results_count", len(findings)).
		Msg("Content generated")

	return c.JSON(http.StatusOK, GenerateContentResponse{
		Content:         res.Content,
		UIComponents:    ui,
		Recommendations: res.Recommendations,
		GeneratedBy:     res.Source,
	})
}

func (s *Server) generationPromptHandler(c echo.Context) error {
	id, err := persona.Parse(c.Param("persona_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"persona": id,
		"prompt":  uitemplate.BuildGenerationPrompt(id, nil),
	})
}

// contextFrom reads the well-known demographic keys; everything else is
// passed to the prompt as history.
func contextFrom(raw map[string]any) content.Context {
	var uc content.Context
	history := map[string]any{}
	for k, v := range raw {
		switch k {
		case "age":
			if n, ok := v.(float64); ok && n > 0 {
				uc.Age = int(n)
			}
		case "gender":
			uc.Gender, _ = v.(string)
		case "conditions":
			uc.Conditions, _ = v.(string)
		default:
			history[k] = v
		}
	}
	if len(history) > 0 {
		uc.History = history
	}
	return uc
}
