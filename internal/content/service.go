package content

import (
	"context"

	"healthlens/internal/geminiservice"
	"healthlens/internal/persona"
	"healthlens/internal/records"
	"healthlens/internal/uitemplate"
)

// Generator yields parsed insights or nil when the provider could not deliver.
// *geminiservice.Degrading satisfies it.
type Generator interface {
	Insights(ctx context.Context, prompt string) *geminiservice.Insights
}

// Service produces formatted content, trying the external generator first.
type Service struct {
	gen Generator
}

// NewService returns a Service. A nil gen always uses the local rules.
func NewService(gen Generator) *Service {
	return &Service{gen: gen}
}

// Prompt builds the full generation prompt for id.
func Prompt(id persona.ID, findings []records.LabFinding, uc Context) string {
	return geminiservice.BuildInsightsPrompt(
		uitemplate.BuildGenerationPrompt(id, uc.promptFields()),
		DepthFor(id),
		geminiservice.PatientData{
			Age:        uc.Age,
			Gender:     uc.Gender,
			Conditions: uc.Conditions,
			Findings:   findings,
		},
	)
}

// Produce generates and formats content for id. Generation failures never
// surface; they yield the local result.
func (s *Service) Produce(ctx context.Context, id persona.ID, findings []records.LabFinding, uc Context) Result {
	var ext *geminiservice.Insights
	if s != nil && s.gen != nil {
		ext = s.gen.Insights(ctx, Prompt(id, findings, uc))
	}
	return Format(id, findings, ext, uc)
}
