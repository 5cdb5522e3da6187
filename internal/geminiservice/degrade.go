package geminiservice

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// TextGenerator is the raw provider contract: prompt in, free-form text out.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// OutcomeRecorder observes how each generation ended. It may be nil.
type OutcomeRecorder interface {
	GenerationOutcome(outcome string)
}

const (
	OutcomeExternal = "external"
	OutcomeFallback = "fallback"
)

// Degrading wraps a TextGenerator so that every failure (timeout, transport
// error, quota, malformed payload) collapses into a nil result. Callers treat nil
// as "use the local generator"; they never see the error.
type Degrading struct {
	gen     TextGenerator
	timeout time.Duration
	log     zerolog.Logger
	rec     OutcomeRecorder
}

// NewDegrading wraps gen. A nil gen always degrades. timeout bounds the whole
// attempt schedule.
func NewDegrading(gen TextGenerator, timeout time.Duration, log zerolog.Logger, rec OutcomeRecorder) *Degrading {
	return &Degrading{gen: gen, timeout: timeout, log: log, rec: rec}
}

// Insights returns parsed insights, or nil when the provider could not deliver.
func (d *Degrading) Insights(ctx context.Context, prompt string) *Insights {
	if d == nil || d.gen == nil {
		d.record(OutcomeFallback)
		return nil
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	text, err := d.gen.Generate(ctx, prompt)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			d.log.Debug().Msg("Gemini not configured, using local insights")
		} else {
			d.log.Warn().Err(err).Msg("Content generation failed, falling back to local insights")
		}
		d.record(OutcomeFallback)
		return nil
	}

	insights, err := ParseInsights(text)
	if err != nil {
		d.log.Warn().Err(err).Int("response_len", len(text)).Msg("Unparseable Gemini response, falling back to local insights")
		d.record(OutcomeFallback)
		return nil
	}

	d.record(OutcomeExternal)
	return &insights
}

func (d *Degrading) record(outcome string) {
	if d != nil && d.rec != nil {
		d.rec.GenerationOutcome(outcome)
	}
}
