/*
Package persona maps demographic and questionnaire signals onto one of a fixed
set of behavioral archetypes and exposes the static profile for each archetype.
*/
package persona

import (
	"errors"
	"fmt"
	"strings"
)

// ID identifies a persona. Values outside the closed set below are never produced
// by Parse or Classify.
type ID string

const (
	DetailOriented  ID = "detail-oriented"
	Analytical      ID = "analytical"
	TechSavvy       ID = "tech-savvy"
	QuickBold       ID = "quick-bold"
	Casual          ID = "casual"
	FastAction      ID = "fast-action"
	HealthConscious ID = "health-conscious"
	Balanced        ID = "balanced"
	Passive         ID = "passive"
	Beginner        ID = "beginner"
	Intermediate    ID = "intermediate"
	GoalFocused     ID = "goal-focused"
	ActionOriented  ID = "action-oriented"
)

// ErrInvalidPersona is returned by Parse for identifiers outside the closed set.
var ErrInvalidPersona = errors.New("invalid persona type")

// ordered lists every persona in display order.
var ordered = []ID{
	DetailOriented, Analytical, TechSavvy, QuickBold, Casual, FastAction,
	HealthConscious, Balanced, Passive, Beginner, Intermediate, GoalFocused,
	ActionOriented,
}

var known = func() map[ID]struct{} {
	m := make(map[ID]struct{}, len(ordered))
	for _, id := range ordered {
		m[id] = struct{}{}
	}
	return m
}()

// Parse normalizes untrusted input ("Health_Conscious ", "tech-savvy") into an ID.
func Parse(raw string) (ID, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", "-")
	id := ID(s)
	if _, ok := known[id]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidPersona, raw)
	}
	return id, nil
}

// All returns every persona in a stable order. The slice is a copy.
func All() []ID {
	out := make([]ID, len(ordered))
	copy(out, ordered)
	return out
}

// Valid reports whether id belongs to the closed set.
func (id ID) Valid() bool {
	_, ok := known[id]
	return ok
}

func (id ID) String() string { return string(id) }

// Title renders the id for headings: "health-conscious" -> "Health Conscious".
func (id ID) Title() string {
	words := strings.Fields(strings.ReplaceAll(string(id), "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
