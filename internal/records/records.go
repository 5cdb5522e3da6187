/*
Package records defines the user and lab data the pipeline consumes and the
read-only source it is fetched from.
*/
package records

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a user or report does not exist.
var ErrNotFound = errors.New("not found")

// Status is the upstream verdict of a finding against its reference range.
type Status string

const (
	StatusNormal Status = "normal"
	StatusHigh   Status = "high"
	StatusLow    Status = "low"
)

// Range is the inclusive reference interval for a finding.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// LabFinding is one lab test result. Status is supplied by the source and trusted
// as-is; it is never recomputed from Value and ReferenceRange.
type LabFinding struct {
	Name           string  `json:"name"`
	Value          float64 `json:"value"`
	Unit           string  `json:"unit"`
	ReferenceRange Range   `json:"reference_range"`
	Category       string  `json:"category"`
	Status         Status  `json:"status"`
}

// Abnormal reports whether the finding needs attention.
func (f LabFinding) Abnormal() bool {
	return f.Status != StatusNormal
}

// UserProfile holds the demographic fields the classifier needs.
type UserProfile struct {
	ID         string  `json:"id"`
	Age        int     `json:"age"`
	Gender     string  `json:"gender"`
	Conditions *string `json:"conditions"`
	CreatedAt  string  `json:"created_at,omitempty"`
}

// ConditionsText returns the free-text conditions or "" when none are recorded.
func (p UserProfile) ConditionsText() string {
	if p.Conditions == nil {
		return ""
	}
	return *p.Conditions
}

// Source is the upstream store of user and lab records.
type Source interface {
	UserProfile(ctx context.Context, userID string) (UserProfile, error)
	LabFindings(ctx context.Context, userID, reportID string) ([]LabFinding, error)
	UserHistory(ctx context.Context, userID string) (map[string]any, error)
}

// Abnormal filters findings whose status is not normal, preserving order.
func Abnormal(findings []LabFinding) []LabFinding {
	out := make([]LabFinding, 0, len(findings))
	for _, f := range findings {
		if f.Abnormal() {
			out = append(out, f)
		}
	}
	return out
}
