package records

import (
	"context"
	"fmt"
	"maps"
)

// MemorySource serves a fixed dataset held in memory. The dataset is built at
// construction and never mutated, so concurrent reads need no locking.
type MemorySource struct {
	users    map[string]UserProfile
	findings map[string][]LabFinding
	history  map[string]map[string]any
}

// NewMemorySource returns a source preloaded with the demo dataset.
func NewMemorySource() *MemorySource {
	conditions := "Type 2 Diabetes, Hypertension"
	return &MemorySource{
		users: map[string]UserProfile{
			"123": {ID: "123", Age: 72, Gender: "Female", Conditions: &conditions, CreatedAt: "2024-01-15T10:30:00Z"},
			"456": {ID: "456", Age: 45, Gender: "Male", CreatedAt: "2024-02-20T14:15:00Z"},
		},
		findings: map[string][]LabFinding{
			"123": {
				{Name: "Glucose", Value: 98.0, Unit: "mg/dL", ReferenceRange: Range{70.0, 99.0}, Category: "Metabolic Panel", Status: StatusNormal},
				{Name: "White Blood Cell Count", Value: 11.2, Unit: "K/uL", ReferenceRange: Range{4.5, 11.0}, Category: "Complete Blood Count", Status: StatusHigh},
				{Name: "Red Blood Cell Count", Value: 4.8, Unit: "M/uL", ReferenceRange: Range{4.5, 5.9}, Category: "Complete Blood Count", Status: StatusNormal},
				{Name: "Hemoglobin", Value: 14.2, Unit: "g/dL", ReferenceRange: Range{13.5, 17.5}, Category: "Complete Blood Count", Status: StatusNormal},
				{Name: "Hematocrit", Value: 42.1, Unit: "%", ReferenceRange: Range{38.8, 50.0}, Category: "Complete Blood Count", Status: StatusNormal},
				{Name: "Platelet Count", Value: 210.0, Unit: "K/uL", ReferenceRange: Range{150.0, 400.0}, Category: "Complete Blood Count", Status: StatusNormal},
				{Name: "Sodium", Value: 138.0, Unit: "mmol/L", ReferenceRange: Range{136.0, 145.0}, Category: "Metabolic Panel", Status: StatusNormal},
				{Name: "Potassium", Value: 3.2, Unit: "mmol/L", ReferenceRange: Range{3.5, 5.1}, Category: "Metabolic Panel", Status: StatusLow},
				{Name: "Creatinine", Value: 1.0, Unit: "mg/dL", ReferenceRange: Range{0.7, 1.3}, Category: "Metabolic Panel", Status: StatusNormal},
				{Name: "Total Cholesterol", Value: 195.0, Unit: "mg/dL", ReferenceRange: Range{0.0, 200.0}, Category: "Lipid Panel", Status: StatusNormal},
			},
		},
		history: map[string]map[string]any{
			"123": {
				"previous_conditions": []string{"Pre-diabetes", "High cholesterol"},
				"medications":         []string{"Metformin", "Lisinopril"},
				"lifestyle_factors":   []string{"Active", "Watches diet"},
				"family_history":      []string{"Diabetes", "Heart disease"},
				"last_visit":          "2024-10-15T09:00:00Z",
			},
		},
	}
}

// UserProfile implements Source.
func (m *MemorySource) UserProfile(ctx context.Context, userID string) (UserProfile, error) {
	if err := ctx.Err(); err != nil {
		return UserProfile{}, err
	}
	p, ok := m.users[userID]
	if !ok {
		return UserProfile{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return p, nil
}

// LabFindings implements Source. Every user has a single report, so reportID is
// accepted for interface symmetry and otherwise ignored. Users without results
// get an empty list.
func (m *MemorySource) LabFindings(ctx context.Context, userID, reportID string) ([]LabFinding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src := m.findings[userID]
	out := make([]LabFinding, len(src))
	copy(out, src)
	return out, nil
}

// UserHistory implements Source.
func (m *MemorySource) UserHistory(ctx context.Context, userID string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h, ok := m.history[userID]
	if !ok {
		return map[string]any{}, nil
	}
	return maps.Clone(h), nil
}

// AbnormalFindings returns only the findings that need attention.
func (m *MemorySource) AbnormalFindings(ctx context.Context, userID string) ([]LabFinding, error) {
	if _, err := m.UserProfile(ctx, userID); err != nil {
		return nil, err
	}
	all, err := m.LabFindings(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	return Abnormal(all), nil
}
