// Package plan holds the canonical treatment-plan document model and
// the pure logic that builds and reconciles it. The canonical plan is
// the single authoritative structured document; the therapist and
// client views are derived projections.
package plan

import (
	"time"

	"github.com/yungbote/carebridge-backend/internal/crisis"
)

// Item statuses shared by goals, diagnoses, and homework.
const (
	StatusActive     = "active"
	StatusInProgress = "in_progress"
	StatusAchieved   = "achieved"
	StatusResolved   = "resolved"
	StatusAssigned   = "assigned"
	StatusCompleted  = "completed"
)

// MergeStrategy controls how a re-extraction is reconciled into an
// existing plan.
type MergeStrategy string

const (
	// MergeStrategyMerge matches new items to existing ones, keeps
	// existing ids, and unions provenance. Default for clinical
	// continuity.
	MergeStrategyMerge MergeStrategy = "merge"
	// MergeStrategyReplace keeps matched ids but drops unmatched old
	// items.
	MergeStrategyReplace MergeStrategy = "replace"
	// MergeStrategyAppend appends everything as new items.
	MergeStrategyAppend MergeStrategy = "append"
)

type Concern struct {
	ID               string   `json:"id"`
	Description      string   `json:"description"`
	SourceSessionIDs []string `json:"source_session_ids"`
}

type Impression struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	SourceSessionIDs []string `json:"source_session_ids"`
}

type Diagnosis struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	ICD10Code        string   `json:"icd10_code,omitempty"`
	Status           string   `json:"status"` // provisional|active|resolved
	Primary          bool     `json:"primary"`
	Notes            string   `json:"notes,omitempty"`
	SourceSessionIDs []string `json:"source_session_ids"`
}

type Goal struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Description       string   `json:"description,omitempty"`
	Term              string   `json:"term"`   // short|long
	Status            string   `json:"status"` // active|in_progress|achieved
	Progress          int      `json:"progress"` // 0..100
	InterventionIDs   []string `json:"intervention_ids,omitempty"`
	SourceSessionIDs  []string `json:"source_session_ids"`
}

type Intervention struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Modality         string   `json:"modality,omitempty"`
	Description      string   `json:"description,omitempty"`
	Frequency        string   `json:"frequency,omitempty"`
	SourceSessionIDs []string `json:"source_session_ids"`
}

type Strength struct {
	ID               string   `json:"id"`
	Description      string   `json:"description"`
	SourceSessionIDs []string `json:"source_session_ids"`
}

type RiskFactor struct {
	ID               string          `json:"id"`
	Description      string          `json:"description"`
	Severity         crisis.Severity `json:"severity"`
	Mitigation       string          `json:"mitigation,omitempty"`
	SourceSessionIDs []string        `json:"source_session_ids"`
}

type HomeworkItem struct {
	ID               string   `json:"id"`
	Task             string   `json:"task"`
	Rationale        string   `json:"rationale,omitempty"`
	Status           string   `json:"status"` // assigned|completed
	SourceSessionIDs []string `json:"source_session_ids"`
}

// CrisisIndicator is one piece of evidence behind a crisis assessment.
type CrisisIndicator struct {
	Type     string          `json:"type"`
	Quote    string          `json:"quote,omitempty"`
	Severity crisis.Severity `json:"severity"`
	Context  string          `json:"context,omitempty"`
}

// CrisisAssessment is embedded in the canonical plan. Its severity is
// always the maximum severity over the plan's current risk factors.
type CrisisAssessment struct {
	Severity           crisis.Severity   `json:"severity"`
	Indicators         []CrisisIndicator `json:"indicators,omitempty"`
	RecommendedActions []string          `json:"recommended_actions,omitempty"`
	Reasoning          string            `json:"reasoning,omitempty"`
	AssessedAt         time.Time         `json:"assessed_at"`
}

// SessionReference records which sessions contributed to the plan.
type SessionReference struct {
	SessionID        string    `json:"session_id"`
	SessionNumber    int       `json:"session_number"`
	SessionDate      time.Time `json:"session_date"`
	KeyContributions []string  `json:"key_contributions"`
}

// CanonicalPlan is the authoritative treatment plan for one client.
type CanonicalPlan struct {
	Concerns          []Concern          `json:"concerns"`
	Impressions       []Impression       `json:"impressions"`
	Diagnoses         []Diagnosis        `json:"diagnoses"`
	Goals             []Goal             `json:"goals"`
	Interventions     []Intervention     `json:"interventions"`
	Strengths         []Strength         `json:"strengths"`
	RiskFactors       []RiskFactor       `json:"risk_factors"`
	Homework          []HomeworkItem     `json:"homework"`
	CrisisAssessment  CrisisAssessment   `json:"crisis_assessment"`
	SessionReferences []SessionReference `json:"session_references"`
	Version           int                `json:"version"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// AggregateRiskSeverity recomputes the crisis severity as the maximum
// over current risk factors, SeverityNone when there are none.
func (p *CanonicalPlan) AggregateRiskSeverity() crisis.Severity {
	sevs := make([]crisis.Severity, len(p.RiskFactors))
	for i, rf := range p.RiskFactors {
		sevs[i] = rf.Severity
	}
	return crisis.MaxSeverity(sevs...)
}

// InterventionNames resolves a goal's linked intervention ids to names.
func (p *CanonicalPlan) InterventionNames(g Goal) []string {
	byID := make(map[string]string, len(p.Interventions))
	for _, iv := range p.Interventions {
		byID[iv.ID] = iv.Name
	}
	var out []string
	for _, id := range g.InterventionIDs {
		if name, ok := byID[id]; ok {
			out = append(out, name)
		}
	}
	return out
}
