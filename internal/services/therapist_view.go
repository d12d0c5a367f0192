package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/plan"
)

// Plan statuses derived from the canonical plan.
const (
	PlanStatusDraft    = "draft"
	PlanStatusActive   = "active"
	PlanStatusComplete = "complete"
)

// TherapistViewDoc is the clinician-facing projection of the canonical
// plan. It is a pure function of (plan, preferences): rendering the
// same inputs twice yields the same document.
type TherapistViewDoc struct {
	PlanStatus         string                `json:"plan_status"`
	ClinicalSummary    ClinicalSummary       `json:"clinical_summary"`
	PrimaryDiagnoses   []DiagnosisEntry      `json:"primary_diagnoses"`
	SecondaryDiagnoses []DiagnosisEntry      `json:"secondary_diagnoses"`
	ShortTermGoals     []GoalEntry           `json:"short_term_goals"`
	LongTermGoals      []GoalEntry           `json:"long_term_goals"`
	InterventionPlan   []InterventionEntry   `json:"intervention_plan"`
	RiskAssessment     RiskAssessmentEntry   `json:"risk_assessment"`
	ProgressNotes      []string              `json:"progress_notes"`
	Homework           []HomeworkEntry       `json:"homework"`
	SessionHistory     []SessionHistoryEntry `json:"session_history"`
	Version            int                   `json:"version"`
	GeneratedAt        time.Time             `json:"generated_at"`
}

type ClinicalSummary struct {
	PresentingProblems    string `json:"presenting_problems"`
	DiagnosticFormulation string `json:"diagnostic_formulation"`
	TreatmentRationale    string `json:"treatment_rationale"`
}

type DiagnosisEntry struct {
	Name   string `json:"name"`
	Code   string `json:"code,omitempty"`
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type GoalEntry struct {
	Name          string   `json:"name"`
	Description   string   `json:"description,omitempty"`
	Status        string   `json:"status"`
	Progress      int      `json:"progress"`
	Interventions []string `json:"interventions,omitempty"`
}

type InterventionEntry struct {
	Name        string `json:"name"`
	Modality    string `json:"modality,omitempty"`
	Description string `json:"description,omitempty"`
	Frequency   string `json:"frequency,omitempty"`
}

type RiskAssessmentEntry struct {
	OverallSeverity string       `json:"overall_severity"`
	Factors         []RiskFactor `json:"factors"`
}

type RiskFactor struct {
	Description string `json:"description"`
	Severity    string `json:"severity"`
	Mitigation  string `json:"mitigation,omitempty"`
}

type HomeworkEntry struct {
	Task      string `json:"task"`
	Rationale string `json:"rationale,omitempty"`
	Status    string `json:"status"`
}

type SessionHistoryEntry struct {
	SessionNumber    int       `json:"session_number"`
	SessionDate      time.Time `json:"session_date"`
	KeyContributions []string  `json:"key_contributions"`
}

// TherapistViewService renders the clinician-facing projection.
type TherapistViewService interface {
	Render(p *plan.CanonicalPlan, prefs TherapistPreferences) *TherapistViewDoc
}

type therapistViewService struct {
	log *logger.Logger
}

func NewTherapistViewService(baseLog *logger.Logger) TherapistViewService {
	return &therapistViewService{log: baseLog.With("service", "TherapistViewService")}
}

func (s *therapistViewService) Render(p *plan.CanonicalPlan, prefs TherapistPreferences) *TherapistViewDoc {
	doc := &TherapistViewDoc{
		PlanStatus:      DerivePlanStatus(p),
		ClinicalSummary: buildClinicalSummary(p, prefs),
		RiskAssessment:  buildRiskAssessment(p),
		Version:         p.Version,
		GeneratedAt:     p.UpdatedAt,
	}

	for _, d := range p.Diagnoses {
		entry := DiagnosisEntry{Name: d.Name, Status: d.Status, Notes: d.Notes}
		if prefs.IncludeICD10 {
			entry.Code = d.ICD10Code
		}
		if d.Primary {
			doc.PrimaryDiagnoses = append(doc.PrimaryDiagnoses, entry)
		} else {
			doc.SecondaryDiagnoses = append(doc.SecondaryDiagnoses, entry)
		}
	}
	// No explicitly primary diagnosis: the first listed active one is
	// treated as primary.
	if len(doc.PrimaryDiagnoses) == 0 && len(doc.SecondaryDiagnoses) > 0 {
		doc.PrimaryDiagnoses = doc.SecondaryDiagnoses[:1]
		doc.SecondaryDiagnoses = doc.SecondaryDiagnoses[1:]
	}

	for _, g := range p.Goals {
		entry := GoalEntry{
			Name:          g.Name,
			Description:   g.Description,
			Status:        g.Status,
			Progress:      g.Progress,
			Interventions: p.InterventionNames(g),
		}
		if g.Term == "long" {
			doc.LongTermGoals = append(doc.LongTermGoals, entry)
		} else {
			doc.ShortTermGoals = append(doc.ShortTermGoals, entry)
		}
	}

	for _, iv := range p.Interventions {
		doc.InterventionPlan = append(doc.InterventionPlan, InterventionEntry{
			Name:        iv.Name,
			Modality:    iv.Modality,
			Description: iv.Description,
			Frequency:   iv.Frequency,
		})
	}

	for _, imp := range p.Impressions {
		doc.ProgressNotes = append(doc.ProgressNotes, imp.Text)
	}

	for _, h := range p.Homework {
		doc.Homework = append(doc.Homework, HomeworkEntry{
			Task:      h.Task,
			Rationale: h.Rationale,
			Status:    h.Status,
		})
	}

	history := make([]SessionHistoryEntry, 0, len(p.SessionReferences))
	for _, ref := range p.SessionReferences {
		history = append(history, SessionHistoryEntry{
			SessionNumber:    ref.SessionNumber,
			SessionDate:      ref.SessionDate,
			KeyContributions: ref.KeyContributions,
		})
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].SessionNumber < history[j].SessionNumber
	})
	doc.SessionHistory = history

	return doc
}

// DerivePlanStatus: complete iff the plan has goals and every one is
// achieved; active iff any goal is in progress or any intervention
// exists; otherwise draft.
func DerivePlanStatus(p *plan.CanonicalPlan) string {
	if len(p.Goals) > 0 {
		all := true
		for _, g := range p.Goals {
			if g.Status != plan.StatusAchieved {
				all = false
				break
			}
		}
		if all {
			return PlanStatusComplete
		}
	}
	for _, g := range p.Goals {
		if g.Status == plan.StatusInProgress {
			return PlanStatusActive
		}
	}
	if len(p.Interventions) > 0 {
		return PlanStatusActive
	}
	return PlanStatusDraft
}

func buildClinicalSummary(p *plan.CanonicalPlan, prefs TherapistPreferences) ClinicalSummary {
	var summary ClinicalSummary

	if len(p.Concerns) > 0 {
		descs := make([]string, 0, len(p.Concerns))
		for _, c := range p.Concerns {
			descs = append(descs, c.Description)
		}
		switch prefs.LanguageLevel {
		case RegisterSimple, RegisterConversational:
			summary.PresentingProblems = fmt.Sprintf("The client is working on: %s.", joinClauses(descs))
		default:
			summary.PresentingProblems = fmt.Sprintf("Client presents with %s.", joinClauses(descs))
		}
	}

	if len(p.Diagnoses) > 0 {
		names := make([]string, 0, len(p.Diagnoses))
		for _, d := range p.Diagnoses {
			name := d.Name
			if prefs.IncludeICD10 && d.ICD10Code != "" {
				name = fmt.Sprintf("%s (%s)", d.Name, d.ICD10Code)
			}
			names = append(names, name)
		}
		summary.DiagnosticFormulation = fmt.Sprintf("Diagnostic picture: %s.", joinClauses(names))
	}

	if len(p.Interventions) > 0 {
		modalities := orderedUnique(interventionModalities(p))
		if len(modalities) > 0 {
			summary.TreatmentRationale = fmt.Sprintf(
				"Treatment draws on %s, targeting the goals below.", joinClauses(modalities))
		} else {
			summary.TreatmentRationale = "Treatment targets the goals below through the listed interventions."
		}
	}

	return summary
}

func buildRiskAssessment(p *plan.CanonicalPlan) RiskAssessmentEntry {
	entry := RiskAssessmentEntry{
		OverallSeverity: p.AggregateRiskSeverity().String(),
		Factors:         make([]RiskFactor, 0, len(p.RiskFactors)),
	}
	factors := append([]plan.RiskFactor{}, p.RiskFactors...)
	sort.SliceStable(factors, func(i, j int) bool {
		return factors[i].Severity > factors[j].Severity
	})
	for _, rf := range factors {
		entry.Factors = append(entry.Factors, RiskFactor{
			Description: rf.Description,
			Severity:    rf.Severity.String(),
			Mitigation:  rf.Mitigation,
		})
	}
	return entry
}

func interventionModalities(p *plan.CanonicalPlan) []string {
	out := make([]string, 0, len(p.Interventions))
	for _, iv := range p.Interventions {
		if iv.Modality != "" {
			out = append(out, iv.Modality)
		}
	}
	return out
}

func orderedUnique(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		key := strings.ToLower(s)
		if !seen[key] {
			seen[key] = true
			out = append(out, s)
		}
	}
	return out
}

func joinClauses(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	default:
		return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
	}
}
