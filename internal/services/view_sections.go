package services

// ViewSection is the closed set of sections a derived view can carry.
// Renderers and the diff summary address sections through these
// identifiers rather than free-form strings.
type ViewSection string

const (
	SectionClinicalSummary  ViewSection = "clinical_summary"
	SectionDiagnoses        ViewSection = "diagnoses"
	SectionGoals            ViewSection = "goals"
	SectionInterventionPlan ViewSection = "intervention_plan"
	SectionRiskAssessment   ViewSection = "risk_assessment"
	SectionProgressNotes    ViewSection = "progress_notes"
	SectionHomework         ViewSection = "homework"
	SectionSessionHistory   ViewSection = "session_history"
)

// AllViewSections lists every section in render order.
var AllViewSections = []ViewSection{
	SectionClinicalSummary,
	SectionDiagnoses,
	SectionGoals,
	SectionInterventionPlan,
	SectionRiskAssessment,
	SectionProgressNotes,
	SectionHomework,
	SectionSessionHistory,
}

// Title returns the display heading for a section. The switch is
// exhaustive over the constants above.
func (s ViewSection) Title() string {
	switch s {
	case SectionClinicalSummary:
		return "Clinical Summary"
	case SectionDiagnoses:
		return "Diagnoses"
	case SectionGoals:
		return "Treatment Goals"
	case SectionInterventionPlan:
		return "Intervention Plan"
	case SectionRiskAssessment:
		return "Risk Assessment"
	case SectionProgressNotes:
		return "Progress Notes"
	case SectionHomework:
		return "Homework"
	case SectionSessionHistory:
		return "Session History"
	}
	return string(s)
}
