package services

import (
	"reflect"
	"testing"
	"time"

	"github.com/yungbote/carebridge-backend/internal/crisis"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/plan"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func samplePlan() *plan.CanonicalPlan {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return &plan.CanonicalPlan{
		Concerns: []plan.Concern{
			{ID: "concern-1", Description: "work-related anxiety"},
			{ID: "concern-2", Description: "sleep disruption"},
		},
		Diagnoses: []plan.Diagnosis{
			{ID: "diag-1", Name: "Generalized Anxiety Disorder", ICD10Code: "F41.1", Status: "active", Primary: true},
			{ID: "diag-2", Name: "Insomnia", ICD10Code: "G47.00", Status: "provisional"},
		},
		Goals: []plan.Goal{
			{ID: "goal-1", Name: "Reduce panic episodes", Term: "short", Status: plan.StatusInProgress, Progress: 40, InterventionIDs: []string{"int-1"}},
			{ID: "goal-2", Name: "Return to full-time work", Term: "long", Status: plan.StatusActive, Progress: 0},
		},
		Interventions: []plan.Intervention{
			{ID: "int-1", Name: "Breathing retraining", Modality: "CBT", Frequency: "weekly"},
		},
		RiskFactors: []plan.RiskFactor{
			{ID: "risk-1", Description: "occasional passive ideation", Severity: crisis.SeverityLow},
		},
		Homework: []plan.HomeworkItem{
			{ID: "hw-1", Task: "Daily thought record", Status: plan.StatusAssigned},
		},
		SessionReferences: []plan.SessionReference{
			{SessionID: "s2", SessionNumber: 2, SessionDate: now, KeyContributions: []string{"Discussed workplace triggers"}},
			{SessionID: "s1", SessionNumber: 1, SessionDate: now.AddDate(0, 0, -7), KeyContributions: []string{"Intake"}},
		},
		Version:   2,
		CreatedAt: now.AddDate(0, 0, -7),
		UpdatedAt: now,
	}
}

func TestDerivePlanStatus(t *testing.T) {
	tests := []struct {
		name string
		p    *plan.CanonicalPlan
		want string
	}{
		{"empty plan", &plan.CanonicalPlan{}, PlanStatusDraft},
		{
			"goal in progress",
			&plan.CanonicalPlan{Goals: []plan.Goal{{Status: plan.StatusInProgress}}},
			PlanStatusActive,
		},
		{
			"interventions only",
			&plan.CanonicalPlan{Interventions: []plan.Intervention{{Name: "CBT"}}},
			PlanStatusActive,
		},
		{
			"all goals achieved",
			&plan.CanonicalPlan{Goals: []plan.Goal{{Status: plan.StatusAchieved}, {Status: plan.StatusAchieved}}},
			PlanStatusComplete,
		},
		{
			"achieved and active mix",
			&plan.CanonicalPlan{Goals: []plan.Goal{{Status: plan.StatusAchieved}, {Status: plan.StatusActive}}},
			PlanStatusDraft,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DerivePlanStatus(tt.p); got != tt.want {
				t.Errorf("DerivePlanStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTherapistViewRender(t *testing.T) {
	svc := NewTherapistViewService(testLogger(t))
	prefs := TherapistPreferences{IncludeICD10: true, LanguageLevel: RegisterProfessional}

	doc := svc.Render(samplePlan(), prefs)

	if doc.PlanStatus != PlanStatusActive {
		t.Errorf("PlanStatus = %q, want %q", doc.PlanStatus, PlanStatusActive)
	}
	if len(doc.PrimaryDiagnoses) != 1 || doc.PrimaryDiagnoses[0].Name != "Generalized Anxiety Disorder" {
		t.Fatalf("PrimaryDiagnoses = %+v", doc.PrimaryDiagnoses)
	}
	if doc.PrimaryDiagnoses[0].Code != "F41.1" {
		t.Errorf("expected ICD-10 code included, got %q", doc.PrimaryDiagnoses[0].Code)
	}
	if len(doc.SecondaryDiagnoses) != 1 || doc.SecondaryDiagnoses[0].Name != "Insomnia" {
		t.Fatalf("SecondaryDiagnoses = %+v", doc.SecondaryDiagnoses)
	}
	if len(doc.ShortTermGoals) != 1 || len(doc.LongTermGoals) != 1 {
		t.Fatalf("goal split wrong: short=%d long=%d", len(doc.ShortTermGoals), len(doc.LongTermGoals))
	}
	if got := doc.ShortTermGoals[0].Interventions; len(got) != 1 || got[0] != "Breathing retraining" {
		t.Errorf("linked interventions = %v", got)
	}
	if doc.RiskAssessment.OverallSeverity != "low" {
		t.Errorf("OverallSeverity = %q, want low", doc.RiskAssessment.OverallSeverity)
	}
	// Session history is ordered by session number regardless of
	// reference order in the canonical plan.
	if doc.SessionHistory[0].SessionNumber != 1 || doc.SessionHistory[1].SessionNumber != 2 {
		t.Errorf("SessionHistory out of order: %+v", doc.SessionHistory)
	}
}

func TestTherapistViewExcludesICD10WhenDisabled(t *testing.T) {
	svc := NewTherapistViewService(testLogger(t))
	doc := svc.Render(samplePlan(), TherapistPreferences{IncludeICD10: false})
	if doc.PrimaryDiagnoses[0].Code != "" {
		t.Errorf("expected no ICD-10 code, got %q", doc.PrimaryDiagnoses[0].Code)
	}
}

func TestTherapistViewIdempotent(t *testing.T) {
	svc := NewTherapistViewService(testLogger(t))
	prefs := TherapistPreferences{IncludeICD10: true}
	a := svc.Render(samplePlan(), prefs)
	b := svc.Render(samplePlan(), prefs)
	if !reflect.DeepEqual(a, b) {
		t.Error("rendering the same plan twice produced different documents")
	}
}
