package services

import (
	"testing"

	"github.com/yungbote/carebridge-backend/internal/crisis"
)

func validExtractionPayload() map[string]any {
	return map[string]any{
		"concerns":    []any{"work-related anxiety", "sleep disruption"},
		"impressions": []any{"Client engaged well with cognitive work"},
		"suggested_diagnoses": []any{
			map[string]any{"name": "Generalized Anxiety Disorder", "icd10_code": "F41.1", "status": "provisional", "notes": ""},
		},
		"goals": []any{
			map[string]any{"name": "Reduce panic episodes", "description": "Fewer than two episodes weekly", "term": "short", "status": "in_progress", "progress": float64(40)},
			map[string]any{"name": "Return to full-time work", "description": "", "term": "long", "status": "active", "progress": float64(0)},
		},
		"interventions": []any{
			map[string]any{"name": "Breathing retraining", "modality": "CBT", "description": "", "frequency": "weekly", "goal_names": []any{"Reduce panic episodes"}},
		},
		"strengths": []any{"strong social support"},
		"risks": []any{
			map[string]any{"description": "occasional passive ideation", "severity": "low", "mitigation": "safety plan reviewed"},
		},
		"homework": []any{
			map[string]any{"task": "Daily thought record", "rationale": "builds awareness of triggers"},
		},
		"key_points": []any{"Identified workplace triggers"},
	}
}

func TestParseExtraction(t *testing.T) {
	out, err := parseExtraction(validExtractionPayload())
	if err != nil {
		t.Fatalf("parseExtraction: %v", err)
	}
	if len(out.Concerns) != 2 || len(out.Goals) != 2 || len(out.Interventions) != 1 {
		t.Fatalf("unexpected shape: %+v", out)
	}
	if out.Goals[0].Progress != 40 {
		t.Errorf("goal progress = %d, want 40", out.Goals[0].Progress)
	}
	if out.RiskFactors[0].Severity != crisis.SeverityLow {
		t.Errorf("risk severity = %v, want low", out.RiskFactors[0].Severity)
	}
	if out.Homework[0].Status != "assigned" {
		t.Errorf("homework status = %q, want assigned", out.Homework[0].Status)
	}
	links, ok := out.GoalInterventionLinks[0]
	if !ok || len(links) != 1 || links[0] != 0 {
		t.Errorf("GoalInterventionLinks = %v, want goal 0 -> intervention 0", out.GoalInterventionLinks)
	}
}

func TestParseExtractionRejectsMissingFields(t *testing.T) {
	payload := validExtractionPayload()
	delete(payload, "goals")
	if _, err := parseExtraction(payload); err == nil {
		t.Error("expected error for missing goals field")
	}

	payload = validExtractionPayload()
	payload["risks"] = []any{map[string]any{"severity": "low"}}
	if _, err := parseExtraction(payload); err == nil {
		t.Error("expected error for risk without description")
	}
}
