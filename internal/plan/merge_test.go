package plan

import (
	"strings"
	"testing"
	"time"

	"github.com/yungbote/carebridge-backend/internal/crisis"
)

func TestNewItemIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewItemID(PrefixGoal)
		if !strings.HasPrefix(id, "goal-") {
			t.Fatalf("id %q missing type prefix", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}

func TestBuildInitial(t *testing.T) {
	now := time.Now()
	out := ExtractionOutput{
		Goals: []Goal{
			{Name: "Reduce panic attacks", Term: "short", Status: StatusActive},
			{Name: "Return to work", Term: "long", Status: StatusActive},
		},
	}
	session := SessionInfo{ID: "sess-1", Number: 1, Date: now}
	p := BuildInitial(out, session, now)

	if p.Version != 1 {
		t.Fatalf("version=%d, want 1", p.Version)
	}
	if len(p.Goals) != 2 {
		t.Fatalf("goals=%d, want 2", len(p.Goals))
	}
	if p.CrisisAssessment.Severity != crisis.SeverityNone {
		t.Fatalf("severity=%s, want none", p.CrisisAssessment.Severity)
	}
	if len(p.SessionReferences) != 1 {
		t.Fatalf("session references=%d, want 1", len(p.SessionReferences))
	}
	for _, g := range p.Goals {
		if g.ID == "" {
			t.Fatalf("goal %q has no id", g.Name)
		}
		if len(g.SourceSessionIDs) != 1 || g.SourceSessionIDs[0] != "sess-1" {
			t.Fatalf("goal %q provenance=%v, want [sess-1]", g.Name, g.SourceSessionIDs)
		}
	}
}

func TestBuildInitialEmptyExtractionGetsFallbackReference(t *testing.T) {
	now := time.Now()
	p := BuildInitial(ExtractionOutput{}, SessionInfo{ID: "sess-9", Number: 9, Date: now}, now)
	if len(p.SessionReferences) != 1 {
		t.Fatalf("session references=%d, want 1", len(p.SessionReferences))
	}
	ref := p.SessionReferences[0]
	if len(ref.KeyContributions) != 1 || ref.KeyContributions[0] != "Session documented" {
		t.Fatalf("key contributions=%v, want generic fallback", ref.KeyContributions)
	}
}

func TestMergePreservesIDsAndAccumulatesProvenance(t *testing.T) {
	now := time.Now()
	initial := BuildInitial(ExtractionOutput{
		Goals: []Goal{{Name: "Sleep hygiene", Term: "short", Status: StatusInProgress, Progress: 20}},
	}, SessionInfo{ID: "sess-1", Number: 1, Date: now}, now)
	existingID := initial.Goals[0].ID

	merged := Merge(initial, ExtractionOutput{
		Goals: []Goal{
			{Name: "sleep  HYGIENE", Term: "short", Status: StatusInProgress, Progress: 45},
			{Name: "Social reconnection", Term: "long", Status: StatusActive},
		},
	}, SessionInfo{ID: "sess-2", Number: 2, Date: now}, MergeStrategyMerge, now)

	if len(merged.Goals) != 2 {
		t.Fatalf("goals=%d, want 2", len(merged.Goals))
	}
	var kept *Goal
	for i := range merged.Goals {
		if merged.Goals[i].Name == "Sleep hygiene" {
			kept = &merged.Goals[i]
		}
	}
	if kept == nil {
		t.Fatalf("matched goal lost its original name: %+v", merged.Goals)
	}
	if kept.ID != existingID {
		t.Fatalf("matched goal id changed: %q -> %q", existingID, kept.ID)
	}
	if len(kept.SourceSessionIDs) != 2 {
		t.Fatalf("provenance=%v, want two sessions", kept.SourceSessionIDs)
	}
	if kept.Progress != 45 {
		t.Fatalf("progress=%d, want 45", kept.Progress)
	}
	if len(merged.SessionReferences) != 2 {
		t.Fatalf("session references=%d, want 2", len(merged.SessionReferences))
	}
	// Source plan untouched.
	if len(initial.Goals) != 1 || len(initial.Goals[0].SourceSessionIDs) != 1 {
		t.Fatalf("merge mutated the existing plan: %+v", initial.Goals)
	}
}

func TestMergeAppendNeverMatches(t *testing.T) {
	now := time.Now()
	initial := BuildInitial(ExtractionOutput{
		Goals: []Goal{{Name: "Sleep hygiene", Term: "short", Status: StatusActive}},
	}, SessionInfo{ID: "sess-1", Number: 1, Date: now}, now)

	merged := Merge(initial, ExtractionOutput{
		Goals: []Goal{{Name: "Sleep hygiene", Term: "short", Status: StatusActive}},
	}, SessionInfo{ID: "sess-2", Number: 2, Date: now}, MergeStrategyAppend, now)

	if len(merged.Goals) != 2 {
		t.Fatalf("append strategy merged items: %+v", merged.Goals)
	}
	if merged.Goals[0].ID == merged.Goals[1].ID {
		t.Fatalf("appended duplicate shares an id")
	}
}

func TestMergeReplaceDropsUnmatchedOldItems(t *testing.T) {
	now := time.Now()
	initial := BuildInitial(ExtractionOutput{
		Goals: []Goal{
			{Name: "Sleep hygiene", Term: "short", Status: StatusActive},
			{Name: "Old goal", Term: "short", Status: StatusActive},
		},
	}, SessionInfo{ID: "sess-1", Number: 1, Date: now}, now)
	keptID := initial.Goals[0].ID

	merged := Merge(initial, ExtractionOutput{
		Goals: []Goal{{Name: "Sleep hygiene", Term: "short", Status: StatusActive}},
	}, SessionInfo{ID: "sess-2", Number: 2, Date: now}, MergeStrategyReplace, now)

	if len(merged.Goals) != 1 {
		t.Fatalf("goals=%d, want 1 after replace", len(merged.Goals))
	}
	if merged.Goals[0].ID != keptID {
		t.Fatalf("replace strategy changed a matched id")
	}
}

func TestMergeRecomputesCrisisSeverity(t *testing.T) {
	now := time.Now()
	initial := BuildInitial(ExtractionOutput{}, SessionInfo{ID: "sess-1", Number: 1, Date: now}, now)
	if initial.CrisisAssessment.Severity != crisis.SeverityNone {
		t.Fatalf("initial severity=%s, want none", initial.CrisisAssessment.Severity)
	}

	merged := Merge(initial, ExtractionOutput{
		RiskFactors: []RiskFactor{
			{Description: "Passive ideation", Severity: crisis.SeverityMedium},
			{Description: "Isolation", Severity: crisis.SeverityLow},
		},
	}, SessionInfo{ID: "sess-2", Number: 2, Date: now}, MergeStrategyMerge, now)

	if merged.CrisisAssessment.Severity != crisis.SeverityMedium {
		t.Fatalf("severity=%s, want medium", merged.CrisisAssessment.Severity)
	}
}
