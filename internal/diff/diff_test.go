package diff

import (
	"strings"
	"testing"
)

func TestCompareSelf(t *testing.T) {
	doc := map[string]any{
		"goals": []any{
			map[string]any{"id": "goal-1", "name": "A", "progress": float64(10)},
		},
		"summary": "stable",
	}
	res, err := Compare(doc, doc)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.HasChanges || res.Stats.Total != 0 {
		t.Fatalf("self comparison reported changes: %+v", res)
	}
}

func TestCompareNilCases(t *testing.T) {
	doc := map[string]any{"goals": []any{}}

	res, err := Compare(nil, nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.HasChanges {
		t.Fatalf("nil vs nil should have no changes")
	}

	res, err = Compare(nil, doc)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !res.HasChanges || len(res.Changes) != 1 || res.Changes[0].Description != "initial creation" {
		t.Fatalf("nil vs doc: %+v", res)
	}

	res, err = Compare(doc, nil)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if !res.HasChanges || len(res.Changes) != 1 || res.Changes[0].Description != "deletion" {
		t.Fatalf("doc vs nil: %+v", res)
	}
}

func TestCompareIdentityKeyedArrays(t *testing.T) {
	oldDoc := map[string]any{
		"goals": []any{
			map[string]any{"id": "1", "name": "A"},
		},
	}
	newDoc := map[string]any{
		"goals": []any{
			map[string]any{"id": "1", "name": "B"},
			map[string]any{"id": "2", "name": "C"},
		},
	}
	res, err := Compare(oldDoc, newDoc)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	want := Stats{Added: 1, Removed: 0, Modified: 1, Total: 2}
	if res.Stats != want {
		t.Fatalf("stats=%+v, want %+v", res.Stats, want)
	}
	if res.Stats.Added+res.Stats.Removed+res.Stats.Modified != res.Stats.Total {
		t.Fatalf("stats do not add up: %+v", res.Stats)
	}
}

func TestCompareEachIDClassifiedOnce(t *testing.T) {
	oldDoc := map[string]any{
		"goals": []any{
			map[string]any{"id": "a", "name": "A"},
			map[string]any{"id": "b", "name": "B"},
		},
	}
	newDoc := map[string]any{
		"goals": []any{
			map[string]any{"id": "b", "name": "B"},
			map[string]any{"id": "c", "name": "C"},
		},
	}
	res, err := Compare(oldDoc, newDoc)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Stats.Added != 1 || res.Stats.Removed != 1 || res.Stats.Modified != 0 {
		t.Fatalf("stats=%+v", res.Stats)
	}
	seen := map[string]ChangeType{}
	for _, c := range res.Changes {
		seen[c.Path] = c.Type
	}
	if seen["goals[a]"] != ChangeRemoved || seen["goals[c]"] != ChangeAdded {
		t.Fatalf("unexpected classification: %+v", seen)
	}
}

func TestCompareObjectFields(t *testing.T) {
	oldDoc := map[string]any{
		"crisis_assessment": map[string]any{"severity": "none", "reasoning": "calm"},
	}
	newDoc := map[string]any{
		"crisis_assessment": map[string]any{"severity": "medium", "reasoning": "calm"},
	}
	res, err := Compare(oldDoc, newDoc)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Stats.Modified != 1 || res.Stats.Total != 1 {
		t.Fatalf("stats=%+v", res.Stats)
	}
	c := res.Changes[0]
	if c.Section != "crisis_assessment" || c.Field != "severity" {
		t.Fatalf("change=%+v", c)
	}
	if c.OldValue != "none" || c.NewValue != "medium" {
		t.Fatalf("values=%v -> %v", c.OldValue, c.NewValue)
	}
}

func TestDeepEqualTypeMismatch(t *testing.T) {
	if DeepEqual("1", float64(1)) {
		t.Fatalf("type mismatch should be unequal")
	}
	if DeepEqual([]any{"a"}, map[string]any{"a": true}) {
		t.Fatalf("array vs object should be unequal")
	}
	if !DeepEqual(
		map[string]any{"x": []any{float64(1), float64(2)}},
		map[string]any{"x": []any{float64(1), float64(2)}},
	) {
		t.Fatalf("equal nested structures reported unequal")
	}
}

func TestSummarizeTruncates(t *testing.T) {
	var changes []Change
	for i := 0; i < 9; i++ {
		changes = append(changes, Change{
			Type:        ChangeAdded,
			Section:     "goals",
			Path:        "goals[x]",
			Description: "goals item added",
		})
	}
	s := Summarize(changes, 5)
	if !strings.Contains(s, "...and 4 more changes") {
		t.Fatalf("summary missing truncation tail: %q", s)
	}
	if !strings.Contains(s, "goals") {
		t.Fatalf("summary does not name most affected section: %q", s)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	if got := Summarize(nil, 5); got != "No changes" {
		t.Fatalf("Summarize(nil)=%q", got)
	}
}

func TestGroupBySection(t *testing.T) {
	changes := []Change{
		{Section: "goals"},
		{Section: "goals"},
		{Section: "diagnoses"},
	}
	groups := GroupBySection(changes)
	if len(groups["goals"]) != 2 || len(groups["diagnoses"]) != 1 {
		t.Fatalf("groups=%v", groups)
	}
}

func TestCompareStructDocuments(t *testing.T) {
	type inner struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	type doc struct {
		Goals []inner `json:"goals"`
	}
	oldDoc := doc{Goals: []inner{{ID: "1", Name: "A"}}}
	newDoc := doc{Goals: []inner{{ID: "1", Name: "A"}, {ID: "2", Name: "B"}}}
	res, err := Compare(oldDoc, newDoc)
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if res.Stats.Added != 1 || res.Stats.Total != 1 {
		t.Fatalf("stats=%+v", res.Stats)
	}
}
