package crisis

import "testing"

func TestScreenFlagsSuicidalLanguage(t *testing.T) {
	res := Screen("I want to kill myself")
	if !res.HasConcerns {
		t.Fatalf("expected HasConcerns=true")
	}
	if res.Severity != SeverityCritical {
		t.Fatalf("Severity=%s, want critical", res.Severity)
	}
	found := false
	for _, m := range res.Matches {
		if m.Category == CategorySuicidalIdeation {
			found = true
			if m.Offset != 10 {
				t.Fatalf("offset=%d, want 10", m.Offset)
			}
		}
	}
	if !found {
		t.Fatalf("no suicidal_ideation match in %+v", res.Matches)
	}
}

func TestScreenCleanText(t *testing.T) {
	res := Screen("We talked about work stress and sleep hygiene this week.")
	if res.HasConcerns || len(res.Matches) != 0 || res.Severity != SeverityNone {
		t.Fatalf("expected clean result, got %+v", res)
	}
}

func TestScreenEmpty(t *testing.T) {
	res := Screen("   ")
	if res.HasConcerns || res.Severity != SeverityNone {
		t.Fatalf("expected zero result for blank input, got %+v", res)
	}
}

func TestScreenMultipleCategories(t *testing.T) {
	res := Screen("I have been cutting myself and I keep hearing voices at night.")
	cats := res.Categories()
	if len(cats) != 2 {
		t.Fatalf("categories=%v, want self_harm and psychosis", cats)
	}
	if res.Severity != SeverityHigh {
		t.Fatalf("Severity=%s, want high", res.Severity)
	}
}

func TestScreenMatchesWholeWordsOnly(t *testing.T) {
	for _, text := range []string{
		"The therapist was skillful in redirecting the session.",
		"We discussed her overdoses of enthusiasm, so to speak, about gardening.",
	} {
		t.Run(text, func(t *testing.T) {
			if res := Screen(text); res.HasConcerns {
				t.Fatalf("expected no match inside larger words, got %+v", res.Matches)
			}
		})
	}

	// Punctuation is a boundary, not part of the word.
	if res := Screen("She said: suicide."); !res.HasConcerns {
		t.Fatal("expected match for phrase adjacent to punctuation")
	}
}

func TestScreenRepeatedPhraseOffsets(t *testing.T) {
	res := Screen("suicide ... suicide")
	n := 0
	for _, m := range res.Matches {
		if m.Phrase == "suicide" {
			n++
		}
	}
	if n != 2 {
		t.Fatalf("expected 2 matches for repeated phrase, got %d", n)
	}
}
