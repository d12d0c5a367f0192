package textutil

import "testing"

func TestCountSyllables(t *testing.T) {
	cases := []struct {
		word string
		want int
	}{
		{"cat", 1},
		{"table", 2},
		{"make", 1},
		{"anxiety", 3},
		{"therapy", 3},
		{"a", 1},
		{"", 0},
		{"...", 0},
		{"rhythm", 1},
	}
	for _, tc := range cases {
		t.Run(tc.word, func(t *testing.T) {
			got := CountSyllables(tc.word)
			if got != tc.want {
				t.Fatalf("CountSyllables(%q)=%d, want %d", tc.word, got, tc.want)
			}
		})
	}
}

func TestSentences(t *testing.T) {
	cases := []struct {
		name string
		text string
		want int
	}{
		{"simple", "One. Two. Three.", 3},
		{"no_terminator", "just a fragment", 1},
		{"mixed_punctuation", "Really?! Yes. Okay", 3},
		{"empty", "", 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Sentences(tc.text)
			if len(got) != tc.want {
				t.Fatalf("Sentences(%q)=%d sentences %v, want %d", tc.text, len(got), got, tc.want)
			}
		})
	}
}

func TestGradeLevelOrdering(t *testing.T) {
	simple := "We will work on this. You are doing well. Small steps add up."
	complex := "Utilizing comprehensive psychoeducational interventions facilitates substantial amelioration of maladaptive cognitive distortions."

	gs := GradeLevel(simple)
	gc := GradeLevel(complex)
	if gs >= gc {
		t.Fatalf("expected simple text grade (%.2f) below complex text grade (%.2f)", gs, gc)
	}
	if gs > 6 {
		t.Fatalf("simple text graded too high: %.2f", gs)
	}
}

func TestGradeLevelEmpty(t *testing.T) {
	if got := GradeLevel(""); got != 0 {
		t.Fatalf("GradeLevel(\"\")=%.2f, want 0", got)
	}
}

func TestReadingEaseOrdering(t *testing.T) {
	simple := "We will take small steps. You can do this."
	complex := "Multidimensional biopsychosocial conceptualization necessitates considerable interpretative sophistication."
	if ReadingEase(simple) <= ReadingEase(complex) {
		t.Fatalf("expected simple text to score easier than complex text")
	}
}
