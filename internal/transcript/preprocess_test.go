package transcript

import (
	"strings"
	"testing"
)

func TestCleanNormalizes(t *testing.T) {
	raw := "10:02 Dr. Lee:   How was\tyour week?\r\n[LAUGHS]\r\nClient: Fine."
	got := Clean(raw)
	if strings.Contains(got, "10:02") {
		t.Fatalf("timestamp not stripped: %q", got)
	}
	if strings.Contains(got, "\r") {
		t.Fatalf("carriage returns not normalized: %q", got)
	}
	if strings.Contains(got, "[LAUGHS]") || !strings.Contains(got, "[laughs]") {
		t.Fatalf("bracketed annotation not lowercased: %q", got)
	}
	if strings.Contains(got, "  ") || strings.Contains(got, "\t") {
		t.Fatalf("whitespace not collapsed: %q", got)
	}
}

func TestPreprocessSpeakerCanonicalization(t *testing.T) {
	raw := "Dr. Lee: How are you feeling?\nPatient: Tired, mostly.\nT: Say more about that.\nC: I have not slept well."
	res := Preprocess(raw, Options{})

	if len(res.Turns) != 4 {
		t.Fatalf("turns=%d, want 4: %+v", len(res.Turns), res.Turns)
	}
	wantSpeakers := []string{SpeakerTherapist, SpeakerClient, SpeakerTherapist, SpeakerClient}
	for i, turn := range res.Turns {
		if turn.Speaker != wantSpeakers[i] {
			t.Fatalf("turn %d speaker=%q, want %q", i, turn.Speaker, wantSpeakers[i])
		}
	}

	if len(res.SpeakerStats) != 2 {
		t.Fatalf("speaker stats=%d, want 2", len(res.SpeakerStats))
	}
	for _, st := range res.SpeakerStats {
		if st.TurnCount != 2 {
			t.Fatalf("%s turn count=%d, want 2", st.Speaker, st.TurnCount)
		}
		if st.WordCount == 0 {
			t.Fatalf("%s word count is zero", st.Speaker)
		}
	}
}

func TestPreprocessEmptyInput(t *testing.T) {
	res := Preprocess("   \n\n ", Options{})
	if len(res.Chunks) != 0 || len(res.SpeakerStats) != 0 || len(res.Turns) != 0 {
		t.Fatalf("expected empty result, got %+v", res)
	}
}

func TestPreprocessMalformedInputDegrades(t *testing.T) {
	res := Preprocess("just some text with no labels at all", Options{})
	if len(res.Turns) != 1 || res.Turns[0].Speaker != SpeakerUnknown {
		t.Fatalf("expected single unknown-speaker turn, got %+v", res.Turns)
	}
	if len(res.Chunks) != 1 {
		t.Fatalf("chunks=%d, want 1", len(res.Chunks))
	}
}

func TestPreprocessChunkOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString("Client: This is a reasonably long line about my week and how it went.\n")
	}
	res := Preprocess(b.String(), Options{MaxChunkSize: 500, OverlapSize: 100})

	if len(res.Chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(res.Chunks))
	}
	for i, ch := range res.Chunks {
		if ch.Index != i {
			t.Fatalf("chunk %d has index %d", i, ch.Index)
		}
		if len(ch.Text) > 600 {
			t.Fatalf("chunk %d exceeds bound: %d bytes", i, len(ch.Text))
		}
		if ch.TurnCount == 0 {
			t.Fatalf("chunk %d has zero turns", i)
		}
	}
	for i := 1; i < len(res.Chunks); i++ {
		prev, cur := res.Chunks[i-1], res.Chunks[i]
		if cur.StartOffset >= prev.EndOffset {
			t.Fatalf("chunks %d and %d do not overlap: prev end %d, cur start %d",
				i-1, i, prev.EndOffset, cur.StartOffset)
		}
	}
}

func TestPreprocessCrisisMetadata(t *testing.T) {
	res := Preprocess("Client: Sometimes I think about suicide.", Options{})
	if !res.Metadata.HasCrisisLanguage {
		t.Fatalf("expected crisis language flag")
	}

	clean := Preprocess("Client: Work was fine this week.", Options{})
	if clean.Metadata.HasCrisisLanguage {
		t.Fatalf("unexpected crisis language flag")
	}
}

func TestPreprocessMetadataRanges(t *testing.T) {
	res := Preprocess("Client: I felt anxious and overwhelmed. Therapist: Tell me more.", Options{})
	if res.Metadata.TopicDensity < 0 || res.Metadata.TopicDensity > 1 {
		t.Fatalf("topic density out of range: %f", res.Metadata.TopicDensity)
	}
	if res.Metadata.EmotionalIntensity <= 0 || res.Metadata.EmotionalIntensity > 1 {
		t.Fatalf("emotional intensity out of range: %f", res.Metadata.EmotionalIntensity)
	}
	if res.Metadata.EstimatedDurationMinutes < 1 {
		t.Fatalf("duration=%d, want >=1", res.Metadata.EstimatedDurationMinutes)
	}
}
