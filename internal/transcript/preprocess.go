// Package transcript turns raw counseling-session text into the
// cleaned, segmented, chunked form the rest of the pipeline consumes.
// Preprocessing never fails: malformed input degrades to a single
// unknown-speaker chunk and empty input yields an empty result.
package transcript

import (
	"regexp"
	"strings"

	"github.com/yungbote/carebridge-backend/internal/crisis"
)

// Speaker labels after canonicalization.
const (
	SpeakerTherapist = "Therapist"
	SpeakerClient    = "Client"
	SpeakerUnknown   = "Unknown"
)

// Turn is one speaker turn of the cleaned transcript.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Chunk is one overlapping window over the cleaned transcript. Overlap
// guarantees sentences at a boundary appear in at least one chunk in
// full.
type Chunk struct {
	Index       int    `json:"index"`
	Text        string `json:"text"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
	TurnCount   int    `json:"turn_count"`
}

// SpeakerStats gives per-speaker turn and approximate word counts.
type SpeakerStats struct {
	Speaker   string `json:"speaker"`
	TurnCount int    `json:"turn_count"`
	WordCount int    `json:"word_count"`
}

// Metadata carries coarse per-transcript estimates.
type Metadata struct {
	EstimatedDurationMinutes int     `json:"estimated_duration_minutes"`
	HasCrisisLanguage        bool    `json:"has_crisis_language"`
	TopicDensity             float64 `json:"topic_density"`
	EmotionalIntensity       float64 `json:"emotional_intensity"`
}

// Result is the full preprocessor output.
type Result struct {
	CleanedText  string         `json:"cleaned_text"`
	Turns        []Turn         `json:"turns"`
	Chunks       []Chunk        `json:"chunks"`
	SpeakerStats []SpeakerStats `json:"speaker_stats"`
	Metadata     Metadata       `json:"metadata"`
}

// Options bounds chunking. Zero values fall back to defaults sized for
// downstream model context limits.
type Options struct {
	MaxChunkSize int
	OverlapSize  int
}

const (
	defaultMaxChunkSize = 4000
	defaultOverlapSize  = 400
	// Average conversational pace used for duration estimates.
	wordsPerMinute = 140
)

var (
	timestampRe  = regexp.MustCompile(`(?m)^\s*[\[(]?\d{1,2}:\d{2}(:\d{2})?\s*([APap][Mm])?[\])]?\s*`)
	bracketedRe  = regexp.MustCompile(`\[([^\]]+)\]`)
	whitespaceRe = regexp.MustCompile(`[ \t]+`)
)

var therapistPrefixes = []string{"therapist", "dr.", "dr ", "t:", "counselor", "clinician"}
var clientPrefixes = []string{"client", "patient", "c:", "p:"}

// Preprocess cleans, segments, chunks, and annotates raw transcript
// text.
func Preprocess(raw string, opts Options) Result {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = defaultMaxChunkSize
	}
	if opts.OverlapSize < 0 || opts.OverlapSize >= opts.MaxChunkSize {
		opts.OverlapSize = defaultOverlapSize
		if opts.OverlapSize >= opts.MaxChunkSize {
			opts.OverlapSize = opts.MaxChunkSize / 10
		}
	}

	cleaned := Clean(raw)
	if strings.TrimSpace(cleaned) == "" {
		return Result{CleanedText: ""}
	}

	turns := segment(cleaned)
	stats := speakerStats(turns)
	chunks := chunk(turns, opts.MaxChunkSize, opts.OverlapSize)

	joined := joinTurns(turns)
	screen := crisis.Screen(joined)
	meta := Metadata{
		EstimatedDurationMinutes: estimateDuration(joined),
		HasCrisisLanguage:        screen.HasConcerns,
		TopicDensity:             topicDensity(joined),
		EmotionalIntensity:       emotionalIntensity(joined),
	}

	return Result{
		CleanedText:  joined,
		Turns:        turns,
		Chunks:       chunks,
		SpeakerStats: stats,
		Metadata:     meta,
	}
}

// Clean normalizes line endings, strips timestamps, lowercases
// bracketed annotations, and collapses runs of spaces and tabs.
func Clean(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = timestampRe.ReplaceAllString(s, "")
	s = bracketedRe.ReplaceAllStringFunc(s, strings.ToLower)
	s = whitespaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// segment splits cleaned text into speaker turns via label prefix
// heuristics. Lines without a recognizable label continue the previous
// turn, or open an Unknown turn at the start.
func segment(cleaned string) []Turn {
	var turns []Turn
	for _, line := range strings.Split(cleaned, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		speaker, rest, ok := splitSpeaker(line)
		if !ok {
			if len(turns) == 0 {
				turns = append(turns, Turn{Speaker: SpeakerUnknown, Text: line})
			} else {
				turns[len(turns)-1].Text += " " + line
			}
			continue
		}
		turns = append(turns, Turn{Speaker: speaker, Text: rest})
	}
	return turns
}

func splitSpeaker(line string) (speaker, rest string, ok bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 || idx > 40 {
		return "", "", false
	}
	label := strings.ToLower(strings.TrimSpace(line[:idx]))
	rest = strings.TrimSpace(line[idx+1:])
	for _, p := range therapistPrefixes {
		if strings.HasPrefix(label, strings.TrimSuffix(p, ":")) {
			return SpeakerTherapist, rest, true
		}
	}
	for _, p := range clientPrefixes {
		if strings.HasPrefix(label, strings.TrimSuffix(p, ":")) {
			return SpeakerClient, rest, true
		}
	}
	// Single-letter labels "T" / "C".
	switch label {
	case "t":
		return SpeakerTherapist, rest, true
	case "c", "p":
		return SpeakerClient, rest, true
	}
	return "", "", false
}

func joinTurns(turns []Turn) string {
	parts := make([]string, len(turns))
	for i, t := range turns {
		parts[i] = t.Speaker + ": " + t.Text
	}
	return strings.Join(parts, "\n")
}

func speakerStats(turns []Turn) []SpeakerStats {
	order := []string{}
	byName := map[string]*SpeakerStats{}
	for _, t := range turns {
		st, ok := byName[t.Speaker]
		if !ok {
			st = &SpeakerStats{Speaker: t.Speaker}
			byName[t.Speaker] = st
			order = append(order, t.Speaker)
		}
		st.TurnCount++
		st.WordCount += len(strings.Fields(t.Text))
	}
	out := make([]SpeakerStats, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	return out
}

// chunk builds overlapping windows over the joined turn text. Turns are
// never split across a chunk boundary; the overlap re-includes trailing
// turns of the previous chunk.
func chunk(turns []Turn, maxSize, overlap int) []Chunk {
	if len(turns) == 0 {
		return nil
	}
	lines := make([]string, len(turns))
	for i, t := range turns {
		lines[i] = t.Speaker + ": " + t.Text
	}

	var chunks []Chunk
	start := 0
	offset := 0
	for start < len(lines) {
		size := 0
		end := start
		for end < len(lines) {
			lineLen := len(lines[end]) + 1
			if size > 0 && size+lineLen > maxSize {
				break
			}
			size += lineLen
			end++
		}
		text := strings.Join(lines[start:end], "\n")
		chunks = append(chunks, Chunk{
			Index:       len(chunks),
			Text:        text,
			StartOffset: offset,
			EndOffset:   offset + len(text),
			TurnCount:   end - start,
		})
		if end >= len(lines) {
			break
		}
		// Walk back whole turns until roughly overlap bytes are
		// re-included.
		back := end
		covered := 0
		for back > start+1 && covered < overlap {
			back--
			covered += len(lines[back]) + 1
		}
		for i := start; i < back; i++ {
			offset += len(lines[i]) + 1
		}
		start = back
	}
	return chunks
}

func estimateDuration(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	minutes := words / wordsPerMinute
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}

// topicDensity approximates how much distinct content a transcript
// carries: unique meaningful words over total words, in [0,1].
func topicDensity(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	unique := make(map[string]bool)
	total := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) < 4 {
			continue
		}
		total++
		unique[w] = true
	}
	if total == 0 {
		return 0
	}
	return float64(len(unique)) / float64(total)
}

var intenseWords = []string{
	"angry", "furious", "terrified", "scared", "hopeless", "worthless",
	"panic", "crying", "devastated", "overwhelmed", "desperate", "hate",
	"ashamed", "exhausted", "afraid", "anxious", "miserable", "alone",
}

// emotionalIntensity is the fraction of sentences carrying intense
// affect words, clamped to [0,1].
func emotionalIntensity(text string) float64 {
	lower := strings.ToLower(text)
	sentences := strings.FieldsFunc(lower, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	if len(sentences) == 0 {
		return 0
	}
	hits := 0
	for _, s := range sentences {
		for _, w := range intenseWords {
			if strings.Contains(s, w) {
				hits++
				break
			}
		}
	}
	score := float64(hits) / float64(len(sentences))
	if score > 1 {
		score = 1
	}
	return score
}
