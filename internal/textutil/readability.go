// Package textutil provides the readability scoring used by the
// client-facing view gate.
package textutil

import (
	"strings"
	"unicode"
)

// CountSyllables estimates syllables in a single word using vowel-group
// counting with common English adjustments. Minimum result is 1 for any
// word that contains a letter.
func CountSyllables(word string) int {
	w := strings.ToLower(strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r)
	}))
	if w == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range w {
		v := isVowel(r)
		if v && !prevVowel {
			count++
		}
		prevVowel = v
	}
	// Silent trailing e ("make", "note"), but not "le" endings ("table").
	if strings.HasSuffix(w, "e") && !strings.HasSuffix(w, "le") && count > 1 {
		count--
	}
	if count < 1 {
		count = 1
	}
	return count
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'y':
		return true
	}
	return false
}

// Words splits text into word tokens, dropping punctuation-only tokens.
func Words(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		trimmed := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Sentences splits text on terminal punctuation. Consecutive
// terminators ("?!", "...") count once. Text with no terminator is one
// sentence.
func Sentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(b.String())
			s = strings.TrimLeft(s, ".!? \t\n")
			if s != "" {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// GradeLevel computes the Flesch-Kincaid grade level of text. Empty
// text scores 0.
func GradeLevel(text string) float64 {
	words := Words(text)
	if len(words) == 0 {
		return 0
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	syllables := 0
	for _, w := range words {
		syllables += CountSyllables(w)
	}
	wordsPerSentence := float64(len(words)) / float64(len(sentences))
	syllablesPerWord := float64(syllables) / float64(len(words))
	grade := 0.39*wordsPerSentence + 11.8*syllablesPerWord - 15.59
	if grade < 0 {
		return 0
	}
	return grade
}

// ReadingEase computes the Flesch reading-ease score of text. Higher is
// easier; 60-70 corresponds roughly to plain conversational English.
func ReadingEase(text string) float64 {
	words := Words(text)
	if len(words) == 0 {
		return 100
	}
	sentences := Sentences(text)
	if len(sentences) == 0 {
		sentences = []string{text}
	}
	syllables := 0
	for _, w := range words {
		syllables += CountSyllables(w)
	}
	wordsPerSentence := float64(len(words)) / float64(len(sentences))
	syllablesPerWord := float64(syllables) / float64(len(words))
	return 206.835 - 1.015*wordsPerSentence - 84.6*syllablesPerWord
}
