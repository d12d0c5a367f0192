package crisis

import (
	"regexp"
	"strings"
)

// Category labels the curated keyword groups of the local screener.
type Category string

const (
	CategorySuicidalIdeation Category = "suicidal_ideation"
	CategorySelfHarm         Category = "self_harm"
	CategoryViolence         Category = "violence"
	CategoryPsychosis        Category = "psychosis"
	CategoryEmergency        Category = "emergency"
)

// Match is one keyword hit inside the screened text.
type Match struct {
	Category Category `json:"category"`
	Phrase   string   `json:"phrase"`
	Offset   int      `json:"offset"`
	Severity Severity `json:"severity"`
}

// ScreenResult is the Tier-1 output: deterministic, local, and cheap.
// It pre-screens transcripts before the deep classifier runs and acts
// as the safety net when the deep classifier is unavailable.
type ScreenResult struct {
	HasConcerns bool     `json:"has_concerns"`
	Severity    Severity `json:"severity"`
	Matches     []Match  `json:"matches"`
}

type pattern struct {
	phrase   string
	category Category
	severity Severity
}

// Curated screening lexicon. Phrases are matched case-insensitively on
// word boundaries, so "kill" inside "skillful" is not a hit; offsets
// refer to the lowercased input.
var patterns = []pattern{
	{"kill myself", CategorySuicidalIdeation, SeverityCritical},
	{"end my life", CategorySuicidalIdeation, SeverityCritical},
	{"suicide", CategorySuicidalIdeation, SeverityHigh},
	{"suicidal", CategorySuicidalIdeation, SeverityHigh},
	{"better off dead", CategorySuicidalIdeation, SeverityHigh},
	{"don't want to be alive", CategorySuicidalIdeation, SeverityHigh},
	{"no reason to live", CategorySuicidalIdeation, SeverityHigh},
	{"want to die", CategorySuicidalIdeation, SeverityHigh},
	{"wish i was dead", CategorySuicidalIdeation, SeverityHigh},

	{"hurt myself", CategorySelfHarm, SeverityHigh},
	{"hurting myself", CategorySelfHarm, SeverityHigh},
	{"cut myself", CategorySelfHarm, SeverityHigh},
	{"cutting myself", CategorySelfHarm, SeverityHigh},
	{"self harm", CategorySelfHarm, SeverityHigh},
	{"self-harm", CategorySelfHarm, SeverityHigh},
	{"burn myself", CategorySelfHarm, SeverityHigh},

	{"kill him", CategoryViolence, SeverityCritical},
	{"kill her", CategoryViolence, SeverityCritical},
	{"kill them", CategoryViolence, SeverityCritical},
	{"hurt someone", CategoryViolence, SeverityHigh},
	{"hurt somebody", CategoryViolence, SeverityHigh},
	{"make them pay", CategoryViolence, SeverityMedium},

	{"hearing voices", CategoryPsychosis, SeverityHigh},
	{"voices telling me", CategoryPsychosis, SeverityHigh},
	{"they are watching me", CategoryPsychosis, SeverityMedium},
	{"people are following me", CategoryPsychosis, SeverityMedium},
	{"not real anymore", CategoryPsychosis, SeverityMedium},

	{"overdose", CategoryEmergency, SeverityCritical},
	{"took all my pills", CategoryEmergency, SeverityCritical},
	{"bought a gun", CategoryEmergency, SeverityCritical},
	{"wrote a note", CategoryEmergency, SeverityHigh},
	{"said goodbye to everyone", CategoryEmergency, SeverityHigh},
}

var patternRes = compilePatterns(patterns)

func compilePatterns(ps []pattern) []*regexp.Regexp {
	res := make([]*regexp.Regexp, len(ps))
	for i, p := range ps {
		res[i] = regexp.MustCompile(`\b` + regexp.QuoteMeta(p.phrase) + `\b`)
	}
	return res
}

// Screen scans text for crisis language. Empty input returns a zero
// result with HasConcerns=false.
func Screen(text string) ScreenResult {
	lower := strings.ToLower(text)
	var result ScreenResult
	if strings.TrimSpace(lower) == "" {
		return result
	}
	for i, p := range patterns {
		for _, loc := range patternRes[i].FindAllStringIndex(lower, -1) {
			result.Matches = append(result.Matches, Match{
				Category: p.category,
				Phrase:   p.phrase,
				Offset:   loc[0],
				Severity: p.severity,
			})
		}
	}
	if len(result.Matches) > 0 {
		result.HasConcerns = true
		sevs := make([]Severity, len(result.Matches))
		for i, m := range result.Matches {
			sevs[i] = m.Severity
		}
		result.Severity = MaxSeverity(sevs...)
	}
	return result
}

// Categories returns the distinct categories present in the result, in
// first-match order.
func (r ScreenResult) Categories() []Category {
	seen := make(map[Category]bool)
	var out []Category
	for _, m := range r.Matches {
		if !seen[m.Category] {
			seen[m.Category] = true
			out = append(out, m.Category)
		}
	}
	return out
}
