package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/plan"
	"github.com/yungbote/carebridge-backend/internal/textutil"
)

// ClientViewDoc is the client-facing projection: plain language,
// encouraging tone, held to a reading-grade ceiling. Like the
// therapist view it is a pure function of (plan, preferences).
type ClientViewDoc struct {
	Greeting       string                `json:"greeting"`
	WorkingOn      []ClientGoalEntry     `json:"working_on"`
	HomeActivities []ClientHomeworkEntry `json:"home_activities"`
	Strengths      []string              `json:"strengths"`
	NextSteps      string                `json:"next_steps"`

	ReadingGrade         float64 `json:"reading_grade"`
	ReadingGradeTarget   float64 `json:"reading_grade_target"`
	ExceedsReadingTarget bool    `json:"exceeds_reading_target"`
	SimplifyPasses       int     `json:"simplify_passes"`

	Version     int       `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`
}

type ClientGoalEntry struct {
	Title         string `json:"title"`
	Description   string `json:"description,omitempty"`
	Progress      int    `json:"progress"`
	Encouragement string `json:"encouragement"`
}

type ClientHomeworkEntry struct {
	Task       string `json:"task"`
	WhyItHelps string `json:"why_it_helps,omitempty"`
	Done       bool   `json:"done"`
}

// clinicalTerms is the closed replacement list: these terms must never
// reach client-facing text. Matching is whole-word, case-insensitive.
var clinicalTerms = map[string]string{
	"intervention":         "activity",
	"interventions":        "activities",
	"modality":             "approach",
	"modalities":           "approaches",
	"psychoeducation":      "learning about what is going on",
	"comorbid":             "happening together",
	"ideation":             "thoughts",
	"rumination":           "repeating thoughts",
	"dysregulation":        "strong feelings that are hard to manage",
	"prognosis":            "outlook",
	"symptomatology":       "what you are experiencing",
	"diagnosis":            "what we are working on",
	"diagnoses":            "what we are working on",
	"clinical":             "care",
	"therapeutic":          "helpful",
	"maladaptive":          "unhelpful",
	"cognitive distortion": "unhelpful thought pattern",
	"exposure":             "practice facing",
	"affect":               "mood",
	"presenting problem":   "main concern",
	"treatment plan":       "care plan",
}

// simplifyTerms is the second-tier word list applied by the
// deterministic simplification pass when the reading gate fails.
var simplifyTerms = map[string]string{
	"additionally":  "also",
	"utilize":       "use",
	"utilizing":     "using",
	"demonstrate":   "show",
	"approximately": "about",
	"facilitate":    "help",
	"frequently":    "often",
	"currently":     "now",
	"assistance":    "help",
	"significant":   "big",
	"experiencing":  "feeling",
	"regarding":     "about",
	"individuals":   "people",
	"strategies":    "ways",
	"techniques":    "skills",
}

// maxSimplifyPasses bounds the deterministic rewrite before the view
// is flagged instead.
const maxSimplifyPasses = 2

// ClientViewService renders the client-facing projection and enforces
// the reading-level acceptance gate.
type ClientViewService interface {
	// Render returns the view plus warnings. A view exceeding the
	// reading target after bounded simplification is still returned,
	// flagged, with a warning.
	Render(p *plan.CanonicalPlan, prefs TherapistPreferences) (*ClientViewDoc, []string)
}

type clientViewService struct {
	log *logger.Logger
}

func NewClientViewService(baseLog *logger.Logger) ClientViewService {
	return &clientViewService{log: baseLog.With("service", "ClientViewService")}
}

func (s *clientViewService) Render(p *plan.CanonicalPlan, prefs TherapistPreferences) (*ClientViewDoc, []string) {
	doc := &ClientViewDoc{
		Greeting:           "Here is a simple look at what you and your therapist are working on together.",
		ReadingGradeTarget: prefs.MaxReadingGrade,
		Version:            p.Version,
		GeneratedAt:        p.UpdatedAt,
	}

	for _, g := range p.Goals {
		doc.WorkingOn = append(doc.WorkingOn, ClientGoalEntry{
			Title:         ReplaceClinicalTerms(g.Name),
			Description:   ReplaceClinicalTerms(g.Description),
			Progress:      g.Progress,
			Encouragement: EncouragementFor(g.Progress),
		})
	}

	for _, h := range p.Homework {
		doc.HomeActivities = append(doc.HomeActivities, ClientHomeworkEntry{
			Task:       ReplaceClinicalTerms(h.Task),
			WhyItHelps: ReplaceClinicalTerms(h.Rationale),
			Done:       h.Status == plan.StatusCompleted,
		})
	}

	for _, st := range p.Strengths {
		doc.Strengths = append(doc.Strengths, ReplaceClinicalTerms(st.Description))
	}

	doc.NextSteps = buildNextSteps(p)

	var warnings []string
	doc.ReadingGrade = textutil.GradeLevel(doc.assembledText())
	for doc.ReadingGrade > prefs.MaxReadingGrade && doc.SimplifyPasses < maxSimplifyPasses {
		doc.simplify()
		doc.SimplifyPasses++
		doc.ReadingGrade = textutil.GradeLevel(doc.assembledText())
	}
	if doc.ReadingGrade > prefs.MaxReadingGrade {
		doc.ExceedsReadingTarget = true
		warnings = append(warnings, fmt.Sprintf(
			"client view reading grade %.1f exceeds target %.1f after %d simplification passes",
			doc.ReadingGrade, prefs.MaxReadingGrade, doc.SimplifyPasses))
		s.log.Warn("Client view exceeds reading target",
			"grade", doc.ReadingGrade,
			"target", prefs.MaxReadingGrade,
		)
	}

	return doc, warnings
}

func buildNextSteps(p *plan.CanonicalPlan) string {
	active := 0
	for _, g := range p.Goals {
		if g.Status != plan.StatusAchieved {
			active++
		}
	}
	pending := 0
	for _, h := range p.Homework {
		if h.Status != plan.StatusCompleted {
			pending++
		}
	}
	switch {
	case active == 0 && len(p.Goals) > 0:
		return "You have reached every goal in your plan. Talk with your therapist about what comes next."
	case pending > 0:
		return fmt.Sprintf("Before your next visit, try the %d thing(s) listed above. Small steps add up.", pending)
	case active > 0:
		return "Keep working on your goals at your own pace. Bring any questions to your next visit."
	default:
		return "Your plan is just getting started. Your therapist will add more after your next visit."
	}
}

// assembledText gathers every free-text field for the readability
// check. Structured scalars (progress numbers, flags) are excluded.
func (d *ClientViewDoc) assembledText() string {
	var b strings.Builder
	write := func(s string) {
		if s == "" {
			return
		}
		b.WriteString(s)
		if !strings.HasSuffix(strings.TrimSpace(s), ".") {
			b.WriteString(".")
		}
		b.WriteString(" ")
	}
	write(d.Greeting)
	for _, g := range d.WorkingOn {
		write(g.Title)
		write(g.Description)
		write(g.Encouragement)
	}
	for _, h := range d.HomeActivities {
		write(h.Task)
		write(h.WhyItHelps)
	}
	for _, st := range d.Strengths {
		write(st)
	}
	write(d.NextSteps)
	return strings.TrimSpace(b.String())
}

func (d *ClientViewDoc) simplify() {
	d.Greeting = SimplifyText(d.Greeting)
	for i := range d.WorkingOn {
		d.WorkingOn[i].Title = SimplifyText(d.WorkingOn[i].Title)
		d.WorkingOn[i].Description = SimplifyText(d.WorkingOn[i].Description)
	}
	for i := range d.HomeActivities {
		d.HomeActivities[i].Task = SimplifyText(d.HomeActivities[i].Task)
		d.HomeActivities[i].WhyItHelps = SimplifyText(d.HomeActivities[i].WhyItHelps)
	}
	for i := range d.Strengths {
		d.Strengths[i] = SimplifyText(d.Strengths[i])
	}
	d.NextSteps = SimplifyText(d.NextSteps)
}

// EncouragementFor returns the encouragement line for a progress
// bucket. Each bucket has a distinct message.
func EncouragementFor(progress int) string {
	switch {
	case progress <= 0:
		return "This is a brand new goal. You can do this!"
	case progress < 25:
		return "You have taken the first steps. Keep going!"
	case progress < 50:
		return "You are making real progress. Keep it up!"
	case progress < 75:
		return "You are more than halfway there. Great work!"
	case progress < 100:
		return "You are so close. Almost there!"
	default:
		return "You did it! This goal is complete."
	}
}

var termPatterns = buildTermPatterns(clinicalTerms)
var simplifyPatterns = buildTermPatterns(simplifyTerms)

type termPattern struct {
	re          *regexp.Regexp
	replacement string
}

func buildTermPatterns(terms map[string]string) []termPattern {
	out := make([]termPattern, 0, len(terms))
	for term, repl := range terms {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
		out = append(out, termPattern{re: re, replacement: repl})
	}
	// Longer terms first so "presenting problem" wins over any
	// overlapping single word; tie-break lexically so pattern order is
	// stable across processes.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].re.String(), out[j].re.String()
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return out
}

// ReplaceClinicalTerms substitutes every term on the closed clinical
// list with its plain-language alternative.
func ReplaceClinicalTerms(text string) string {
	for _, tp := range termPatterns {
		text = tp.re.ReplaceAllString(text, tp.replacement)
	}
	return text
}

// SimplifyText is the deterministic simplification pass: second-tier
// word substitutions plus splitting of long compound sentences.
func SimplifyText(text string) string {
	for _, tp := range simplifyPatterns {
		text = tp.re.ReplaceAllString(text, tp.replacement)
	}
	text = strings.ReplaceAll(text, "; ", ". ")
	text = strings.ReplaceAll(text, ", and ", ". And ")
	text = strings.ReplaceAll(text, ", which ", ". This ")
	return text
}
