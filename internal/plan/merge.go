package plan

import (
	"strings"
	"time"

	"github.com/yungbote/carebridge-backend/internal/crisis"
)

// ExtractionOutput is what one session's extraction contributes to the
// plan. Every item arrives with a fresh id; reconciliation below
// decides whether that id survives or the item inherits an existing
// one.
type ExtractionOutput struct {
	Concerns      []Concern
	Impressions   []Impression
	Diagnoses     []Diagnosis
	Goals         []Goal
	Interventions []Intervention
	Strengths     []Strength
	RiskFactors   []RiskFactor
	Homework      []HomeworkItem
	KeyPoints     []string

	// GoalInterventionLinks maps a goal index to the indices of the
	// interventions that serve it. AssignIDs resolves it into
	// Goal.InterventionIDs once ids exist.
	GoalInterventionLinks map[int][]int
}

// AssignIDs stamps a fresh id on every item and seeds provenance with
// sessionID.
func (e *ExtractionOutput) AssignIDs(sessionID string) {
	for i := range e.Concerns {
		e.Concerns[i].ID = NewItemID(PrefixConcern)
		e.Concerns[i].SourceSessionIDs = []string{sessionID}
	}
	for i := range e.Impressions {
		e.Impressions[i].ID = NewItemID(PrefixImpression)
		e.Impressions[i].SourceSessionIDs = []string{sessionID}
	}
	for i := range e.Diagnoses {
		e.Diagnoses[i].ID = NewItemID(PrefixDiagnosis)
		e.Diagnoses[i].SourceSessionIDs = []string{sessionID}
	}
	for i := range e.Goals {
		e.Goals[i].ID = NewItemID(PrefixGoal)
		e.Goals[i].SourceSessionIDs = []string{sessionID}
	}
	for i := range e.Interventions {
		e.Interventions[i].ID = NewItemID(PrefixIntervention)
		e.Interventions[i].SourceSessionIDs = []string{sessionID}
	}
	for i := range e.Strengths {
		e.Strengths[i].ID = NewItemID(PrefixStrength)
		e.Strengths[i].SourceSessionIDs = []string{sessionID}
	}
	for i := range e.RiskFactors {
		e.RiskFactors[i].ID = NewItemID(PrefixRisk)
		e.RiskFactors[i].SourceSessionIDs = []string{sessionID}
	}
	for i := range e.Homework {
		e.Homework[i].ID = NewItemID(PrefixHomework)
		e.Homework[i].SourceSessionIDs = []string{sessionID}
	}
	for gi, ivIdxs := range e.GoalInterventionLinks {
		if gi < 0 || gi >= len(e.Goals) {
			continue
		}
		for _, ii := range ivIdxs {
			if ii >= 0 && ii < len(e.Interventions) {
				e.Goals[gi].InterventionIDs = append(e.Goals[gi].InterventionIDs, e.Interventions[ii].ID)
			}
		}
	}
}

// SessionInfo identifies the session an extraction came from.
type SessionInfo struct {
	ID     string
	Number int
	Date   time.Time
}

// BuildInitial creates the first canonical plan (version 1) from one
// extraction. Every item's provenance is the originating session; the
// crisis severity is aggregated from extracted risks.
func BuildInitial(out ExtractionOutput, session SessionInfo, now time.Time) *CanonicalPlan {
	out.AssignIDs(session.ID)
	p := &CanonicalPlan{
		Concerns:      out.Concerns,
		Impressions:   out.Impressions,
		Diagnoses:     out.Diagnoses,
		Goals:         out.Goals,
		Interventions: out.Interventions,
		Strengths:     out.Strengths,
		RiskFactors:   out.RiskFactors,
		Homework:      out.Homework,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	p.CrisisAssessment = CrisisAssessment{
		Severity:   p.AggregateRiskSeverity(),
		AssessedAt: now,
	}
	p.SessionReferences = []SessionReference{sessionReference(out, session)}
	return p
}

// Merge reconciles a re-extraction into an existing plan according to
// strategy. Matched items always keep their existing id and accumulate
// provenance; only unmatched handling differs per strategy. The
// existing plan is not mutated.
func Merge(existing *CanonicalPlan, out ExtractionOutput, session SessionInfo, strategy MergeStrategy, now time.Time) *CanonicalPlan {
	out.AssignIDs(session.ID)
	merged := *existing
	merged.UpdatedAt = now

	keepOld := strategy != MergeStrategyReplace
	match := strategy != MergeStrategyAppend

	merged.Concerns = mergeConcerns(existing.Concerns, out.Concerns, session.ID, keepOld, match)
	merged.Impressions = append(append([]Impression{}, existing.Impressions...), out.Impressions...)
	merged.Diagnoses = mergeDiagnoses(existing.Diagnoses, out.Diagnoses, session.ID, keepOld, match)

	// Interventions merge first: matched ones discard their fresh id,
	// and goal links that referenced the fresh id must follow to the
	// surviving one.
	var ivRemap map[string]string
	merged.Interventions, ivRemap = mergeInterventions(existing.Interventions, out.Interventions, session.ID, keepOld, match)
	merged.Goals = mergeGoals(existing.Goals, out.Goals, session.ID, keepOld, match, ivRemap)
	merged.Strengths = mergeStrengths(existing.Strengths, out.Strengths, session.ID, keepOld, match)
	merged.RiskFactors = mergeRisks(existing.RiskFactors, out.RiskFactors, session.ID, keepOld, match)
	merged.Homework = mergeHomework(existing.Homework, out.Homework, session.ID, keepOld, match)

	merged.CrisisAssessment.Severity = merged.AggregateRiskSeverity()
	merged.CrisisAssessment.AssessedAt = now

	merged.SessionReferences = append(append([]SessionReference{}, existing.SessionReferences...), sessionReference(out, session))
	return &merged
}

func sessionReference(out ExtractionOutput, session SessionInfo) SessionReference {
	contributions := out.KeyPoints
	if len(contributions) == 0 {
		contributions = []string{"Session documented"}
	}
	return SessionReference{
		SessionID:        session.ID,
		SessionNumber:    session.Number,
		SessionDate:      session.Date,
		KeyContributions: contributions,
	}
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func unionSessions(existing []string, sessionID string) []string {
	for _, id := range existing {
		if id == sessionID {
			return existing
		}
	}
	return append(append([]string{}, existing...), sessionID)
}

func unionStrings(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string{}, existing...)
	for _, s := range existing {
		seen[s] = true
	}
	for _, s := range incoming {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func remapIDs(ids []string, remap map[string]string) []string {
	if len(ids) == 0 || len(remap) == 0 {
		return ids
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		if to, ok := remap[id]; ok {
			out[i] = to
		} else {
			out[i] = id
		}
	}
	return out
}

func mergeGoals(old, new []Goal, sessionID string, keepOld, match bool, ivRemap map[string]string) []Goal {
	byKey := make(map[string]int, len(old))
	for i, g := range old {
		byKey[normalizeKey(g.Name)] = i
	}
	matched := make(map[int]bool)
	var out []Goal
	for _, g := range new {
		g.InterventionIDs = remapIDs(g.InterventionIDs, ivRemap)
		if match {
			if i, ok := byKey[normalizeKey(g.Name)]; ok {
				kept := old[i]
				kept.SourceSessionIDs = unionSessions(kept.SourceSessionIDs, sessionID)
				if g.Progress > kept.Progress {
					kept.Progress = g.Progress
				}
				if g.Status != "" && g.Status != kept.Status {
					kept.Status = g.Status
				}
				if g.Description != "" {
					kept.Description = g.Description
				}
				kept.InterventionIDs = unionStrings(kept.InterventionIDs, g.InterventionIDs)
				out = append(out, kept)
				matched[i] = true
				continue
			}
		}
		out = append(out, g)
	}
	if keepOld {
		retained := make([]Goal, 0, len(old))
		for i, g := range old {
			if !matched[i] {
				retained = append(retained, g)
			}
		}
		out = append(retained, out...)
	}
	return out
}

func mergeDiagnoses(old, new []Diagnosis, sessionID string, keepOld, match bool) []Diagnosis {
	byKey := make(map[string]int, len(old))
	for i, d := range old {
		byKey[normalizeKey(d.Name)] = i
		if d.ICD10Code != "" {
			byKey[normalizeKey(d.ICD10Code)] = i
		}
	}
	matched := make(map[int]bool)
	var out []Diagnosis
	for _, d := range new {
		if match {
			i, ok := byKey[normalizeKey(d.Name)]
			if !ok && d.ICD10Code != "" {
				i, ok = byKey[normalizeKey(d.ICD10Code)]
			}
			if ok {
				kept := old[i]
				kept.SourceSessionIDs = unionSessions(kept.SourceSessionIDs, sessionID)
				if d.Status != "" {
					kept.Status = d.Status
				}
				if d.Notes != "" {
					kept.Notes = d.Notes
				}
				if kept.ICD10Code == "" {
					kept.ICD10Code = d.ICD10Code
				}
				out = append(out, kept)
				matched[i] = true
				continue
			}
		}
		out = append(out, d)
	}
	if keepOld {
		retained := make([]Diagnosis, 0, len(old))
		for i, d := range old {
			if !matched[i] {
				retained = append(retained, d)
			}
		}
		out = append(retained, out...)
	}
	return out
}

func mergeHomework(old, new []HomeworkItem, sessionID string, keepOld, match bool) []HomeworkItem {
	byKey := make(map[string]int, len(old))
	for i, h := range old {
		byKey[normalizeKey(h.Task)] = i
	}
	matched := make(map[int]bool)
	var out []HomeworkItem
	for _, h := range new {
		if match {
			if i, ok := byKey[normalizeKey(h.Task)]; ok {
				kept := old[i]
				kept.SourceSessionIDs = unionSessions(kept.SourceSessionIDs, sessionID)
				if h.Status != "" {
					kept.Status = h.Status
				}
				out = append(out, kept)
				matched[i] = true
				continue
			}
		}
		out = append(out, h)
	}
	if keepOld {
		retained := make([]HomeworkItem, 0, len(old))
		for i, h := range old {
			if !matched[i] {
				retained = append(retained, h)
			}
		}
		out = append(retained, out...)
	}
	return out
}

func mergeConcerns(old, new []Concern, sessionID string, keepOld, match bool) []Concern {
	byKey := make(map[string]int, len(old))
	for i, c := range old {
		byKey[normalizeKey(c.Description)] = i
	}
	matched := make(map[int]bool)
	var out []Concern
	for _, c := range new {
		if match {
			if i, ok := byKey[normalizeKey(c.Description)]; ok {
				kept := old[i]
				kept.SourceSessionIDs = unionSessions(kept.SourceSessionIDs, sessionID)
				out = append(out, kept)
				matched[i] = true
				continue
			}
		}
		out = append(out, c)
	}
	if keepOld {
		retained := make([]Concern, 0, len(old))
		for i, c := range old {
			if !matched[i] {
				retained = append(retained, c)
			}
		}
		out = append(retained, out...)
	}
	return out
}

func mergeInterventions(old, new []Intervention, sessionID string, keepOld, match bool) ([]Intervention, map[string]string) {
	byKey := make(map[string]int, len(old))
	for i, iv := range old {
		byKey[normalizeKey(iv.Name)] = i
	}
	matched := make(map[int]bool)
	remap := make(map[string]string)
	var out []Intervention
	for _, iv := range new {
		if match {
			if i, ok := byKey[normalizeKey(iv.Name)]; ok {
				kept := old[i]
				kept.SourceSessionIDs = unionSessions(kept.SourceSessionIDs, sessionID)
				if iv.Description != "" {
					kept.Description = iv.Description
				}
				if iv.Frequency != "" {
					kept.Frequency = iv.Frequency
				}
				remap[iv.ID] = kept.ID
				out = append(out, kept)
				matched[i] = true
				continue
			}
		}
		out = append(out, iv)
	}
	if keepOld {
		retained := make([]Intervention, 0, len(old))
		for i, iv := range old {
			if !matched[i] {
				retained = append(retained, iv)
			}
		}
		out = append(retained, out...)
	}
	return out, remap
}

func mergeStrengths(old, new []Strength, sessionID string, keepOld, match bool) []Strength {
	byKey := make(map[string]int, len(old))
	for i, s := range old {
		byKey[normalizeKey(s.Description)] = i
	}
	matched := make(map[int]bool)
	var out []Strength
	for _, s := range new {
		if match {
			if i, ok := byKey[normalizeKey(s.Description)]; ok {
				kept := old[i]
				kept.SourceSessionIDs = unionSessions(kept.SourceSessionIDs, sessionID)
				out = append(out, kept)
				matched[i] = true
				continue
			}
		}
		out = append(out, s)
	}
	if keepOld {
		retained := make([]Strength, 0, len(old))
		for i, s := range old {
			if !matched[i] {
				retained = append(retained, s)
			}
		}
		out = append(retained, out...)
	}
	return out
}

func mergeRisks(old, new []RiskFactor, sessionID string, keepOld, match bool) []RiskFactor {
	byKey := make(map[string]int, len(old))
	for i, r := range old {
		byKey[normalizeKey(r.Description)] = i
	}
	matched := make(map[int]bool)
	var out []RiskFactor
	for _, r := range new {
		if match {
			if i, ok := byKey[normalizeKey(r.Description)]; ok {
				kept := old[i]
				kept.SourceSessionIDs = unionSessions(kept.SourceSessionIDs, sessionID)
				kept.Severity = crisis.MaxSeverity(kept.Severity, r.Severity)
				if r.Mitigation != "" {
					kept.Mitigation = r.Mitigation
				}
				out = append(out, kept)
				matched[i] = true
				continue
			}
		}
		out = append(out, r)
	}
	if keepOld {
		retained := make([]RiskFactor, 0, len(old))
		for i, r := range old {
			if !matched[i] {
				retained = append(retained, r)
			}
		}
		out = append(retained, out...)
	}
	return out
}
