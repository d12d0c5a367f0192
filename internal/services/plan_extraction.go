package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/crisis"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/plan"
)

// PlanExtractionService turns cleaned transcript text into the
// structured contribution that builds or extends the canonical plan.
type PlanExtractionService interface {
	Extract(ctx context.Context, cleanedTranscript string, existing *plan.CanonicalPlan, sctx *SessionContext) (plan.ExtractionOutput, error)
}

type planExtractionService struct {
	log *logger.Logger
	ai  OpenAIClient

	// schemaRetries bounds re-attempts after schema-invalid model
	// output, on top of the client's transport retries.
	schemaRetries int
}

func NewPlanExtractionService(baseLog *logger.Logger, ai OpenAIClient) PlanExtractionService {
	return &planExtractionService{
		log:           baseLog.With("service", "PlanExtractionService"),
		ai:            ai,
		schemaRetries: 2,
	}
}

func stringArraySchema() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

var extractionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"concerns":    stringArraySchema(),
		"impressions": stringArraySchema(),
		"suggested_diagnoses": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":       map[string]any{"type": "string"},
					"icd10_code": map[string]any{"type": "string"},
					"status":     map[string]any{"type": "string", "enum": []string{"provisional", "active", "resolved"}},
					"notes":      map[string]any{"type": "string"},
				},
				"required":             []string{"name", "icd10_code", "status", "notes"},
				"additionalProperties": false,
			},
		},
		"goals": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"term":        map[string]any{"type": "string", "enum": []string{"short", "long"}},
					"status":      map[string]any{"type": "string", "enum": []string{"active", "in_progress", "achieved"}},
					"progress":    map[string]any{"type": "integer", "minimum": 0, "maximum": 100},
				},
				"required":             []string{"name", "description", "term", "status", "progress"},
				"additionalProperties": false,
			},
		},
		"interventions": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"name":        map[string]any{"type": "string"},
					"modality":    map[string]any{"type": "string"},
					"description": map[string]any{"type": "string"},
					"frequency":   map[string]any{"type": "string"},
					"goal_names":  stringArraySchema(),
				},
				"required":             []string{"name", "modality", "description", "frequency", "goal_names"},
				"additionalProperties": false,
			},
		},
		"strengths": stringArraySchema(),
		"risks": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{"type": "string"},
					"severity":    map[string]any{"type": "string", "enum": []string{"none", "low", "medium", "high", "critical"}},
					"mitigation":  map[string]any{"type": "string"},
				},
				"required":             []string{"description", "severity", "mitigation"},
				"additionalProperties": false,
			},
		},
		"homework": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task":      map[string]any{"type": "string"},
					"rationale": map[string]any{"type": "string"},
				},
				"required":             []string{"task", "rationale"},
				"additionalProperties": false,
			},
		},
		"key_points": stringArraySchema(),
	},
	"required": []string{
		"concerns", "impressions", "suggested_diagnoses", "goals",
		"interventions", "strengths", "risks", "homework", "key_points",
	},
	"additionalProperties": false,
}

const extractionStage = "extraction"

func (s *planExtractionService) Extract(ctx context.Context, cleanedTranscript string, existing *plan.CanonicalPlan, sctx *SessionContext) (plan.ExtractionOutput, error) {
	system := s.buildSystemPrompt(sctx)
	user := s.buildUserPrompt(cleanedTranscript, existing, sctx)

	var lastErr error
	for attempt := 0; attempt <= s.schemaRetries; attempt++ {
		if ctx.Err() != nil {
			return plan.ExtractionOutput{}, ctx.Err()
		}
		obj, err := s.ai.GenerateJSON(ctx, system, user, "plan_extraction", extractionSchema)
		if err != nil {
			return plan.ExtractionOutput{}, apperr.AI(extractionStage, IsRetryableModelErr(err), err)
		}
		out, parseErr := parseExtraction(obj)
		if parseErr == nil {
			return out, nil
		}
		// Schema-invalid output is non-fatal: retry a bounded number of
		// times before surfacing.
		lastErr = parseErr
		s.log.Warn("Extraction output failed validation, retrying",
			"attempt", attempt+1,
			"max", s.schemaRetries,
			"error", parseErr,
		)
	}
	return plan.ExtractionOutput{}, apperr.AI(extractionStage, false, lastErr)
}

func (s *planExtractionService) buildSystemPrompt(sctx *SessionContext) string {
	var b strings.Builder
	b.WriteString("You are a clinical documentation assistant. From a counseling-session transcript, ")
	b.WriteString("extract the material a therapist would put in a structured treatment plan: presenting concerns, ")
	b.WriteString("clinical impressions, suggested diagnoses, goals, interventions, client strengths, risk factors, and homework. ")
	b.WriteString("Only extract what the transcript supports; do not invent clinical content.")
	if len(sctx.Preferences.Modalities) > 0 {
		fmt.Fprintf(&b, " The treating therapist works within these modalities: %s.", strings.Join(sctx.Preferences.Modalities, ", "))
	}
	if sctx.Preferences.CustomInstructions != "" {
		fmt.Fprintf(&b, " Additional instructions from the therapist: %s", sctx.Preferences.CustomInstructions)
	}
	return b.String()
}

func (s *planExtractionService) buildUserPrompt(cleanedTranscript string, existing *plan.CanonicalPlan, sctx *SessionContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Client: %s\nSession number: %d\n\n", sctx.ClientName, sctx.SessionNumber)
	if existing != nil {
		b.WriteString("An existing treatment plan is in place. Current goals:\n")
		for _, g := range existing.Goals {
			fmt.Fprintf(&b, "- %s (%s, %d%%)\n", g.Name, g.Status, g.Progress)
		}
		b.WriteString("Reuse existing goal names when the session continues work on them, so progress accumulates instead of duplicating.\n\n")
	}
	b.WriteString("Transcript:\n")
	b.WriteString(cleanedTranscript)
	return b.String()
}

func parseExtraction(obj map[string]any) (plan.ExtractionOutput, error) {
	var out plan.ExtractionOutput

	concerns, err := stringList(obj, "concerns")
	if err != nil {
		return out, err
	}
	for _, c := range concerns {
		out.Concerns = append(out.Concerns, plan.Concern{Description: c})
	}

	impressions, err := stringList(obj, "impressions")
	if err != nil {
		return out, err
	}
	for _, i := range impressions {
		out.Impressions = append(out.Impressions, plan.Impression{Text: i})
	}

	diags, err := objectList(obj, "suggested_diagnoses")
	if err != nil {
		return out, err
	}
	for _, d := range diags {
		name, _ := d["name"].(string)
		if name == "" {
			return out, fmt.Errorf("diagnosis missing name")
		}
		code, _ := d["icd10_code"].(string)
		status, _ := d["status"].(string)
		notes, _ := d["notes"].(string)
		out.Diagnoses = append(out.Diagnoses, plan.Diagnosis{
			Name:      name,
			ICD10Code: code,
			Status:    status,
			Notes:     notes,
		})
	}

	goals, err := objectList(obj, "goals")
	if err != nil {
		return out, err
	}
	for _, g := range goals {
		name, _ := g["name"].(string)
		if name == "" {
			return out, fmt.Errorf("goal missing name")
		}
		desc, _ := g["description"].(string)
		term, _ := g["term"].(string)
		status, _ := g["status"].(string)
		progress, _ := g["progress"].(float64)
		out.Goals = append(out.Goals, plan.Goal{
			Name:        name,
			Description: desc,
			Term:        term,
			Status:      status,
			Progress:    int(progress),
		})
	}

	interventions, err := objectList(obj, "interventions")
	if err != nil {
		return out, err
	}
	for _, iv := range interventions {
		name, _ := iv["name"].(string)
		if name == "" {
			return out, fmt.Errorf("intervention missing name")
		}
		modality, _ := iv["modality"].(string)
		desc, _ := iv["description"].(string)
		freq, _ := iv["frequency"].(string)
		out.Interventions = append(out.Interventions, plan.Intervention{
			Name:        name,
			Modality:    modality,
			Description: desc,
			Frequency:   freq,
		})
	}

	strengths, err := stringList(obj, "strengths")
	if err != nil {
		return out, err
	}
	for _, st := range strengths {
		out.Strengths = append(out.Strengths, plan.Strength{Description: st})
	}

	risks, err := objectList(obj, "risks")
	if err != nil {
		return out, err
	}
	for _, r := range risks {
		desc, _ := r["description"].(string)
		if desc == "" {
			return out, fmt.Errorf("risk missing description")
		}
		sev, _ := r["severity"].(string)
		mitigation, _ := r["mitigation"].(string)
		out.RiskFactors = append(out.RiskFactors, plan.RiskFactor{
			Description: desc,
			Severity:    crisis.ParseSeverity(sev),
			Mitigation:  mitigation,
		})
	}

	homework, err := objectList(obj, "homework")
	if err != nil {
		return out, err
	}
	for _, h := range homework {
		task, _ := h["task"].(string)
		if task == "" {
			return out, fmt.Errorf("homework missing task")
		}
		rationale, _ := h["rationale"].(string)
		out.Homework = append(out.Homework, plan.HomeworkItem{
			Task:      task,
			Rationale: rationale,
			Status:    plan.StatusAssigned,
		})
	}

	keyPoints, err := stringList(obj, "key_points")
	if err != nil {
		return out, err
	}
	out.KeyPoints = keyPoints

	linkInterventionsToGoals(&out, interventions)
	return out, nil
}

// linkInterventionsToGoals resolves the model's goal_names references
// into the index-based link map that AssignIDs later turns into
// Goal.InterventionIDs.
func linkInterventionsToGoals(out *plan.ExtractionOutput, rawInterventions []map[string]any) {
	byGoalName := make(map[string][]int)
	for i, iv := range rawInterventions {
		names, _ := iv["goal_names"].([]any)
		for _, n := range names {
			if name, ok := n.(string); ok && name != "" {
				key := strings.ToLower(strings.TrimSpace(name))
				byGoalName[key] = append(byGoalName[key], i)
			}
		}
	}
	if len(byGoalName) == 0 {
		return
	}
	links := make(map[int][]int)
	for gi := range out.Goals {
		key := strings.ToLower(strings.TrimSpace(out.Goals[gi].Name))
		if idxs := byGoalName[key]; len(idxs) > 0 {
			links[gi] = idxs
		}
	}
	if len(links) > 0 {
		out.GoalInterventionLinks = links
	}
}

func stringList(obj map[string]any, key string) ([]string, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q is not an array", key)
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("field %q contains a non-string element", key)
		}
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func objectList(obj map[string]any, key string) ([]map[string]any, error) {
	raw, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	arr, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("field %q is not an array", key)
	}
	out := make([]map[string]any, 0, len(arr))
	for _, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q contains a non-object element", key)
		}
		out = append(out, m)
	}
	return out, nil
}
