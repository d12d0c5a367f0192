package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/carebridge-backend/internal/crisis"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/plan"
	"github.com/yungbote/carebridge-backend/internal/transcript"
)

// CrisisDetectionService is the deep (Tier-2) classifier. Its result is
// authoritative for pipeline control when the model is reachable; the
// local screener remains the safety net.
type CrisisDetectionService interface {
	Assess(ctx context.Context, chunks []transcript.Chunk) (*plan.CrisisAssessment, error)
}

type crisisDetectionService struct {
	log *logger.Logger
	ai  OpenAIClient

	// chunkConcurrency bounds in-flight model calls within the
	// crisis_check stage.
	chunkConcurrency int
}

func NewCrisisDetectionService(baseLog *logger.Logger, ai OpenAIClient) CrisisDetectionService {
	return &crisisDetectionService{
		log:              baseLog.With("service", "CrisisDetectionService"),
		ai:               ai,
		chunkConcurrency: 3,
	}
}

var crisisSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"severity": map[string]any{
			"type": "string",
			"enum": []string{"none", "low", "medium", "high", "critical"},
		},
		"indicators": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"type":     map[string]any{"type": "string"},
					"quote":    map[string]any{"type": "string"},
					"severity": map[string]any{"type": "string", "enum": []string{"none", "low", "medium", "high", "critical"}},
					"context":  map[string]any{"type": "string"},
				},
				"required":             []string{"type", "quote", "severity", "context"},
				"additionalProperties": false,
			},
		},
		"recommended_actions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"reasoning": map[string]any{"type": "string"},
	},
	"required":             []string{"severity", "indicators", "recommended_actions", "reasoning"},
	"additionalProperties": false,
}

const crisisSystemPrompt = `You are a clinical safety reviewer for behavioral health. ` +
	`Read the counseling transcript excerpt and assess crisis risk: suicidal ideation, ` +
	`self-harm, violence toward others, psychosis, or any situation requiring emergency response. ` +
	`Quote the exact language that concerns you. Rate severity conservatively: when in doubt between ` +
	`two levels, choose the higher one.`

func (s *crisisDetectionService) Assess(ctx context.Context, chunks []transcript.Chunk) (*plan.CrisisAssessment, error) {
	now := time.Now()
	if len(chunks) == 0 {
		return &plan.CrisisAssessment{Severity: crisis.SeverityNone, AssessedAt: now}, nil
	}

	var mu sync.Mutex
	results := make([]*plan.CrisisAssessment, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.chunkConcurrency)
	for i := range chunks {
		g.Go(func() error {
			res, err := s.assessChunk(gctx, chunks[i])
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	agg := &plan.CrisisAssessment{Severity: crisis.SeverityNone, AssessedAt: now}
	seenActions := make(map[string]bool)
	for _, res := range results {
		if res == nil {
			continue
		}
		agg.Severity = crisis.MaxSeverity(agg.Severity, res.Severity)
		agg.Indicators = append(agg.Indicators, res.Indicators...)
		for _, a := range res.RecommendedActions {
			if !seenActions[a] {
				seenActions[a] = true
				agg.RecommendedActions = append(agg.RecommendedActions, a)
			}
		}
		if res.Reasoning != "" {
			if agg.Reasoning != "" {
				agg.Reasoning += " "
			}
			agg.Reasoning += res.Reasoning
		}
	}
	return agg, nil
}

func (s *crisisDetectionService) assessChunk(ctx context.Context, chunk transcript.Chunk) (*plan.CrisisAssessment, error) {
	obj, err := s.ai.GenerateJSON(ctx,
		crisisSystemPrompt,
		fmt.Sprintf("Transcript excerpt (part %d):\n%s", chunk.Index+1, chunk.Text),
		"crisis_assessment",
		crisisSchema,
	)
	if err != nil {
		return nil, err
	}
	return parseCrisisAssessment(obj)
}

func parseCrisisAssessment(obj map[string]any) (*plan.CrisisAssessment, error) {
	sevRaw, ok := obj["severity"].(string)
	if !ok {
		return nil, fmt.Errorf("crisis assessment missing severity")
	}
	out := &plan.CrisisAssessment{
		Severity:   crisis.ParseSeverity(sevRaw),
		AssessedAt: time.Now(),
	}
	if reasoning, ok := obj["reasoning"].(string); ok {
		out.Reasoning = reasoning
	}
	if actions, ok := obj["recommended_actions"].([]any); ok {
		for _, a := range actions {
			if s, ok := a.(string); ok && s != "" {
				out.RecommendedActions = append(out.RecommendedActions, s)
			}
		}
	}
	if indicators, ok := obj["indicators"].([]any); ok {
		for _, raw := range indicators {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			ind := plan.CrisisIndicator{}
			ind.Type, _ = item["type"].(string)
			ind.Quote, _ = item["quote"].(string)
			ind.Context, _ = item["context"].(string)
			if sev, ok := item["severity"].(string); ok {
				ind.Severity = crisis.ParseSeverity(sev)
			}
			out.Indicators = append(out.Indicators, ind)
		}
	}
	return out, nil
}
