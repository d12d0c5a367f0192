package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/crisis"
	"github.com/yungbote/carebridge-backend/internal/diff"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/plan"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/transcript"
	"github.com/yungbote/carebridge-backend/internal/types"
)

// Pipeline stages, in execution order.
const (
	StagePreprocessing = "preprocessing"
	StageCrisisCheck   = "crisis_check"
	StageExtraction    = "extraction"
	StageTherapistView = "therapist_view"
	StageClientView    = "client_view"
	StageSummary       = "summary"
	StageSaving        = "saving"
	StageComplete      = "complete"
)

// stageWeights are fixed per-stage shares of overall progress. They
// sum to 100; reported progress is the cumulative weight of finished
// stages, so it never decreases.
var stageWeights = []struct {
	stage  string
	weight int
}{
	{StagePreprocessing, 5},
	{StageCrisisCheck, 15},
	{StageExtraction, 30},
	{StageTherapistView, 15},
	{StageClientView, 15},
	{StageSummary, 10},
	{StageSaving, 10},
}

// PipelineInput identifies the session to process and who asked.
type PipelineInput struct {
	SessionID uuid.UUID
	CreatedBy string
}

// PipelineResult is the outcome of a completed (not canceled) run.
// Success=false with CrisisDetected=true is a deliberate crisis stop,
// not a failure.
type PipelineResult struct {
	Success          bool                   `json:"success"`
	PlanID           uuid.UUID              `json:"plan_id"`
	VersionNumber    int                    `json:"version_number"`
	CrisisDetected   bool                   `json:"crisis_detected"`
	CrisisSeverity   string                 `json:"crisis_severity"`
	CrisisAssessment *plan.CrisisAssessment `json:"crisis_assessment,omitempty"`
	ChangeSummary    string                 `json:"change_summary,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

// ProgressFunc receives best-effort progress updates. Implementations
// must not block; slow consumers should buffer or drop.
type ProgressFunc func(stage string, percent int, message string)

// PlanPipelineService is the staged orchestrator. One invocation runs
// the stages strictly sequentially; concurrent runs against the same
// plan are serialized by the plan lock, with the loser failing fast.
type PlanPipelineService interface {
	// RunPipeline executes the full pipeline for one session.
	// Cancellation via ctx returns (nil, nil): no result, no error,
	// plan state unchanged.
	RunPipeline(ctx context.Context, input PipelineInput, onProgress ProgressFunc) (*PipelineResult, error)
}

type planPipelineService struct {
	log       *logger.Logger
	metadata  SessionMetadataService
	crisisSvc CrisisDetectionService
	extractor PlanExtractionService
	therapist TherapistViewService
	client    ClientViewService
	versions  PlanVersionService
	planRepo  repos.TreatmentPlanRepo
}

func NewPlanPipelineService(
	baseLog *logger.Logger,
	metadata SessionMetadataService,
	crisisSvc CrisisDetectionService,
	extractor PlanExtractionService,
	therapist TherapistViewService,
	client ClientViewService,
	versions PlanVersionService,
	planRepo repos.TreatmentPlanRepo,
) PlanPipelineService {
	return &planPipelineService{
		log:       baseLog.With("service", "PlanPipelineService"),
		metadata:  metadata,
		crisisSvc: crisisSvc,
		extractor: extractor,
		therapist: therapist,
		client:    client,
		versions:  versions,
		planRepo:  planRepo,
	}
}

// progressTracker enforces monotonic non-decreasing percentages and
// shields the pipeline from a panicking callback.
type progressTracker struct {
	fn   ProgressFunc
	last int
}

func (p *progressTracker) report(stage string, percent int, message string) {
	if percent < p.last {
		percent = p.last
	}
	p.last = percent
	if p.fn == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	p.fn(stage, percent, message)
}

// cumulativeWeight returns total progress after stage completes.
func cumulativeWeight(stage string) int {
	total := 0
	for _, sw := range stageWeights {
		total += sw.weight
		if sw.stage == stage {
			return total
		}
	}
	return total
}

func (s *planPipelineService) RunPipeline(ctx context.Context, input PipelineInput, onProgress ProgressFunc) (*PipelineResult, error) {
	started := time.Now()
	progress := &progressTracker{fn: onProgress}

	sctx, err := s.metadata.GetSessionContext(ctx, nil, input.SessionID)
	if err != nil {
		return nil, err
	}
	if sctx.Session.Transcript == "" {
		return nil, apperr.Validation("transcript", "session has no transcript")
	}

	planRow, err := s.ensurePlan(ctx, sctx.ClientID)
	if err != nil {
		return nil, err
	}

	locked, err := s.planRepo.TryLock(ctx, nil, planRow.ID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, apperr.Conflict("treatment_plan", planRow.ID.String())
	}
	// The lock clears on every exit path: success, crisis halt,
	// cancellation, and error.
	defer func() {
		if err := s.planRepo.Unlock(context.WithoutCancel(ctx), nil, planRow.ID); err != nil {
			s.log.Error("Failed to unlock plan", "plan_id", planRow.ID.String(), "error", err)
		}
	}()

	result := &PipelineResult{PlanID: planRow.ID}

	// preprocessing
	progress.report(StagePreprocessing, 0, "Preparing transcript")
	pre := transcript.Preprocess(sctx.Session.Transcript, transcript.Options{})
	if pre.CleanedText == "" {
		return nil, apperr.Validation("transcript", "transcript is empty after cleaning")
	}
	progress.report(StagePreprocessing, cumulativeWeight(StagePreprocessing), "Transcript prepared")
	if canceled(ctx) {
		return nil, nil
	}

	// crisis_check: the keyword screen always runs; the deep
	// classifier is authoritative when it answers, with the screen as
	// fallback.
	progress.report(StageCrisisCheck, progress.last, "Checking for safety concerns")
	screen := crisis.Screen(pre.CleanedText)
	assessment, err := s.crisisSvc.Assess(ctx, pre.Chunks)
	if err != nil {
		if canceled(ctx) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		warning := fmt.Sprintf("deep crisis assessment unavailable (%v); using keyword screen", err)
		result.Warnings = append(result.Warnings, warning)
		s.log.Warn("Deep crisis assessment failed, falling back to keyword screen", "error", err)
		assessment = assessmentFromScreen(screen)
	}
	// The screen acts as a floor: a keyword hit the classifier missed
	// still counts.
	assessment.Severity = crisis.MaxSeverity(assessment.Severity, screen.Severity)
	result.CrisisSeverity = assessment.Severity.String()
	result.CrisisAssessment = assessment
	progress.report(StageCrisisCheck, cumulativeWeight(StageCrisisCheck), "Safety check complete")

	if assessment.Severity.IsHalting() {
		// Deliberate stop: plan untouched, lock released by defer.
		result.Success = false
		result.CrisisDetected = true
		result.ProcessingTimeMs = time.Since(started).Milliseconds()
		s.log.Warn("Pipeline halted on crisis severity",
			"session_id", input.SessionID.String(),
			"severity", assessment.Severity.String(),
		)
		progress.report(StageComplete, 100, "Halted for clinical review")
		return result, nil
	}
	if assessment.Severity.IsWarning() {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("crisis severity %s detected; review recommended", assessment.Severity))
	}
	if canceled(ctx) {
		return nil, nil
	}

	// extraction
	progress.report(StageExtraction, progress.last, "Extracting treatment plan content")
	existing, err := unmarshalCanonical(planRow)
	if err != nil {
		return nil, err
	}
	out, err := s.extractor.Extract(ctx, pre.CleanedText, existing, sctx)
	if err != nil {
		if canceled(ctx) || errors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, err
	}
	now := time.Now()
	sessionInfo := plan.SessionInfo{
		ID:     sctx.SessionID.String(),
		Number: sctx.SessionNumber,
		Date:   sctx.Session.SessionDate,
	}
	var canonical *plan.CanonicalPlan
	changeType := types.ChangeTypeSessionUpdate
	if existing == nil {
		canonical = plan.BuildInitial(out, sessionInfo, now)
		changeType = types.ChangeTypeInitial
	} else {
		canonical = plan.Merge(existing, out, sessionInfo, sctx.Preferences.MergeStrategy, now)
	}
	// CurrentVersion tracks the max stored version, and the plan lock
	// is held, so the next number is known before the save.
	canonical.Version = planRow.CurrentVersion + 1
	// The stored document's severity tracks the plan's own risk
	// factors; the transcript-level assessment drives halting and the
	// run record only.
	planAssessment := *assessment
	planAssessment.Severity = canonical.AggregateRiskSeverity()
	canonical.CrisisAssessment = planAssessment
	progress.report(StageExtraction, cumulativeWeight(StageExtraction), "Plan content extracted")
	if canceled(ctx) {
		return nil, nil
	}

	// therapist_view
	progress.report(StageTherapistView, progress.last, "Rendering therapist view")
	therapistDoc := s.therapist.Render(canonical, sctx.Preferences)
	progress.report(StageTherapistView, cumulativeWeight(StageTherapistView), "Therapist view ready")

	// client_view
	progress.report(StageClientView, progress.last, "Rendering client view")
	clientDoc, viewWarnings := s.client.Render(canonical, sctx.Preferences)
	result.Warnings = append(result.Warnings, viewWarnings...)
	progress.report(StageClientView, cumulativeWeight(StageClientView), "Client view ready")
	if canceled(ctx) {
		return nil, nil
	}

	// summary
	progress.report(StageSummary, progress.last, "Summarizing changes")
	diffRes, err := diff.Compare(existing, canonical)
	if err != nil {
		return nil, err
	}
	result.ChangeSummary = diffRes.Summary
	progress.report(StageSummary, cumulativeWeight(StageSummary), "Change summary ready")
	if canceled(ctx) {
		return nil, nil
	}

	// saving
	progress.report(StageSaving, progress.last, "Saving new plan version")
	sessionID := sctx.SessionID
	version, err := s.versions.CreateVersion(ctx, nil, planRow.ID, PlanDocuments{
		Canonical:     canonical,
		TherapistView: therapistDoc,
		ClientView:    clientDoc,
	}, changeType, diffRes.Summary, input.CreatedBy, &sessionID)
	if err != nil {
		return nil, err
	}
	result.VersionNumber = version.VersionNumber
	progress.report(StageSaving, cumulativeWeight(StageSaving), "Plan version saved")

	result.Success = true
	result.ProcessingTimeMs = time.Since(started).Milliseconds()
	progress.report(StageComplete, 100, "Complete")
	s.log.Info("Pipeline complete",
		"session_id", input.SessionID.String(),
		"plan_id", planRow.ID.String(),
		"version", result.VersionNumber,
		"duration_ms", result.ProcessingTimeMs,
	)
	return result, nil
}

// ensurePlan returns the client's plan row, creating an empty one on
// first use.
func (s *planPipelineService) ensurePlan(ctx context.Context, clientID uuid.UUID) (*types.TreatmentPlan, error) {
	row, err := s.planRepo.GetByClientID(ctx, nil, clientID)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return row, nil
	}
	row = &types.TreatmentPlan{
		ID:       uuid.New(),
		ClientID: clientID,
	}
	created, err := s.planRepo.Create(ctx, nil, []*types.TreatmentPlan{row})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

func unmarshalCanonical(row *types.TreatmentPlan) (*plan.CanonicalPlan, error) {
	if len(row.Canonical) == 0 || row.CurrentVersion == 0 {
		return nil, nil
	}
	docs, err := unmarshalDocuments(row.Canonical, nil, nil)
	if err != nil {
		return nil, err
	}
	return docs.Canonical, nil
}

func assessmentFromScreen(screen crisis.ScreenResult) *plan.CrisisAssessment {
	out := &plan.CrisisAssessment{
		Severity:   screen.Severity,
		AssessedAt: time.Now(),
		Reasoning:  "Keyword screen only; deep assessment unavailable.",
	}
	for _, m := range screen.Matches {
		out.Indicators = append(out.Indicators, plan.CrisisIndicator{
			Type:     string(m.Category),
			Quote:    m.Phrase,
			Severity: m.Severity,
		})
	}
	return out
}

func canceled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}
