package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/sse"
	"github.com/yungbote/carebridge-backend/internal/types"
	"github.com/yungbote/carebridge-backend/internal/utils"
)

// Worker tuning. Failed runs retry until maxRunAttempts with a delay;
// a running row whose heartbeat goes stale is reclaimed after a crash.
const (
	runPollInterval   = 2 * time.Second
	runHeartbeatEvery = 15 * time.Second
	runRetryDelay     = 30 * time.Second
	runStaleRunning   = 2 * time.Minute
)

// PlanRunService queues pipeline runs and executes them on a claim
// worker. Runs move queued -> running -> one of succeeded, halted,
// canceled, failed.
type PlanRunService interface {
	// Enqueue creates a queued run for a session. A session that
	// already has a queued or running run returns that run instead of
	// a duplicate.
	Enqueue(ctx context.Context, sessionID uuid.UUID, createdBy string) (*types.PlanGenerationRun, error)

	GetRun(ctx context.Context, runID uuid.UUID) (*types.PlanGenerationRun, error)
	GetLatestForSession(ctx context.Context, sessionID uuid.UUID) (*types.PlanGenerationRun, error)

	// Cancel aborts an in-flight run or cancels a queued one. The
	// aborted pipeline leaves plan state unchanged.
	Cancel(ctx context.Context, runID uuid.UUID) error

	// StartWorker blocks, claiming and executing runnable runs until
	// ctx is done.
	StartWorker(ctx context.Context)
}

type planRunService struct {
	log      *logger.Logger
	runRepo  repos.PlanGenerationRunRepo
	metadata SessionMetadataService
	pipeline PlanPipelineService
	hub      *sse.SSEHub

	maxAttempts int

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
}

func NewPlanRunService(
	baseLog *logger.Logger,
	runRepo repos.PlanGenerationRunRepo,
	metadata SessionMetadataService,
	pipeline PlanPipelineService,
	hub *sse.SSEHub,
) PlanRunService {
	return &planRunService{
		log:         baseLog.With("service", "PlanRunService"),
		runRepo:     runRepo,
		metadata:    metadata,
		pipeline:    pipeline,
		hub:         hub,
		maxAttempts: utils.GetEnvAsInt("PLAN_RUN_MAX_ATTEMPTS", 3, baseLog),
		cancels:     make(map[uuid.UUID]context.CancelFunc),
	}
}

func (s *planRunService) Enqueue(ctx context.Context, sessionID uuid.UUID, createdBy string) (*types.PlanGenerationRun, error) {
	sctx, err := s.metadata.GetSessionContext(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}

	if existing, err := s.runRepo.GetLatestBySessionID(ctx, nil, sessionID); err != nil {
		return nil, err
	} else if existing != nil &&
		(existing.Status == types.RunStatusQueued || existing.Status == types.RunStatusRunning) {
		return existing, nil
	}

	run := &types.PlanGenerationRun{
		ID:        uuid.New(),
		ClientID:  sctx.ClientID,
		SessionID: sessionID,
		Status:    types.RunStatusQueued,
		Stage:     StagePreprocessing,
	}
	if createdBy != "" {
		meta, _ := json.Marshal(map[string]string{"created_by": createdBy})
		run.Metadata = meta
	}
	created, err := s.runRepo.Create(ctx, nil, []*types.PlanGenerationRun{run})
	if err != nil {
		return nil, err
	}
	run = created[0]

	s.broadcast(run, sse.SSEEventPlanGenerationQueued, map[string]any{"run_id": run.ID})
	s.log.Info("Enqueued plan generation run",
		"run_id", run.ID.String(),
		"session_id", sessionID.String(),
	)
	return run, nil
}

func (s *planRunService) GetRun(ctx context.Context, runID uuid.UUID) (*types.PlanGenerationRun, error) {
	runs, err := s.runRepo.GetByIDs(ctx, nil, []uuid.UUID{runID})
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, apperr.NotFound("plan_generation_run", runID.String())
	}
	return runs[0], nil
}

func (s *planRunService) GetLatestForSession(ctx context.Context, sessionID uuid.UUID) (*types.PlanGenerationRun, error) {
	run, err := s.runRepo.GetLatestBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apperr.NotFound("plan_generation_run", sessionID.String())
	}
	return run, nil
}

func (s *planRunService) Cancel(ctx context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	cancel, inFlight := s.cancels[runID]
	s.mu.Unlock()
	if inFlight {
		cancel()
		return nil
	}

	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return err
	}
	if run.Status != types.RunStatusQueued {
		return apperr.Validation("status", "only queued or running runs can be canceled")
	}
	if err := s.runRepo.UpdateFields(ctx, nil, runID, map[string]interface{}{
		"status": types.RunStatusCanceled,
	}); err != nil {
		return err
	}
	run.Status = types.RunStatusCanceled
	s.broadcast(run, sse.SSEEventPlanGenerationCanceled, map[string]any{"run_id": runID})
	return nil
}

func (s *planRunService) StartWorker(ctx context.Context) {
	s.log.Info("Plan run worker started")
	ticker := time.NewTicker(runPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("Plan run worker stopped")
			return
		case <-ticker.C:
			for {
				run, err := s.runRepo.ClaimNextRunnable(ctx, nil, s.maxAttempts, runRetryDelay, runStaleRunning)
				if err != nil {
					s.log.Error("Failed to claim run", "error", err)
					break
				}
				if run == nil {
					break
				}
				s.execute(ctx, run)
			}
		}
	}
}

func (s *planRunService) execute(parent context.Context, run *types.PlanGenerationRun) {
	ctx, cancel := context.WithCancel(WithRunAudit(parent, run.ID, run.ClientID))
	defer cancel()

	s.mu.Lock()
	s.cancels[run.ID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, run.ID)
		s.mu.Unlock()
	}()

	hbCtx, stopHeartbeat := context.WithCancel(parent)
	defer stopHeartbeat()
	go func() {
		t := time.NewTicker(runHeartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-t.C:
				if err := s.runRepo.Heartbeat(hbCtx, nil, run.ID); err != nil {
					s.log.Warn("Run heartbeat failed", "run_id", run.ID.String(), "error", err)
				}
			}
		}
	}()

	onProgress := func(stage string, percent int, message string) {
		if err := s.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
			"stage":    stage,
			"progress": percent,
		}); err != nil {
			s.log.Warn("Failed to persist run progress", "run_id", run.ID.String(), "error", err)
		}
		s.broadcast(run, sse.SSEEventPlanGenerationProgress, map[string]any{
			"run_id":   run.ID,
			"stage":    stage,
			"progress": percent,
			"message":  message,
		})
	}

	result, err := s.pipeline.RunPipeline(ctx, PipelineInput{
		SessionID: run.SessionID,
		CreatedBy: createdByFromMetadata(run),
	}, onProgress)

	// Persist the outcome against the parent context: the run context
	// may already be canceled.
	finishCtx := context.WithoutCancel(parent)

	switch {
	case result == nil && err == nil:
		// External cancellation: no result, no error, plan untouched.
		s.finish(finishCtx, run, map[string]interface{}{
			"status": types.RunStatusCanceled,
		}, sse.SSEEventPlanGenerationCanceled, map[string]any{"run_id": run.ID})

	case err != nil:
		now := time.Now()
		updates := map[string]interface{}{
			"status":        types.RunStatusFailed,
			"error":         err.Error(),
			"last_error_at": now,
		}
		// Validation, not-found, and conflict errors do not improve on
		// retry; exhaust the attempts so the claim loop skips them.
		if !apperr.IsRetryableAI(err) {
			updates["attempts"] = s.maxAttempts
		}
		s.finish(finishCtx, run, updates, sse.SSEEventPlanGenerationFailed, map[string]any{
			"run_id": run.ID,
			"error":  err.Error(),
		})
		s.log.Error("Run failed", "run_id", run.ID.String(), "error", err)

	case result.CrisisDetected:
		s.finish(finishCtx, run, map[string]interface{}{
			"status":          types.RunStatusHalted,
			"crisis_detected": true,
			"crisis_severity": result.CrisisSeverity,
			"plan_id":         result.PlanID,
			"warnings":        marshalWarnings(result.Warnings),
		}, sse.SSEEventPlanGenerationHalted, map[string]any{
			"run_id":   run.ID,
			"severity": result.CrisisSeverity,
		})
		s.log.Warn("Run halted for clinical review",
			"run_id", run.ID.String(),
			"severity", result.CrisisSeverity,
		)

	default:
		s.finish(finishCtx, run, map[string]interface{}{
			"status":          types.RunStatusSucceeded,
			"progress":        100,
			"stage":           StageComplete,
			"plan_id":         result.PlanID,
			"version_number":  result.VersionNumber,
			"crisis_severity": result.CrisisSeverity,
			"warnings":        marshalWarnings(result.Warnings),
		}, sse.SSEEventPlanGenerationCompleted, map[string]any{
			"run_id":  run.ID,
			"plan_id": result.PlanID,
			"version": result.VersionNumber,
		})
	}
}

func (s *planRunService) finish(ctx context.Context, run *types.PlanGenerationRun, updates map[string]interface{}, event sse.SSEEvent, data map[string]any) {
	if err := s.runRepo.UpdateFields(ctx, nil, run.ID, updates); err != nil {
		s.log.Error("Failed to persist run outcome", "run_id", run.ID.String(), "error", err)
	}
	s.broadcast(run, event, data)
}

func (s *planRunService) broadcast(run *types.PlanGenerationRun, event sse.SSEEvent, data map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(sse.SSEMessage{Channel: sse.RunChannel(run.ID), Event: event, Data: data})
	s.hub.Broadcast(sse.SSEMessage{Channel: sse.ClientChannel(run.ClientID), Event: event, Data: data})
}

func createdByFromMetadata(run *types.PlanGenerationRun) string {
	if len(run.Metadata) == 0 {
		return "system"
	}
	var meta map[string]string
	if err := json.Unmarshal(run.Metadata, &meta); err != nil {
		return "system"
	}
	if meta["created_by"] == "" {
		return "system"
	}
	return meta["created_by"]
}

func marshalWarnings(warnings []string) []byte {
	if len(warnings) == 0 {
		return nil
	}
	b, err := json.Marshal(warnings)
	if err != nil {
		return nil
	}
	return b
}
