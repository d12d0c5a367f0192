package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/crisis"
	"github.com/yungbote/carebridge-backend/internal/plan"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&types.Client{},
		&types.Session{},
		&types.TreatmentPlan{},
		&types.PlanVersion{},
		&types.PlanGenerationRun{},
		&types.AICallLog{},
	); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// fakeAI scripts model behavior per schema name.
type fakeAI struct {
	crisisSeverity string
	extraction     map[string]any
	cancelOnCrisis context.CancelFunc
}

func (f *fakeAI) Model() string { return "fake-model" }

func (f *fakeAI) GenerateText(ctx context.Context, system, user string) (string, error) {
	return "", nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	switch schemaName {
	case "crisis_assessment":
		if f.cancelOnCrisis != nil {
			f.cancelOnCrisis()
			return nil, ctx.Err()
		}
		sev := f.crisisSeverity
		if sev == "" {
			sev = "none"
		}
		return map[string]any{
			"severity":            sev,
			"indicators":          []any{},
			"recommended_actions": []any{},
			"reasoning":           "scripted",
		}, nil
	case "plan_extraction":
		if f.extraction != nil {
			return f.extraction, nil
		}
		return validExtractionPayload(), nil
	default:
		return nil, fmt.Errorf("unexpected schema %q", schemaName)
	}
}

type pipelineFixture struct {
	db       *gorm.DB
	planRepo repos.TreatmentPlanRepo
	verRepo  repos.PlanVersionRepo
	versions PlanVersionService
	pipeline PlanPipelineService
	clientID uuid.UUID
}

func newPipelineFixture(t *testing.T, ai OpenAIClient) *pipelineFixture {
	t.Helper()
	db := newTestDB(t)
	log := testLogger(t)

	clientRepo := repos.NewClientRepo(db, log)
	sessionRepo := repos.NewSessionRepo(db, log)
	planRepo := repos.NewTreatmentPlanRepo(db, log)
	verRepo := repos.NewPlanVersionRepo(db, log)

	metadata := NewSessionMetadataService(db, log, sessionRepo, clientRepo)
	crisisSvc := NewCrisisDetectionService(log, ai)
	extractor := NewPlanExtractionService(log, ai)
	therapist := NewTherapistViewService(log)
	clientView := NewClientViewService(log)
	versions := NewPlanVersionService(db, log, planRepo, verRepo)
	pipeline := NewPlanPipelineService(log, metadata, crisisSvc, extractor, therapist, clientView, versions, planRepo)

	clientID := uuid.New()
	if _, err := clientRepo.Create(context.Background(), nil, []*types.Client{{
		ID:          clientID,
		DisplayName: "Test Client",
	}}); err != nil {
		t.Fatalf("create client: %v", err)
	}

	return &pipelineFixture{
		db:       db,
		planRepo: planRepo,
		verRepo:  verRepo,
		versions: versions,
		pipeline: pipeline,
		clientID: clientID,
	}
}

func (f *pipelineFixture) addSession(t *testing.T, number int, transcriptText string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if err := f.db.Create(&types.Session{
		ID:            id,
		ClientID:      f.clientID,
		SessionNumber: number,
		SessionDate:   time.Now(),
		Transcript:    transcriptText,
		Status:        "recorded",
	}).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return id
}

const calmTranscript = `Therapist: How has the week been since we talked about the workplace triggers?
Client: Better, mostly. I used the breathing exercise twice when meetings got tense.
Therapist: That is exactly the kind of practice we wanted. What felt different?
Client: I noticed the spiral starting and could slow it down before it took over.`

const crisisTranscript = `Therapist: You mentioned things have been very dark this week.
Client: Honestly, I want to kill myself. I have been thinking about it every night.
Therapist: Thank you for telling me. Let's talk about keeping you safe right now.`

func TestPipelineCreatesInitialVersion(t *testing.T) {
	f := newPipelineFixture(t, &fakeAI{})
	sessionID := f.addSession(t, 1, calmTranscript)

	var stages []string
	result, err := f.pipeline.RunPipeline(context.Background(), PipelineInput{
		SessionID: sessionID,
		CreatedBy: "test",
	}, func(stage string, percent int, message string) {
		stages = append(stages, stage)
	})
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if !result.Success || result.CrisisDetected {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.VersionNumber != 1 {
		t.Errorf("VersionNumber = %d, want 1", result.VersionNumber)
	}

	row, err := f.planRepo.GetByClientID(context.Background(), nil, f.clientID)
	if err != nil || row == nil {
		t.Fatalf("load plan: %v", err)
	}
	if row.CurrentVersion != 1 {
		t.Errorf("CurrentVersion = %d, want 1", row.CurrentVersion)
	}
	if row.IsLocked {
		t.Error("plan still locked after successful run")
	}

	var canonical plan.CanonicalPlan
	if err := json.Unmarshal(row.Canonical, &canonical); err != nil {
		t.Fatalf("unmarshal canonical: %v", err)
	}
	if len(canonical.Goals) != 2 {
		t.Errorf("goals = %d, want 2", len(canonical.Goals))
	}
	if canonical.Version != 1 {
		t.Errorf("canonical.Version = %d, want 1", canonical.Version)
	}

	if stages[len(stages)-1] != StageComplete {
		t.Errorf("final reported stage = %q, want %q", stages[len(stages)-1], StageComplete)
	}
}

func TestPipelineProgressMonotonic(t *testing.T) {
	f := newPipelineFixture(t, &fakeAI{})
	sessionID := f.addSession(t, 1, calmTranscript)

	last := -1
	_, err := f.pipeline.RunPipeline(context.Background(), PipelineInput{SessionID: sessionID}, func(stage string, percent int, message string) {
		if percent < last {
			t.Errorf("progress went backwards: %d after %d at %s", percent, last, stage)
		}
		last = percent
	})
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if last != 100 {
		t.Errorf("final progress = %d, want 100", last)
	}
}

func TestPipelineHaltsOnCrisis(t *testing.T) {
	// The deep classifier reports none; the keyword screen must still
	// force the halt.
	f := newPipelineFixture(t, &fakeAI{crisisSeverity: "none"})
	sessionID := f.addSession(t, 1, crisisTranscript)

	result, err := f.pipeline.RunPipeline(context.Background(), PipelineInput{SessionID: sessionID}, nil)
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if result.Success {
		t.Error("crisis halt must not report success")
	}
	if !result.CrisisDetected {
		t.Error("crisis halt must set CrisisDetected")
	}
	if result.CrisisSeverity != "critical" {
		t.Errorf("CrisisSeverity = %q, want critical", result.CrisisSeverity)
	}

	row, err := f.planRepo.GetByClientID(context.Background(), nil, f.clientID)
	if err != nil || row == nil {
		t.Fatalf("load plan: %v", err)
	}
	if row.CurrentVersion != 0 {
		t.Error("halted run must not write a plan version")
	}
	if row.IsLocked {
		t.Error("plan still locked after crisis halt")
	}
}

func TestPipelineLockConflict(t *testing.T) {
	f := newPipelineFixture(t, &fakeAI{})
	sessionID := f.addSession(t, 1, calmTranscript)

	// Seed the plan row and hold its lock, standing in for a
	// concurrent run.
	ctx := context.Background()
	planRow := &types.TreatmentPlan{ID: uuid.New(), ClientID: f.clientID}
	if _, err := f.planRepo.Create(ctx, nil, []*types.TreatmentPlan{planRow}); err != nil {
		t.Fatalf("create plan: %v", err)
	}
	locked, err := f.planRepo.TryLock(ctx, nil, planRow.ID)
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}

	_, err = f.pipeline.RunPipeline(ctx, PipelineInput{SessionID: sessionID}, nil)
	if !apperr.IsConflict(err) {
		t.Fatalf("expected conflict error, got %v", err)
	}

	// After the holder releases, the next request goes through.
	if err := f.planRepo.Unlock(ctx, nil, planRow.ID); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	result, err := f.pipeline.RunPipeline(ctx, PipelineInput{SessionID: sessionID}, nil)
	if err != nil {
		t.Fatalf("RunPipeline after unlock: %v", err)
	}
	if !result.Success {
		t.Errorf("expected success after unlock, got %+v", result)
	}
}

func TestPipelineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ai := &fakeAI{cancelOnCrisis: cancel}
	f := newPipelineFixture(t, ai)
	sessionID := f.addSession(t, 1, calmTranscript)

	result, err := f.pipeline.RunPipeline(ctx, PipelineInput{SessionID: sessionID}, nil)
	if result != nil || err != nil {
		t.Fatalf("cancellation must yield (nil, nil), got (%+v, %v)", result, err)
	}

	row, getErr := f.planRepo.GetByClientID(context.Background(), nil, f.clientID)
	if getErr != nil || row == nil {
		t.Fatalf("load plan: %v", getErr)
	}
	if row.CurrentVersion != 0 {
		t.Error("canceled run must not write a plan version")
	}
	if row.IsLocked {
		t.Error("plan still locked after cancellation")
	}
}

func TestPipelineStoredSeverityTracksRiskFactors(t *testing.T) {
	// A medium transcript assessment continues with a warning, but the
	// stored document's severity is the aggregate over its own risk
	// factors: none when extraction produced none.
	payload := validExtractionPayload()
	payload["risks"] = []any{}
	f := newPipelineFixture(t, &fakeAI{crisisSeverity: "medium", extraction: payload})
	sessionID := f.addSession(t, 1, calmTranscript)

	result, err := f.pipeline.RunPipeline(context.Background(), PipelineInput{SessionID: sessionID}, nil)
	if err != nil {
		t.Fatalf("RunPipeline: %v", err)
	}
	if !result.Success || result.CrisisDetected {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.CrisisSeverity != "medium" {
		t.Errorf("run CrisisSeverity = %q, want medium", result.CrisisSeverity)
	}
	if len(result.Warnings) == 0 {
		t.Error("medium assessment should record a warning")
	}

	row, err := f.planRepo.GetByClientID(context.Background(), nil, f.clientID)
	if err != nil || row == nil {
		t.Fatalf("load plan: %v", err)
	}
	var canonical plan.CanonicalPlan
	if err := json.Unmarshal(row.Canonical, &canonical); err != nil {
		t.Fatalf("unmarshal canonical: %v", err)
	}
	if len(canonical.RiskFactors) != 0 {
		t.Fatalf("risk factors = %d, want 0", len(canonical.RiskFactors))
	}
	if canonical.CrisisAssessment.Severity != crisis.SeverityNone {
		t.Errorf("stored severity = %s, want none with zero risk factors", canonical.CrisisAssessment.Severity)
	}
}

func TestPipelineMergesSecondSession(t *testing.T) {
	f := newPipelineFixture(t, &fakeAI{})
	first := f.addSession(t, 1, calmTranscript)
	second := f.addSession(t, 2, calmTranscript)

	ctx := context.Background()
	if _, err := f.pipeline.RunPipeline(ctx, PipelineInput{SessionID: first}, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	result, err := f.pipeline.RunPipeline(ctx, PipelineInput{SessionID: second}, nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.VersionNumber != 2 {
		t.Errorf("VersionNumber = %d, want 2", result.VersionNumber)
	}

	row, _ := f.planRepo.GetByClientID(ctx, nil, f.clientID)
	var canonical plan.CanonicalPlan
	if err := json.Unmarshal(row.Canonical, &canonical); err != nil {
		t.Fatalf("unmarshal canonical: %v", err)
	}
	// Same extraction content both times: items match by name and keep
	// their ids, so the second session unions provenance instead of
	// duplicating goals.
	if len(canonical.Goals) != 2 {
		t.Errorf("goals after merge = %d, want 2", len(canonical.Goals))
	}
	if len(canonical.Goals[0].SourceSessionIDs) != 2 {
		t.Errorf("provenance = %v, want both sessions", canonical.Goals[0].SourceSessionIDs)
	}
	if len(canonical.SessionReferences) != 2 {
		t.Errorf("session references = %d, want 2", len(canonical.SessionReferences))
	}
}

func TestVersionHistoryAndRestore(t *testing.T) {
	f := newPipelineFixture(t, &fakeAI{})
	first := f.addSession(t, 1, calmTranscript)
	second := f.addSession(t, 2, calmTranscript)
	ctx := context.Background()

	if _, err := f.pipeline.RunPipeline(ctx, PipelineInput{SessionID: first}, nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := f.pipeline.RunPipeline(ctx, PipelineInput{SessionID: second}, nil); err != nil {
		t.Fatalf("second run: %v", err)
	}

	row, _ := f.planRepo.GetByClientID(ctx, nil, f.clientID)

	versions, err := f.versions.ListVersions(ctx, row.ID)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	for i, v := range versions {
		if v.VersionNumber != i+1 {
			t.Fatalf("version numbering has gaps: %+v", versions)
		}
	}
	if versions[0].ChangeType != types.ChangeTypeInitial || versions[1].ChangeType != types.ChangeTypeSessionUpdate {
		t.Errorf("change types = %q, %q", versions[0].ChangeType, versions[1].ChangeType)
	}

	// Restore appends a new version; it never rewinds history.
	restored, err := f.versions.RestoreVersion(ctx, row.ID, 1, "test")
	if err != nil {
		t.Fatalf("RestoreVersion: %v", err)
	}
	if restored.VersionNumber != 3 {
		t.Errorf("restored version number = %d, want 3", restored.VersionNumber)
	}
	if restored.ChangeType != types.ChangeTypeRestore {
		t.Errorf("restored change type = %q", restored.ChangeType)
	}

	// The restored canonical matches version 1 exactly.
	diffRes, err := f.versions.DiffVersions(ctx, row.ID, 1, 3)
	if err != nil {
		t.Fatalf("DiffVersions: %v", err)
	}
	if diffRes.HasChanges {
		t.Errorf("restore should reproduce version 1 exactly, diff: %s", diffRes.Summary)
	}

	// Restoring a missing version touches nothing.
	if _, err := f.versions.RestoreVersion(ctx, row.ID, 99, "test"); !apperr.IsNotFound(err) {
		t.Errorf("expected not-found for missing version, got %v", err)
	}
}
