package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/sse"
	"github.com/yungbote/carebridge-backend/internal/types"
)

func newRunFixture(t *testing.T) (*pipelineFixture, PlanRunService) {
	t.Helper()
	f := newPipelineFixture(t, &fakeAI{})
	log := testLogger(t)
	runRepo := repos.NewPlanGenerationRunRepo(f.db, log)
	clientRepo := repos.NewClientRepo(f.db, log)
	sessionRepo := repos.NewSessionRepo(f.db, log)
	metadata := NewSessionMetadataService(f.db, log, sessionRepo, clientRepo)
	hub := sse.NewSSEHub(log)
	runs := NewPlanRunService(log, runRepo, metadata, f.pipeline, hub)
	return f, runs
}

func TestEnqueueDeduplicatesActiveRuns(t *testing.T) {
	f, runs := newRunFixture(t)
	sessionID := f.addSession(t, 1, calmTranscript)
	ctx := context.Background()

	first, err := runs.Enqueue(ctx, sessionID, "test")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if first.Status != types.RunStatusQueued {
		t.Fatalf("status = %q, want queued", first.Status)
	}

	second, err := runs.Enqueue(ctx, sessionID, "test")
	if err != nil {
		t.Fatalf("second Enqueue: %v", err)
	}
	if second.ID != first.ID {
		t.Error("a queued session must not get a second run")
	}
}

func TestEnqueueUnknownSession(t *testing.T) {
	_, runs := newRunFixture(t)
	_, err := runs.Enqueue(context.Background(), uuid.New(), "test")
	if !apperr.IsNotFound(err) {
		t.Errorf("expected not-found, got %v", err)
	}
}

func TestCancelQueuedRun(t *testing.T) {
	f, runs := newRunFixture(t)
	sessionID := f.addSession(t, 1, calmTranscript)
	ctx := context.Background()

	run, err := runs.Enqueue(ctx, sessionID, "test")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if err := runs.Cancel(ctx, run.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}

	got, err := runs.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != types.RunStatusCanceled {
		t.Errorf("status = %q, want canceled", got.Status)
	}

	// A finished run cannot be canceled again.
	if err := runs.Cancel(ctx, run.ID); !apperr.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
