package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/diff"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/plan"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/types"
)

// PlanDocuments bundles the three documents that a version snapshots.
type PlanDocuments struct {
	Canonical     *plan.CanonicalPlan
	TherapistView *TherapistViewDoc
	ClientView    *ClientViewDoc
}

// PlanVersionService owns version numbering and history. Version rows
// are append-only; restore writes a NEW version rather than rewinding.
type PlanVersionService interface {
	// CreateVersion snapshots docs as the next version and moves the
	// live plan row to it. The caller must hold the plan lock.
	CreateVersion(ctx context.Context, tx *gorm.DB, planID uuid.UUID, docs PlanDocuments, changeType, changeSummary, createdBy string, sessionID *uuid.UUID) (*types.PlanVersion, error)

	ListVersions(ctx context.Context, planID uuid.UUID) ([]*types.PlanVersion, error)
	GetVersion(ctx context.Context, planID uuid.UUID, versionNumber int) (*types.PlanVersion, error)

	// RestoreVersion copies a historical version's documents back into
	// the live plan as a new version. It acquires the plan lock itself.
	RestoreVersion(ctx context.Context, planID uuid.UUID, targetVersion int, createdBy string) (*types.PlanVersion, error)

	// DiffVersions compares the canonical documents of two versions.
	DiffVersions(ctx context.Context, planID uuid.UUID, fromVersion, toVersion int) (diff.Result, error)

	// ManualEdit writes therapist-authored documents as a manual_edit
	// version. Edited views become authoritative until the next
	// generation.
	ManualEdit(ctx context.Context, planID uuid.UUID, docs PlanDocuments, changeSummary, createdBy string) (*types.PlanVersion, error)
}

type planVersionService struct {
	db       *gorm.DB
	log      *logger.Logger
	planRepo repos.TreatmentPlanRepo
	verRepo  repos.PlanVersionRepo
}

func NewPlanVersionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	planRepo repos.TreatmentPlanRepo,
	verRepo repos.PlanVersionRepo,
) PlanVersionService {
	return &planVersionService{
		db:       db,
		log:      baseLog.With("service", "PlanVersionService"),
		planRepo: planRepo,
		verRepo:  verRepo,
	}
}

func (s *planVersionService) CreateVersion(ctx context.Context, tx *gorm.DB, planID uuid.UUID, docs PlanDocuments, changeType, changeSummary, createdBy string, sessionID *uuid.UUID) (*types.PlanVersion, error) {
	if docs.Canonical == nil {
		return nil, apperr.Validation("canonical", "version must snapshot a canonical document")
	}
	canonicalJSON, therapistJSON, clientJSON, err := marshalDocuments(docs)
	if err != nil {
		return nil, err
	}

	var created *types.PlanVersion
	run := func(tx *gorm.DB) error {
		latest, err := s.verRepo.GetLatestVersionNumber(ctx, tx, planID)
		if err != nil {
			return err
		}
		next := latest + 1

		version := &types.PlanVersion{
			ID:            uuid.New(),
			PlanID:        planID,
			VersionNumber: next,
			ChangeType:    changeType,
			ChangeSummary: changeSummary,
			CreatedBy:     createdBy,
			SessionID:     sessionID,
			Canonical:     canonicalJSON,
			TherapistView: therapistJSON,
			ClientView:    clientJSON,
		}
		if _, err := s.verRepo.Create(ctx, tx, []*types.PlanVersion{version}); err != nil {
			return err
		}
		if err := s.planRepo.UpdateFields(ctx, tx, planID, map[string]interface{}{
			"current_version": next,
			"canonical":       canonicalJSON,
			"therapist_view":  therapistJSON,
			"client_view":     clientJSON,
		}); err != nil {
			return err
		}
		created = version
		return nil
	}

	if tx != nil {
		err = run(tx)
	} else {
		err = s.db.WithContext(ctx).Transaction(run)
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("Created plan version",
		"plan_id", planID.String(),
		"version", created.VersionNumber,
		"change_type", changeType,
	)
	return created, nil
}

func (s *planVersionService) ListVersions(ctx context.Context, planID uuid.UUID) ([]*types.PlanVersion, error) {
	return s.verRepo.GetByPlanID(ctx, nil, planID)
}

func (s *planVersionService) GetVersion(ctx context.Context, planID uuid.UUID, versionNumber int) (*types.PlanVersion, error) {
	v, err := s.verRepo.GetByPlanIDAndNumber(ctx, nil, planID, versionNumber)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, apperr.NotFound("plan_version", fmt.Sprintf("%s@%d", planID, versionNumber))
	}
	return v, nil
}

func (s *planVersionService) RestoreVersion(ctx context.Context, planID uuid.UUID, targetVersion int, createdBy string) (*types.PlanVersion, error) {
	// Target existence is validated before anything is written so a
	// bad restore cannot touch the live plan.
	target, err := s.GetVersion(ctx, planID, targetVersion)
	if err != nil {
		return nil, err
	}

	locked, err := s.planRepo.TryLock(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, apperr.Conflict("treatment_plan", planID.String())
	}
	defer func() {
		if err := s.planRepo.Unlock(context.WithoutCancel(ctx), nil, planID); err != nil {
			s.log.Error("Failed to unlock plan after restore", "plan_id", planID.String(), "error", err)
		}
	}()

	docs, err := unmarshalDocuments(target.Canonical, target.TherapistView, target.ClientView)
	if err != nil {
		return nil, err
	}
	summary := fmt.Sprintf("Restored from version %d", targetVersion)
	return s.CreateVersion(ctx, nil, planID, docs, types.ChangeTypeRestore, summary, createdBy, nil)
}

func (s *planVersionService) DiffVersions(ctx context.Context, planID uuid.UUID, fromVersion, toVersion int) (diff.Result, error) {
	from, err := s.GetVersion(ctx, planID, fromVersion)
	if err != nil {
		return diff.Result{}, err
	}
	to, err := s.GetVersion(ctx, planID, toVersion)
	if err != nil {
		return diff.Result{}, err
	}
	var oldDoc, newDoc plan.CanonicalPlan
	if err := json.Unmarshal(from.Canonical, &oldDoc); err != nil {
		return diff.Result{}, err
	}
	if err := json.Unmarshal(to.Canonical, &newDoc); err != nil {
		return diff.Result{}, err
	}
	return diff.Compare(&oldDoc, &newDoc)
}

func (s *planVersionService) ManualEdit(ctx context.Context, planID uuid.UUID, docs PlanDocuments, changeSummary, createdBy string) (*types.PlanVersion, error) {
	if docs.Canonical == nil {
		return nil, apperr.Validation("canonical", "manual edit must include the canonical document")
	}
	locked, err := s.planRepo.TryLock(ctx, nil, planID)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, apperr.Conflict("treatment_plan", planID.String())
	}
	defer func() {
		if err := s.planRepo.Unlock(context.WithoutCancel(ctx), nil, planID); err != nil {
			s.log.Error("Failed to unlock plan after manual edit", "plan_id", planID.String(), "error", err)
		}
	}()

	if changeSummary == "" {
		changeSummary = "Manual edit"
	}
	return s.CreateVersion(ctx, nil, planID, docs, types.ChangeTypeManualEdit, changeSummary, createdBy, nil)
}

func marshalDocuments(docs PlanDocuments) (canonical, therapist, client datatypes.JSON, err error) {
	canonical, err = json.Marshal(docs.Canonical)
	if err != nil {
		return nil, nil, nil, err
	}
	if docs.TherapistView != nil {
		therapist, err = json.Marshal(docs.TherapistView)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if docs.ClientView != nil {
		client, err = json.Marshal(docs.ClientView)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return canonical, therapist, client, nil
}

func unmarshalDocuments(canonical, therapist, client datatypes.JSON) (PlanDocuments, error) {
	var docs PlanDocuments
	docs.Canonical = &plan.CanonicalPlan{}
	if err := json.Unmarshal(canonical, docs.Canonical); err != nil {
		return PlanDocuments{}, err
	}
	if len(therapist) > 0 {
		docs.TherapistView = &TherapistViewDoc{}
		if err := json.Unmarshal(therapist, docs.TherapistView); err != nil {
			return PlanDocuments{}, err
		}
	}
	if len(client) > 0 {
		docs.ClientView = &ClientViewDoc{}
		if err := json.Unmarshal(client, docs.ClientView); err != nil {
			return PlanDocuments{}, err
		}
	}
	return docs, nil
}
