package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/logger"
	"github.com/yungbote/carebridge-backend/internal/plan"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/types"
)

// Register levels for therapist-facing text.
const (
	RegisterProfessional   = "professional"
	RegisterConversational = "conversational"
	RegisterSimple         = "simple"
)

// TherapistPreferences shape the generated documents.
type TherapistPreferences struct {
	Modalities         []string           `json:"modalities,omitempty"`
	LanguageLevel      string             `json:"language_level,omitempty"`
	IncludeICD10       bool               `json:"include_icd10"`
	CustomInstructions string             `json:"custom_instructions,omitempty"`
	MaxReadingGrade    float64            `json:"max_reading_grade,omitempty"`
	MergeStrategy      plan.MergeStrategy `json:"merge_strategy,omitempty"`
}

// Normalize fills defaults and rejects unusable values.
func (p *TherapistPreferences) Normalize() error {
	switch p.LanguageLevel {
	case "":
		p.LanguageLevel = RegisterProfessional
	case RegisterProfessional, RegisterConversational, RegisterSimple:
	default:
		return apperr.Validation("language_level", fmt.Sprintf("unknown register %q", p.LanguageLevel))
	}
	switch p.MergeStrategy {
	case "":
		p.MergeStrategy = plan.MergeStrategyMerge
	case plan.MergeStrategyMerge, plan.MergeStrategyReplace, plan.MergeStrategyAppend:
	default:
		return apperr.Validation("merge_strategy", fmt.Sprintf("unknown strategy %q", p.MergeStrategy))
	}
	if p.MaxReadingGrade <= 0 {
		p.MaxReadingGrade = 8
	}
	return nil
}

// SessionContext is everything the pipeline needs to know about the
// session being processed.
type SessionContext struct {
	SessionID     uuid.UUID
	SessionNumber int
	Session       *types.Session
	ClientID      uuid.UUID
	ClientName    string
	Preferences   TherapistPreferences
}

// SessionMetadataService is the session/client metadata collaborator.
type SessionMetadataService interface {
	GetSessionContext(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*SessionContext, error)
}

type sessionMetadataService struct {
	db          *gorm.DB
	log         *logger.Logger
	sessionRepo repos.SessionRepo
	clientRepo  repos.ClientRepo
}

func NewSessionMetadataService(db *gorm.DB, baseLog *logger.Logger, sessionRepo repos.SessionRepo, clientRepo repos.ClientRepo) SessionMetadataService {
	return &sessionMetadataService{
		db:          db,
		log:         baseLog.With("service", "SessionMetadataService"),
		sessionRepo: sessionRepo,
		clientRepo:  clientRepo,
	}
}

func (s *sessionMetadataService) GetSessionContext(ctx context.Context, tx *gorm.DB, sessionID uuid.UUID) (*SessionContext, error) {
	sessions, err := s.sessionRepo.GetByIDs(ctx, tx, []uuid.UUID{sessionID})
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if len(sessions) == 0 || sessions[0] == nil {
		return nil, apperr.NotFound("session", sessionID.String())
	}
	session := sessions[0]

	clients, err := s.clientRepo.GetByIDs(ctx, tx, []uuid.UUID{session.ClientID})
	if err != nil {
		return nil, fmt.Errorf("load client: %w", err)
	}
	if len(clients) == 0 || clients[0] == nil {
		return nil, apperr.NotFound("client", session.ClientID.String())
	}
	client := clients[0]

	var prefs TherapistPreferences
	if len(client.Preferences) > 0 {
		if err := json.Unmarshal(client.Preferences, &prefs); err != nil {
			return nil, apperr.Validation("preferences", err.Error())
		}
	}
	if err := prefs.Normalize(); err != nil {
		return nil, err
	}

	return &SessionContext{
		SessionID:     session.ID,
		SessionNumber: session.SessionNumber,
		Session:       session,
		ClientID:      client.ID,
		ClientName:    client.DisplayName,
		Preferences:   prefs,
	}, nil
}
