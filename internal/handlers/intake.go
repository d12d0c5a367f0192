package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/services"
	"github.com/yungbote/carebridge-backend/internal/types"
)

// IntakeHandler covers the minimal client/session intake the pipeline
// needs. Full practice-management CRUD lives elsewhere.
type IntakeHandler struct {
	clientRepo  repos.ClientRepo
	sessionRepo repos.SessionRepo
}

func NewIntakeHandler(clientRepo repos.ClientRepo, sessionRepo repos.SessionRepo) *IntakeHandler {
	return &IntakeHandler{clientRepo: clientRepo, sessionRepo: sessionRepo}
}

type createClientRequest struct {
	DisplayName string                         `json:"display_name" binding:"required"`
	Preferences *services.TherapistPreferences `json:"preferences"`
}

// POST /api/clients
func (h *IntakeHandler) CreateClient(c *gin.Context) {
	var req createClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	row := &types.Client{
		ID:          uuid.New(),
		DisplayName: req.DisplayName,
	}
	if req.Preferences != nil {
		if err := req.Preferences.Normalize(); err != nil {
			RespondAppError(c, err)
			return
		}
		prefs, err := json.Marshal(req.Preferences)
		if err != nil {
			RespondAppError(c, err)
			return
		}
		row.Preferences = prefs
	}
	created, err := h.clientRepo.Create(c.Request.Context(), nil, []*types.Client{row})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"client": created[0]})
}

type createSessionRequest struct {
	SessionNumber int       `json:"session_number" binding:"required"`
	SessionDate   time.Time `json:"session_date"`
	Transcript    string    `json:"transcript" binding:"required"`
}

// POST /api/clients/:id/sessions
func (h *IntakeHandler) CreateSession(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	owners, err := h.clientRepo.GetByIDs(c.Request.Context(), nil, []uuid.UUID{clientID})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if len(owners) == 0 {
		RespondAppError(c, apperr.NotFound("client", clientID.String()))
		return
	}
	if req.SessionDate.IsZero() {
		req.SessionDate = time.Now()
	}
	row := &types.Session{
		ID:            uuid.New(),
		ClientID:      clientID,
		SessionNumber: req.SessionNumber,
		SessionDate:   req.SessionDate,
		Transcript:    req.Transcript,
		Status:        "recorded",
	}
	created, err := h.sessionRepo.Create(c.Request.Context(), nil, []*types.Session{row})
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": created[0]})
}

// GET /api/clients/:id/sessions
func (h *IntakeHandler) ListSessions(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	sessions, err := h.sessionRepo.GetByClientID(c.Request.Context(), nil, clientID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessions": sessions})
}
