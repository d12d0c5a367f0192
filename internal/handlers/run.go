package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/carebridge-backend/internal/services"
)

type RunHandler struct {
	runs services.PlanRunService
}

func NewRunHandler(runs services.PlanRunService) *RunHandler {
	return &RunHandler{runs: runs}
}

type enqueueRequest struct {
	CreatedBy string `json:"created_by"`
}

// POST /api/sessions/:id/generate
func (h *RunHandler) Generate(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	var req enqueueRequest
	_ = c.ShouldBindJSON(&req)
	if req.CreatedBy == "" {
		req.CreatedBy = "api"
	}
	run, err := h.runs.Enqueue(c.Request.Context(), sessionID, req.CreatedBy)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run": run})
}

// GET /api/runs/:id
func (h *RunHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	run, err := h.runs.GetRun(c.Request.Context(), runID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"run": run})
}

// GET /api/sessions/:id/run
func (h *RunHandler) GetLatestForSession(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	run, err := h.runs.GetLatestForSession(c.Request.Context(), sessionID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"run": run})
}

// POST /api/runs/:id/cancel
func (h *RunHandler) Cancel(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if err := h.runs.Cancel(c.Request.Context(), runID); err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"canceled": true})
}
