package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/carebridge-backend/internal/apperr"
	"github.com/yungbote/carebridge-backend/internal/plan"
	"github.com/yungbote/carebridge-backend/internal/repos"
	"github.com/yungbote/carebridge-backend/internal/services"
)

type PlanHandler struct {
	planRepo repos.TreatmentPlanRepo
	versions services.PlanVersionService
}

func NewPlanHandler(planRepo repos.TreatmentPlanRepo, versions services.PlanVersionService) *PlanHandler {
	return &PlanHandler{planRepo: planRepo, versions: versions}
}

// GET /api/clients/:id/plan
func (h *PlanHandler) GetByClient(c *gin.Context) {
	clientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	row, err := h.planRepo.GetByClientID(c.Request.Context(), nil, clientID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	if row == nil {
		RespondAppError(c, apperr.NotFound("treatment_plan", clientID.String()))
		return
	}
	RespondOK(c, gin.H{"plan": row})
}

// GET /api/plans/:id/versions
func (h *PlanHandler) ListVersions(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	versions, err := h.versions.ListVersions(c.Request.Context(), planID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"versions": versions})
}

// GET /api/plans/:id/versions/:number
func (h *PlanHandler) GetVersion(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	number, err := strconv.Atoi(c.Param("number"))
	if err != nil || number < 1 {
		RespondError(c, http.StatusBadRequest, "validation_error", apperr.Validation("number", "version number must be a positive integer"))
		return
	}
	version, err := h.versions.GetVersion(c.Request.Context(), planID, number)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": version})
}

// GET /api/plans/:id/diff?from=N&to=M
func (h *PlanHandler) DiffVersions(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	from, err1 := strconv.Atoi(c.Query("from"))
	to, err2 := strconv.Atoi(c.Query("to"))
	if err1 != nil || err2 != nil || from < 1 || to < 1 {
		RespondError(c, http.StatusBadRequest, "validation_error", apperr.Validation("from/to", "both version numbers are required"))
		return
	}
	result, err := h.versions.DiffVersions(c.Request.Context(), planID, from, to)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"diff": result})
}

type restoreRequest struct {
	Version   int    `json:"version" binding:"required"`
	CreatedBy string `json:"created_by"`
}

// POST /api/plans/:id/restore
func (h *PlanHandler) RestoreVersion(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "api"
	}
	version, err := h.versions.RestoreVersion(c.Request.Context(), planID, req.Version, req.CreatedBy)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": version})
}

type manualEditRequest struct {
	Canonical     *plan.CanonicalPlan        `json:"canonical" binding:"required"`
	TherapistView *services.TherapistViewDoc `json:"therapist_view"`
	ClientView    *services.ClientViewDoc    `json:"client_view"`
	ChangeSummary string                     `json:"change_summary"`
	CreatedBy     string                     `json:"created_by"`
}

// POST /api/plans/:id/edit
func (h *PlanHandler) ManualEdit(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	var req manualEditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "validation_error", err)
		return
	}
	if req.CreatedBy == "" {
		req.CreatedBy = "api"
	}
	version, err := h.versions.ManualEdit(c.Request.Context(), planID, services.PlanDocuments{
		Canonical:     req.Canonical,
		TherapistView: req.TherapistView,
		ClientView:    req.ClientView,
	}, req.ChangeSummary, req.CreatedBy)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	RespondOK(c, gin.H{"version": version})
}
