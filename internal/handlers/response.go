package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/carebridge-backend/internal/apperr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

// RespondAppError maps the error taxonomy onto HTTP statuses.
func RespondAppError(c *gin.Context, err error) {
	switch {
	case apperr.IsValidation(err):
		RespondError(c, http.StatusBadRequest, "validation_error", err)
	case apperr.IsNotFound(err):
		RespondError(c, http.StatusNotFound, "not_found", err)
	case apperr.IsConflict(err):
		RespondError(c, http.StatusConflict, "conflict", err)
	case apperr.IsAI(err):
		RespondError(c, http.StatusBadGateway, "ai_error", err)
	default:
		RespondError(c, http.StatusInternalServerError, "internal_error", err)
	}
}
