package api

import (
	"alcyxob/workout-planner/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// abortWithServiceError maps service error categories onto HTTP statuses.
// Unknown errors are logged and hidden behind a generic 500.
func abortWithServiceError(c *gin.Context, err error) {
	var planErr *service.PlanValidationError
	if errors.As(err, &planErr) {
		problems := make([]string, len(planErr.Problems))
		for i, p := range planErr.Problems {
			problems[i] = p.Error()
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid plan", "problems": problems})
		return
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		abortWithError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrAuthenticationFailed):
		abortWithError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrNotFound):
		abortWithError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		abortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrIllegalState):
		abortWithError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrExportUnavailable):
		abortWithError(c, http.StatusServiceUnavailable, err.Error())
	default:
		log.WithField("request_id", c.GetString(ContextRequestIDKey)).Errorf("unhandled error: %s", err)
		abortWithError(c, http.StatusInternalServerError, "An unexpected error occurred")
	}
}
