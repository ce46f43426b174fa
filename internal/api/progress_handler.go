package api

import (
	"alcyxob/workout-planner/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ProgressHandler serves plan statistics and their export.
type ProgressHandler struct {
	progressService service.ProgressService
	exportService   service.ExportService
}

func NewProgressHandler(progressService service.ProgressService, exportService service.ExportService) *ProgressHandler {
	return &ProgressHandler{progressService: progressService, exportService: exportService}
}

// GetProgress godoc
// @Summary Progress of a plan
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 200 {object} service.PlanProgress
// @Router /plans/{planId}/progress [get]
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	progress, err := h.progressService.PlanProgress(c.Request.Context(), userID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// ExportProgress godoc
// @Summary Export plan progress
// @Description Uploads a JSON report and returns a short-lived download URL.
// @Tags Progress
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 201 {object} service.ExportResult
// @Failure 503 {object} gin.H "Object storage not configured"
// @Router /plans/{planId}/progress/export [post]
func (h *ProgressHandler) ExportProgress(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	res, err := h.exportService.ExportProgress(c.Request.Context(), userID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}
