package api

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PlanHandler serves plan authoring and the schedule ledger.
type PlanHandler struct {
	planService     service.PlanService
	scheduleService service.ScheduleService
}

func NewPlanHandler(planService service.PlanService, scheduleService service.ScheduleService) *PlanHandler {
	return &PlanHandler{planService: planService, scheduleService: scheduleService}
}

// --- DTOs ---

type CreatePlanRequest struct {
	Name      string        `json:"name" binding:"required"`
	StartDate string        `json:"startDate" binding:"required"`
	Timezone  string        `json:"timezone"`
	Weeks     []domain.Week `json:"weeks" binding:"required"`
}

// UpdatePlanRequest leaves absent fields untouched.
type UpdatePlanRequest struct {
	Name      *string       `json:"name"`
	StartDate *string       `json:"startDate"`
	Weeks     []domain.Week `json:"weeks"`
}

type SetPlanStatusRequest struct {
	Status domain.PlanStatus `json:"status" binding:"required"`
}

// PlanResponse carries the plan and any day tags the ledger had to ignore.
type PlanResponse struct {
	Plan     *domain.Plan            `json:"plan"`
	Warnings []service.LedgerWarning `json:"warnings"`
}

func newPlanResponse(plan *domain.Plan, warnings []service.LedgerWarning) PlanResponse {
	if warnings == nil {
		warnings = []service.LedgerWarning{}
	}
	return PlanResponse{Plan: plan, Warnings: warnings}
}

// pathObjectID parses an ObjectID path parameter, aborting with 400 when it is malformed.
func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid "+name+" format in URL path.")
		return primitive.NilObjectID, false
	}
	return id, true
}

// requestUser resolves the authenticated user id, aborting with 401 when it is missing.
func requestUser(c *gin.Context) (primitive.ObjectID, bool) {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		abortWithError(c, http.StatusUnauthorized, "Unable to identify user.")
		return primitive.NilObjectID, false
	}
	return userID, true
}

// requestUserAndPlan is the common prologue of every /plans/:planId route.
func requestUserAndPlan(c *gin.Context) (primitive.ObjectID, primitive.ObjectID, bool) {
	userID, ok := requestUser(c)
	if !ok {
		return userID, primitive.NilObjectID, false
	}
	planID, ok := pathObjectID(c, "planId")
	return userID, planID, ok
}

// --- Handler Methods ---

// CreatePlan godoc
// @Summary Create a training plan
// @Description Stores a draft plan and materializes its schedule for preview.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param plan body CreatePlanRequest true "Plan"
// @Success 201 {object} PlanResponse
// @Failure 400 {object} gin.H "Invalid plan"
// @Router /plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	plan, warnings, err := h.planService.Create(c.Request.Context(), userID, service.PlanInput{
		Name:      req.Name,
		StartDate: req.StartDate,
		Timezone:  req.Timezone,
		Weeks:     req.Weeks,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newPlanResponse(plan, warnings))
}

// GetPlans godoc
// @Summary List my plans
// @Tags Plans
// @Produce json
// @Security BearerAuth
// @Success 200 {array} domain.Plan
// @Router /plans [get]
func (h *PlanHandler) GetPlans(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	plans, err := h.planService.List(c.Request.Context(), userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plans)
}

func (h *PlanHandler) GetPlan(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	plan, err := h.planService.Get(c.Request.Context(), userID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// UpdatePlan godoc
// @Summary Edit a plan
// @Description Replaces the given fields and rebuilds the schedule. Started sessions are kept.
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param plan body UpdatePlanRequest true "Fields to replace"
// @Success 200 {object} PlanResponse
// @Failure 409 {object} gin.H "Plan is closed"
// @Router /plans/{planId} [put]
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	plan, warnings, err := h.planService.Update(c.Request.Context(), userID, planID, service.PlanUpdate{
		Name:      req.Name,
		StartDate: req.StartDate,
		Weeks:     req.Weeks,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPlanResponse(plan, warnings))
}

// SetPlanStatus godoc
// @Summary Activate, complete or cancel a plan
// @Tags Plans
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param status body SetPlanStatusRequest true "New status"
// @Success 200 {object} domain.Plan
// @Failure 409 {object} gin.H "Transition not allowed"
// @Router /plans/{planId}/status [put]
func (h *PlanHandler) SetPlanStatus(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	var req SetPlanStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	plan, err := h.planService.SetStatus(c.Request.Context(), userID, planID, req.Status)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, plan)
}

// Materialize godoc
// @Summary Rebuild the schedule ledger of a plan
// @Tags Schedule
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Success 200 {array} domain.ScheduleDay
// @Router /plans/{planId}/materialize [post]
func (h *PlanHandler) Materialize(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	days, err := h.scheduleService.Materialize(c.Request.Context(), userID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

func (h *PlanHandler) GetSchedule(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	days, err := h.scheduleService.GetSchedule(c.Request.Context(), userID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, days)
}

// GetToday returns the ledger row of the current date in the plan's timezone.
func (h *PlanHandler) GetToday(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	day, err := h.scheduleService.Today(c.Request.Context(), userID, planID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, day)
}
