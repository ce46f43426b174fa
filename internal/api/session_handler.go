package api

import (
	"alcyxob/workout-planner/internal/domain"
	"alcyxob/workout-planner/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// SessionHandler serves the workout session lifecycle.
type SessionHandler struct {
	sessionService service.SessionService
}

func NewSessionHandler(sessionService service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// --- DTOs ---

type StartSessionRequest struct {
	WeekNumber int            `json:"weekNumber" binding:"required,min=1"`
	Day        domain.Weekday `json:"day" binding:"required"`
}

type ExerciseOutcomeRequest struct {
	Status           domain.ExerciseStatus `json:"status" binding:"required"`
	SeriesCompleted  int                   `json:"seriesCompleted" binding:"min=0"`
	TimeSpentSeconds int                   `json:"timeSpentSeconds" binding:"min=0"`
}

type FeedbackRequest struct {
	Sentiment domain.FeedbackSentiment `json:"sentiment"`
	Comment   string                   `json:"comment"`
}

type WarmupRequest struct {
	Seconds int `json:"seconds" binding:"required,min=1"`
}

type CompleteSessionRequest struct {
	TotalDurationSeconds int `json:"totalDurationSeconds" binding:"min=0"`
}

// pathExerciseOrder parses the :order path parameter.
func pathExerciseOrder(c *gin.Context) (int, bool) {
	order, err := strconv.Atoi(c.Param("order"))
	if err != nil || order < 0 {
		abortWithError(c, http.StatusBadRequest, "Invalid exercise order in URL path.")
		return 0, false
	}
	return order, true
}

// --- Handler Methods ---

// StartSession godoc
// @Summary Start or resume the session of a plan day
// @Description Returns the open session of the day, creating it on first use.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ObjectID Hex"
// @Param day body StartSessionRequest true "Plan day"
// @Success 201 {object} service.HydratedSession "Session created"
// @Success 200 {object} service.HydratedSession "Open session resumed"
// @Failure 400 {object} gin.H "Rest day"
// @Failure 409 {object} gin.H "Plan is not active"
// @Router /plans/{planId}/sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	userID, planID, ok := requestUserAndPlan(c)
	if !ok {
		return
	}
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	ctx := c.Request.Context()
	session, created, err := h.sessionService.ResolveOrCreate(ctx, userID, planID, req.WeekNumber, req.Day)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	hydrated, err := h.sessionService.Hydrate(ctx, userID, session.ID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, hydrated)
}

// GetSession godoc
// @Summary Hydrate a session
// @Description Returns the session with its exercises and the resume pointer.
// @Tags Sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ObjectID Hex"
// @Success 200 {object} service.HydratedSession
// @Router /sessions/{sessionId} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}
	hydrated, err := h.sessionService.Hydrate(c.Request.Context(), userID, sessionID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, hydrated)
}

// RecordExerciseOutcome godoc
// @Summary Record the outcome of one exercise
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ObjectID Hex"
// @Param order path int true "0-based exercise order"
// @Param outcome body ExerciseOutcomeRequest true "Outcome"
// @Success 200 {object} domain.ExerciseProgress
// @Failure 422 {object} gin.H "Session closed or transition not allowed"
// @Router /sessions/{sessionId}/exercises/{order} [put]
func (h *SessionHandler) RecordExerciseOutcome(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}
	order, ok := pathExerciseOrder(c)
	if !ok {
		return
	}
	var req ExerciseOutcomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	row, err := h.sessionService.RecordExerciseOutcome(c.Request.Context(), userID, sessionID, order, service.ExerciseOutcome{
		Status:           req.Status,
		SeriesCompleted:  req.SeriesCompleted,
		TimeSpentSeconds: req.TimeSpentSeconds,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *SessionHandler) RecordFeedback(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}
	order, ok := pathExerciseOrder(c)
	if !ok {
		return
	}
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	row, err := h.sessionService.RecordFeedback(c.Request.Context(), userID, sessionID, order, req.Sentiment, req.Comment)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

func (h *SessionHandler) RecordWarmup(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}
	var req WarmupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	session, err := h.sessionService.RecordWarmup(c.Request.Context(), userID, sessionID, req.Seconds)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// CompleteSession godoc
// @Summary Complete a session
// @Description Closes the session even if some exercises were not done. Repeating it is a no-op.
// @Tags Sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ObjectID Hex"
// @Param body body CompleteSessionRequest false "Total duration"
// @Success 200 {object} domain.WorkoutSession
// @Failure 422 {object} gin.H "Session was cancelled"
// @Router /sessions/{sessionId}/complete [put]
func (h *SessionHandler) CompleteSession(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}
	var req CompleteSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
			return
		}
	}

	session, err := h.sessionService.CompleteSession(c.Request.Context(), userID, sessionID, req.TotalDurationSeconds)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) CancelSession(c *gin.Context) {
	userID, ok := requestUser(c)
	if !ok {
		return
	}
	sessionID, ok := pathObjectID(c, "sessionId")
	if !ok {
		return
	}
	session, err := h.sessionService.CancelSession(c.Request.Context(), userID, sessionID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
