package api

import (
	"alcyxob/workout-planner/internal/metrics"
	"alcyxob/workout-planner/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP layer depends on.
type Services struct {
	Auth     service.AuthService
	Plans    service.PlanService
	Schedule service.ScheduleService
	Sessions service.SessionService
	Progress service.ProgressService
	Export   service.ExportService
}

// NewRouter builds a gin engine with the request middleware chain and every route.
func NewRouter(services Services, m *metrics.Manager) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), PanicRecovery(m), AccessLog(), RequestMetrics(m))
	SetupRoutes(router, services)
	return router
}

func SetupRoutes(router *gin.Engine, services Services) {
	authHandler := NewAuthHandler(services.Auth)
	planHandler := NewPlanHandler(services.Plans, services.Schedule)
	sessionHandler := NewSessionHandler(services.Sessions)
	progressHandler := NewProgressHandler(services.Progress, services.Export)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(AuthMiddleware(services.Auth))
	{
		protected.GET("/me", func(c *gin.Context) {
			userID, ok := requestUser(c)
			if !ok {
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userID.Hex()})
		})

		// --- Plans and their schedule ---
		planGroup := protected.Group("/plans")
		{
			planGroup.POST("", planHandler.CreatePlan)
			planGroup.GET("", planHandler.GetPlans)
			planGroup.GET("/:planId", planHandler.GetPlan)
			planGroup.PUT("/:planId", planHandler.UpdatePlan)
			planGroup.PUT("/:planId/status", planHandler.SetPlanStatus)
			planGroup.POST("/:planId/materialize", planHandler.Materialize)
			planGroup.GET("/:planId/schedule", planHandler.GetSchedule)
			planGroup.GET("/:planId/today", planHandler.GetToday)

			planGroup.POST("/:planId/sessions", sessionHandler.StartSession)

			planGroup.GET("/:planId/progress", progressHandler.GetProgress)
			planGroup.POST("/:planId/progress/export", progressHandler.ExportProgress)
		}

		// --- Sessions ---
		sessionGroup := protected.Group("/sessions/:sessionId")
		{
			sessionGroup.GET("", sessionHandler.GetSession)
			sessionGroup.PUT("/exercises/:order", sessionHandler.RecordExerciseOutcome)
			sessionGroup.PUT("/exercises/:order/feedback", sessionHandler.RecordFeedback)
			sessionGroup.PUT("/warmup", sessionHandler.RecordWarmup)
			sessionGroup.PUT("/complete", sessionHandler.CompleteSession)
			sessionGroup.PUT("/cancel", sessionHandler.CancelSession)
		}
	}
}
