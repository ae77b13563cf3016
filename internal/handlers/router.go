package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
)

type HandlerManager struct {
	serviceManager   services.ServiceManager
	auth             *AuthMiddleware
	quizHandler      *QuizHandler
	attemptHandler   *AttemptHandler
	gradingHandler   *GradingHandler
	schedulerHandler *SchedulerHandler
}

func NewHandlerManager(serviceManager services.ServiceManager, clock services.Clock, auth *AuthMiddleware, logger utils.Logger) *HandlerManager {
	return &HandlerManager{
		serviceManager:   serviceManager,
		auth:             auth,
		quizHandler:      NewQuizHandler(serviceManager.Quiz(), logger),
		attemptHandler:   NewAttemptHandler(serviceManager.Attempt(), logger),
		gradingHandler:   NewGradingHandler(serviceManager.Grading(), serviceManager.Report(), logger),
		schedulerHandler: NewSchedulerHandler(serviceManager.Scheduler(), clock, logger),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	router.GET("/health", hm.HealthCheck)

	v1 := router.Group("/api/v1")
	v1.Use(hm.auth.Handler())
	{
		quizzes := v1.Group("/quizzes")
		{
			quizzes.POST("", RequireRole(models.RoleInstructor), hm.quizHandler.CreateQuiz)
			quizzes.GET("/:id", hm.quizHandler.GetQuiz)
			quizzes.POST("/:id/publish", RequireRole(models.RoleInstructor), hm.quizHandler.PublishQuiz)
			quizzes.POST("/:id/activate", RequireRole(models.RoleInstructor), hm.quizHandler.ActivateQuiz)
			quizzes.POST("/:id/complete", RequireRole(models.RoleInstructor), hm.quizHandler.CompleteQuiz)

			quizzes.POST("/:id/attempts", hm.attemptHandler.StartAttempt)

			// Gradebook
			quizzes.GET("/:id/grades", hm.gradingHandler.GetGrades)
			quizzes.POST("/:id/grades/publish", hm.gradingHandler.PublishGrades)
			quizzes.GET("/:id/grades/export", hm.gradingHandler.ExportGrades)
		}

		attempts := v1.Group("/attempts")
		{
			attempts.GET("/:id", hm.attemptHandler.GetAttemptStatus)
			attempts.POST("/:id/resume", hm.attemptHandler.ResumeAttempt)
			attempts.PUT("/:id/answers", hm.attemptHandler.SubmitAnswers)
			attempts.PUT("/:id/answers/:question_id", hm.attemptHandler.SubmitAnswer)
			attempts.POST("/:id/close", hm.attemptHandler.CloseAttempt)
		}

		grading := v1.Group("/grading")
		{
			grading.POST("/answers/:answer_id", hm.gradingHandler.OverrideAnswer)
			grading.POST("/attempts/:attempt_id/regrade", hm.gradingHandler.RegradeAttempt)
		}

		admin := v1.Group("/admin", RequireRole(models.RoleAdmin))
		{
			admin.POST("/scheduler/scan", hm.schedulerHandler.RunScan)
		}
	}
}

func (hm *HandlerManager) HealthCheck(c *gin.Context) {
	if err := hm.serviceManager.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unhealthy",
			"service": "quiz-engine",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "quiz-engine",
	})
}
