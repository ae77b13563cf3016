package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
)

type QuizHandler struct {
	BaseHandler
	quizService services.QuizService
}

func NewQuizHandler(quizService services.QuizService, logger utils.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		quizService: quizService,
	}
}

// CreateQuiz creates a DRAFT quiz with its questions
// @Summary Create quiz
// @Tags quizzes
// @Accept json
// @Produce json
// @Param quiz body services.CreateQuizRequest true "Quiz data"
// @Success 201 {object} SuccessResponse{data=services.QuizDetail}
// @Failure 400 {object} ErrorResponse
// @Router /quizzes [post]
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}

	var req services.CreateQuizRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Creating quiz", "subject_id", req.SubjectID, "questions", len(req.Questions))

	detail, err := h.quizService.CreateQuiz(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Quiz created", detail)
}

// GetQuiz returns the quiz; questions and answer keys are only included for quiz managers
// @Router /quizzes/{id} [get]
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	detail, err := h.quizService.GetQuiz(c.Request.Context(), caller, quizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Quiz retrieved", detail)
}

// PublishQuiz schedules a DRAFT quiz or opens it immediately
// @Router /quizzes/{id}/publish [post]
func (h *QuizHandler) PublishQuiz(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req services.PublishRequest
	if !h.bindJSON(c, &req) {
		return
	}

	quiz, err := h.quizService.Publish(c.Request.Context(), caller, quizID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Quiz published", quiz)
}

func (h *QuizHandler) ActivateQuiz(c *gin.Context) {
	h.changeStatus(c, "Quiz activated", h.quizService.Activate)
}

func (h *QuizHandler) CompleteQuiz(c *gin.Context) {
	h.changeStatus(c, "Quiz completed", h.quizService.Complete)
}

func (h *QuizHandler) changeStatus(c *gin.Context, message string, apply func(ctx context.Context, caller services.CallerContext, quizID uint) (*models.Quiz, error)) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	quiz, err := apply(c.Request.Context(), caller, quizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, message, quiz)
}
