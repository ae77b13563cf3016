package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

type SubmitAnswerRequest struct {
	Answer string `json:"answer"`
}

type SubmitAnswersRequest struct {
	Answers []services.AnswerInput `json:"answers"`
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

// StartAttempt begins a new attempt for the calling student
// @Summary Start attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Quiz ID"
// @Success 201 {object} SuccessResponse{data=services.StartAttemptResult}
// @Failure 409 {object} ErrorResponse
// @Router /quizzes/{id}/attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	h.LogRequest(c, "Starting attempt", "quiz_id", quizID)

	result, err := h.attemptService.StartAttempt(c.Request.Context(), caller, quizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, "Attempt started", result)
}

// ResumeAttempt re-renders an open attempt in its original order
// @Router /attempts/{id}/resume [post]
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	attemptID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	result, err := h.attemptService.ResumeAttempt(c.Request.Context(), caller, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Attempt resumed", result)
}

// SubmitAnswer stores or replaces the answer to one question
// @Router /attempts/{id}/answers/{question_id} [put]
func (h *AttemptHandler) SubmitAnswer(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	attemptID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}
	questionID, ok := h.parseIDParam(c, "question_id")
	if !ok {
		return
	}

	var req SubmitAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	ack, err := h.attemptService.SubmitAnswer(c.Request.Context(), caller, attemptID, questionID, req.Answer)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer saved", ack)
}

// SubmitAnswers stores several answers at once; either all are stored or none
// @Router /attempts/{id}/answers [put]
func (h *AttemptHandler) SubmitAnswers(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	attemptID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SubmitAnswersRequest
	if !h.bindJSON(c, &req) {
		return
	}

	acks, err := h.attemptService.SubmitAnswers(c.Request.Context(), caller, attemptID, req.Answers)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answers saved", acks)
}

// CloseAttempt submits the attempt for grading. Repeated calls return the stored result.
// @Summary Close attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} SuccessResponse{data=services.AttemptResult}
// @Router /attempts/{id}/close [post]
func (h *AttemptHandler) CloseAttempt(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	attemptID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	h.LogRequest(c, "Closing attempt", "attempt_id", attemptID)

	result, err := h.attemptService.CloseAttempt(c.Request.Context(), caller, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	message := "Attempt submitted"
	if result.AlreadyClosed {
		message = "Attempt already submitted"
	}
	h.RespondWithSuccess(c, http.StatusOK, message, result)
}

func (h *AttemptHandler) GetAttemptStatus(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	attemptID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	status, err := h.attemptService.GetAttemptStatus(c.Request.Context(), caller, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Attempt status retrieved", status)
}
