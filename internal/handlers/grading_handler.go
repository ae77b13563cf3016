package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
	reportService  services.ReportService
}

func NewGradingHandler(gradingService services.GradingService, reportService services.ReportService, logger utils.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
		reportService:  reportService,
	}
}

// OverrideAnswer records a grader's marks for one answer
// @Summary Grade answer
// @Tags grading
// @Accept json
// @Produce json
// @Param answer_id path uint true "Answer ID"
// @Param grade body services.OverrideRequest true "Marks and feedback"
// @Success 200 {object} SuccessResponse{data=services.RegradeResult}
// @Failure 409 {object} ErrorResponse
// @Router /grading/answers/{answer_id} [post]
func (h *GradingHandler) OverrideAnswer(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	answerID, ok := h.parseIDParam(c, "answer_id")
	if !ok {
		return
	}

	var req services.OverrideRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Grading answer", "answer_id", answerID, "marks", req.Marks)

	result, err := h.gradingService.OverrideAnswer(c.Request.Context(), caller, answerID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer graded", result)
}

// RegradeAttempt re-scores an attempt against the current answer key
// @Router /grading/attempts/{attempt_id}/regrade [post]
func (h *GradingHandler) RegradeAttempt(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	attemptID, ok := h.parseIDParam(c, "attempt_id")
	if !ok {
		return
	}

	result, err := h.gradingService.RegradeAttempt(c.Request.Context(), caller, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Attempt regraded", result)
}

func (h *GradingHandler) GetGrades(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	report, err := h.gradingService.GetGrades(c.Request.Context(), caller, quizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Grades retrieved", report)
}

func (h *GradingHandler) PublishGrades(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	count, err := h.gradingService.PublishGrades(c.Request.Context(), caller, quizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Grades published", gin.H{"published": count})
}

// ExportGrades streams the gradebook as an xlsx attachment
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /quizzes/{id}/grades/export [get]
func (h *GradingHandler) ExportGrades(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	quizID, ok := h.parseIDParam(c, "id")
	if !ok {
		return
	}

	data, err := h.reportService.ExportGrades(c.Request.Context(), caller, quizID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=quiz_%d_grades.xlsx", quizID))
	c.Data(http.StatusOK, xlsxContentType, data)
}
