package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
)

type SchedulerHandler struct {
	BaseHandler
	scheduler *services.ReminderScheduler
	clock     services.Clock
}

type RunScanRequest struct {
	// Optional scan time, defaults to now
	At *time.Time `json:"at"`
}

func NewSchedulerHandler(scheduler *services.ReminderScheduler, clock services.Clock, logger utils.Logger) *SchedulerHandler {
	return &SchedulerHandler{
		BaseHandler: NewBaseHandler(logger),
		scheduler:   scheduler,
		clock:       clock,
	}
}

// RunScan triggers one reminder scan outside the ticker
// @Router /admin/scheduler/scan [post]
func (h *SchedulerHandler) RunScan(c *gin.Context) {
	if h.scheduler == nil {
		h.RespondWithError(c, http.StatusServiceUnavailable, CodeUnavailable, "reminder scheduler is not configured", nil)
		return
	}

	var req RunScanRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	now := h.clock.Now()
	if req.At != nil {
		now = req.At.UTC()
	}

	report, err := h.scheduler.RunScan(c.Request.Context(), now)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Scan completed", report)
}
