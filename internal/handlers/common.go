package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-engine/internal/services"
	"github.com/SAP-F-2025/quiz-engine/internal/utils"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// SuccessResponse represents a success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error codes returned alongside non-2xx responses
const (
	CodeValidationFailed        = "VALIDATION_FAILED"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeForbidden               = "FORBIDDEN"
	CodeNotFound                = "NOT_FOUND"
	CodeWindowClosed            = "WINDOW_CLOSED"
	CodeMaxAttemptsReached      = "MAX_ATTEMPTS_REACHED"
	CodeAttemptInProgress       = "ATTEMPT_IN_PROGRESS"
	CodeAttemptAlreadyClosed    = "ATTEMPT_ALREADY_CLOSED"
	CodeAttemptNotClosed        = "ATTEMPT_NOT_CLOSED"
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeDataIntegrity           = "DATA_INTEGRITY"
	CodeUnavailable             = "SERVICE_UNAVAILABLE"
	CodeInternal                = "INTERNAL_ERROR"
)

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides request logging and error mapping for all handlers
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) log(c *gin.Context) utils.Logger {
	return utils.GetLoggerFromContext(c, h.logger)
}

// LogRequest logs an incoming request with the caller attached
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	caller, _ := CallerFromContext(c)
	fields := append([]interface{}{
		"user_id", caller.StudentID,
		"role", caller.Role,
	}, additionalFields...)
	h.log(c).Debug(message, fields...)
}

// RespondWithSuccess writes a success envelope
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, message string, data interface{}) {
	c.JSON(statusCode, SuccessResponse{
		Message: message,
		Data:    data,
	})
}

// RespondWithError writes an error envelope and aborts the chain
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(statusCode, ErrorResponse{
		Message: message,
		Details: details,
		Code:    code,
	})
}

// handleServiceError maps engine errors onto HTTP statuses and codes
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	status, code := classifyError(err)

	var details interface{}
	var validationErrors services.ValidationErrors
	var inProgress *services.AttemptInProgressError
	switch {
	case errors.As(err, &validationErrors):
		details = validationErrors
	case errors.As(err, &inProgress):
		details = gin.H{"attempt_id": inProgress.AttemptID}
	}

	if status >= http.StatusInternalServerError {
		h.log(c).LogError(err, "Request failed", "status_code", status, "code", code)
		h.RespondWithError(c, status, code, http.StatusText(status), nil)
		return
	}
	h.RespondWithError(c, status, code, err.Error(), details)
}

func classifyError(err error) (int, string) {
	switch {
	case services.IsValidation(err):
		return http.StatusBadRequest, CodeValidationFailed
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized, CodeUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case services.IsNotFound(err):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, services.ErrAttemptInProgress):
		return http.StatusConflict, CodeAttemptInProgress
	case errors.Is(err, services.ErrWindowClosed):
		return http.StatusConflict, CodeWindowClosed
	case errors.Is(err, services.ErrMaxAttemptsReached):
		return http.StatusConflict, CodeMaxAttemptsReached
	case errors.Is(err, services.ErrAttemptAlreadyClosed):
		return http.StatusConflict, CodeAttemptAlreadyClosed
	case errors.Is(err, services.ErrAttemptNotClosed):
		return http.StatusConflict, CodeAttemptNotClosed
	case errors.Is(err, services.ErrInvalidStatusTransition):
		return http.StatusConflict, CodeInvalidStatusTransition
	case services.IsDataIntegrity(err):
		return http.StatusInternalServerError, CodeDataIntegrity
	case services.IsCollaboratorUnavailable(err):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (h *BaseHandler) parseIDParam(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid "+param, c.Param(param))
		return 0, false
	}
	return uint(id), true
}

// bindJSON decodes the body into req and reports a 400 on malformed input
func (h *BaseHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, CodeValidationFailed, "Invalid request payload", err.Error())
		return false
	}
	return true
}

// caller returns the authenticated caller or writes a 401
func (h *BaseHandler) caller(c *gin.Context) (services.CallerContext, bool) {
	caller, ok := CallerFromContext(c)
	if !ok {
		h.RespondWithError(c, http.StatusUnauthorized, CodeUnauthorized, "authentication required", nil)
		return services.CallerContext{}, false
	}
	return caller, true
}
