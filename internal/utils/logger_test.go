package utils

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo, true)
	logger.Debug("hidden")
	logger.Info("visible", "quiz_id", 7)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["msg"])
	assert.Equal(t, float64(7), lines[0]["quiz_id"])

	buf.Reset()
	NewLogger(&buf, slog.LevelDebug, false).Debug("text output")
	assert.Contains(t, buf.String(), "msg=\"text output\"")
}

func TestSlogLogger_LogRequestLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(NewLogger(&buf, slog.LevelDebug, true))

	logger.LogRequest("GET", "/a", 200, "1ms")
	logger.LogRequest("GET", "/b", 404, "1ms")
	logger.LogRequest("GET", "/c", 503, "1ms")
	logger.LogError(errors.New("boom"), "failed", "attempt_id", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "ERROR", lines[2]["level"])
	assert.Equal(t, "boom", lines[3]["error"])
	assert.Equal(t, float64(3), lines[3]["attempt_id"])
}

func TestMiddleware_RequestScopedLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	base := NewSlogLogger(NewLogger(&buf, slog.LevelInfo, true))

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(RequestIDContextKey, "req-1")
		c.Next()
	})
	router.Use(ContextLogger(base), LoggerMiddleware(base))
	router.GET("/quizzes", func(c *gin.Context) {
		GetLoggerFromContext(c, base).Info("handling")
		c.Status(http.StatusTeapot)
	})
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/quizzes", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "handling", lines[0]["msg"])
	assert.Equal(t, "req-1", lines[0]["request_id"])
	assert.Equal(t, "HTTP Request", lines[1]["msg"])
	assert.Equal(t, float64(http.StatusTeapot), lines[1]["status_code"])
	assert.Equal(t, "req-1", lines[1]["request_id"])
}

func TestGetLoggerFromContext_Fallback(t *testing.T) {
	fallback := NewSlogLogger(slog.Default())
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Same(t, fallback, GetLoggerFromContext(c, fallback))
}
