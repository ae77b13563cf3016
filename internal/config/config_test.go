package config

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/quiz-engine/internal/events"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORAGE", "memory")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, models.GradingPassFail, cfg.GradeScheme)
	assert.Equal(t, time.Minute, cfg.Scheduler.ScanInterval)
	assert.Equal(t, 24*time.Hour, cfg.Scheduler.DayAheadHorizon)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.ImminentHorizon)
	assert.Equal(t, 5*time.Second, cfg.CollaboratorTimeout)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("STORAGE", "memory")
	t.Setenv("GRADE_SCHEME", "LETTER")
	t.Setenv("SCAN_INTERVAL", "30s")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("EVENTS_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, models.GradingLetter, cfg.GradeScheme)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.ScanInterval)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad duration", "SCAN_INTERVAL", "soon"},
		{"bad storage", "STORAGE", "mongo"},
		{"bad scheme", "GRADE_SCHEME", "curve"},
		{"casdoor without endpoint", "ENROLLMENT_SOURCE", "casdoor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STORAGE", "memory")
			t.Setenv(tt.key, tt.val)
			_, err := LoadConfig()
			assert.Error(t, err)
		})
	}
}

func TestEventConfig_CreateEventPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	disabled := EventConfig{Enabled: false}
	publisher, err := disabled.CreateEventPublisher(logger)
	require.NoError(t, err)
	assert.IsType(t, &events.MockEventPublisher{}, publisher)

	inProcess := EventConfig{Enabled: true, Publisher: "gochannel", NotificationTopic: "n"}
	publisher, err = inProcess.CreateEventPublisher(logger)
	require.NoError(t, err)
	assert.IsType(t, &events.WatermillEventPublisher{}, publisher)
	assert.NoError(t, publisher.Close())

	brokers := EventConfig{KafkaBrokers: "a:9092, b:9092,"}
	assert.Equal(t, []string{"a:9092", "b:9092"}, brokers.GetKafkaBrokers())
}
