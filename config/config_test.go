package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddress)
	assert.Equal(t, "Fitness Sync", cfg.CalendarName)
	assert.Equal(t, "metric", cfg.Units)
	assert.Equal(t, 15*time.Minute, cfg.WhoopPollInterval)
	assert.Equal(t, 24*time.Hour, cfg.WhoopLookback)
	assert.Equal(t, 7, cfg.StravaBackfillDays)
	assert.Equal(t, "fitsync.ledger", cfg.KafkaTopic)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.UsesPostgres())
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDRESS", ":9090")
	t.Setenv("UNITS", "Imperial")
	t.Setenv("WHOOP_POLL_INTERVAL", "30m")
	t.Setenv("STRAVA_BACKFILL_DAYS", "30")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("LEDGER_DSN", "postgres://fitsync@localhost/fitsync")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddress)
	assert.Equal(t, "imperial", cfg.Units)
	assert.Equal(t, 30*time.Minute, cfg.WhoopPollInterval)
	assert.Equal(t, 30, cfg.StravaBackfillDays)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.UsesPostgres())
}

func TestLoadReadsEnvFile(t *testing.T) {
	// Register cleanup first so the variable godotenv sets is restored.
	t.Setenv("SYNC_CALENDAR_NAME", "placeholder")
	require.NoError(t, os.Unsetenv("SYNC_CALENDAR_NAME"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("SYNC_CALENDAR_NAME=Training Log\n"), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Training Log", cfg.CalendarName)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"units", "UNITS", "furlongs"},
		{"poll interval too short", "WHOOP_POLL_INTERVAL", "10s"},
		{"backfill too long", "STRAVA_BACKFILL_DAYS", "365"},
		{"backfill zero", "STRAVA_BACKFILL_DAYS", "0"},
		{"dsn scheme", "LEDGER_DSN", "mysql://localhost/fitsync"},
		{"log level", "LOG_LEVEL", "chatty"},
		{"base url", "APP_BASE_URL", "not a url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}

func TestValidateServeRequiresVerifyToken(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateServe())

	cfg.StravaWebhookVerifyToken = "s3cret"
	assert.NoError(t, cfg.ValidateServe())
}
