// ABOUTME: Runtime configuration loaded from the environment and an optional .env file
// ABOUTME: Viper supplies defaults and env lookup; validator enforces ranges
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/harperreed/fitsync/db"
)

var validate = validator.New()

// Config is the full set of runtime settings.
type Config struct {
	HTTPAddress  string `validate:"required"`
	DBPath       string `validate:"required"`
	LedgerDSN    string `validate:"omitempty,startswith=postgres"`
	CalendarName string `validate:"required"`
	Units        string `validate:"oneof=metric imperial"`

	WhoopPollInterval  time.Duration `validate:"gte=1m"`
	WhoopLookback      time.Duration `validate:"gte=1h,lte=720h"`
	StravaBackfillDays int           `validate:"min=1,max=90"`

	StravaClientID           string
	StravaClientSecret       string
	StravaWebhookVerifyToken string
	WhoopClientID            string
	WhoopClientSecret        string
	GoogleClientID           string
	GoogleClientSecret       string
	AppBaseURL               string `validate:"required,url"`

	AdminUsername string
	AdminPassword string

	KafkaBrokers []string
	KafkaTopic   string `validate:"required"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=json text"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_address", ":8000")
	v.SetDefault("db_path", db.DefaultPath())
	v.SetDefault("ledger_dsn", "")
	v.SetDefault("sync_calendar_name", "Fitness Sync")
	v.SetDefault("units", "metric")
	v.SetDefault("whoop_poll_interval", "15m")
	v.SetDefault("whoop_lookback", "24h")
	v.SetDefault("strava_backfill_days", 7)
	v.SetDefault("strava_client_id", "")
	v.SetDefault("strava_client_secret", "")
	v.SetDefault("strava_webhook_verify_token", "")
	v.SetDefault("whoop_client_id", "")
	v.SetDefault("whoop_client_secret", "")
	v.SetDefault("google_client_id", "")
	v.SetDefault("google_client_secret", "")
	v.SetDefault("app_base_url", "http://localhost:8000")
	v.SetDefault("admin_username", "admin")
	v.SetDefault("admin_password", "")
	v.SetDefault("kafka_brokers", "")
	v.SetDefault("kafka_topic", "fitsync.ledger")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads envFile (if it exists) into the process environment without
// overriding variables already set, then resolves and validates settings.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		HTTPAddress:              v.GetString("http_address"),
		DBPath:                   v.GetString("db_path"),
		LedgerDSN:                v.GetString("ledger_dsn"),
		CalendarName:             v.GetString("sync_calendar_name"),
		Units:                    strings.ToLower(v.GetString("units")),
		WhoopPollInterval:        v.GetDuration("whoop_poll_interval"),
		WhoopLookback:            v.GetDuration("whoop_lookback"),
		StravaBackfillDays:       v.GetInt("strava_backfill_days"),
		StravaClientID:           v.GetString("strava_client_id"),
		StravaClientSecret:       v.GetString("strava_client_secret"),
		StravaWebhookVerifyToken: v.GetString("strava_webhook_verify_token"),
		WhoopClientID:            v.GetString("whoop_client_id"),
		WhoopClientSecret:        v.GetString("whoop_client_secret"),
		GoogleClientID:           v.GetString("google_client_id"),
		GoogleClientSecret:       v.GetString("google_client_secret"),
		AppBaseURL:               v.GetString("app_base_url"),
		AdminUsername:            v.GetString("admin_username"),
		AdminPassword:            v.GetString("admin_password"),
		KafkaBrokers:             splitList(v.GetString("kafka_brokers")),
		KafkaTopic:               v.GetString("kafka_topic"),
		LogLevel:                 strings.ToLower(v.GetString("log_level")),
		LogFormat:                strings.ToLower(v.GetString("log_format")),
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ValidateServe checks the settings only the HTTP service needs.
func (c *Config) ValidateServe() error {
	if c.StravaWebhookVerifyToken == "" {
		return errors.New("STRAVA_WEBHOOK_VERIFY_TOKEN is required to serve the webhook")
	}
	return nil
}

// UsesPostgres reports whether the ledger lives in Postgres instead of SQLite.
func (c *Config) UsesPostgres() bool {
	return c.LedgerDSN != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
