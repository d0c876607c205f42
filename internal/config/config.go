package config

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"fortuna/internal/log"
)

// Config keys. They double as environment variable names.
const (
	KeyPort                    = "PORT"
	KeyDataBackend             = "DATA_BACKEND"
	KeySQLiteDBPath            = "SQLITE_DB_PATH"
	KeyDatabaseURL             = "DATABASE_URL"
	KeyAMQPURL                 = "AMQP_URL"
	KeyAMQPExchange            = "AMQP_EXCHANGE"
	KeyAMQPQueue               = "AMQP_QUEUE"
	KeyGoogleSpreadsheetID     = "GOOGLE_SPREADSHEET_ID"
	KeyGoogleSheetName         = "GOOGLE_SHEET_NAME"
	KeySubscriptionInterval    = "SUBSCRIPTION_INTERVAL"
	KeySubscriptionForceBudget = "SUBSCRIPTION_FORCE_BUDGET"
	KeySubscriptionCatchUp     = "SUBSCRIPTION_CATCH_UP"
	KeyReportCacheTTL          = "REPORT_CACHE_TTL"
	KeyRateLimitPerMinute      = "RATE_LIMIT_PER_MINUTE"
	KeyLogLevel                = "LOG_LEVEL"
	KeyLogFormat               = "LOG_FORMAT"
)

// Backends accepted by DATA_BACKEND.
var Backends = []string{"memory", "sqlite", "postgres"}

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend  string
	SQLiteDBPath string
	DatabaseURL  string

	// AMQP. An empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets journal mirror
	GoogleSpreadsheetID string
	GoogleSheetName     string

	// Subscription worker
	SubscriptionInterval    time.Duration
	SubscriptionForceBudget bool
	SubscriptionCatchUp     bool

	// API
	ReportCacheTTL     time.Duration
	RateLimitPerMinute int

	// Logging
	LogLevel  string
	LogFormat string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, "8081")
	v.SetDefault(KeyDataBackend, "memory")
	v.SetDefault(KeySQLiteDBPath, "./data/fortuna.db")
	v.SetDefault(KeyDatabaseURL, "")
	v.SetDefault(KeyAMQPURL, "")
	v.SetDefault(KeyAMQPExchange, "fortuna")
	v.SetDefault(KeyAMQPQueue, "ledger_events")
	v.SetDefault(KeyGoogleSpreadsheetID, "")
	v.SetDefault(KeyGoogleSheetName, "Journal")
	v.SetDefault(KeySubscriptionInterval, time.Hour)
	v.SetDefault(KeySubscriptionForceBudget, false)
	v.SetDefault(KeySubscriptionCatchUp, true)
	v.SetDefault(KeyReportCacheTTL, 30*time.Second)
	v.SetDefault(KeyRateLimitPerMinute, 120)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
}

// New returns a viper instance with defaults that reads the environment.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return v
}

// Load reads the configuration from the environment.
func Load() *Config {
	return FromViper(New())
}

// LoadDotEnv loads .env style files into the environment. Missing files are
// ignored and variables already set win.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// FromViper builds a Config from v, which may carry flags or a config file
// on top of the environment.
func FromViper(v *viper.Viper) *Config {
	return &Config{
		Port:         v.GetString(KeyPort),
		DataBackend:  strings.ToLower(strings.TrimSpace(v.GetString(KeyDataBackend))),
		SQLiteDBPath: v.GetString(KeySQLiteDBPath),
		DatabaseURL:  v.GetString(KeyDatabaseURL),

		AMQPURL:      v.GetString(KeyAMQPURL),
		AMQPExchange: v.GetString(KeyAMQPExchange),
		AMQPQueue:    v.GetString(KeyAMQPQueue),

		GoogleSpreadsheetID: v.GetString(KeyGoogleSpreadsheetID),
		GoogleSheetName:     v.GetString(KeyGoogleSheetName),

		SubscriptionInterval:    v.GetDuration(KeySubscriptionInterval),
		SubscriptionForceBudget: v.GetBool(KeySubscriptionForceBudget),
		SubscriptionCatchUp:     v.GetBool(KeySubscriptionCatchUp),

		ReportCacheTTL:     v.GetDuration(KeyReportCacheTTL),
		RateLimitPerMinute: v.GetInt(KeyRateLimitPerMinute),

		LogLevel:  v.GetString(KeyLogLevel),
		LogFormat: v.GetString(KeyLogFormat),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate data backend
	if !slices.Contains(Backends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, Backends))
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			errors = append(errors, "DATABASE_URL is required when using postgres backend")
		} else if u, err := url.Parse(c.DatabaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL: %v", err))
		} else if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			errors = append(errors, fmt.Sprintf("invalid DATABASE_URL scheme '%s': must be 'postgres' or 'postgresql'", u.Scheme))
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.SubscriptionInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid subscription interval %v: must be at least 1 second", c.SubscriptionInterval))
	} else if c.SubscriptionInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid subscription interval %v: must be at most 24 hours", c.SubscriptionInterval))
	}

	if c.ReportCacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid report cache TTL %v: must not be negative", c.ReportCacheTTL))
	}
	if c.RateLimitPerMinute < 0 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must not be negative", c.RateLimitPerMinute))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// ValidateSheets checks the settings the sheets-sync worker needs on top of
// Validate.
func (c *Config) ValidateSheets() error {
	var errors []string
	if c.AMQPURL == "" {
		errors = append(errors, "AMQP_URL is required to consume ledger events")
	}
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the sheets mirror")
	}
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}
