package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Backends accepted in DATA_BACKEND.
var validBackends = []string{"airtable", "sheets", "memory", "sqlite"}

var validLogFormats = []string{"text", "json", "pretty"}

type Config struct {
	// HTTP Server
	Port      string
	AppEnv    string
	StaticDir string

	// Logging
	LogLevel  string
	LogFormat string

	// Backend selection
	DataBackend string
	CacheTTL    time.Duration

	// Airtable
	AirtableAPIKey      string
	AirtableBaseID      string
	AirtableViewID      string
	AirtableTable       string
	AirtableDetailTable string
	AirtableAPIURL      string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleViewSheetName      string
	GoogleDetailSheetName    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Local backends
	MemoryDataFile string
	SQLiteDBPath   string

	// Access
	SitePassword       string
	SitePasswordBcrypt string
	SessionSecret      string
	LoginRateLimit     int

	// Map
	MapboxToken string

	// Insights
	HomeCity          string
	Timezone          string
	SpendTypeFallback string
}

func Load() *Config {
	return &Config{
		Port:      getEnv("PORT", "8080"),
		AppEnv:    getEnv("APP_ENV", "production"),
		StaticDir: getEnv("STATIC_DIR", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),

		DataBackend: getEnv("DATA_BACKEND", "airtable"),
		CacheTTL:    getEnvDuration("CACHE_TTL", 60*time.Second),

		AirtableAPIKey:      getEnv("AIRTABLE_API_KEY", ""),
		AirtableBaseID:      getEnv("AIRTABLE_BASE_ID", ""),
		AirtableViewID:      getEnv("AIRTABLE_RESTAURANT_VIEW_ID", ""),
		AirtableTable:       getEnv("AIRTABLE_TABLE_NAME", "Tegevused"),
		AirtableDetailTable: getEnv("AIRTABLE_DETAIL_TABLE_NAME", "Restoran"),
		AirtableAPIURL:      getEnv("AIRTABLE_API_URL", "https://api.airtable.com/v0"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Tegevused"),
		GoogleViewSheetName:      getEnv("GOOGLE_VIEW_SHEET_NAME", ""),
		GoogleDetailSheetName:    getEnv("GOOGLE_DETAIL_SHEET_NAME", "Restoran"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		MemoryDataFile: getEnv("MEMORY_DATA_FILE", "./data/records.json"),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/foodie.db"),

		SitePassword:       os.Getenv("SITE_PASSWORD"),
		SitePasswordBcrypt: os.Getenv("SITE_PASSWORD_BCRYPT"),
		SessionSecret:      os.Getenv("SESSION_SECRET"),
		LoginRateLimit:     getEnvInt("LOGIN_RATE_LIMIT", 10),

		MapboxToken: getEnv("MAPBOX_PUBLIC_TOKEN", ""),

		HomeCity:          getEnv("HOME_CITY", "Tallinn"),
		Timezone:          getEnv("TIMEZONE", "Europe/Tallinn"),
		SpendTypeFallback: getEnv("SPEND_TYPE_FALLBACK", "travel"),
	}
}

// IsDevelopment reports whether APP_ENV is "development". Cookies drop the
// Secure flag there so the site works over plain http on localhost.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.AppEnv, "development")
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// SlogLevel parses LogLevel, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Validate validates the configuration and returns an error if invalid.
// Missing secrets are not errors: the endpoints that need them answer 500
// with a descriptive message instead.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if !contains(validLogFormats, c.LogFormat) {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be one of %v", c.LogFormat, validLogFormats))
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.CacheTTL < 0 || c.CacheTTL > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be between 0 and 1 hour", c.CacheTTL))
	}

	if c.LoginRateLimit < 1 {
		errors = append(errors, fmt.Sprintf("invalid login rate limit %d: must be at least 1", c.LoginRateLimit))
	}

	if _, err := c.Location(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid timezone '%s': %v", c.Timezone, err))
	}

	switch c.SpendTypeFallback {
	case "travel", "ignore":
	default:
		errors = append(errors, fmt.Sprintf("invalid spend type fallback '%s': must be 'travel' or 'ignore'", c.SpendTypeFallback))
	}

	if c.SitePasswordBcrypt != "" {
		if _, err := bcrypt.Cost([]byte(c.SitePasswordBcrypt)); err != nil {
			errors = append(errors, fmt.Sprintf("invalid SITE_PASSWORD_BCRYPT: %v", err))
		}
	}

	switch c.DataBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}

	case "sheets":
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when using sheets backend")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}

	case "memory":
		if c.MemoryDataFile == "" {
			errors = append(errors, "memory data file cannot be empty when using memory backend")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
