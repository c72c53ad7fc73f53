package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func validConfig() Config {
	return Config{
		Port:              "8080",
		LogLevel:          "info",
		LogFormat:         "text",
		DataBackend:       "airtable",
		CacheTTL:          60 * time.Second,
		LoginRateLimit:    10,
		Timezone:          "UTC",
		SpendTypeFallback: "travel",
	}
}

func TestConfig_Validate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	tests := []struct {
		name        string
		modify      func(*Config)
		wantErr     bool
		errorString string
	}{
		{
			name:    "valid airtable config without secrets",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid memory backend",
			modify: func(c *Config) {
				c.DataBackend = "memory"
				c.MemoryDataFile = "./data/records.json"
			},
			wantErr: false,
		},
		{
			name:    "valid bcrypt hash",
			modify:  func(c *Config) { c.SitePasswordBcrypt = string(hash) },
			wantErr: false,
		},
		{
			name:        "invalid port - not a number",
			modify:      func(c *Config) { c.Port = "invalid" },
			wantErr:     true,
			errorString: "invalid port 'invalid': must be a number",
		},
		{
			name:        "invalid port - out of range",
			modify:      func(c *Config) { c.Port = "70000" },
			wantErr:     true,
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid data backend",
			modify:      func(c *Config) { c.DataBackend = "postgres" },
			wantErr:     true,
			errorString: "invalid data backend 'postgres'",
		},
		{
			name:        "invalid log format",
			modify:      func(c *Config) { c.LogFormat = "xml" },
			wantErr:     true,
			errorString: "invalid log format 'xml'",
		},
		{
			name:        "invalid log level",
			modify:      func(c *Config) { c.LogLevel = "loud" },
			wantErr:     true,
			errorString: "invalid log level 'loud'",
		},
		{
			name:        "negative cache TTL",
			modify:      func(c *Config) { c.CacheTTL = -time.Second },
			wantErr:     true,
			errorString: "invalid cache TTL",
		},
		{
			name:        "zero login rate limit",
			modify:      func(c *Config) { c.LoginRateLimit = 0 },
			wantErr:     true,
			errorString: "invalid login rate limit 0: must be at least 1",
		},
		{
			name:        "unknown timezone",
			modify:      func(c *Config) { c.Timezone = "Mars/Olympus" },
			wantErr:     true,
			errorString: "invalid timezone 'Mars/Olympus'",
		},
		{
			name:        "unknown spend type fallback",
			modify:      func(c *Config) { c.SpendTypeFallback = "local" },
			wantErr:     true,
			errorString: "invalid spend type fallback 'local'",
		},
		{
			name:        "malformed bcrypt hash",
			modify:      func(c *Config) { c.SitePasswordBcrypt = "plaintext" },
			wantErr:     true,
			errorString: "invalid SITE_PASSWORD_BCRYPT",
		},
		{
			name: "sqlite backend with empty path",
			modify: func(c *Config) {
				c.DataBackend = "sqlite"
				c.SQLiteDBPath = ""
			},
			wantErr:     true,
			errorString: "SQLite database path cannot be empty when using sqlite backend",
		},
		{
			name: "sheets backend missing spreadsheet ID",
			modify: func(c *Config) {
				c.DataBackend = "sheets"
				c.GoogleSheetName = "Tegevused"
			},
			wantErr:     true,
			errorString: "Google Spreadsheet ID is required when using sheets backend",
		},
		{
			name: "sheets backend missing sheet name",
			modify: func(c *Config) {
				c.DataBackend = "sheets"
				c.GoogleSpreadsheetID = "123456789"
			},
			wantErr:     true,
			errorString: "Google Sheet name is required when using sheets backend",
		},
		{
			name: "sheets backend with non-existent credentials file",
			modify: func(c *Config) {
				c.DataBackend = "sheets"
				c.GoogleSpreadsheetID = "123456789"
				c.GoogleSheetName = "Tegevused"
				c.GoogleServiceAccountFile = "/non/existent/file.json"
			},
			wantErr:     true,
			errorString: "Google service account file does not exist",
		},
		{
			name: "memory backend with empty file",
			modify: func(c *Config) {
				c.DataBackend = "memory"
				c.MemoryDataFile = ""
			},
			wantErr:     true,
			errorString: "memory data file cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				if err == nil {
					t.Errorf("Config.Validate() error = nil, wantErr %v", tt.wantErr)
					return
				}
				if tt.errorString != "" && !strings.Contains(err.Error(), tt.errorString) {
					t.Errorf("Config.Validate() error = %v, want error containing %v", err.Error(), tt.errorString)
				}
			} else if err != nil {
				t.Errorf("Config.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig()
	cfg.Port = "0"
	cfg.DataBackend = "nope"
	cfg.SpendTypeFallback = "maybe"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error")
	}
	if got := strings.Count(err.Error(), "\n- "); got != 3 {
		t.Errorf("expected 3 aggregated problems, got %d in %q", got, err.Error())
	}
}

func TestConfig_ValidateCreatesSQLiteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	cfg := validConfig()
	cfg.DataBackend = "sqlite"
	cfg.SQLiteDBPath = filepath.Join(dir, "foodie.db")

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("expected database directory to be created: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		for _, key := range []string{"PORT", "DATA_BACKEND", "CACHE_TTL", "HOME_CITY", "TIMEZONE", "AIRTABLE_TABLE_NAME", "LOGIN_RATE_LIMIT", "SITE_PASSWORD"} {
			t.Setenv(key, "")
		}

		cfg := Load()

		if cfg.Port != "8080" {
			t.Errorf("Load() Port = %v, want 8080", cfg.Port)
		}
		if cfg.DataBackend != "airtable" {
			t.Errorf("Load() DataBackend = %v, want airtable", cfg.DataBackend)
		}
		if cfg.CacheTTL != 60*time.Second {
			t.Errorf("Load() CacheTTL = %v, want 60s", cfg.CacheTTL)
		}
		if cfg.HomeCity != "Tallinn" || cfg.Timezone != "Europe/Tallinn" {
			t.Errorf("Load() HomeCity/Timezone = %v/%v", cfg.HomeCity, cfg.Timezone)
		}
		if cfg.AirtableTable != "Tegevused" || cfg.AirtableDetailTable != "Restoran" {
			t.Errorf("Load() tables = %v/%v", cfg.AirtableTable, cfg.AirtableDetailTable)
		}
		if cfg.LoginRateLimit != 10 {
			t.Errorf("Load() LoginRateLimit = %v, want 10", cfg.LoginRateLimit)
		}
		if cfg.SitePassword != "" {
			t.Errorf("Load() SitePassword should be empty")
		}
	})

	t.Run("environment variables", func(t *testing.T) {
		t.Setenv("PORT", "9090")
		t.Setenv("DATA_BACKEND", "memory")
		t.Setenv("CACHE_TTL", "5m")
		t.Setenv("AIRTABLE_RESTAURANT_VIEW_ID", "viw123")
		t.Setenv("SITE_PASSWORD", "hunter2")
		t.Setenv("APP_ENV", "development")

		cfg := Load()

		if cfg.Port != "9090" {
			t.Errorf("Load() Port = %v, want 9090", cfg.Port)
		}
		if cfg.DataBackend != "memory" {
			t.Errorf("Load() DataBackend = %v, want memory", cfg.DataBackend)
		}
		if cfg.CacheTTL != 5*time.Minute {
			t.Errorf("Load() CacheTTL = %v, want 5m", cfg.CacheTTL)
		}
		if cfg.AirtableViewID != "viw123" || cfg.SitePassword != "hunter2" {
			t.Errorf("Load() view/password not read from environment")
		}
		if !cfg.IsDevelopment() {
			t.Errorf("Load() IsDevelopment = false, want true")
		}
	})

	t.Run("invalid environment variables use defaults", func(t *testing.T) {
		t.Setenv("CACHE_TTL", "invalid")
		t.Setenv("LOGIN_RATE_LIMIT", "invalid")

		cfg := Load()

		if cfg.CacheTTL != 60*time.Second {
			t.Errorf("Load() CacheTTL = %v, want 60s (default for invalid input)", cfg.CacheTTL)
		}
		if cfg.LoginRateLimit != 10 {
			t.Errorf("Load() LoginRateLimit = %v, want 10 (default for invalid input)", cfg.LoginRateLimit)
		}
	})
}

func TestSlogLevel(t *testing.T) {
	for in, want := range map[string]string{"debug": "DEBUG", "WARN": "WARN", "bogus": "INFO", "": "INFO"} {
		c := Config{LogLevel: in}
		if got := c.SlogLevel().String(); got != want {
			t.Errorf("SlogLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
