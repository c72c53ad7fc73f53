package backend

import (
	"fmt"

	"foodie/internal/config"
	"foodie/internal/source/airtable"
	"foodie/internal/source/google"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type: backendType,

		Airtable: airtable.Config{
			APIKey:      appConfig.AirtableAPIKey,
			BaseID:      appConfig.AirtableBaseID,
			ViewID:      appConfig.AirtableViewID,
			Table:       appConfig.AirtableTable,
			DetailTable: appConfig.AirtableDetailTable,
			BaseURL:     appConfig.AirtableAPIURL,
		},

		Google: google.Config{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			Sheet:           appConfig.GoogleSheetName,
			ViewSheet:       appConfig.GoogleViewSheetName,
			DetailSheet:     appConfig.GoogleDetailSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},

		MemoryDataFile: appConfig.MemoryDataFile,
		SQLiteDBPath:   appConfig.SQLiteDBPath,
		CacheTTL:       appConfig.CacheTTL,
	}, nil
}

// Validate validates the backend configuration. Airtable credentials are
// not checked here: a missing key is reported per request.
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case SheetsBackend:
		if c.Google.SpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets backend")
		}
	case MemoryBackend:
		if c.MemoryDataFile == "" {
			return fmt.Errorf("data file is required for memory backend")
		}
	}

	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	types := []BackendType{AirtableBackend, SheetsBackend, MemoryBackend, SQLiteBackend}
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = t.String()
	}
	return out
}
