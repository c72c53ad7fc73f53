package backend

import (
	"context"
	"path/filepath"
	"testing"

	"foodie/internal/cache"
	"foodie/internal/config"
	"foodie/internal/metrics"
	"foodie/internal/source"
	"foodie/internal/source/cached"
	"foodie/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	cfg := &config.Config{
		DataBackend:         "airtable",
		AirtableAPIKey:      "key",
		AirtableBaseID:      "app",
		AirtableViewID:      "viw",
		AirtableTable:       "Tegevused",
		AirtableDetailTable: "Restoran",
		GoogleSheetName:     "Tegevused",
	}
	bc, err := FromAppConfig(cfg)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if bc.Type != AirtableBackend || bc.Airtable.APIKey != "key" || bc.Airtable.ViewID != "viw" {
		t.Errorf("unexpected backend config: %+v", bc)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "postgres"}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"airtable without credentials", Config{Type: AirtableBackend}, false},
		{"sheets without spreadsheet", Config{Type: SheetsBackend}, true},
		{"memory without file", Config{Type: MemoryBackend}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateMemoryBackendIsCached(t *testing.T) {
	caches := cache.NewManager()
	f := NewFactory(nil, metrics.New(), caches)

	res, err := f.CreateBackend(context.Background(), Config{
		Type:           MemoryBackend,
		MemoryDataFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if _, ok := res.Source.(*cached.Source); !ok {
		t.Fatalf("expected cached source, got %T", res.Source)
	}
	rows, err := res.Source.ListRestaurants(context.Background())
	if err != nil || len(rows) == 0 {
		t.Fatalf("sample rows expected: %v %d", err, len(rows))
	}
	if n := caches.CleanNow(); n != 0 {
		t.Errorf("nothing should have expired yet, cleaned %d", n)
	}
}

func TestCreateAirtableBackendReportsMissingCredentials(t *testing.T) {
	f := NewFactory(nil, nil, nil)
	res, err := f.CreateBackend(context.Background(), Config{Type: AirtableBackend})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	_, err = res.Source.ListRecords(context.Background())
	if !source.IsConfigError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestCreateSQLiteBackendNoCache(t *testing.T) {
	f := NewFactory(nil, nil, nil)
	res, err := f.CreateBackend(context.Background(), Config{
		Type:         SQLiteBackend,
		SQLiteDBPath: filepath.Join(t.TempDir(), "foodie.db"),
		NoCache:      true,
	})
	if err != nil {
		t.Fatalf("CreateBackend: %v", err)
	}
	defer res.Close()

	if _, ok := res.Source.(*storage.SQLiteRepository); !ok {
		t.Fatalf("expected bare repository, got %T", res.Source)
	}
	if res.Ready == nil || res.Ready(context.Background()) != nil {
		t.Fatal("sqlite backend should be ready")
	}
	if res.Type != SQLiteBackend {
		t.Errorf("type = %s", res.Type)
	}
}
