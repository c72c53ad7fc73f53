package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"foodie/internal/core"
	"foodie/internal/source"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "snapshot.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestEmptyRepository(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	rows, err := repo.ListRecords(ctx)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected no rows: %v %v", rows, err)
	}
	if _, err := repo.LatestSnapshot(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("expected ErrNoSnapshot, got %v", err)
	}
}

func TestSaveSnapshotRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	records := []core.Row{
		{ID: "rec2", CreatedTime: "2024-03-01T10:00:00.000Z", Fields: map[string]any{"Kokku": 20.5, "Kuupäev": "2024-03-01"}},
		{ID: "rec1", Fields: nil},
	}
	restaurants := []core.Row{{ID: "rec2", Fields: map[string]any{
		"Kokku": 20.5,
		source.DetailsField: []core.Row{{ID: "rest1", Fields: map[string]any{"Nimetus": "Noodle Bar", "Linn": "Tallinn"}}},
	}}}

	info, err := repo.SaveSnapshot(ctx, "airtable", records, restaurants)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if info.Records != 2 || info.Restaurants != 1 || info.Source != "airtable" {
		t.Fatalf("unexpected info: %+v", info)
	}

	got, err := repo.ListRecords(ctx)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(got) != 2 || got[0].ID != "rec2" || got[1].ID != "rec1" {
		t.Fatalf("order must be preserved: %+v", got)
	}
	if got[0].CreatedTime != "2024-03-01T10:00:00.000Z" || got[0].Field("Kokku") != 20.5 {
		t.Fatalf("fields lost: %+v", got[0])
	}

	views, err := repo.ListRestaurants(ctx)
	if err != nil || len(views) != 1 {
		t.Fatalf("list restaurants: %v %v", views, err)
	}
	bill := core.NewNormalizer(nil, core.UnknownAsTravel).NormalizeRow(views[0])
	if bill.Restaurant != "Noodle Bar" || bill.City != "Tallinn" {
		t.Fatalf("embedded details should survive storage: %+v", bill)
	}

	// A second snapshot replaces the first.
	if _, err := repo.SaveSnapshot(ctx, "sheets", records[:1], nil); err != nil {
		t.Fatalf("second save: %v", err)
	}
	got, _ = repo.ListRecords(ctx)
	views, _ = repo.ListRestaurants(ctx)
	if len(got) != 1 || len(views) != 0 {
		t.Fatalf("snapshot should replace rows: %d records %d restaurants", len(got), len(views))
	}
	latest, err := repo.LatestSnapshot(ctx)
	if err != nil || latest.Source != "sheets" {
		t.Fatalf("latest snapshot: %+v %v", latest, err)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	if err := CheckSchema(path); !errors.Is(err, ErrSchemaOutdated) {
		t.Fatalf("fresh database should be outdated, got %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := RunMigrations(path); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if err := CheckSchema(path); err != nil {
		t.Fatalf("schema after migrations: %v", err)
	}
}

func TestPingChecksSchema(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
