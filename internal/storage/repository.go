package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"foodie/internal/core"
	"foodie/internal/source"

	_ "modernc.org/sqlite"
)

const (
	collectionRecords     = "records"
	collectionRestaurants = "restaurants"
)

// ErrNoSnapshot is returned when the database has never been filled.
var ErrNoSnapshot = errors.New("no snapshot has been taken")

// SnapshotInfo describes one completed snapshot.
type SnapshotInfo struct {
	ID          int64
	Source      string
	Records     int
	Restaurants int
	TakenAt     time.Time
}

// SQLiteRepository serves rows from a local snapshot of the activity table.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	path    string
}

var _ source.Source = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, queries: New(db), path: dbPath}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable and its schema current.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return err
	}
	return CheckSchema(r.path)
}

func (r *SQLiteRepository) ListRecords(ctx context.Context) ([]core.Row, error) {
	return r.list(ctx, collectionRecords)
}

func (r *SQLiteRepository) ListRestaurants(ctx context.Context) ([]core.Row, error) {
	return r.list(ctx, collectionRestaurants)
}

func (r *SQLiteRepository) list(ctx context.Context, collection string) ([]core.Row, error) {
	stored, err := r.queries.ListRows(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	rows := make([]core.Row, len(stored))
	for i, s := range stored {
		var fields map[string]any
		if err := json.Unmarshal([]byte(s.Fields), &fields); err != nil {
			return nil, fmt.Errorf("decode fields of %s: %w", s.ID, err)
		}
		rows[i] = core.Row{ID: s.ID, CreatedTime: s.CreatedTime, Fields: fields}
	}
	return rows, nil
}

// SaveSnapshot replaces the stored rows with records and restaurants in one
// transaction. sourceName is recorded for reference.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, sourceName string, records, restaurants []core.Row) (SnapshotInfo, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.DeleteRows(ctx); err != nil {
		return SnapshotInfo{}, fmt.Errorf("clear rows: %w", err)
	}
	if err := insertAll(ctx, q, collectionRecords, records); err != nil {
		return SnapshotInfo{}, err
	}
	if err := insertAll(ctx, q, collectionRestaurants, restaurants); err != nil {
		return SnapshotInfo{}, err
	}

	snap, err := q.InsertSnapshot(ctx, Snapshot{
		Source:      sourceName,
		Records:     int64(len(records)),
		Restaurants: int64(len(restaurants)),
		TakenAt:     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("record snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return SnapshotInfo{}, fmt.Errorf("commit snapshot: %w", err)
	}

	info, err := toInfo(snap)
	if err != nil {
		return SnapshotInfo{}, err
	}
	slog.InfoContext(ctx, "Snapshot saved to SQLite",
		"id", info.ID,
		"source", info.Source,
		"records", info.Records,
		"restaurants", info.Restaurants)
	return info, nil
}

// LatestSnapshot returns the most recent snapshot or ErrNoSnapshot.
func (r *SQLiteRepository) LatestSnapshot(ctx context.Context) (SnapshotInfo, error) {
	snap, err := r.queries.LatestSnapshot(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return SnapshotInfo{}, ErrNoSnapshot
	}
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("get latest snapshot: %w", err)
	}
	return toInfo(snap)
}

func insertAll(ctx context.Context, q *Queries, collection string, rows []core.Row) error {
	for i, row := range rows {
		fields := row.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		raw, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("encode fields of %s: %w", row.ID, err)
		}
		err = q.InsertRow(ctx, Row{
			Collection:  collection,
			ID:          row.ID,
			Position:    int64(i),
			CreatedTime: row.CreatedTime,
			Fields:      string(raw),
		})
		if err != nil {
			return fmt.Errorf("insert %s row %s: %w", collection, row.ID, err)
		}
	}
	return nil
}

func toInfo(s Snapshot) (SnapshotInfo, error) {
	taken, err := time.Parse(time.RFC3339, s.TakenAt)
	if err != nil {
		return SnapshotInfo{}, fmt.Errorf("parse snapshot time: %w", err)
	}
	return SnapshotInfo{
		ID:          s.ID,
		Source:      s.Source,
		Records:     int(s.Records),
		Restaurants: int(s.Restaurants),
		TakenAt:     taken,
	}, nil
}
