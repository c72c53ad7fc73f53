package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Row struct {
	Collection  string
	ID          string
	Position    int64
	CreatedTime string
	Fields      string
}

type Snapshot struct {
	ID          int64
	Source      string
	Records     int64
	Restaurants int64
	TakenAt     string
}

const deleteRows = `DELETE FROM source_rows`

func (q *Queries) DeleteRows(ctx context.Context) error {
	_, err := q.db.ExecContext(ctx, deleteRows)
	return err
}

const insertRow = `INSERT INTO source_rows (collection, id, position, created_time, fields)
VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertRow(ctx context.Context, r Row) error {
	_, err := q.db.ExecContext(ctx, insertRow, r.Collection, r.ID, r.Position, r.CreatedTime, r.Fields)
	return err
}

const listRows = `SELECT collection, id, position, created_time, fields
FROM source_rows
WHERE collection = ?
ORDER BY position`

func (q *Queries) ListRows(ctx context.Context, collection string) ([]Row, error) {
	rows, err := q.db.QueryContext(ctx, listRows, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Row
	for rows.Next() {
		var i Row
		if err := rows.Scan(&i.Collection, &i.ID, &i.Position, &i.CreatedTime, &i.Fields); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertSnapshot = `INSERT INTO snapshots (source, records, restaurants, taken_at)
VALUES (?, ?, ?, ?)
RETURNING id, source, records, restaurants, taken_at`

func (q *Queries) InsertSnapshot(ctx context.Context, s Snapshot) (Snapshot, error) {
	row := q.db.QueryRowContext(ctx, insertSnapshot, s.Source, s.Records, s.Restaurants, s.TakenAt)
	var i Snapshot
	err := row.Scan(&i.ID, &i.Source, &i.Records, &i.Restaurants, &i.TakenAt)
	return i, err
}

const latestSnapshot = `SELECT id, source, records, restaurants, taken_at
FROM snapshots
ORDER BY id DESC
LIMIT 1`

func (q *Queries) LatestSnapshot(ctx context.Context) (Snapshot, error) {
	row := q.db.QueryRowContext(ctx, latestSnapshot)
	var i Snapshot
	err := row.Scan(&i.ID, &i.Source, &i.Records, &i.Restaurants, &i.TakenAt)
	return i, err
}
