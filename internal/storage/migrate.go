package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SchemaVersion is the version the embedded migrations end at.
const SchemaVersion uint = 2

var ErrSchemaOutdated = errors.New("snapshot schema is not up to date")

// RunMigrations brings the snapshot schema at dbPath up to date.
func RunMigrations(dbPath string) error {
	return withMigrator(dbPath, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("run migrations: %w", err)
		}
		return nil
	})
}

// CheckSchema returns ErrSchemaOutdated unless dbPath is at SchemaVersion
// and not left dirty by a failed migration.
func CheckSchema(dbPath string) error {
	return withMigrator(dbPath, func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("%w: no migrations applied", ErrSchemaOutdated)
		}
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		if dirty || version != SchemaVersion {
			return fmt.Errorf("%w: version %d (dirty=%t), want %d", ErrSchemaOutdated, version, dirty, SchemaVersion)
		}
		return nil
	})
}

// withMigrator opens its own connection: closing the migrator closes the
// database it was given.
func withMigrator(dbPath string, fn func(*migrate.Migrate) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open migration database: %w", err)
	}
	defer db.Close()

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	defer m.Close()

	return fn(m)
}
