// Command foodie-snapshot copies the activity table and the restaurant view
// from a remote backend into the SQLite database read by DATA_BACKEND=sqlite.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"foodie/internal/backend"
	"foodie/internal/cli"
	"foodie/internal/config"
	"foodie/internal/core"
	"foodie/internal/log"
	"foodie/internal/storage"
)

func main() {
	from := flag.String("from", "airtable", "Remote backend to copy from: airtable or sheets")
	dbPath := flag.String("db", "", "SQLite database path (default: SQLITE_DB_PATH)")
	timeout := flag.Duration("timeout", 2*time.Minute, "Upper bound for the whole copy")
	flag.Parse()

	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg).WithComponent(log.ComponentSnapshot)

	if *dbPath != "" {
		cfg.SQLiteDBPath = *dbPath
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, backend.BackendType(*from), logger); err != nil {
		logger.Error("Snapshot failed", log.FieldOperation, log.OpSnapshot, log.FieldError, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, from backend.BackendType, logger *log.Logger) error {
	if !from.IsRemote() {
		return fmt.Errorf("cannot snapshot from %q: want airtable or sheets", from)
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	bcfg.Type = from
	bcfg.NoCache = true

	remote, err := backend.NewFactory(logger, nil, nil).CreateBackend(ctx, bcfg)
	if err != nil {
		return fmt.Errorf("create %s backend: %w", from, err)
	}
	defer remote.Close()

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open snapshot database: %w", err)
	}
	defer repo.Close()

	if prev, err := repo.LatestSnapshot(ctx); err == nil {
		logger.Info("Replacing previous snapshot",
			"taken", humanize.Time(prev.TakenAt),
			"records", prev.Records,
			"restaurants", prev.Restaurants)
	} else if !errors.Is(err, storage.ErrNoSnapshot) {
		return err
	}

	var records, restaurants []core.Row
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := remote.Source.ListRecords(gctx)
		records = rows
		return err
	})
	g.Go(func() error {
		rows, err := remote.Source.ListRestaurants(gctx)
		restaurants = rows
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("read %s: %w", from, err)
	}

	info, err := repo.SaveSnapshot(ctx, from.String(), records, restaurants)
	if err != nil {
		return err
	}
	logger.Info("Snapshot complete",
		"id", info.ID,
		"path", cfg.SQLiteDBPath,
		"records", humanize.Comma(int64(info.Records)),
		"restaurants", humanize.Comma(int64(info.Restaurants)))
	return nil
}
