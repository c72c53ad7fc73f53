// Command foodie-report prints the dashboard insights and achievements for
// the configured backend.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"foodie/internal/achievements"
	"foodie/internal/backend"
	"foodie/internal/cli"
	"foodie/internal/config"
	"foodie/internal/core"
	"foodie/internal/dashboard"
	"foodie/internal/log"
)

type report struct {
	GeneratedAt  time.Time            `json:"generatedAt"`
	Backend      string               `json:"backend"`
	Overview     dashboard.Overview   `json:"overview"`
	Cards        []dashboard.Card     `json:"cards"`
	Achievements []achievements.Badge `json:"achievements"`
	Unlocked     int                  `json:"unlocked"`
}

func main() {
	format := flag.String("format", "json", "Output format: json or text")
	backendFlag := flag.String("backend", "", "Override DATA_BACKEND for this run")
	timeout := flag.Duration("timeout", time.Minute, "Upper bound for loading data")
	flag.Parse()

	if *format != "json" && *format != "text" {
		fmt.Fprintf(os.Stderr, "unknown -format %q: want json or text\n", *format)
		os.Exit(2)
	}

	cli.LoadEnvFile()
	if *backendFlag != "" {
		os.Setenv("DATA_BACKEND", *backendFlag)
	}
	cfg := cli.LoadAndValidateConfig()
	// Logs go to stderr so stdout stays machine-readable.
	logger := log.New(log.Config{Level: cfg.SlogLevel(), Format: cfg.LogFormat, Component: log.ComponentApp, Output: os.Stderr})
	log.SetDefault(logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rep, err := build(ctx, cfg, logger)
	if err != nil {
		logger.Error("Report failed", log.FieldError, err)
		os.Exit(1)
	}

	if *format == "text" {
		err = writeText(os.Stdout, rep)
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(rep)
	}
	if err != nil {
		logger.Error("Failed to write report", log.FieldError, err)
		os.Exit(1)
	}
}

func build(ctx context.Context, cfg *config.Config, logger *log.Logger) (report, error) {
	loc, err := cfg.Location()
	if err != nil {
		return report{}, fmt.Errorf("load timezone: %w", err)
	}
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return report{}, err
	}
	bcfg.NoCache = true

	res, err := backend.NewFactory(logger, nil, nil).CreateBackend(ctx, bcfg)
	if err != nil {
		return report{}, fmt.Errorf("create backend: %w", err)
	}
	defer res.Close()

	rows, err := res.Source.ListRestaurants(ctx)
	if err != nil {
		return report{}, fmt.Errorf("list restaurants: %w", err)
	}
	bills := core.NewNormalizer(loc, core.UnknownSpendPolicy(cfg.SpendTypeFallback)).Normalize(rows)
	logger.Info("Bills loaded", log.FieldBackend, res.Type, log.FieldRows, len(rows), log.FieldBills, len(bills))

	now := time.Now().In(loc)
	opts := achievements.Options{HomeCity: cfg.HomeCity}
	badges := achievements.Evaluate(bills, opts)
	return report{
		GeneratedAt:  now,
		Backend:      res.Type.String(),
		Overview:     dashboard.NewOverview(bills, opts),
		Cards:        dashboard.Insights(bills, now, cfg.HomeCity),
		Achievements: badges,
		Unlocked:     achievements.Unlocked(badges),
	}, nil
}

func writeText(w io.Writer, rep report) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	ov := rep.Overview

	fmt.Fprintf(tw, "Foodie report\t%s (%s)\n", rep.GeneratedAt.Format("2006-01-02 15:04"), rep.Backend)
	fmt.Fprintf(tw, "Bills tracked\t%s\n", humanize.Comma(int64(ov.BillsTracked)))
	fmt.Fprintf(tw, "Total spent\t%s€\n", humanize.CommafWithDigits(ov.TotalSpent, 2))
	fmt.Fprintf(tw, "Average bill\t%s€\n", humanize.CommafWithDigits(ov.AverageBill, 2))
	fmt.Fprintf(tw, "Top month\t%s\n", ov.TopMonth)
	fmt.Fprintf(tw, "Top city\t%s\n", ov.TopCity)
	fmt.Fprintf(tw, "Countries visited\t%d\n", ov.CountriesVisited)
	fmt.Fprintln(tw)

	for _, c := range rep.Cards {
		if c.Chart != nil {
			fmt.Fprintf(tw, "%s\t[%s chart, %d points]\n", c.Title, c.Chart.Kind, len(c.Chart.Labels))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", c.Title, strings.Join(c.Lines, " | "))
	}
	fmt.Fprintln(tw)

	fmt.Fprintf(tw, "Achievements\t%d of %d unlocked\n", rep.Unlocked, len(rep.Achievements))
	for _, b := range rep.Achievements {
		mark := " "
		if b.Unlocked {
			mark = "x"
		}
		fmt.Fprintf(tw, "  [%s] %s\t%s\n", mark, b.Name, b.Description)
	}
	return tw.Flush()
}
