// Package google reads the activity table from a Google Sheets spreadsheet.
// The first row of every tab holds the column names; an "ID" column keys the
// rows so the restaurant tab can be joined to activities.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"foodie/internal/core"
	"foodie/internal/source"
)

const (
	DefaultSheet       = "Tegevused"
	DefaultDetailSheet = "Restoran"
	DefaultLinkField   = "Toidud"
)

// Config selects the spreadsheet and its tabs. ViewSheet stands in for the
// provider's restaurant view and defaults to Sheet.
type Config struct {
	SpreadsheetID   string
	Sheet           string
	ViewSheet       string
	DetailSheet     string
	LinkField       string
	CredentialsJSON string
	CredentialsFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
	viewSheet     string
	detailSheet   string
	linkField     string
}

var _ source.Source = (*Client)(nil)

// New creates a Sheets client. Extra options are appended after the
// credentials, so tests can point the client at a fake endpoint.
func New(ctx context.Context, cfg Config, opts ...goption.ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if cfg.Sheet == "" {
		cfg.Sheet = DefaultSheet
	}
	if cfg.ViewSheet == "" {
		cfg.ViewSheet = cfg.Sheet
	}
	if cfg.DetailSheet == "" {
		cfg.DetailSheet = DefaultDetailSheet
	}
	if cfg.LinkField == "" {
		cfg.LinkField = DefaultLinkField
	}

	svc, err := newSheetsService(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheet:         cfg.Sheet,
		viewSheet:     cfg.ViewSheet,
		detailSheet:   cfg.DetailSheet,
		linkField:     cfg.LinkField,
	}, nil
}

// newSheetsService initializes a read-only Sheets service with service
// account credentials from cfg, falling back to GOOGLE_APPLICATION_CREDENTIALS.
func newSheetsService(ctx context.Context, cfg Config, extra ...goption.ClientOption) (*gsheet.Service, error) {
	opts := []goption.ClientOption{goption.WithScopes(gsheet.SpreadsheetsReadonlyScope)}

	if len(extra) == 0 {
		credentialsJSON, err := loadCredentials(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, goption.WithCredentialsJSON(credentialsJSON))
	}
	opts = append(opts, extra...)

	service, err := gsheet.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets service created", "scope", gsheet.SpreadsheetsReadonlyScope)
	return service, nil
}

func loadCredentials(ctx context.Context, cfg Config) ([]byte, error) {
	file := strings.TrimSpace(cfg.CredentialsFile)
	if cfg.CredentialsJSON == "" && file == "" {
		file = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	switch {
	case cfg.CredentialsJSON != "":
		slog.InfoContext(ctx, "Using inline JSON credentials")
		return []byte(cfg.CredentialsJSON), nil
	case file != "":
		slog.InfoContext(ctx, "Reading credentials from file", "path", file)
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
}

// ListRecords returns every row of the activity tab.
func (c *Client) ListRecords(ctx context.Context) ([]core.Row, error) {
	return c.readSheet(ctx, c.sheet)
}

// ListRestaurants returns the rows of the view tab with the linked rows of
// the detail tab embedded under source.DetailsField.
func (c *Client) ListRestaurants(ctx context.Context) ([]core.Row, error) {
	rows, err := c.readSheet(ctx, c.viewSheet)
	if err != nil {
		return nil, err
	}
	if !hasLinks(rows, c.linkField) {
		return rows, nil
	}

	details, err := c.readSheet(ctx, c.detailSheet)
	if err != nil {
		return nil, err
	}
	return joinDetails(rows, details, c.linkField), nil
}

func (c *Client) readSheet(ctx context.Context, sheet string) ([]core.Row, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:ZZ", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("FORMATTED_STRING").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", sheet, err)
	}
	return parseRows(sheet, resp.Values), nil
}
