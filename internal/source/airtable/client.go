// Package airtable reads the activity and restaurant tables over the Airtable
// REST API.
package airtable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"foodie/internal/core"
	"foodie/internal/source"
)

const (
	DefaultBaseURL     = "https://api.airtable.com/v0"
	DefaultTable       = "Tegevused"
	DefaultDetailTable = "Restoran"
	DefaultLinkField   = "Toidud"

	// Airtable formulas stay under the URL limit at 100 record ids.
	DefaultBatchSize = 100
)

var (
	errNotConfigured      = &source.ConfigError{Message: "Airtable credentials are not configured on the server."}
	errNotFullyConfigured = &source.ConfigError{Message: "Airtable credentials are not fully configured on the server."}
)

// Config holds the settings of the Airtable client. Empty names fall back
// to the defaults above.
type Config struct {
	APIKey      string
	BaseID      string
	ViewID      string
	Table       string
	DetailTable string
	LinkField   string
	BaseURL     string
	BatchSize   int
	HTTPClient  *http.Client
}

// APIError is a non-2xx answer from Airtable.
type APIError struct {
	StatusCode int
	Status     string
	Table      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Airtable API error (%s): %s", e.Table, e.Status)
}

type Client struct {
	cfg  Config
	http *http.Client
}

var _ source.Source = (*Client)(nil)

// New creates a client. Missing credentials are reported per call so the
// server can start without them.
func New(cfg Config) *Client {
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.DetailTable == "" {
		cfg.DetailTable = DefaultDetailTable
	}
	if cfg.LinkField == "" {
		cfg.LinkField = DefaultLinkField
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.BatchSize <= 0 || cfg.BatchSize > DefaultBatchSize {
		cfg.BatchSize = DefaultBatchSize
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = newHTTPClientWithPooling()
	}
	return &Client{cfg: cfg, http: hc}
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling and
// bounded timeouts for the Airtable API.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   60 * time.Second,
	}
}

// ListRecords returns every row of the activity table.
func (c *Client) ListRecords(ctx context.Context) ([]core.Row, error) {
	if c.cfg.APIKey == "" || c.cfg.BaseID == "" {
		return nil, errNotConfigured
	}
	return c.list(ctx, c.cfg.Table, nil)
}

// ListRestaurants returns the rows of the restaurant view, each with its
// linked restaurant records embedded under source.DetailsField.
func (c *Client) ListRestaurants(ctx context.Context) ([]core.Row, error) {
	if c.cfg.APIKey == "" || c.cfg.BaseID == "" || c.cfg.ViewID == "" {
		return nil, errNotFullyConfigured
	}

	rows, err := c.list(ctx, c.cfg.Table, url.Values{"view": {c.cfg.ViewID}})
	if err != nil {
		return nil, err
	}

	ids := linkedIDs(rows, c.cfg.LinkField)
	if len(ids) == 0 {
		return rows, nil
	}

	details, err := c.fetchByIDs(ctx, c.cfg.DetailTable, ids)
	if err != nil {
		return nil, err
	}

	out := make([]core.Row, len(rows))
	for i, r := range rows {
		var linked []core.Row
		for _, id := range stringList(r.Field(c.cfg.LinkField)) {
			if d, ok := details[id]; ok {
				linked = append(linked, d)
			}
		}
		fields := make(map[string]any, len(r.Fields)+1)
		for k, v := range r.Fields {
			fields[k] = v
		}
		if linked == nil {
			linked = []core.Row{}
		}
		fields[source.DetailsField] = linked
		out[i] = core.Row{ID: r.ID, CreatedTime: r.CreatedTime, Fields: fields}
	}
	return out, nil
}

// fetchByIDs loads records by id in concurrent batches. The first failing
// batch fails the whole call.
func (c *Client) fetchByIDs(ctx context.Context, table string, ids []string) (map[string]core.Row, error) {
	batches := chunk(ids, c.cfg.BatchSize)
	results := make([][]core.Row, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	for i, batch := range batches {
		g.Go(func() error {
			rows, err := c.list(gctx, table, url.Values{"filterByFormula": {RecordIDFormula(batch)}})
			if err != nil {
				return err
			}
			results[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byID := make(map[string]core.Row, len(ids))
	for _, rows := range results {
		for _, r := range rows {
			byID[r.ID] = r
		}
	}
	return byID, nil
}

// RecordIDFormula builds OR(RECORD_ID()='a',RECORD_ID()='b',...).
func RecordIDFormula(ids []string) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("RECORD_ID()='%s'", strings.ReplaceAll(id, "'", `\'`))
	}
	return "OR(" + strings.Join(parts, ",") + ")"
}

type listResponse struct {
	Records []core.Row `json:"records"`
	Offset  string     `json:"offset"`
}

// list reads every page of a table, following the offset cursor.
func (c *Client) list(ctx context.Context, table string, params url.Values) ([]core.Row, error) {
	var out []core.Row
	offset := ""
	for {
		q := url.Values{}
		for k, v := range params {
			q[k] = v
		}
		if offset != "" {
			q.Set("offset", offset)
		}
		page, err := c.get(ctx, table, q)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Records...)
		if page.Offset == "" {
			return out, nil
		}
		offset = page.Offset
	}
}

func (c *Client) get(ctx context.Context, table string, q url.Values) (*listResponse, error) {
	u := fmt.Sprintf("%s/%s/%s", c.cfg.BaseURL, url.PathEscape(c.cfg.BaseID), url.PathEscape(table))
	if enc := q.Encode(); enc != "" {
		u += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", table, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		slog.ErrorContext(ctx, "Airtable API error",
			"table", table,
			"status", resp.StatusCode,
			"body", string(body))
		return nil, &APIError{StatusCode: resp.StatusCode, Status: statusText(resp), Table: table}
	}

	var page listResponse
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", table, err)
	}
	return &page, nil
}

// statusText returns the reason phrase of the response, e.g. "Not Found".
func statusText(resp *http.Response) string {
	if s := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))); s != "" {
		return s
	}
	return http.StatusText(resp.StatusCode)
}

// IsAPIError reports whether err is an upstream error and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func linkedIDs(rows []core.Row, field string) []string {
	seen := map[string]struct{}{}
	var ids []string
	for _, r := range rows {
		for _, id := range stringList(r.Field(field)) {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func stringList(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			if s, ok := e.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func chunk(ids []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(ids); start += size {
		end := min(start+size, len(ids))
		out = append(out, ids[start:end])
	}
	return out
}
