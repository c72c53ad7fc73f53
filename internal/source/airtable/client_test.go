package airtable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"foodie/internal/core"
	"foodie/internal/source"
)

type fakeAirtable struct {
	t        *testing.T
	mu       sync.Mutex
	requests []*http.Request
	// detailIDs is the number of linked restaurant records each view row
	// references, used to force several lookup batches.
	detailIDs int
	failTable string
}

func (f *fakeAirtable) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r)
	f.mu.Unlock()

	if got := r.Header.Get("Authorization"); got != "Bearer key123" {
		http.Error(w, "bad auth", http.StatusUnauthorized)
		return
	}

	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "app1" {
		http.NotFound(w, r)
		return
	}
	table := parts[1]
	if table == f.failTable {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"NOT_AUTHORIZED"}`))
		return
	}

	q := r.URL.Query()
	var resp listResponse
	switch {
	case table == "Tegevused" && q.Get("offset") == "":
		resp.Records = []core.Row{{ID: "rec1", Fields: map[string]any{"Kokku": 12.5, "Toidud": f.links(0)}}}
		resp.Offset = "page2"
	case table == "Tegevused":
		resp.Records = []core.Row{{ID: "rec2", Fields: map[string]any{"Kokku": 30.0}}}
	case table == "Restoran":
		formula := q.Get("filterByFormula")
		if !strings.HasPrefix(formula, "OR(") {
			f.t.Errorf("unexpected formula %q", formula)
		}
		for _, part := range strings.Split(strings.TrimSuffix(strings.TrimPrefix(formula, "OR("), ")"), ",") {
			id := strings.TrimSuffix(strings.TrimPrefix(part, "RECORD_ID()='"), "'")
			resp.Records = append(resp.Records, core.Row{ID: id, Fields: map[string]any{"Nimetus": "Place " + id}})
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeAirtable) links(offset int) []string {
	out := make([]string, f.detailIDs)
	for i := range out {
		out[i] = fmt.Sprintf("rest%d", i+offset)
	}
	return out
}

func (f *fakeAirtable) countTable(table string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasSuffix(r.URL.Path, "/"+table) {
			n++
		}
	}
	return n
}

func newTestClient(t *testing.T, fake *fakeAirtable, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	cfg.HTTPClient = srv.Client()
	return New(cfg)
}

func TestListRecordsFollowsOffset(t *testing.T) {
	fake := &fakeAirtable{t: t}
	c := newTestClient(t, fake, Config{APIKey: "key123", BaseID: "app1"})

	rows, err := c.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "rec1" || rows[1].ID != "rec2" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if got := fake.countTable("Tegevused"); got != 2 {
		t.Fatalf("expected 2 page requests, got %d", got)
	}
	for _, r := range fake.requests {
		if r.URL.Query().Get("view") != "" {
			t.Fatalf("whole-table listing must not pass a view: %s", r.URL)
		}
	}
}

func TestListRestaurantsJoinsDetails(t *testing.T) {
	fake := &fakeAirtable{t: t, detailIDs: 150}
	c := newTestClient(t, fake, Config{APIKey: "key123", BaseID: "app1", ViewID: "viwABC"})

	rows, err := c.ListRestaurants(context.Background())
	if err != nil {
		t.Fatalf("ListRestaurants: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	details, ok := rows[0].Fields[source.DetailsField].([]core.Row)
	if !ok || len(details) != 150 {
		t.Fatalf("expected 150 embedded details, got %T %d", rows[0].Fields[source.DetailsField], len(details))
	}
	if details[0].ID != "rest0" || details[0].Fields["Nimetus"] != "Place rest0" {
		t.Fatalf("details out of order: %+v", details[0])
	}
	if d, ok := rows[1].Fields[source.DetailsField].([]core.Row); !ok || len(d) != 0 {
		t.Fatalf("row without links should carry an empty list, got %#v", rows[1].Fields[source.DetailsField])
	}

	if got := fake.countTable("Restoran"); got != 2 {
		t.Fatalf("150 ids should take 2 batches, got %d", got)
	}
	for _, r := range fake.requests {
		if strings.HasSuffix(r.URL.Path, "/Tegevused") && r.URL.Query().Get("view") != "viwABC" {
			t.Fatalf("view not passed: %s", r.URL)
		}
	}
}

func TestListRestaurantsWithoutLinks(t *testing.T) {
	fake := &fakeAirtable{t: t}
	c := newTestClient(t, fake, Config{APIKey: "key123", BaseID: "app1", ViewID: "viwABC"})

	rows, err := c.ListRestaurants(context.Background())
	if err != nil {
		t.Fatalf("ListRestaurants: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected rows unchanged, got %+v", rows)
	}
	if _, ok := rows[0].Fields[source.DetailsField]; ok {
		t.Fatalf("rows without any links are returned as-is")
	}
	if fake.countTable("Restoran") != 0 {
		t.Fatalf("no detail lookups expected")
	}
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		name      string
		failTable string
		wantTable string
	}{
		{name: "main table", failTable: "Tegevused", wantTable: "Tegevused"},
		{name: "detail table", failTable: "Restoran", wantTable: "Restoran"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAirtable{t: t, detailIDs: 3, failTable: tt.failTable}
			c := newTestClient(t, fake, Config{APIKey: "key123", BaseID: "app1", ViewID: "viwABC"})

			_, err := c.ListRestaurants(context.Background())
			apiErr, ok := IsAPIError(err)
			if !ok {
				t.Fatalf("expected APIError, got %v", err)
			}
			if apiErr.StatusCode != http.StatusForbidden || apiErr.Table != tt.wantTable {
				t.Fatalf("unexpected error %+v", apiErr)
			}
			want := "Airtable API error (" + tt.wantTable + "): Forbidden"
			if apiErr.Error() != want {
				t.Fatalf("got %q want %q", apiErr.Error(), want)
			}
		})
	}
}

func TestMissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		records string
		views   string
	}{
		{
			name:    "nothing set",
			cfg:     Config{},
			records: "Airtable credentials are not configured on the server.",
			views:   "Airtable credentials are not fully configured on the server.",
		},
		{
			name:  "view missing",
			cfg:   Config{APIKey: "key123", BaseID: "app1"},
			views: "Airtable credentials are not fully configured on the server.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.cfg)
			if tt.records != "" {
				_, err := c.ListRecords(context.Background())
				if !source.IsConfigError(err) || err.Error() != tt.records {
					t.Fatalf("ListRecords: %v", err)
				}
			}
			_, err := c.ListRestaurants(context.Background())
			if !source.IsConfigError(err) || err.Error() != tt.views {
				t.Fatalf("ListRestaurants: %v", err)
			}
		})
	}
}

func TestRecordIDFormula(t *testing.T) {
	got := RecordIDFormula([]string{"a", "b'c"})
	want := `OR(RECORD_ID()='a',RECORD_ID()='b\'c')`
	if got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}
