package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"foodie/internal/auth"
	"foodie/internal/cache"
	"foodie/internal/core"
	"foodie/internal/log"
	"foodie/internal/metrics"
	"foodie/internal/source"
	"foodie/internal/source/airtable"
	"foodie/internal/source/memory"
)

type failingSource struct{ err error }

func (f failingSource) ListRecords(context.Context) ([]core.Row, error)     { return nil, f.err }
func (f failingSource) ListRestaurants(context.Context) ([]core.Row, error) { return nil, f.err }

func restaurantRows() []core.Row {
	row := func(id, date, city, country, name string, amount float64, coords string) core.Row {
		return core.Row{ID: id, Fields: map[string]any{
			"Kuupäev":    date,
			"Kokku":      amount,
			"Spend Type": "Local",
			"Linn":       city,
			"Riik":       country,
			"Toit":       name,
			source.DetailsField: []core.Row{{ID: "r-" + id, Fields: map[string]any{
				"Nimetus":     "Place " + id,
				"Coordinates": coords,
			}}},
		}}
	}
	return []core.Row{
		row("a", "2024-03-01", "Tallinn", "Estonia", "Ramen", 20, "59.43,24.75"),
		row("b", "2024-03-05", "Rome", "Italy", "Pizza", 80, "41.9,12.49"),
		row("c", "2024-02-10", "Riga", "Latvia", "Burger", 36, ""),
	}
}

func newTestServer(t *testing.T, src source.Source, modify func(*Options)) *Server {
	t.Helper()
	sessions, err := auth.NewSessionManager("test-secret", "", false)
	if err != nil {
		t.Fatalf("session manager: %v", err)
	}
	opts := Options{
		Source:      src,
		Passwords:   auth.NewPasswordChecker("hunter2", ""),
		Sessions:    sessions,
		MapboxToken: "pk.test",
		HomeCity:    "Tallinn",
		Location:    time.UTC,
		SpendPolicy: core.UnknownAsTravel,
		Logger:      log.New(log.Config{Format: log.FormatJSON, Output: io.Discard}),
		Now:         func() time.Time { return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC) },
	}
	if modify != nil {
		modify(&opts)
	}
	srv := NewServer(":0", opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func login(t *testing.T, srv *Server) *http.Cookie {
	t.Helper()
	rr := serve(srv, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"hunter2"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatalf("login did not set %s", auth.CookieName)
	return nil
}

func authed(method, target string, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.AddCookie(cookie)
	return req
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return body
}

func TestHealthAndReady(t *testing.T) {
	caches := cache.NewManager()
	srv := newTestServer(t, memory.New(nil, nil), func(o *Options) {
		o.Ready = func(context.Context) error { return nil }
		o.Caches = caches
	})
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
		if path == "/readyz" {
			if _, ok := decode(t, rr)["cache"]; !ok {
				t.Fatalf("readyz should report cache stats: %s", rr.Body.String())
			}
		}
	}

	down := newTestServer(t, memory.New(nil, nil), func(o *Options) {
		o.Ready = func(context.Context) error { return errors.New("database is locked") }
	})
	rr := serve(down, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing backend: %d", rr.Code)
	}
	if got := decode(t, rr)["status"]; got != "not_ready" {
		t.Fatalf("status %v", got)
	}
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		password   string
		wantStatus int
		wantMsg    string
		wantCookie bool
	}{
		{name: "wrong method", method: http.MethodGet, password: "hunter2", wantStatus: http.StatusMethodNotAllowed, wantMsg: "Method Not Allowed"},
		{name: "not configured", method: http.MethodPost, body: `{"password":"x"}`, wantStatus: http.StatusInternalServerError, wantMsg: "Site password is not configured on the server."},
		{name: "malformed body", method: http.MethodPost, body: `{"password":`, password: "hunter2", wantStatus: http.StatusBadRequest, wantMsg: "Invalid request body."},
		{name: "wrong password", method: http.MethodPost, body: `{"password":"nope"}`, password: "hunter2", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid password"},
		{name: "missing password field", method: http.MethodPost, body: `{}`, password: "hunter2", wantStatus: http.StatusUnauthorized, wantMsg: "Invalid password"},
		{name: "success", method: http.MethodPost, body: `{"password":"hunter2"}`, password: "hunter2", wantStatus: http.StatusOK, wantMsg: "Logged in successfully", wantCookie: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, memory.New(nil, nil), func(o *Options) {
				o.Passwords = auth.NewPasswordChecker(tt.password, "")
			})
			rr := serve(srv, httptest.NewRequest(tt.method, "/api/login", strings.NewReader(tt.body)))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if got := decode(t, rr)["message"]; got != tt.wantMsg {
				t.Fatalf("message %q want %q", got, tt.wantMsg)
			}
			hasCookie := strings.Contains(rr.Header().Get("Set-Cookie"), auth.CookieName+"=")
			if hasCookie != tt.wantCookie {
				t.Fatalf("cookie set=%v want %v", hasCookie, tt.wantCookie)
			}
			if tt.wantStatus == http.StatusMethodNotAllowed && rr.Header().Get("Allow") != http.MethodPost {
				t.Fatalf("Allow header %q", rr.Header().Get("Allow"))
			}
		})
	}
}

func TestLoginRateLimited(t *testing.T) {
	srv := newTestServer(t, memory.New(nil, nil), func(o *Options) { o.LoginRateLimit = 2 })
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = serve(srv, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"nope"}`)))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt status=%d", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestLoginRateLimitCountsOnlyPosts(t *testing.T) {
	srv := newTestServer(t, memory.New(nil, nil), func(o *Options) { o.LoginRateLimit = 2 })
	for _, method := range []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodGet} {
		rr := serve(srv, httptest.NewRequest(method, "/api/login", nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s status=%d", method, rr.Code)
		}
	}
	rr := serve(srv, httptest.NewRequest(http.MethodPost, "/api/login", strings.NewReader(`{"password":"hunter2"}`)))
	if rr.Code != http.StatusOK {
		t.Fatalf("login after non-POST requests: status=%d", rr.Code)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	srv := newTestServer(t, memory.New(nil, nil), nil)
	for _, method := range []string{http.MethodPost, http.MethodGet} {
		rr := serve(srv, httptest.NewRequest(method, "/api/logout", nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s logout status=%d", method, rr.Code)
		}
		if got := decode(t, rr)["message"]; got != "Logged out successfully" {
			t.Fatalf("message %q", got)
		}
		cookies := rr.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != auth.CookieName || cookies[0].MaxAge >= 0 {
			t.Fatalf("expected an expired session cookie, got %+v", cookies)
		}
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	srv := newTestServer(t, memory.New(restaurantRows(), restaurantRows()), nil)
	paths := []string{
		"/api/records", "/api/airable", "/api/restaurants", "/api/airtable",
		"/api/map-token", "/api/mapbox", "/api/insights", "/api/achievements",
		"/api/overview", "/api/activities",
	}
	for _, path := range paths {
		rr := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s without session: %d", path, rr.Code)
			continue
		}
		if got := decode(t, rr)["error"]; got != "Unauthorized" {
			t.Errorf("%s error %q", path, got)
		}
	}

	cookie := login(t, srv)
	for _, path := range paths {
		rr := serve(srv, authed(http.MethodGet, path, cookie))
		if rr.Code != http.StatusOK {
			t.Errorf("%s with session: %d %s", path, rr.Code, rr.Body.String())
		}
	}
}

func TestProxyEndpoints(t *testing.T) {
	srv := newTestServer(t, memory.New(restaurantRows()[:1], restaurantRows()), nil)
	cookie := login(t, srv)

	tests := []struct {
		path string
		want int
	}{
		{"/api/records", 1},
		{"/api/restaurants", 3},
	}
	for _, tt := range tests {
		rr := serve(srv, authed(http.MethodGet, tt.path, cookie))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", tt.path, rr.Code)
		}
		if got := rr.Header().Get("Cache-Control"); got != DataCacheControl {
			t.Fatalf("%s Cache-Control %q", tt.path, got)
		}
		records, ok := decode(t, rr)["records"].([]any)
		if !ok || len(records) != tt.want {
			t.Fatalf("%s records: %s", tt.path, rr.Body.String())
		}
	}
}

func TestSourceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		path       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing credentials",
			err:        &source.ConfigError{Message: "Airtable credentials are not configured on the server."},
			path:       "/api/records",
			wantStatus: http.StatusInternalServerError,
			wantError:  "Airtable credentials are not configured on the server.",
		},
		{
			name:       "upstream status",
			err:        &airtable.APIError{StatusCode: http.StatusForbidden, Status: "Forbidden", Table: "Restoran"},
			path:       "/api/restaurants",
			wantStatus: http.StatusForbidden,
			wantError:  "Airtable API error (Restoran): Forbidden",
		},
		{
			name:       "wrapped upstream status",
			err:        fmt.Errorf("join: %w", &airtable.APIError{StatusCode: http.StatusNotFound, Status: "Not Found", Table: "Tegevused"}),
			path:       "/api/insights",
			wantStatus: http.StatusNotFound,
			wantError:  "Airtable API error (Tegevused): Not Found",
		},
		{
			name:       "network failure on records",
			err:        errors.New("dial tcp: connection refused"),
			path:       "/api/records",
			wantStatus: http.StatusInternalServerError,
			wantError:  msgRecordsFailed,
		},
		{
			name:       "network failure on restaurants",
			err:        context.DeadlineExceeded,
			path:       "/api/activities",
			wantStatus: http.StatusInternalServerError,
			wantError:  msgRestaurantsFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, failingSource{err: tt.err}, nil)
			rr := serve(srv, authed(http.MethodGet, tt.path, login(t, srv)))
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d want %d", rr.Code, tt.wantStatus)
			}
			if got := decode(t, rr)["error"]; got != tt.wantError {
				t.Fatalf("error %q want %q", got, tt.wantError)
			}
			if rr.Header().Get("Cache-Control") != "" {
				t.Fatalf("errors must not be cacheable")
			}
		})
	}
}

func TestMapToken(t *testing.T) {
	srv := newTestServer(t, memory.New(nil, nil), nil)
	rr := serve(srv, authed(http.MethodGet, "/api/map-token", login(t, srv)))
	if got := decode(t, rr)["token"]; got != "pk.test" {
		t.Fatalf("token %v", got)
	}

	unset := newTestServer(t, memory.New(nil, nil), func(o *Options) { o.MapboxToken = "" })
	rr = serve(unset, authed(http.MethodGet, "/api/mapbox", login(t, unset)))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decode(t, rr)["error"]; got != "Mapbox token is not configured on the server." {
		t.Fatalf("error %q", got)
	}
}

func TestDashboardEndpoints(t *testing.T) {
	srv := newTestServer(t, memory.New(nil, restaurantRows()), nil)
	cookie := login(t, srv)

	t.Run("insights", func(t *testing.T) {
		body := decode(t, serve(srv, authed(http.MethodGet, "/api/insights", cookie)))
		cards, ok := body["cards"].([]any)
		if !ok || len(cards) == 0 {
			t.Fatalf("cards: %v", body)
		}
	})

	t.Run("achievements", func(t *testing.T) {
		body := decode(t, serve(srv, authed(http.MethodGet, "/api/achievements", cookie)))
		badges, _ := body["badges"].([]any)
		if len(badges) == 0 || body["total"] != float64(len(badges)) {
			t.Fatalf("badges: %v", body)
		}
		// First Bite and Globe Taster unlock with three countries.
		if body["unlocked"].(float64) < 2 {
			t.Fatalf("unlocked: %v", body["unlocked"])
		}
	})

	t.Run("overview", func(t *testing.T) {
		body := decode(t, serve(srv, authed(http.MethodGet, "/api/overview", cookie)))
		if body["billsTracked"] != float64(3) || body["topCity"] != "Rome" {
			t.Fatalf("overview: %v", body)
		}
	})

	t.Run("activities", func(t *testing.T) {
		rr := serve(srv, authed(http.MethodGet, "/api/activities?q=rome&sort=spend&page_size=1", cookie))
		var body struct {
			Page struct {
				Items []struct {
					ID         string `json:"id"`
					Restaurant string `json:"restaurantName"`
				} `json:"items"`
				Total      int `json:"total"`
				TotalPages int `json:"totalPages"`
			} `json:"page"`
			Markers struct {
				Markers []json.RawMessage `json:"markers"`
			} `json:"markers"`
		}
		if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.Page.Total != 1 || len(body.Page.Items) != 1 || body.Page.Items[0].ID != "b" {
			t.Fatalf("page: %+v", body.Page)
		}
		if body.Page.Items[0].Restaurant != "Place b" {
			t.Fatalf("restaurant name should come from the joined details: %+v", body.Page.Items[0])
		}
		if len(body.Markers.Markers) != 2 {
			t.Fatalf("markers should cover every located activity, got %d", len(body.Markers.Markers))
		}
	})
}

func TestMiddlewareChain(t *testing.T) {
	var buf bytes.Buffer
	m := metrics.New()
	srv := newTestServer(t, memory.New(nil, nil), func(o *Options) {
		o.Logger = log.New(log.Config{Format: log.FormatJSON, Output: &buf})
		o.Metrics = m
	})

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers not applied: %v", rr.Header())
	}
	if !strings.Contains(buf.String(), `"path":"/healthz"`) {
		t.Fatalf("request not logged: %s", buf.String())
	}

	serve(srv, httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	body := serve(srv, httptest.NewRequest(http.MethodGet, "/metrics", nil)).Body.String()
	for _, want := range []string{
		`foodie_http_requests_total{route="/healthz",status="200"} 1`,
		`foodie_http_requests_total{route="other",status="404"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestStaticFrontEnd(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Foodie</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv := newTestServer(t, memory.New(nil, nil), func(o *Options) { o.StaticDir = dir })

	rr := serve(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Foodie") {
		t.Fatalf("index: %d %q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=300" {
		t.Fatalf("Cache-Control %q", got)
	}

	// API routes still win over the file server.
	rr = serve(srv, httptest.NewRequest(http.MethodGet, "/api/records", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("api route shadowed by static files: %d", rr.Code)
	}
}
