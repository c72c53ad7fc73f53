package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"foodie/internal/auth"
	"foodie/internal/cache"
	"foodie/internal/core"
	"foodie/internal/log"
	"foodie/internal/metrics"
	"foodie/internal/middleware/ratelimit"
	"foodie/internal/middleware/security"
	"foodie/internal/middleware/trace"
	"foodie/internal/source"
)

// Options carries the dependencies of the server. Source, Passwords and
// Sessions are required; everything else has a usable zero value.
type Options struct {
	Source    source.Source
	Ready     func(ctx context.Context) error
	Passwords *auth.PasswordChecker
	Sessions  *auth.SessionManager

	MapboxToken string
	HomeCity    string
	Location    *time.Location
	SpendPolicy core.UnknownSpendPolicy

	// StaticDir serves the front-end at / when set.
	StaticDir      string
	LoginRateLimit int

	Logger  *log.Logger
	Metrics *metrics.Metrics
	// Caches is reported by /readyz when set.
	Caches *cache.Manager

	// Now is the clock used for year-to-date figures.
	Now func() time.Time
}

type Server struct {
	http.Server

	src        source.Source
	ready      func(ctx context.Context) error
	passwords  *auth.PasswordChecker
	sessions   *auth.SessionManager
	normalizer *core.Normalizer

	mapboxToken string
	homeCity    string
	location    *time.Location

	logger     *log.Logger
	structured *log.StructuredLogger
	metrics    *metrics.Metrics
	caches     *cache.Manager
	detector   *security.Detector
	limiter    *ratelimit.Limiter
	routes     map[string]bool

	now     func() time.Time
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limit := opts.LoginRateLimit
	if limit <= 0 {
		limit = 10
	}

	s := &Server{
		src:         opts.Source,
		ready:       opts.Ready,
		passwords:   opts.Passwords,
		sessions:    opts.Sessions,
		normalizer:  core.NewNormalizer(loc, opts.SpendPolicy),
		mapboxToken: opts.MapboxToken,
		homeCity:    opts.HomeCity,
		location:    loc,
		logger:      logger,
		structured:  log.NewStructuredLogger(logger),
		metrics:     opts.Metrics,
		caches:      opts.Caches,
		detector:    security.NewDetector(),
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: limit}),
		routes:      make(map[string]bool),
		now:         now,
		started:     now(),
	}

	mux := http.NewServeMux()
	protected := s.sessions.RequireSession

	s.handle(mux, "GET /healthz", http.HandlerFunc(s.handleHealth))
	s.handle(mux, "GET /readyz", http.HandlerFunc(s.handleReady))
	if s.metrics != nil {
		s.handle(mux, "GET /metrics", s.metrics.Handler())
	}

	loginLimit := s.limiter.Middleware(s.detector.ExtractClientIP, s.onLoginLimited)
	// Only POST attempts count towards the limit; other methods get a 405.
	s.handle(mux, "POST /api/login", loginLimit(http.HandlerFunc(s.handleLogin)))
	s.handle(mux, "/api/login", http.HandlerFunc(s.handleLogin))
	s.handle(mux, "/api/logout", http.HandlerFunc(s.handleLogout))

	for _, path := range []string{"/api/records", "/api/airable"} {
		s.handle(mux, "GET "+path, protected(http.HandlerFunc(s.handleRecords)))
	}
	for _, path := range []string{"/api/restaurants", "/api/airtable"} {
		s.handle(mux, "GET "+path, protected(http.HandlerFunc(s.handleRestaurants)))
	}
	for _, path := range []string{"/api/map-token", "/api/mapbox"} {
		s.handle(mux, "GET "+path, protected(http.HandlerFunc(s.handleMapToken)))
	}
	s.handle(mux, "GET /api/insights", protected(http.HandlerFunc(s.handleInsights)))
	s.handle(mux, "GET /api/achievements", protected(http.HandlerFunc(s.handleAchievements)))
	s.handle(mux, "GET /api/overview", protected(http.HandlerFunc(s.handleOverview)))
	s.handle(mux, "GET /api/activities", protected(http.HandlerFunc(s.handleActivities)))

	if opts.StaticDir != "" {
		static := security.StaticAssetMiddleware(300)(http.FileServer(http.Dir(opts.StaticDir)))
		mux.Handle("/", static)
	}

	tracer := trace.NewMiddleware(logger, s.detector.ExtractClientIP, s.routeLabel, s.metrics)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = s.detector.Middleware(logger)(handler)
	handler = headers.Middleware(handler)
	handler = trace.Recover(logger)(handler)
	handler = log.RequestIDMiddleware(func(r *http.Request) string { return trace.GetRequestID(r.Context()) })(handler)
	handler = log.Middleware(logger)(handler)
	handler = tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// handle registers h and remembers its path as a metrics label.
func (s *Server) handle(mux *http.ServeMux, pattern string, h http.Handler) {
	mux.Handle(pattern, h)
	if _, path, ok := strings.Cut(pattern, " "); ok {
		pattern = path
	}
	s.routes[pattern] = true
}

// routeLabel keeps the route label set bounded: unknown paths share one
// label.
func (s *Server) routeLabel(r *http.Request) string {
	if s.routes[r.URL.Path] {
		return r.URL.Path
	}
	return "other"
}

// Shutdown gracefully shuts down the server and its background goroutines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// ListenAndServe starts the server. A normal shutdown is not reported as an
// error.
func (s *Server) ListenAndServe() error {
	s.logger.Info("HTTP server listening", "addr", s.Addr)
	if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
