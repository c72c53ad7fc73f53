package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"foodie/internal/auth"
	"foodie/internal/log"
)

// Login outcomes recorded in metrics.
const (
	loginSuccess       = "success"
	loginInvalid       = "invalid_password"
	loginBadRequest    = "bad_request"
	loginNotConfigured = "not_configured"
	loginRateLimited   = "rate_limited"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    s.now().Sub(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the data backend answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]string{}

	switch {
	case s.ready == nil:
		checks["backend"] = "ok"
	default:
		if err := s.ready(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	if s.passwords != nil && s.passwords.Configured() {
		checks["site_password"] = "ok"
	} else {
		checks["site_password"] = "not_configured"
	}

	body := map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}
	if s.caches != nil {
		body["cache"] = s.caches.Stats()
	}
	NewJSONResponse().Status(httpStatus).Body(body).Write(w)
}

// handleRecords proxies the whole activity table.
func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	rows, err := s.src.ListRecords(r.Context())
	if err != nil {
		s.writeSourceError(r.Context(), w, err, log.OpListRecords, msgRecordsFailed)
		return
	}
	NewJSONResponse().CacheControl().Body(map[string]any{"records": rows}).Write(w)
}

// handleRestaurants proxies the restaurant view with linked details joined.
func (s *Server) handleRestaurants(w http.ResponseWriter, r *http.Request) {
	rows, err := s.src.ListRestaurants(r.Context())
	if err != nil {
		s.writeSourceError(r.Context(), w, err, log.OpListRestaurants, msgRestaurantsFailed)
		return
	}
	NewJSONResponse().CacheControl().Body(map[string]any{"records": rows}).Write(w)
}

func (s *Server) handleMapToken(w http.ResponseWriter, r *http.Request) {
	if s.mapboxToken == "" {
		InternalServerError("Mapbox token is not configured on the server.").Write(w)
		return
	}
	NewJSONResponse().Body(map[string]string{"token": s.mapboxToken}).Write(w)
}

// handleLogin checks the shared password and issues the session cookie.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentAuth)

	if r.Method != http.MethodPost {
		MethodNotAllowedError(http.MethodPost).Write(w)
		return
	}

	if s.passwords == nil || !s.passwords.Configured() {
		s.metrics.LoginAttempt(loginNotConfigured)
		logger.ErrorContext(ctx, "Login attempted without a configured site password")
		MessageResponse(http.StatusInternalServerError, "Site password is not configured on the server.").Write(w)
		return
	}

	req, err := ParseLoginRequest(w, r)
	if err != nil {
		s.metrics.LoginAttempt(loginBadRequest)
		logger.WarnContext(ctx, "Invalid login body", log.FieldError, err.Error())
		MessageResponse(http.StatusBadRequest, "Invalid request body.").Write(w)
		return
	}

	if err := s.passwords.Check(req.Password); err != nil {
		s.metrics.LoginAttempt(loginInvalid)
		logger.WarnContext(ctx, "Login failed",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldSuccess, false)
		MessageResponse(http.StatusUnauthorized, "Invalid password").Write(w)
		return
	}

	if err := s.sessions.Issue(w); err != nil {
		s.structured.LogError(ctx, "Failed to issue session", err, log.ComponentAuth, log.OpLogin, nil)
		MessageResponse(http.StatusInternalServerError, "Internal server error").Write(w)
		return
	}

	s.metrics.LoginAttempt(loginSuccess)
	logger.InfoContext(ctx, "Login succeeded", log.FieldSuccess, true)
	MessageResponse(http.StatusOK, "Logged in successfully").Write(w)
}

// handleLogout clears the session cookie. Any method is accepted.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	hadSession := !errors.Is(s.sessions.Authenticate(r), auth.ErrNoSession)
	s.sessions.Clear(w)
	log.FromContext(r.Context()).WithComponent(log.ComponentAuth).
		InfoContext(r.Context(), "Logged out", "had_session", hadSession)
	MessageResponse(http.StatusOK, "Logged out successfully").Write(w)
}

func (s *Server) onLoginLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.LoginAttempt(loginRateLimited)
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).
		WarnContext(r.Context(), "Login rate limit exceeded", log.FieldClientIP, s.detector.ExtractClientIP(r))
	MessageResponse(http.StatusTooManyRequests, "Too many login attempts. Please try again later.").Write(w)
}
