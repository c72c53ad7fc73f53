package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// CookieName is the session cookie set after a successful login.
	CookieName = "site_auth"

	SessionDuration = 30 * 24 * time.Hour

	sessionSubject = "site"
)

var (
	ErrNoSession      = errors.New("no session cookie")
	ErrInvalidSession = errors.New("invalid or expired session")
)

// Claims is the payload of the session token.
type Claims struct {
	jwt.RegisteredClaims
}

// SessionManager issues and validates the HS256 session cookie.
type SessionManager struct {
	secret   []byte
	duration time.Duration
	secure   bool
	now      func() time.Time
}

// NewSessionManager signs with secret. An empty secret falls back to a key
// derived from the site password, so sessions survive restarts without extra
// configuration; with neither set a random key is used. secure sets the
// cookie's Secure flag.
func NewSessionManager(secret, sitePassword string, secure bool) (*SessionManager, error) {
	key, err := signingKey(secret, sitePassword)
	if err != nil {
		return nil, err
	}
	return &SessionManager{
		secret:   key,
		duration: SessionDuration,
		secure:   secure,
		now:      time.Now,
	}, nil
}

func signingKey(secret, sitePassword string) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	if sitePassword != "" {
		sum := sha256.Sum256([]byte("foodie-session:" + sitePassword))
		return sum[:], nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate session key: %w", err)
	}
	return key, nil
}

// WithClock replaces the time source. Tests only.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	return m
}

// Generate creates a signed session token.
func (m *SessionManager) Generate() (string, error) {
	now := m.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// Validate parses a session token, returning its claims if valid.
func (m *SessionManager) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenString,
		&Claims{},
		func(token *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(sessionSubject),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// Issue writes a fresh session cookie.
func (m *SessionManager) Issue(w http.ResponseWriter) error {
	token, err := m.Generate()
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.duration / time.Second),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
	return nil
}

// Clear writes an already expired session cookie.
func (m *SessionManager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Authenticate checks the session cookie of r.
func (m *SessionManager) Authenticate(r *http.Request) error {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return ErrNoSession
	}
	_, err = m.Validate(c.Value)
	return err
}

// RequireSession rejects requests without a valid session with
// 401 {"error":"Unauthorized"}.
func (m *SessionManager) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := m.Authenticate(r); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
