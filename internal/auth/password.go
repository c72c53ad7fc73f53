// Package auth implements the shared-password gate: password checks and the
// signed session cookie.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrNotConfigured   = errors.New("site password is not configured")
)

// PasswordChecker verifies the shared site password, either against a
// bcrypt hash or a plain value compared in constant time.
type PasswordChecker struct {
	plain []byte
	hash  []byte
}

// NewPasswordChecker prefers bcryptHash when both are set.
func NewPasswordChecker(plain, bcryptHash string) *PasswordChecker {
	c := &PasswordChecker{}
	if bcryptHash != "" {
		c.hash = []byte(bcryptHash)
	} else if plain != "" {
		c.plain = []byte(plain)
	}
	return c
}

// Configured reports whether any password is set.
func (c *PasswordChecker) Configured() bool {
	return len(c.plain) > 0 || len(c.hash) > 0
}

// Check returns nil when password matches.
func (c *PasswordChecker) Check(password string) error {
	switch {
	case len(c.hash) > 0:
		if err := bcrypt.CompareHashAndPassword(c.hash, []byte(password)); err != nil {
			return ErrInvalidPassword
		}
		return nil
	case len(c.plain) > 0:
		// Comparing digests keeps the comparison independent of the length.
		want := sha256.Sum256(c.plain)
		got := sha256.Sum256([]byte(password))
		if subtle.ConstantTimeCompare(want[:], got[:]) != 1 {
			return ErrInvalidPassword
		}
		return nil
	default:
		return ErrNotConfigured
	}
}
