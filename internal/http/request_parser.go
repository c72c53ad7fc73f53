// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"foodie/internal/dashboard"
)

// maxLoginBody bounds the login request body.
const maxLoginBody = 4 << 10

var errInvalidBody = errors.New("invalid request body")

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Password string `json:"password"`
}

// ParseLoginRequest decodes the login body. A missing password field is
// not an error; it simply fails the password check.
func ParseLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, error) {
	var req LoginRequest
	body := http.MaxBytesReader(w, r.Body, maxLoginBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&req); err != nil {
		return LoginRequest{}, fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return LoginRequest{}, fmt.Errorf("%w: trailing data", errInvalidBody)
	}
	return req, nil
}

// ParseListState reads the restaurant list state from ?q=&sort=&page=&page_size=.
// Missing or malformed numbers keep the defaults; the result is normalized.
func ParseListState(query url.Values) dashboard.ListState {
	state := dashboard.NewListState()
	state.Query = sanitizeInput(query.Get("q"))
	state.Sort = dashboard.ParseSort(query.Get("sort"))

	if v := strings.TrimSpace(query.Get("page")); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			state.Page = p
		}
	}
	if v := strings.TrimSpace(query.Get("page_size")); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			state.PageSize = n
		}
	}
	return state.Normalized()
}
