package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"foodie/internal/log"
	"foodie/internal/source"
	"foodie/internal/source/airtable"
)

// Client-facing messages for fetch failures that are neither configuration
// nor upstream status errors.
const (
	msgRecordsFailed     = "Failed to fetch data from Airtable."
	msgRestaurantsFailed = "Failed to fetch and process data from Airtable."
)

// sourceErrorResponse maps a source error to the response the client sees:
// configuration errors keep their message, upstream errors keep their
// status, anything else becomes a generic 500.
func sourceErrorResponse(err error, fallback string) *JSONResponseBuilder {
	var cfgErr *source.ConfigError
	if errors.As(err, &cfgErr) {
		return InternalServerError(cfgErr.Message)
	}
	if apiErr, ok := airtable.IsAPIError(err); ok {
		return ErrorResponse(apiErr.StatusCode, apiErr.Error())
	}
	return InternalServerError(fallback)
}

func (s *Server) writeSourceError(ctx context.Context, w http.ResponseWriter, err error, op, fallback string) {
	s.structured.LogError(ctx, "Data source request failed", err, log.ComponentSource, op, nil)
	sourceErrorResponse(err, fallback).Write(w)
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
