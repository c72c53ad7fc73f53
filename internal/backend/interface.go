package backend

import (
	"context"
	"time"

	"foodie/internal/source"
	"foodie/internal/source/airtable"
	"foodie/internal/source/google"
)

// CleanupFunc releases resources held by a backend
type CleanupFunc func() error

// ReadyFunc reports whether the backend can serve requests
type ReadyFunc func(ctx context.Context) error

// BackendResult contains the source and its lifecycle hooks. Ready and
// Cleanup may be nil.
type BackendResult struct {
	Type    BackendType
	Source  source.Source
	Ready   ReadyFunc
	Cleanup CleanupFunc
}

// Close runs Cleanup when set.
func (r *BackendResult) Close() error {
	if r == nil || r.Cleanup == nil {
		return nil
	}
	return r.Cleanup()
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	Airtable airtable.Config
	Google   google.Config

	MemoryDataFile string
	SQLiteDBPath   string

	// CacheTTL of zero uses the cached package default. NoCache returns the
	// bare source, which the snapshot command needs to read fresh data.
	CacheTTL time.Duration
	NoCache  bool
}

// BackendType represents the type of backend
type BackendType string

const (
	AirtableBackend BackendType = "airtable"
	SheetsBackend   BackendType = "sheets"
	MemoryBackend   BackendType = "memory"
	SQLiteBackend   BackendType = "sqlite"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case AirtableBackend, SheetsBackend, MemoryBackend, SQLiteBackend:
		return true
	default:
		return false
	}
}

// IsRemote reports whether the backend reads from a hosted table service.
func (bt BackendType) IsRemote() bool {
	return bt == AirtableBackend || bt == SheetsBackend
}
