// Package source defines the ports the proxy uses to read the bill tables.
package source

import (
	"context"
	"errors"

	"foodie/internal/core"
)

// Ports for outbound adapters.
type (
	// RecordLister returns every row of the activity table.
	RecordLister interface {
		ListRecords(ctx context.Context) ([]core.Row, error)
	}

	// RestaurantLister returns the restaurant view of the activity table,
	// each row carrying its linked restaurant records under the details field.
	RestaurantLister interface {
		ListRestaurants(ctx context.Context) ([]core.Row, error)
	}

	Source interface {
		RecordLister
		RestaurantLister
	}
)

// ConfigError reports a setting the source needs but does not have. The
// message is safe to show to clients.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }

// IsConfigError reports whether err (or anything it wraps) is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// DetailsField is the field linked restaurant records are embedded under.
const DetailsField = "ToidudDetails"
