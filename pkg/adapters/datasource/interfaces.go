package datasource

import (
	"context"

	"github.com/ekaya-inc/ekaya-insights/pkg/models"
)

// Adapter is the capability every data source type implements. The raw
// config map comes straight from storage; each adapter decodes it into its
// own typed config on every call.
type Adapter interface {
	// GetSchema describes the columns the source exposes.
	GetSchema(ctx context.Context, cfg map[string]any) (*models.Schema, error)

	// ExecuteQuery runs q and returns records plus their column order.
	// Backend failures come back as *apperrors.ConnectionError, bad config
	// as *apperrors.ConfigurationError.
	ExecuteQuery(ctx context.Context, cfg map[string]any, q models.Query) (*models.Result, error)

	// ValidateConnection reports whether the source is reachable with cfg.
	// It never returns an error and never panics.
	ValidateConnection(ctx context.Context, cfg map[string]any) bool
}

// MaxQueryLimit caps rows returned by SQL sources when the statement has no
// limit of its own.
const MaxQueryLimit = 1000
