package models

import (
	"time"

	"github.com/google/uuid"
)

// DataSourceType identifies which adapter serves a data source.
type DataSourceType string

const (
	DataSourceCSV          DataSourceType = "csv"
	DataSourceGoogleSheets DataSourceType = "google_sheets"
	DataSourcePostgreSQL   DataSourceType = "postgresql"
	DataSourceAPI          DataSourceType = "api"
	DataSourceSQLServer    DataSourceType = "sqlserver"
)

// IsSQL reports whether sources of this type accept literal SQL.
func (t DataSourceType) IsSQL() bool {
	return t == DataSourcePostgreSQL || t == DataSourceSQLServer
}

// Valid reports whether t is a known data source type.
func (t DataSourceType) Valid() bool {
	switch t {
	case DataSourceCSV, DataSourceGoogleSheets, DataSourcePostgreSQL, DataSourceAPI, DataSourceSQLServer:
		return true
	}
	return false
}

// DataSource is a user's connection to a backend that can answer queries.
// Config is opaque here; each adapter decodes it into its own typed config.
type DataSource struct {
	ID         uuid.UUID      `json:"id"`
	UserID     string         `json:"userId"`
	Name       string         `json:"name"`
	Type       DataSourceType `json:"type"`
	Config     map[string]any `json:"config"`
	IsActive   bool           `json:"isActive"`
	LastSyncAt *time.Time     `json:"lastSyncAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}
