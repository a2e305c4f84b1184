package postgres

import (
	"fmt"
	"net/url"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/config"
)

// Config contains PostgreSQL-specific connection options. Either
// ConnectionString or the discrete fields must be set.
type Config struct {
	ConnectionString string `json:"connection_string"`
	Host             string `json:"host" validate:"required_without=ConnectionString"`
	Port             int    `json:"port" validate:"omitempty,min=1,max=65535"`
	User             string `json:"user" validate:"required_without=ConnectionString"`
	Password         string `json:"password"`
	Database         string `json:"database" validate:"required_without=ConnectionString"`
	SSLMode          string `json:"ssl_mode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	// Table is described by GetSchema and queried by structured queries.
	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// DefaultPort returns the default PostgreSQL port.
func DefaultPort() int {
	return 5432
}

// DefaultSSLMode returns the default SSL mode.
func DefaultSSLMode() string {
	return "require"
}

// DefaultSchema is where tables are listed and looked up.
const DefaultSchema = "public"

// FromMap decodes a stored config map. "name" and "table_name" are accepted
// as older spellings of "database" and "table".
func FromMap(raw map[string]any) (*Config, error) {
	if raw != nil {
		raw = aliased(raw, map[string]string{"name": "database", "table_name": "table", "connectionString": "connection_string", "tableName": "table"})
	}
	cfg := &Config{}
	if err := datasource.DecodeConfig(sourceName, raw, cfg); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.SSLMode == "" {
		cfg.SSLMode = DefaultSSLMode()
	}
	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema
	}
	return cfg, nil
}

func aliased(raw map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(raw))
	for k, v := range raw {
		out[k] = v
	}
	for old, canonical := range aliases {
		if v, ok := out[old]; ok {
			if _, set := out[canonical]; !set {
				out[canonical] = v
			}
			delete(out, old)
		}
	}
	return out
}

// buildConnectionString builds a PostgreSQL URL with proper escaping.
// User-provided fields are URL-escaped so that passwords containing @, /, #
// or ? survive parsing. localhost resolves to host.docker.internal inside
// Docker so databases on the host machine stay reachable.
func buildConnectionString(cfg *Config) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	host := config.ResolveHostForDocker(cfg.Host)

	return fmt.Sprintf(
		"postgresql://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(cfg.User),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		url.QueryEscape(cfg.Database),
		cfg.SSLMode,
	)
}
