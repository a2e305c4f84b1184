package mssql

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-insights/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-insights/pkg/config"
)

const (
	AuthSQL              = "sql"
	AuthServicePrincipal = "service_principal"
)

// Config contains SQL Server-specific connection options.
type Config struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Database string `json:"database" validate:"required"`

	// AuthMethod is "sql" or "service_principal"; it is inferred from the
	// credentials present when empty.
	AuthMethod string `json:"auth_method" validate:"omitempty,oneof=sql service_principal"`

	// SQL Authentication fields
	Username string `json:"username" validate:"required_if=AuthMethod sql"`
	Password string `json:"password"`

	// Service Principal (Azure AD) fields
	TenantID     string `json:"tenant_id" validate:"required_if=AuthMethod service_principal"`
	ClientID     string `json:"client_id" validate:"required_if=AuthMethod service_principal"`
	ClientSecret string `json:"client_secret" validate:"required_if=AuthMethod service_principal"`

	// Connection options
	Encrypt                *bool `json:"encrypt"`
	TrustServerCertificate bool  `json:"trust_server_certificate"`
	ConnectionTimeout      int   `json:"connection_timeout"`

	Table  string `json:"table"`
	Schema string `json:"schema"`
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int {
	return 1433
}

// DefaultConnectionTimeout returns the default connection timeout in seconds.
func DefaultConnectionTimeout() int {
	return 30
}

// DefaultSchema is where tables are listed and looked up.
const DefaultSchema = "dbo"

// FromMap decodes a stored config map and infers the auth method.
// "user" is accepted as a spelling of "username".
func FromMap(raw map[string]any) (*Config, error) {
	if raw != nil {
		copied := make(map[string]any, len(raw))
		for k, v := range raw {
			copied[k] = v
		}
		if u, ok := copied["user"]; ok {
			if _, set := copied["username"]; !set {
				copied["username"] = u
			}
			delete(copied, "user")
		}
		if _, set := copied["auth_method"]; !set {
			if _, sp := copied["client_id"]; sp {
				copied["auth_method"] = AuthServicePrincipal
			} else {
				copied["auth_method"] = AuthSQL
			}
		}
		raw = copied
	}

	cfg := &Config{}
	if err := datasource.DecodeConfig(sourceName, raw, cfg); err != nil {
		return nil, err
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort()
	}
	if cfg.ConnectionTimeout == 0 {
		cfg.ConnectionTimeout = DefaultConnectionTimeout()
	}
	if cfg.Encrypt == nil {
		t := true
		cfg.Encrypt = &t
	}
	if cfg.Schema == "" {
		cfg.Schema = DefaultSchema
	}
	return cfg, nil
}

// driverAndDSN returns the database/sql driver name and connection string for
// the configured auth method. Service principals go through the azuresql
// driver registered by go-mssqldb/azuread.
func driverAndDSN(cfg *Config) (string, string) {
	query := url.Values{}
	query.Add("database", cfg.Database)
	query.Add("encrypt", strconv.FormatBool(*cfg.Encrypt))
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}

	host := config.ResolveHostForDocker(cfg.Host)

	if cfg.AuthMethod == AuthServicePrincipal {
		query.Add("fedauth", "ActiveDirectoryServicePrincipal")
		query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
		query.Add("password", cfg.ClientSecret)
		return "azuresql", fmt.Sprintf("sqlserver://%s:%d?%s", host, cfg.Port, query.Encode())
	}

	return "sqlserver", fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		host,
		cfg.Port,
		query.Encode(),
	)
}
