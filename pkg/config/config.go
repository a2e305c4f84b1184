package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// ConfigFile is read from the working directory when present.
const ConfigFile = "config.yaml"

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config holds all configuration for ekaya-insights.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3001"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL" env-default:""`
	Version  string `yaml:"-"` // Set at load time, not from config

	// ShutdownTimeout bounds graceful shutdown of the HTTP server and scheduler.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"15s"`

	Database    DatabaseConfig    `yaml:"database"`
	Datasource  DatasourceConfig  `yaml:"datasource"`
	AI          AIConfig          `yaml:"ai"`
	SchemaCache SchemaCacheConfig `yaml:"schema_cache"`
	Sync        SyncConfig        `yaml:"sync"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// DatabaseConfig selects and configures application storage. The memory
// backend keeps everything in process and needs no other settings.
type DatabaseConfig struct {
	Backend        string `yaml:"backend" env:"STORAGE_BACKEND" env-default:"memory"`
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_insights"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// DatasourceConfig sizes the pools opened against user SQL sources.
type DatasourceConfig struct {
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
}

// AIConfig configures the optional AI collaborator. Without an API key the
// service answers with the deterministic fallback only.
type AIConfig struct {
	Provider    string  `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`
	Endpoint    string  `yaml:"endpoint" env:"AI_ENDPOINT" env-default:""`
	Model       string  `yaml:"model" env:"AI_MODEL" env-default:""`
	APIKey      string  `yaml:"-" env:"AI_API_KEY"` // Secret - not in YAML
	Temperature float64 `yaml:"temperature" env:"AI_TEMPERATURE" env-default:"0.1"`
	MaxTokens   int     `yaml:"max_tokens" env:"AI_MAX_TOKENS" env-default:"2000"`
}

// Enabled reports whether an AI provider can be built.
func (c *AIConfig) Enabled() bool {
	return c.APIKey != ""
}

// SchemaCacheConfig tunes the SQL schema cache.
type SchemaCacheConfig struct {
	TTL          time.Duration `yaml:"ttl" env:"SCHEMA_CACHE_TTL" env-default:"5m"`
	FetchTimeout time.Duration `yaml:"fetch_timeout" env:"SCHEMA_FETCH_TIMEOUT" env-default:"3s"`
}

// SyncConfig schedules the periodic data source sync. An empty schedule
// disables it.
type SyncConfig struct {
	Schedule string `yaml:"schedule" env:"SYNC_SCHEDULE" env-default:"0 * * * *"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// Without config.yaml only the environment is read. The version parameter is
// injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat(ConfigFile); errors.Is(err, fs.ErrNotExist) {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	} else if err := cleanenv.ReadConfig(ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", ConfigFile, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Database.Backend = strings.ToLower(strings.TrimSpace(c.Database.Backend))
	switch c.Database.Backend {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("database.backend must be %q or %q, got %q", StorageMemory, StoragePostgres, c.Database.Backend)
	}

	c.AI.Provider = strings.ToLower(strings.TrimSpace(c.AI.Provider))
	switch c.AI.Provider {
	case "openai", "anthropic":
	default:
		return fmt.Errorf("ai.provider must be openai or anthropic, got %q", c.AI.Provider)
	}

	if c.SchemaCache.TTL < 0 || c.SchemaCache.FetchTimeout < 0 {
		return fmt.Errorf("schema cache durations must not be negative")
	}
	if c.Datasource.PoolMinConns > c.Datasource.PoolMaxConns {
		return fmt.Errorf("datasource.pool_min_conns (%d) exceeds pool_max_conns (%d)",
			c.Datasource.PoolMinConns, c.Datasource.PoolMaxConns)
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.BindAddr + ":" + c.Port
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		ResolveHostForDocker(c.Host), c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
