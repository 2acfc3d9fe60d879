package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/model"
	"github.com/faucetdb/basin/internal/server"
	"github.com/faucetdb/basin/internal/service"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = "basin.yaml"

// YAMLConfig represents the top-level basin configuration file.
type YAMLConfig struct {
	Server     ServerConfig   `yaml:"server"`
	Database   DatabaseConfig `yaml:"database"`
	Auth       AuthConfig     `yaml:"auth"`
	FieldTypes string         `yaml:"field_types,omitempty"`
	MCP        MCPConfig      `yaml:"mcp"`
	Logging    LoggingConfig  `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string     `yaml:"host"`
	Port            int        `yaml:"port"`
	MaxBodySize     string     `yaml:"max_body_size"`
	ShutdownTimeout string     `yaml:"shutdown_timeout"`
	SessionTTL      string     `yaml:"session_ttl"`
	RateLimit       int        `yaml:"rate_limit"`
	TenantRateLimit int        `yaml:"tenant_rate_limit"`
	CORS            CORSConfig `yaml:"cors"`
}

// CORSConfig controls cross-origin resource sharing settings.
type CORSConfig struct {
	Origins []string `yaml:"origins"`
}

// DatabaseConfig selects the content store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// DataDir holds one SQLite file per tenant; empty keeps tenants in memory.
	DataDir string         `yaml:"data_dir,omitempty"`
	Pool    PoolYAMLConfig `yaml:"pool"`
}

// PoolYAMLConfig controls the connection pool of the content store.
type PoolYAMLConfig struct {
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime string `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime string `yaml:"conn_max_idle_time"`
}

// AuthConfig controls authentication settings.
type AuthConfig struct {
	JWTSecret string       `yaml:"jwt_secret"`
	APIKeys   []APIKeyYAML `yaml:"api_keys"`
}

// APIKeyYAML is a configured API key. Only the SHA-256 hash of the raw key
// is stored; see `basin key hash`.
type APIKeyYAML struct {
	Label   string   `yaml:"label"`
	KeyHash string   `yaml:"key_hash"`
	UserID  string   `yaml:"user_id"`
	Tenants []string `yaml:"tenants,omitempty"`
}

// MCPConfig controls the MCP (Model Context Protocol) server.
type MCPConfig struct {
	// Enabled mounts the streamable HTTP transport at /mcp on `basin serve`.
	Enabled bool `yaml:"enabled"`
	// UserID stamps audit fields for stdio sessions.
	UserID string `yaml:"user_id"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadYAMLConfig reads and parses a YAML configuration file on top of the
// defaults. Environment variables referenced as ${VAR_NAME} in the file are
// expanded before parsing.
func LoadYAMLConfig(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	content := os.ExpandEnv(string(data))

	cfg := DefaultYAMLConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return cfg, nil
}

// DefaultYAMLConfig returns a YAMLConfig pre-filled with sensible defaults.
func DefaultYAMLConfig() *YAMLConfig {
	pool := model.DefaultPoolConfig()
	return &YAMLConfig{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxBodySize:     "10MB",
			ShutdownTimeout: "30s",
			SessionTTL:      "24h",
			RateLimit:       600,
			TenantRateLimit: 3000,
			CORS: CORSConfig{
				Origins: []string{"*"},
			},
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			Pool: PoolYAMLConfig{
				MaxOpenConns:    pool.MaxOpenConns,
				MaxIdleConns:    pool.MaxIdleConns,
				ConnMaxLifetime: pool.ConnMaxLifetime.String(),
				ConnMaxIdleTime: pool.ConnMaxIdleTime.String(),
			},
		},
		MCP: MCPConfig{
			UserID: "mcp",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// WriteDefaultConfig writes the default configuration to a YAML file.
func WriteDefaultConfig(path string) error {
	data, err := yaml.Marshal(DefaultYAMLConfig())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the settings that cannot fall back to a default.
func (c *YAMLConfig) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported database.driver %q", ErrInvalidConfig, c.Database.Driver)
	}
	for i, k := range c.Auth.APIKeys {
		if k.KeyHash == "" || k.UserID == "" {
			return fmt.Errorf("%w: auth.api_keys[%d] needs key_hash and user_id", ErrInvalidConfig, i)
		}
	}
	return nil
}

// ServerSettings converts the server section into the HTTP server settings.
func (c *YAMLConfig) ServerSettings() (server.Config, error) {
	out := server.DefaultConfig()
	if c.Server.Host != "" {
		out.Host = c.Server.Host
	}
	if c.Server.Port != 0 {
		out.Port = c.Server.Port
	}
	if len(c.Server.CORS.Origins) > 0 {
		out.CORSOrigins = c.Server.CORS.Origins
	}
	out.RateLimit = c.Server.RateLimit
	out.TenantRateLimit = c.Server.TenantRateLimit

	if c.Server.MaxBodySize != "" {
		n, err := humanize.ParseBytes(c.Server.MaxBodySize)
		if err != nil {
			return out, fmt.Errorf("%w: server.max_body_size: %v", ErrInvalidConfig, err)
		}
		out.MaxBodySize = int64(n)
	}
	var err error
	if out.ShutdownTimeout, err = duration("server.shutdown_timeout", c.Server.ShutdownTimeout, out.ShutdownTimeout); err != nil {
		return out, err
	}
	if out.SessionTTL, err = duration("server.session_ttl", c.Server.SessionTTL, out.SessionTTL); err != nil {
		return out, err
	}
	return out, nil
}

// ConnectionConfig converts the database section into connector settings.
func (c *YAMLConfig) ConnectionConfig() (connector.ConnectionConfig, error) {
	out := connector.ConnectionConfig{
		Driver:       c.Database.Driver,
		DSN:          c.Database.DSN,
		DataDir:      c.Database.DataDir,
		MaxOpenConns: c.Database.Pool.MaxOpenConns,
		MaxIdleConns: c.Database.Pool.MaxIdleConns,
	}
	var err error
	if out.ConnMaxLifetime, err = duration("database.pool.conn_max_lifetime", c.Database.Pool.ConnMaxLifetime, 0); err != nil {
		return out, err
	}
	if out.ConnMaxIdleTime, err = duration("database.pool.conn_max_idle_time", c.Database.Pool.ConnMaxIdleTime, 0); err != nil {
		return out, err
	}
	return out, nil
}

// APIKeys returns the configured API keys for the auth service.
func (c *YAMLConfig) APIKeys() []service.APIKey {
	keys := make([]service.APIKey, len(c.Auth.APIKeys))
	for i, k := range c.Auth.APIKeys {
		keys[i] = service.APIKey{
			Label:   k.Label,
			KeyHash: k.KeyHash,
			UserID:  k.UserID,
			Tenants: k.Tenants,
		}
	}
	return keys
}

func duration(key, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return d, nil
}
