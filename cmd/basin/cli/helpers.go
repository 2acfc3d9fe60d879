package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/faucetdb/basin/internal/config"
	"github.com/faucetdb/basin/internal/connector"
	"github.com/faucetdb/basin/internal/connector/postgres"
	"github.com/faucetdb/basin/internal/connector/sqlite"
	"github.com/faucetdb/basin/internal/fieldtype"
	"github.com/faucetdb/basin/internal/service"
)

// overridable lists the settings BASIN_* environment variables may replace,
// e.g. BASIN_DATABASE_DSN for database.dsn.
var overridable = []string{
	"server.host",
	"server.port",
	"database.driver",
	"database.dsn",
	"database.data_dir",
	"auth.jwt_secret",
	"field_types",
	"mcp.user_id",
	"logging.level",
	"logging.format",
}

// loadConfig reads the config file found by initConfig, applies environment
// overrides and validates the result. Without a file the defaults are used.
func loadConfig() (*config.YAMLConfig, error) {
	cfg := config.DefaultYAMLConfig()
	if path := viper.ConfigFileUsed(); path != "" {
		if _, err := os.Stat(path); err == nil || cfgFile != "" {
			loaded, err := config.LoadYAMLConfig(path)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		}
	}

	env := viper.New()
	env.SetEnvPrefix("BASIN")
	env.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	env.AutomaticEnv()
	for _, key := range overridable {
		if !env.IsSet(key) {
			continue
		}
		switch key {
		case "server.host":
			cfg.Server.Host = env.GetString(key)
		case "server.port":
			cfg.Server.Port = env.GetInt(key)
		case "database.driver":
			cfg.Database.Driver = env.GetString(key)
		case "database.dsn":
			cfg.Database.DSN = env.GetString(key)
		case "database.data_dir":
			cfg.Database.DataDir = env.GetString(key)
		case "auth.jwt_secret":
			cfg.Auth.JWTSecret = env.GetString(key)
		case "field_types":
			cfg.FieldTypes = env.GetString(key)
		case "mcp.user_id":
			cfg.MCP.UserID = env.GetString(key)
		case "logging.level":
			cfg.Logging.Level = env.GetString(key)
		case "logging.format":
			cfg.Logging.Format = env.GetString(key)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the process logger from the logging section. dev forces
// debug level.
func newLogger(cfg config.LoggingConfig, w io.Writer, dev bool) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if dev {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// newRegistry creates a connector registry with the supported content stores.
func newRegistry() *connector.Registry {
	registry := connector.NewRegistry()
	registry.RegisterDriver("postgres", func() connector.Connector { return postgres.New() })
	registry.RegisterDriver("sqlite", func() connector.Connector { return sqlite.New() })
	return registry
}

// openContent connects the content store and builds the content service
// with the built-in and configured field types.
func openContent(cfg *config.YAMLConfig, logger *slog.Logger) (connector.Connector, *service.ContentService, error) {
	var custom []fieldtype.Descriptor
	if cfg.FieldTypes != "" {
		loaded, err := fieldtype.LoadFile(cfg.FieldTypes)
		if err != nil {
			return nil, nil, fmt.Errorf("load field types: %w", err)
		}
		custom = loaded
	}
	types, err := fieldtype.NewRegistry(custom...)
	if err != nil {
		return nil, nil, fmt.Errorf("field types: %w", err)
	}

	connCfg, err := cfg.ConnectionConfig()
	if err != nil {
		return nil, nil, err
	}
	conn, err := newRegistry().Open(connCfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("content store connected", "driver", connCfg.Driver, "field_types", len(types.List()))
	return conn, service.NewContentService(conn, types, logger), nil
}

// newAuthService builds the auth service, falling back to a development
// secret when none is configured.
func newAuthService(cfg *config.YAMLConfig, logger *slog.Logger) *service.AuthService {
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		logger.Warn("auth.jwt_secret is not set, using an insecure development secret")
		secret = "basin-dev-secret-change-me"
	}
	return service.NewAuthService(secret, cfg.APIKeys()...)
}

// isTerminal reports whether f is attached to a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// versionString returns a display version string.
func versionString() string {
	if appVersion == "" || appVersion == "dev" {
		return "dev"
	}
	if strings.HasPrefix(appVersion, "v") {
		return appVersion
	}
	return "v" + appVersion
}
