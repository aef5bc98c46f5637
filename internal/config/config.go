// Package config loads the service configuration from config.toml, an
// optional config.<env>.toml overlay and QTG_* environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/pkg/database"
	"github.com/JaimeStill/qtgreview/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvQTGEnv             = "QTG_ENV"
	EnvQTGConfigDir       = "QTG_CONFIG_DIR"
	EnvQTGShutdownTimeout = "QTG_SHUTDOWN_TIMEOUT"
	EnvQTGVersion         = "QTG_VERSION"
)

var databaseEnv = &database.Env{
	Driver:          "QTG_DB_DRIVER",
	Host:            "QTG_DB_HOST",
	Port:            "QTG_DB_PORT",
	Name:            "QTG_DB_NAME",
	User:            "QTG_DB_USER",
	Password:        "QTG_DB_PASSWORD",
	SSLMode:         "QTG_DB_SSL_MODE",
	Path:            "QTG_DB_PATH",
	MaxOpenConns:    "QTG_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "QTG_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "QTG_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "QTG_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "QTG_STORAGE_CONTAINER_NAME",
	ConnectionString: "QTG_STORAGE_CONNECTION_STRING",
	ServiceURL:       "QTG_STORAGE_SERVICE_URL",
	Prefix:           "QTG_STORAGE_PREFIX",
}

// Config is the root configuration for the QTG review service.
type Config struct {
	Server          ServerConfig    `toml:"server"`
	API             APIConfig       `toml:"api"`
	Workflow        WorkflowConfig  `toml:"workflow"`
	Database        database.Config `toml:"database"`
	Storage         storage.Config  `toml:"storage"`
	ShutdownTimeout string          `toml:"shutdown_timeout"`
	Version         string          `toml:"version"`
}

// Env returns the QTG_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvQTGEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// UsesDatabase reports whether the signing log is kept in SQL.
func (c *Config) UsesDatabase() bool {
	return c.Workflow.Log.Format == signlog.FormatSQL
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. Files are resolved against QTG_CONFIG_DIR when
// set. Without a config.toml, defaults and environment variables provide
// all configuration.
func Load() (*Config, error) {
	cfg := &Config{}
	dir := os.Getenv(EnvQTGConfigDir)

	base := resolve(dir, BaseConfigFile)
	if _, err := os.Stat(base); err == nil {
		loaded, err := load(base)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if path := overlayPath(dir); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.API.Merge(&overlay.API)
	c.Workflow.Merge(&overlay.Workflow)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Workflow.Finalize(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if c.UsesDatabase() {
		if err := c.Database.Finalize(databaseEnv); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvQTGShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvQTGVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	return &cfg, nil
}

func overlayPath(dir string) string {
	if env := os.Getenv(EnvQTGEnv); env != "" {
		path := resolve(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func resolve(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + string(os.PathSeparator) + name
}
