package database

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Supported driver names, as registered with database/sql.
const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

// Config holds connection parameters for Postgres (through pgx) or
// SQLite (through modernc). Host, Port, Name, User, Password and SSLMode
// apply to Postgres; Path applies to SQLite.
type Config struct {
	Driver          string `toml:"driver"`
	Host            string `toml:"host"`
	Port            int    `toml:"port"`
	Name            string `toml:"name"`
	User            string `toml:"user"`
	Password        string `toml:"password"`
	SSLMode         string `toml:"ssl_mode"`
	Path            string `toml:"path"`
	MaxOpenConns    int    `toml:"max_open_conns"`
	MaxIdleConns    int    `toml:"max_idle_conns"`
	ConnMaxLifetime string `toml:"conn_max_lifetime"`
	ConnTimeout     string `toml:"conn_timeout"`
}

// Env maps config fields to environment variable names.
type Env struct {
	Driver          string
	Host            string
	Port            string
	Name            string
	User            string
	Password        string
	SSLMode         string
	Path            string
	MaxOpenConns    string
	MaxIdleConns    string
	ConnMaxLifetime string
	ConnTimeout     string
}

// ConnMaxLifetimeDuration returns ConnMaxLifetime as a time.Duration.
func (c *Config) ConnMaxLifetimeDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnMaxLifetime)
	return d
}

// ConnTimeoutDuration returns ConnTimeout as a time.Duration.
func (c *Config) ConnTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ConnTimeout)
	return d
}

// Dsn returns the data source name for the configured driver.
func (c *Config) Dsn() string {
	if c.Driver == DriverSQLite {
		q := url.Values{}
		q.Add("_pragma", "busy_timeout(5000)")
		q.Add("_pragma", "journal_mode(WAL)")
		return "file:" + c.Path + "?" + q.Encode()
	}
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.Host, c.Port, c.Name, c.User, c.Password, c.SSLMode,
	)
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if env != nil {
		c.loadEnv(env)
	}
	c.loadDefaults()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	mergeString(&c.Driver, overlay.Driver)
	mergeString(&c.Host, overlay.Host)
	mergeString(&c.Name, overlay.Name)
	mergeString(&c.User, overlay.User)
	mergeString(&c.Password, overlay.Password)
	mergeString(&c.SSLMode, overlay.SSLMode)
	mergeString(&c.Path, overlay.Path)
	mergeString(&c.ConnMaxLifetime, overlay.ConnMaxLifetime)
	mergeString(&c.ConnTimeout, overlay.ConnTimeout)
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	if overlay.MaxOpenConns != 0 {
		c.MaxOpenConns = overlay.MaxOpenConns
	}
	if overlay.MaxIdleConns != 0 {
		c.MaxIdleConns = overlay.MaxIdleConns
	}
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func (c *Config) loadDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "15m"
	}
	if c.ConnTimeout == "" {
		c.ConnTimeout = "5s"
	}

	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			c.Path = "signing_log.db"
		}
		// one writer at a time
		if c.MaxOpenConns == 0 {
			c.MaxOpenConns = 1
		}
		if c.MaxIdleConns == 0 {
			c.MaxIdleConns = 1
		}
	case DriverPostgres:
		if c.Host == "" {
			c.Host = "localhost"
		}
		if c.Port == 0 {
			c.Port = 5432
		}
		if c.SSLMode == "" {
			c.SSLMode = "disable"
		}
		if c.MaxOpenConns == 0 {
			c.MaxOpenConns = 10
		}
		if c.MaxIdleConns == 0 {
			c.MaxIdleConns = 2
		}
	}
}

func (c *Config) loadEnv(env *Env) {
	strs := []struct {
		key string
		dst *string
	}{
		{env.Driver, &c.Driver},
		{env.Host, &c.Host},
		{env.Name, &c.Name},
		{env.User, &c.User},
		{env.Password, &c.Password},
		{env.SSLMode, &c.SSLMode},
		{env.Path, &c.Path},
		{env.ConnMaxLifetime, &c.ConnMaxLifetime},
		{env.ConnTimeout, &c.ConnTimeout},
	}
	for _, s := range strs {
		if s.key == "" {
			continue
		}
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{env.Port, &c.Port},
		{env.MaxOpenConns, &c.MaxOpenConns},
		{env.MaxIdleConns, &c.MaxIdleConns},
	}
	for _, i := range ints {
		if i.key == "" {
			continue
		}
		if v := os.Getenv(i.key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*i.dst = n
			}
		}
	}
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverSQLite:
		if c.Path == "" {
			return fmt.Errorf("path required for sqlite")
		}
	case DriverPostgres:
		if c.Name == "" {
			return fmt.Errorf("name required")
		}
		if c.User == "" {
			return fmt.Errorf("user required")
		}
	default:
		return fmt.Errorf("unsupported driver %q (want %s or %s)", c.Driver, DriverPostgres, DriverSQLite)
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return fmt.Errorf("invalid conn_max_lifetime: %w", err)
	}
	if _, err := time.ParseDuration(c.ConnTimeout); err != nil {
		return fmt.Errorf("invalid conn_timeout: %w", err)
	}
	return nil
}
