package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

const (
	EnvServerHost              = "QTG_SERVER_HOST"
	EnvServerPort              = "QTG_SERVER_PORT"
	EnvServerReadHeaderTimeout = "QTG_SERVER_READ_HEADER_TIMEOUT"
	EnvServerReadTimeout       = "QTG_SERVER_READ_TIMEOUT"
	EnvServerWriteTimeout      = "QTG_SERVER_WRITE_TIMEOUT"
	EnvServerShutdownTimeout   = "QTG_SERVER_SHUTDOWN_TIMEOUT"
)

// ServerConfig holds HTTP listener parameters. Timeouts are Go duration strings.
type ServerConfig struct {
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	ReadHeaderTimeout string `toml:"read_header_timeout"`
	ReadTimeout       string `toml:"read_timeout"`
	WriteTimeout      string `toml:"write_timeout"`
	ShutdownTimeout   string `toml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Timeouts returns the parsed read-header, read, write and shutdown timeouts.
// Finalize guarantees they parse.
func (c *ServerConfig) Timeouts() (readHeader, read, write, shutdown time.Duration) {
	readHeader, _ = time.ParseDuration(c.ReadHeaderTimeout)
	read, _ = time.ParseDuration(c.ReadTimeout)
	write, _ = time.ParseDuration(c.WriteTimeout)
	shutdown, _ = time.ParseDuration(c.ShutdownTimeout)
	return
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *ServerConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *ServerConfig) Merge(overlay *ServerConfig) {
	if overlay.Port != 0 {
		c.Port = overlay.Port
	}
	for _, f := range c.durations(overlay) {
		if *f.src != "" {
			*f.dst = *f.src
		}
	}
	if overlay.Host != "" {
		c.Host = overlay.Host
	}
}

type durationField struct {
	name string
	env  string
	dst  *string
	src  *string
}

// durations pairs each timeout field of c with the same field of other.
func (c *ServerConfig) durations(other *ServerConfig) []durationField {
	return []durationField{
		{"read_header_timeout", EnvServerReadHeaderTimeout, &c.ReadHeaderTimeout, &other.ReadHeaderTimeout},
		{"read_timeout", EnvServerReadTimeout, &c.ReadTimeout, &other.ReadTimeout},
		{"write_timeout", EnvServerWriteTimeout, &c.WriteTimeout, &other.WriteTimeout},
		{"shutdown_timeout", EnvServerShutdownTimeout, &c.ShutdownTimeout, &other.ShutdownTimeout},
	}
}

func (c *ServerConfig) loadDefaults() {
	defaults := ServerConfig{
		Host:              "0.0.0.0",
		Port:              8080,
		ReadHeaderTimeout: "10s",
		ReadTimeout:       "1m",
		WriteTimeout:      "5m",
		ShutdownTimeout:   "30s",
	}
	if c.Host == "" {
		c.Host = defaults.Host
	}
	if c.Port == 0 {
		c.Port = defaults.Port
	}
	for _, f := range c.durations(&defaults) {
		if *f.dst == "" {
			*f.dst = *f.src
		}
	}
}

func (c *ServerConfig) loadEnv() {
	if v := os.Getenv(EnvServerHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServerPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	for _, f := range c.durations(c) {
		if v := os.Getenv(f.env); v != "" {
			*f.dst = v
		}
	}
}

func (c *ServerConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	for _, f := range c.durations(c) {
		if _, err := time.ParseDuration(*f.dst); err != nil {
			return fmt.Errorf("invalid %s: %w", f.name, err)
		}
	}
	return nil
}
