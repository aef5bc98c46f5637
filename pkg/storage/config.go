package storage

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds Azure Blob Storage connection parameters for the archive mirror.
// The mirror is enabled when either ConnectionString or ServiceURL is set;
// ServiceURL authenticates through the Azure default credential chain.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	ServiceURL       string `toml:"service_url"`
	Prefix           string `toml:"prefix"`
}

// Env maps config fields to environment variable names.
type Env struct {
	ContainerName    string
	ConnectionString string
	ServiceURL       string
	Prefix           string
}

// Enabled reports whether any endpoint is configured.
func (c *Config) Enabled() bool {
	return c.ConnectionString != "" || c.ServiceURL != ""
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	if c.ContainerName == "" {
		c.ContainerName = "qtg-archive"
	}
	if env != nil {
		c.loadEnv(env)
	}
	c.Prefix = strings.Trim(c.Prefix, "/")
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.ServiceURL != "" {
		c.ServiceURL = overlay.ServiceURL
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
}

func (c *Config) loadEnv(env *Env) {
	for _, o := range []struct {
		key string
		dst *string
	}{
		{env.ContainerName, &c.ContainerName},
		{env.ConnectionString, &c.ConnectionString},
		{env.ServiceURL, &c.ServiceURL},
		{env.Prefix, &c.Prefix},
	} {
		if o.key == "" {
			continue
		}
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

func (c *Config) validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ConnectionString != "" && c.ServiceURL != "" {
		return fmt.Errorf("set connection_string or service_url, not both")
	}
	if c.ServiceURL != "" {
		u, err := url.Parse(c.ServiceURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid service_url: %q", c.ServiceURL)
		}
	}
	if strings.Contains(c.Prefix, "..") {
		return fmt.Errorf("prefix contains invalid path segment")
	}
	return nil
}
