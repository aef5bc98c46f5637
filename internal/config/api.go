package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/qtgreview/pkg/formatting"
	"github.com/JaimeStill/qtgreview/pkg/middleware"
	"github.com/JaimeStill/qtgreview/pkg/openapi"
	"github.com/JaimeStill/qtgreview/pkg/pagination"
)

const (
	EnvAPIBasePath      = "QTG_API_BASE_PATH"
	EnvAPIMaxUploadSize = "QTG_API_MAX_UPLOAD_SIZE"
	EnvAppBasePath      = "QTG_APP_BASE_PATH"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "QTG_CORS_ENABLED",
	Origins:          "QTG_CORS_ORIGINS",
	AllowedMethods:   "QTG_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "QTG_CORS_ALLOWED_HEADERS",
	AllowCredentials: "QTG_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "QTG_CORS_MAX_AGE",
}

var openAPIEnv = &openapi.ConfigEnv{
	Title:       "QTG_OPENAPI_TITLE",
	Description: "QTG_OPENAPI_DESCRIPTION",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "QTG_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "QTG_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds routing, upload, CORS, pagination, and API document
// settings for the JSON API and the HTML form.
type APIConfig struct {
	BasePath      string                `toml:"base_path"`
	AppBasePath   string                `toml:"app_base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes returns MaxUploadSize in bytes. Finalize guarantees it parses.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, _ := formatting.ParseBytes(c.MaxUploadSize)
	return size
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openAPIEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.AppBasePath != "" {
		c.AppBasePath = overlay.AppBasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.AppBasePath == "" {
		c.AppBasePath = "/app"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = "10MB"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAppBasePath); v != "" {
		c.AppBasePath = v
	}
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}
}

func (c *APIConfig) validate() error {
	for name, p := range map[string]string{"base_path": c.BasePath, "app_base_path": c.AppBasePath} {
		if !strings.HasPrefix(p, "/") || len(p) == 1 || strings.Count(p, "/") != 1 {
			return fmt.Errorf("invalid %s %q: must be a single path segment like /api", name, p)
		}
	}
	if c.BasePath == c.AppBasePath {
		return fmt.Errorf("base_path and app_base_path must differ")
	}
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		return fmt.Errorf("invalid max_upload_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_upload_size must be positive")
	}
	return nil
}
