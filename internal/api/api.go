// Package api assembles the JSON API module from the workflow domain and
// the optional archive mirror.
package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/qtgreview/internal/config"
	"github.com/JaimeStill/qtgreview/pkg/middleware"
	"github.com/JaimeStill/qtgreview/pkg/module"
	"github.com/JaimeStill/qtgreview/pkg/openapi"
)

// NewModule creates the API module with all domain handlers, the
// OpenAPI document at /openapi.json, and middleware.
func NewModule(cfg *config.Config, runtime *Runtime, domain *Domain) (*module.Module, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, spec, domain, runtime); err != nil {
		return nil, fmt.Errorf("build openapi document: %w", err)
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))

	return m, nil
}
