package api

import (
	"github.com/JaimeStill/qtgreview/internal/config"
	"github.com/JaimeStill/qtgreview/internal/infrastructure"
	"github.com/JaimeStill/qtgreview/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination    pagination.Config
	MaxUploadSize int64
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	scoped := *infra
	scoped.Logger = infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &scoped,
		Pagination:     cfg.API.Pagination,
		MaxUploadSize:  cfg.API.MaxUploadSizeBytes(),
	}
}
