// Package infrastructure provides core service initialization for application startup.
// It assembles the dependencies (logging, signing log backend, optional
// database and archive mirror) that the workflow requires.
package infrastructure

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/JaimeStill/qtgreview/internal/config"
	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/pkg/database"
	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
	"github.com/JaimeStill/qtgreview/pkg/storage"
)

// Infrastructure holds the core systems shared by the service modules.
// Database is nil unless the signing log is kept in SQL; Storage is nil
// unless an archive mirror is configured.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	SignLog   signlog.Backend
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithLogger(cfg, slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	infra := &Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    logger,
	}

	opts := signlog.Options{
		Format:      cfg.Workflow.Log.Format,
		StrictMatch: cfg.Workflow.Log.IsStrict(),
	}

	if cfg.UsesDatabase() {
		db, err := database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
		infra.Database = db
		opts.DB = db.Connection()
		opts.Driver = db.Driver()
	}

	if cfg.Storage.Enabled() {
		store, err := storage.New(&cfg.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
		infra.Storage = store
	}

	backend, err := signlog.NewBackend(opts)
	if err != nil {
		return nil, fmt.Errorf("signing log init failed: %w", err)
	}
	infra.SignLog = backend

	return infra, nil
}

// Start registers the configured systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	return nil
}
