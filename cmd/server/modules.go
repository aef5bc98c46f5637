package main

import (
	"encoding/json"
	"net/http"

	"github.com/JaimeStill/qtgreview/internal/api"
	"github.com/JaimeStill/qtgreview/internal/config"
	"github.com/JaimeStill/qtgreview/internal/infrastructure"
	"github.com/JaimeStill/qtgreview/pkg/module"
	"github.com/JaimeStill/qtgreview/web/app"
)

// Modules holds the mounted sub-applications and the domain they share.
type Modules struct {
	Domain *api.Domain
	API    *module.Module
	App    *module.Module
}

// NewModules builds the workflow domain once and mounts it under both the
// JSON API and the HTML form.
func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) (*Modules, error) {
	domain := api.NewDomain(cfg.Workflow.Settings(), infra)
	runtime := api.NewRuntime(cfg, infra)

	appModule, err := app.NewModule(
		cfg.API.AppBasePath,
		domain.Workflow,
		cfg.API.MaxUploadSizeBytes(),
		infra.Logger,
	)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, runtime, domain)
	if err != nil {
		return nil, err
	}

	return &Modules{
		Domain: domain,
		API:    apiModule,
		App:    appModule,
	}, nil
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
	router.Mount(m.App)
}

func buildRouter(infra *infrastructure.Infrastructure, appPath string) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, appPath+"/", http.StatusFound)
	})

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if !infra.Lifecycle.Ready() {
			writeStatus(w, http.StatusServiceUnavailable, "not ready")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})

	return router
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}
