package api

import (
	"net/http"

	"github.com/JaimeStill/qtgreview/internal/workflow"
	"github.com/JaimeStill/qtgreview/pkg/openapi"
	"github.com/JaimeStill/qtgreview/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, spec *openapi.Spec, domain *Domain, runtime *Runtime) error {
	groups := []routes.Group{
		domain.Workflow.Handler(runtime.MaxUploadSize, runtime.Pagination).Routes(),
	}

	if runtime.Storage != nil {
		groups = append(groups, newMirrorHandler(runtime.Storage, runtime.Logger).routes())
	}

	spec.Components.AddSchemas(workflow.Schemas())
	routes.Describe(spec, groups...)

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return err
	}

	routes.Register(mux, groups...)
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(data))
	return nil
}
