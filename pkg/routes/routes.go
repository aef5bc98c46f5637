// Package routes declares HTTP routes as data and registers them on a ServeMux
// using method-qualified patterns.
package routes

import (
	"net/http"

	"github.com/JaimeStill/qtgreview/pkg/openapi"
)

// Route binds an HTTP method and path pattern to a handler.
type Route struct {
	Method  string
	Pattern string
	Handler http.HandlerFunc
	OpenAPI *openapi.Operation
}

// Group collects routes under a shared prefix. Children inherit the
// accumulated prefix of their parents.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Patterns returns the fully qualified mux patterns the group registers,
// in registration order.
func (g Group) Patterns() []string {
	var out []string
	g.walk("", func(pattern string, _ http.HandlerFunc) {
		out = append(out, pattern)
	})
	return out
}

// Register adds every route of the given groups to mux.
func Register(mux *http.ServeMux, groups ...Group) {
	for _, g := range groups {
		g.walk("", func(pattern string, h http.HandlerFunc) {
			mux.HandleFunc(pattern, h)
		})
	}
}

// Describe adds every documented route of the given groups to spec.
// Routes without an OpenAPI operation are skipped.
func Describe(spec *openapi.Spec, groups ...Group) {
	for _, g := range groups {
		g.each("", func(path string, r Route) {
			if r.OpenAPI != nil {
				spec.AddOperation(r.Method, path, r.OpenAPI)
			}
		})
	}
}

func (g Group) walk(parent string, visit func(string, http.HandlerFunc)) {
	g.each(parent, func(path string, r Route) {
		visit(r.Method+" "+path, r.Handler)
	})
}

func (g Group) each(parent string, visit func(string, Route)) {
	prefix := parent + g.Prefix
	for _, r := range g.Routes {
		visit(prefix+r.Pattern, r)
	}
	for _, child := range g.Children {
		child.each(prefix, visit)
	}
}
