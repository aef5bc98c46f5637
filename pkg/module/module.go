// Package module mounts independently configured HTTP sub-applications
// (the JSON API, the HTML form) under single-segment path prefixes.
package module

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JaimeStill/qtgreview/pkg/middleware"
)

// Module serves an inner handler below a prefix. The prefix is stripped
// before dispatch and the module applies its own middleware stack.
type Module struct {
	prefix     string
	inner      http.Handler
	middleware middleware.System
}

// New creates a Module for a single-segment prefix such as "/api".
// It panics on an empty, relative, or nested prefix.
func New(prefix string, inner http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{
		prefix:     prefix,
		inner:      inner,
		middleware: middleware.New(),
	}
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Use adds middleware to the module's stack.
func (m *Module) Use(mw middleware.Func) {
	m.middleware.Use(mw)
}

// Handler returns the inner handler wrapped with the module's middleware.
func (m *Module) Handler() http.Handler {
	return m.middleware.Apply(m.inner)
}

// Serve strips the prefix from the request path and dispatches to the inner handler.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, stripPrefix(req, m.prefix))
}

func stripPrefix(req *http.Request, prefix string) *http.Request {
	path := strings.TrimPrefix(req.URL.Path, prefix)
	if path == "" {
		path = "/"
	}

	out := req.Clone(req.Context())
	out.URL = new(url.URL)
	*out.URL = *req.URL
	out.URL.Path = path
	out.URL.RawPath = ""
	return out
}

func validatePrefix(prefix string) error {
	switch {
	case prefix == "":
		return fmt.Errorf("module prefix cannot be empty")
	case !strings.HasPrefix(prefix, "/"):
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	case strings.Count(prefix, "/") != 1, len(prefix) == 1:
		return fmt.Errorf("module prefix must be a single path segment: %s", prefix)
	}
	return nil
}
