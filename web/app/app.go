// Package app serves the server-rendered review form: scope selection,
// intake review, retrieval, signing and the signing log on one page.
// Every action posts back and redirects with a status message in the URL.
package app

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/url"
	"time"

	"github.com/JaimeStill/qtgreview/internal/workflow"
	"github.com/JaimeStill/qtgreview/pkg/formatting"
	"github.com/JaimeStill/qtgreview/pkg/middleware"
	"github.com/JaimeStill/qtgreview/pkg/module"
	"github.com/JaimeStill/qtgreview/pkg/web"
)

//go:embed templates static
var assets embed.FS

var views = []web.ViewDef{
	{Name: "review", Template: "review.html", Title: "QTG Review"},
	{Name: "not-found", Template: "not-found.html", Title: "Not Found"},
}

var funcs = template.FuncMap{
	"bytes": func(n int64) string { return formatting.FormatBytes(n, 1) },
	"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04") },
	"path":  url.PathEscape,
}

// NewModule creates the HTML form module mounted at basePath.
func NewModule(basePath string, sys workflow.System, maxUploadSize int64, logger *slog.Logger) (*module.Module, error) {
	ts, err := web.NewTemplateSet(assets, "templates/*.html", "templates/views", basePath, funcs, views)
	if err != nil {
		return nil, fmt.Errorf("app templates: %w", err)
	}

	h := newHandler(sys, ts, maxUploadSize, logger)

	m := module.New(basePath, h.router())
	m.Use(middleware.Logger(h.logger))
	m.Use(middleware.Recover(h.logger))
	return m, nil
}
