// Package web renders server-side HTML pages from embedded templates and
// serves their static assets.
package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

// ViewDef names a page template and its title.
type ViewDef struct {
	Name     string
	Template string
	Title    string
}

// ViewData is passed to every page template. BasePath lets templates
// build links that work wherever the module is mounted.
type ViewData struct {
	Title    string
	BasePath string
	Flash    *Flash
	Data     any
}

// Flash is a one-shot status message shown after a form post redirects.
type Flash struct {
	Kind    string
	Message string
}

// TemplateSet holds layouts cloned and combined with each view, parsed once
// at construction so template errors surface at startup.
type TemplateSet struct {
	views    map[string]*template.Template
	defs     map[string]ViewDef
	basePath string
}

// NewTemplateSet parses the layouts matched by layoutGlob, then clones them
// for every view found under viewDir.
func NewTemplateSet(fsys fs.FS, layoutGlob, viewDir, basePath string, funcs template.FuncMap, views []ViewDef) (*TemplateSet, error) {
	layouts, err := template.New("").Funcs(funcs).ParseFS(fsys, layoutGlob)
	if err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}

	viewFS, err := fs.Sub(fsys, viewDir)
	if err != nil {
		return nil, err
	}

	ts := &TemplateSet{
		views:    make(map[string]*template.Template, len(views)),
		defs:     make(map[string]ViewDef, len(views)),
		basePath: basePath,
	}
	for _, v := range views {
		t, err := layouts.Clone()
		if err != nil {
			return nil, fmt.Errorf("clone layouts for %s: %w", v.Name, err)
		}
		if _, err := t.ParseFS(viewFS, v.Template); err != nil {
			return nil, fmt.Errorf("parse view %s: %w", v.Template, err)
		}
		ts.views[v.Name] = t
		ts.defs[v.Name] = v
	}
	return ts, nil
}

// BasePath returns the prefix used for generated links.
func (ts *TemplateSet) BasePath() string {
	return ts.basePath
}

// Render executes layout for the named view and writes it with status.
// Output is buffered so a template error never yields a partial page.
func (ts *TemplateSet) Render(w http.ResponseWriter, status int, layout, view string, flash *Flash, data any) error {
	t, ok := ts.views[view]
	if !ok {
		return fmt.Errorf("view not found: %s", view)
	}

	vd := ViewData{
		Title:    ts.defs[view].Title,
		BasePath: ts.basePath,
		Flash:    flash,
		Data:     data,
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layout, vd); err != nil {
		return fmt.Errorf("render %s: %w", view, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
