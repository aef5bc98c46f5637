package app

import (
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/internal/workflow"
	"github.com/JaimeStill/qtgreview/pkg/handlers"
	"github.com/JaimeStill/qtgreview/pkg/web"
)

type handler struct {
	sys           workflow.System
	views         *web.TemplateSet
	maxUploadSize int64
	logger        *slog.Logger
}

func newHandler(sys workflow.System, views *web.TemplateSet, maxUploadSize int64, logger *slog.Logger) *handler {
	return &handler{
		sys:           sys,
		views:         views,
		maxUploadSize: maxUploadSize,
		logger:        logger.With("module", "app", "handler", "review"),
	}
}

func (h *handler) router() *web.Router {
	r := web.NewRouter()
	r.HandleFunc("GET /{$}", h.review)
	r.HandleFunc("GET /documents/{area}/{name}", h.document)
	r.HandleFunc("POST /classify", h.classify)
	r.HandleFunc("POST /retrieve", h.retrieve)
	r.HandleFunc("POST /sign", h.sign)
	r.HandleFunc("GET /static/app.css", web.StaticFile(assets, "static/app.css"))
	r.SetFallback(h.notFound)
	return r
}

type areaView struct {
	Area      workflow.Area
	Title     string
	Documents []workflow.Document
}

type reviewData struct {
	Info    workflow.ScopeInfo
	Scope   workflow.Scope
	Query   template.URL
	Areas   []areaView
	Entries []signlog.Entry
}

var areaTitles = map[workflow.Area]string{
	workflow.AreaIntake:   "Review",
	workflow.AreaApproved: "Approved",
	workflow.AreaRejected: "Rejected",
	workflow.AreaArchived: "Signed",
}

func (h *handler) review(w http.ResponseWriter, r *http.Request) {
	info := h.sys.Scopes()
	scope := h.selectScope(info, r.URL.Query())
	flash := flashFromQuery(r.URL.Query())

	data := reviewData{
		Info:  info,
		Scope: scope,
		Query: template.URL(scope.Query().Encode()),
	}

	status := http.StatusOK
	if err := h.load(r, &data); err != nil {
		status = workflow.MapHTTPStatus(err)
		flash = &web.Flash{Kind: "error", Message: err.Error()}
		h.logger.Warn("review page degraded", "scope", scope.Key(), "error", err)
	}

	h.render(w, status, "review", flash, data)
}

func (h *handler) load(r *http.Request, data *reviewData) error {
	ctx := r.Context()
	if err := h.sys.Bootstrap(ctx, data.Scope); err != nil {
		return err
	}

	for _, area := range workflow.Areas() {
		docs, err := h.sys.List(ctx, data.Scope, area)
		if err != nil {
			return err
		}
		data.Areas = append(data.Areas, areaView{Area: area, Title: areaTitles[area], Documents: docs})
	}

	entries, err := h.sys.Entries(ctx, data.Scope)
	if err != nil {
		return err
	}
	data.Entries = entries
	return nil
}

// selectScope reads the scope from the query, falling back to the first
// catalog entry for any field left empty in scoped mode.
func (h *handler) selectScope(info workflow.ScopeInfo, values url.Values) workflow.Scope {
	if !info.Scoped {
		return workflow.Scope{}
	}
	scope := workflow.ScopeFromQuery(values)
	pick := func(v string, options []string) string {
		if v == "" && len(options) > 0 {
			return options[0]
		}
		return v
	}
	scope.Device = pick(scope.Device, info.Catalog.Devices)
	scope.Year = pick(scope.Year, info.Catalog.Years)
	scope.Set = pick(scope.Set, info.Catalog.Sets)
	return scope
}

func (h *handler) document(w http.ResponseWriter, r *http.Request) {
	area, err := workflow.ParseArea(r.PathValue("area"))
	if err != nil {
		h.fail(w, err)
		return
	}

	rc, doc, err := h.sys.Open(r.Context(), workflow.ScopeFromQuery(r.URL.Query()), area, r.PathValue("name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	defer rc.Close()

	disposition := "inline"
	if r.URL.Query().Has("download") {
		disposition = "attachment"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": doc.Name}))

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, doc.Name, doc.ModifiedAt, rs)
		return
	}
	io.Copy(w, rc)
}

func (h *handler) classify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, workflow.Scope{}, "error", err.Error())
		return
	}
	scope := workflow.ScopeFromQuery(r.PostForm)
	name := r.PostFormValue("document")

	doc, err := h.sys.Classify(r.Context(), scope, name, workflow.Decision(r.PostFormValue("decision")))
	if err != nil {
		h.redirect(w, r, scope, "error", err.Error())
		return
	}
	h.redirect(w, r, scope, "success", fmt.Sprintf("%s moved to %s.", doc.Name, areaTitles[doc.Area]))
}

func (h *handler) retrieve(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirect(w, r, workflow.Scope{}, "error", err.Error())
		return
	}
	scope := workflow.ScopeFromQuery(r.PostForm)

	from, err := workflow.ParseArea(r.PostFormValue("from"))
	if err != nil {
		h.redirect(w, r, scope, "error", err.Error())
		return
	}

	result, err := h.sys.RetrieveBatch(r.Context(), scope, r.PostForm["document"], from)
	if err != nil {
		h.redirect(w, r, scope, "error", err.Error())
		return
	}

	if len(result.Failed) > 0 {
		failed := make([]string, 0, len(result.Failed))
		for _, f := range result.Failed {
			failed = append(failed, f.Document)
		}
		h.redirect(w, r, scope, "error", fmt.Sprintf(
			"Retrieved %d document(s); failed: %s.", len(result.Retrieved), strings.Join(failed, ", "),
		))
		return
	}
	h.redirect(w, r, scope, "success", fmt.Sprintf("Retrieved %d document(s) for review.", len(result.Retrieved)))
}

func (h *handler) sign(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		msg := "Invalid form submission."
		if handlers.IsTooLarge(err) {
			msg = "Signature upload is too large."
		}
		h.redirect(w, r, workflow.ScopeFromQuery(r.URL.Query()), "error", msg)
		return
	}

	cmd, err := workflow.SignCommandFromForm(r)
	if err != nil {
		h.redirect(w, r, cmd.Scope, "error", err.Error())
		return
	}

	result, err := h.sys.Sign(r.Context(), cmd)
	if err != nil {
		h.redirect(w, r, cmd.Scope, "error", err.Error())
		return
	}
	h.redirect(w, r, cmd.Scope, "success", fmt.Sprintf(
		"%s signed by %s on %s.", result.Document.Name, result.Entry.SignerName, result.SignedAt,
	))
}

func (h *handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, http.StatusNotFound, "not-found", nil, r.URL.Path)
}

func (h *handler) fail(w http.ResponseWriter, err error) {
	status := workflow.MapHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func (h *handler) render(w http.ResponseWriter, status int, view string, flash *web.Flash, data any) {
	if err := h.views.Render(w, status, "layout", view, flash, data); err != nil {
		h.logger.Error("render failed", "view", view, "error", err)
		http.Error(w, "render failed", http.StatusInternalServerError)
	}
}

// redirect sends the browser back to the review page with a status message.
func (h *handler) redirect(w http.ResponseWriter, r *http.Request, scope workflow.Scope, kind, message string) {
	q := scope.Query()
	q.Set("status", kind)
	q.Set("message", message)
	if kind == "error" {
		h.logger.Warn("action rejected", "path", r.URL.Path, "scope", scope.Key(), "message", message)
	}
	http.Redirect(w, r, h.views.BasePath()+"/?"+q.Encode(), http.StatusSeeOther)
}

func flashFromQuery(values url.Values) *web.Flash {
	msg := values.Get("message")
	if msg == "" {
		return nil
	}
	kind := values.Get("status")
	if kind != "success" {
		kind = "error"
	}
	return &web.Flash{Kind: kind, Message: msg}
}

