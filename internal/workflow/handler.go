package workflow

import (
	"cmp"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/JaimeStill/qtgreview/pkg/handlers"
	"github.com/JaimeStill/qtgreview/pkg/pagination"
	"github.com/JaimeStill/qtgreview/pkg/routes"
)

const maxJSONBody = 1 << 20

// Handler provides HTTP endpoints for workflow operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	pagination    pagination.Config
	maxUploadSize int64
}

// ClassifyRequest is the body of POST /workflow/classify.
type ClassifyRequest struct {
	Scope
	Document string   `json:"document"`
	Decision Decision `json:"decision"`
}

// RetrieveRequest is the body of POST /workflow/retrieve.
type RetrieveRequest struct {
	Scope
	From      Area     `json:"from"`
	Documents []string `json:"documents"`
}

// NewHandler creates a Handler with the given system, logger, pagination config, and upload size limit.
func NewHandler(
	sys System,
	logger *slog.Logger,
	pagination pagination.Config,
	maxUploadSize int64,
) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "workflow"),
		pagination:    pagination,
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for workflow endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/workflow",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/scopes", Handler: h.Scopes, OpenAPI: docs.Scopes},
			{Method: "GET", Pattern: "/overview", Handler: h.Overview, OpenAPI: docs.Overview},
			{Method: "GET", Pattern: "/areas/{area}", Handler: h.List, OpenAPI: docs.List},
			{Method: "GET", Pattern: "/areas/{area}/{name}", Handler: h.Download, OpenAPI: docs.Download},
			{Method: "POST", Pattern: "/classify", Handler: h.Classify, OpenAPI: docs.Classify},
			{Method: "POST", Pattern: "/retrieve", Handler: h.Retrieve, OpenAPI: docs.Retrieve},
			{Method: "POST", Pattern: "/sign", Handler: h.Sign, OpenAPI: docs.Sign},
			{Method: "GET", Pattern: "/log", Handler: h.Log, OpenAPI: docs.Log},
			{Method: "GET", Pattern: "/log/{document}", Handler: h.LogEntry, OpenAPI: docs.LogEntry},
		},
	}
}

// Scopes returns the scope mode and catalog.
func (h *Handler) Scopes(w http.ResponseWriter, r *http.Request) {
	handlers.RespondJSON(w, http.StatusOK, h.sys.Scopes())
}

// Overview returns document counts per area for the query scope.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	out, err := h.sys.Overview(r.Context(), ScopeFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, out)
}

// List returns a page of the documents in an area.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	area, err := ParseArea(r.PathValue("area"))
	if err != nil {
		h.fail(w, err)
		return
	}

	docs, err := h.sys.List(r.Context(), ScopeFromQuery(r.URL.Query()), area)
	if err != nil {
		h.fail(w, err)
		return
	}

	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	handlers.RespondJSON(w, http.StatusOK, pagination.Slice(docs, page, documentPaging))
}

var documentPaging = pagination.Options[Document]{
	Match: func(d Document, search string) bool {
		return strings.Contains(strings.ToLower(d.Name), strings.ToLower(search))
	},
	Orders: map[string]func(a, b Document) int{
		"name":        func(a, b Document) int { return strings.Compare(a.Name, b.Name) },
		"size_bytes":  func(a, b Document) int { return cmp.Compare(a.SizeBytes, b.SizeBytes) },
		"modified_at": func(a, b Document) int { return a.ModifiedAt.Compare(b.ModifiedAt) },
	},
}

// Download streams a document from an area.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	area, err := ParseArea(r.PathValue("area"))
	if err != nil {
		h.fail(w, err)
		return
	}

	rc, doc, err := h.sys.Open(r.Context(), ScopeFromQuery(r.URL.Query()), area, r.PathValue("name"))
	if err != nil {
		h.fail(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": doc.Name}))

	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, doc.Name, doc.ModifiedAt, rs)
		return
	}
	w.Header().Set("Content-Length", fmt.Sprint(doc.SizeBytes))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("download interrupted", "document", doc.Name, "error", err)
	}
}

// Classify moves an intake document to approved or rejected.
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !h.decode(w, r, &req) {
		return
	}

	doc, err := h.sys.Classify(r.Context(), req.Scope, req.Document, req.Decision)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Retrieve returns approved or rejected documents to intake.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !h.decode(w, r, &req) {
		return
	}

	from, err := ParseArea(string(req.From))
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.sys.RetrieveBatch(r.Context(), req.Scope, req.Documents, from)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Sign stamps and archives an approved document from a multipart form.
func (h *Handler) Sign(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		if handlers.IsTooLarge(err) {
			handlers.RespondError(w, h.logger, http.StatusRequestEntityTooLarge, err)
			return
		}
		h.fail(w, wrap(ErrValidation, err))
		return
	}

	cmd, err := SignCommandFromForm(r)
	if err != nil {
		h.fail(w, err)
		return
	}

	result, err := h.sys.Sign(r.Context(), cmd)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, result)
}

// Log returns the signing log entries of the query scope.
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	entries, err := h.sys.Entries(r.Context(), ScopeFromQuery(r.URL.Query()))
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, entries)
}

// LogEntry returns the log entry of one document in the query scope.
func (h *Handler) LogEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.sys.Entry(r.Context(), ScopeFromQuery(r.URL.Query()), r.PathValue("document"))
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, e)
}

// SignCommandFromForm builds a SignCommand from a parsed multipart form.
// A missing signature file yields an empty Signature.
func SignCommandFromForm(r *http.Request) (SignCommand, error) {
	cmd := SignCommand{
		Scope:    ScopeFromQuery(r.PostForm),
		Document: strings.TrimSpace(r.PostFormValue("document")),
		Signer:   r.PostFormValue("signer"),
		Remarks:  r.PostFormValue("remarks"),
		PIN:      r.PostFormValue("pin"),
	}

	file, _, err := r.FormFile("signature")
	if errors.Is(err, http.ErrMissingFile) {
		return cmd, nil
	}
	if err != nil {
		return SignCommand{}, wrap(ErrValidation, err)
	}
	defer file.Close()

	if cmd.Signature, err = io.ReadAll(file); err != nil {
		return SignCommand{}, wrap(ErrIO, err)
	}
	return cmd, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := handlers.DecodeJSON(r, v); err != nil {
		status := http.StatusBadRequest
		if handlers.IsTooLarge(err) {
			status = http.StatusRequestEntityTooLarge
		}
		handlers.RespondError(w, h.logger, status, err)
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
}
