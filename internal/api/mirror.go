package api

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/JaimeStill/qtgreview/pkg/handlers"
	"github.com/JaimeStill/qtgreview/pkg/openapi"
	"github.com/JaimeStill/qtgreview/pkg/routes"
	"github.com/JaimeStill/qtgreview/pkg/storage"
)

// mirrorHandler exposes the archive mirror read-only: whether a signed
// document was mirrored, and the mirrored copy itself.
type mirrorHandler struct {
	store  storage.System
	logger *slog.Logger
}

var mirrorKey = openapi.PathParam("key", "Archive key, e.g. FFS/2024/Set A/signed_folder/spec.pdf")

var mirrorDocs = struct {
	find     *openapi.Operation
	download *openapi.Operation
}{
	find: &openapi.Operation{
		Tags:       []string{"Mirror"},
		Summary:    "Check whether a signed document was mirrored",
		Parameters: []*openapi.Parameter{mirrorKey},
		Responses: map[int]*openapi.Response{
			200: {Description: "Mirrored"},
			404: openapi.ResponseRef("NotFound"),
		},
	},
	download: &openapi.Operation{
		Tags:       []string{"Mirror"},
		Summary:    "Download the mirrored copy of a signed document",
		Parameters: []*openapi.Parameter{mirrorKey},
		Responses: map[int]*openapi.Response{
			200: {Description: "PDF content"},
			404: openapi.ResponseRef("NotFound"),
		},
	},
}

func newMirrorHandler(store storage.System, logger *slog.Logger) *mirrorHandler {
	return &mirrorHandler{
		store:  store,
		logger: logger.With("handler", "mirror"),
	}
}

func (h *mirrorHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/mirror",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/download/{key...}", Handler: h.download, OpenAPI: mirrorDocs.download},
			{Method: "GET", Pattern: "/{key...}", Handler: h.find, OpenAPI: mirrorDocs.find},
		},
	}
}

func (h *mirrorHandler) find(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	ok, err := h.store.Exists(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	if !ok {
		handlers.RespondError(w, h.logger, http.StatusNotFound, storage.ErrNotFound)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]any{"key": key, "mirrored": true})
}

func (h *mirrorHandler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	body, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(key)}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, body); err != nil {
		h.logger.Warn("mirror download interrupted", "key", key, "error", err)
	}
}
