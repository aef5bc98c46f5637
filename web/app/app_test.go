package app_test

import (
	"bytes"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/internal/workflow"
	"github.com/JaimeStill/qtgreview/pkg/stamp/stamptest"
	"github.com/JaimeStill/qtgreview/web/app"
)

func newApp(t *testing.T, settings workflow.Settings) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sys := workflow.New(settings, signlog.CSVBackend{}, nil, logger)

	m, err := app.NewModule("/app", sys, 1<<20, logger)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}
	return http.HandlerFunc(m.Serve)
}

func put(t *testing.T, root, folder, name string, data []byte) {
	t.Helper()
	dir := filepath.Join(root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", target, nil))
	return rec
}

func postForm(h http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func redirectFlash(t *testing.T, rec *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303: %s", rec.Code, rec.Body)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatal(err)
	}
	if loc.Path != "/app/" {
		t.Errorf("redirect path = %s, want /app/", loc.Path)
	}
	return loc.Query().Get("status"), loc.Query().Get("message")
}

func TestReviewPage(t *testing.T) {
	root := t.TempDir()
	h := newApp(t, workflow.Settings{Root: root})
	put(t, root, "source_folder", "QTG 1.a.1.pdf", []byte("%PDF"))

	rec := get(h, "/app/?status=success&message=Saved+it")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}

	body := rec.Body.String()
	for _, want := range []string{"QTG 1.a.1.pdf", "Signing Log", "Saved it", "flash-success"} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, `name="device"`) {
		t.Error("flat layout rendered a scope selector")
	}
}

func TestReviewPageScoped(t *testing.T) {
	root := t.TempDir()
	h := newApp(t, workflow.Settings{Root: root, Scoped: true, Catalog: workflow.DefaultCatalog()})

	rec := get(h, "/app/?year=2024")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `<option selected>2024</option>`) {
		t.Error("selected year not rendered")
	}
	if _, err := os.Stat(filepath.Join(root, "FFS", "2024", "Set A", "source_folder")); err != nil {
		t.Errorf("default scope not bootstrapped: %v", err)
	}

	rec = get(h, "/app/?device=XYZ")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "flash-error") {
		t.Errorf("invalid scope = %d, want 400 with error flash", rec.Code)
	}
}

func TestClassifyForm(t *testing.T) {
	root := t.TempDir()
	h := newApp(t, workflow.Settings{Root: root})
	put(t, root, "source_folder", "spec_7.pdf", []byte("%PDF"))

	status, msg := redirectFlash(t, postForm(h, "/app/classify", url.Values{
		"document": {"spec_7.pdf"},
		"decision": {"pass"},
	}))
	if status != "success" || !strings.Contains(msg, "Approved") {
		t.Errorf("flash = %s %q", status, msg)
	}
	if _, err := os.Stat(filepath.Join(root, "pass_folder", "spec_7.pdf")); err != nil {
		t.Errorf("document not approved: %v", err)
	}

	status, _ = redirectFlash(t, postForm(h, "/app/classify", url.Values{
		"document": {"spec_7.pdf"},
		"decision": {"pass"},
	}))
	if status != "error" {
		t.Errorf("second classify status = %s, want error", status)
	}
}

func TestRetrieveForm(t *testing.T) {
	root := t.TempDir()
	h := newApp(t, workflow.Settings{Root: root})
	put(t, root, "fail_folder", "a.pdf", []byte("%PDF"))
	put(t, root, "fail_folder", "b.pdf", []byte("%PDF"))

	status, msg := redirectFlash(t, postForm(h, "/app/retrieve", url.Values{
		"from":     {"rejected"},
		"document": {"a.pdf", "b.pdf"},
	}))
	if status != "success" || !strings.Contains(msg, "Retrieved 2") {
		t.Errorf("flash = %s %q", status, msg)
	}

	status, _ = redirectFlash(t, postForm(h, "/app/retrieve", url.Values{"from": {"rejected"}}))
	if status != "error" {
		t.Errorf("empty selection status = %s, want error", status)
	}
}

func TestSignForm(t *testing.T) {
	root := t.TempDir()
	h := newApp(t, workflow.Settings{Root: root})
	put(t, root, "pass_folder", "spec_7.pdf", stamptest.PDF(1))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("document", "spec_7.pdf")
	mw.WriteField("signer", "J. Smith")
	mw.WriteField("remarks", "OK")
	fw, _ := mw.CreateFormFile("signature", "sig.jpg")
	fw.Write(stamptest.JPEG(120, 40))
	mw.Close()

	req := httptest.NewRequest("POST", "/app/sign", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	status, msg := redirectFlash(t, rec)
	if status != "success" || !strings.Contains(msg, "signed by J. Smith") {
		t.Errorf("flash = %s %q", status, msg)
	}
	if _, err := os.Stat(filepath.Join(root, "signed_folder", "spec_7.pdf")); err != nil {
		t.Errorf("document not archived: %v", err)
	}

	page := get(h, "/app/").Body.String()
	if !strings.Contains(page, "<td>spec_7</td><td>J. Smith</td>") {
		t.Error("signing log table missing entry")
	}
}

func TestDocumentAndAssets(t *testing.T) {
	root := t.TempDir()
	h := newApp(t, workflow.Settings{Root: root})
	put(t, root, "signed_folder", "spec_7.pdf", []byte("%PDF signed"))

	rec := get(h, "/app/documents/archived/spec_7.pdf?download=1")
	if rec.Code != http.StatusOK || rec.Body.String() != "%PDF signed" {
		t.Fatalf("document = %d %q", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Errorf("content-disposition = %s", cd)
	}

	if rec := get(h, "/app/documents/archived/other.pdf"); rec.Code != http.StatusNotFound {
		t.Errorf("missing document status = %d, want 404", rec.Code)
	}
	if rec := get(h, "/app/static/app.css"); rec.Code != http.StatusOK {
		t.Errorf("stylesheet status = %d", rec.Code)
	}
	if rec := get(h, "/app/nowhere"); rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "/nowhere") {
		t.Errorf("fallback = %d", rec.Code)
	}
}
