package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/qtgreview/internal/api"
	"github.com/JaimeStill/qtgreview/internal/config"
	"github.com/JaimeStill/qtgreview/internal/infrastructure"
	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
	"github.com/JaimeStill/qtgreview/pkg/storage"
)

type memoryStore struct {
	blobs map[string][]byte
}

func (m *memoryStore) Start(*lifecycle.Coordinator) error { return nil }

func (m *memoryStore) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	data, err := io.ReadAll(r)
	m.blobs[key] = data
	return err
}

func (m *memoryStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	delete(m.blobs, key)
	return nil
}

func (m *memoryStore) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}

func setup(t *testing.T, mirror storage.System) (http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	t.Setenv(config.EnvQTGConfigDir, t.TempDir())
	t.Setenv(config.EnvWorkflowRoot, root)
	t.Setenv(config.EnvWorkflowScoped, "false")
	t.Setenv("QTG_CORS_ENABLED", "true")
	t.Setenv("QTG_CORS_ORIGINS", "http://review.test")

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}

	infra, err := infrastructure.NewWithLogger(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	infra.Storage = mirror

	runtime := api.NewRuntime(cfg, infra)
	domain := api.NewDomain(cfg.Workflow.Settings(), infra)
	m, err := api.NewModule(cfg, runtime, domain)
	if err != nil {
		t.Fatal(err)
	}

	return http.HandlerFunc(m.Serve), root
}

func TestModuleServesWorkflow(t *testing.T) {
	handler, root := setup(t, nil)

	intake := filepath.Join(root, "source_folder")
	if err := os.MkdirAll(intake, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(intake, "spec_7.pdf"), []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest("POST", "/api/workflow/classify", strings.NewReader(`{"document":"spec_7.pdf","decision":"fail"}`))
	req.Header.Set("Origin", "http://review.test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "http://review.test" {
		t.Error("CORS headers missing")
	}
	if _, err := os.Stat(filepath.Join(root, "fail_folder", "spec_7.pdf")); err != nil {
		t.Errorf("document not rejected: %v", err)
	}
}

func TestMirrorRoutes(t *testing.T) {
	t.Run("absent without mirror", func(t *testing.T) {
		handler, _ := setup(t, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/mirror/signed_folder/a.pdf", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("served with mirror", func(t *testing.T) {
		store := &memoryStore{blobs: map[string][]byte{"FFS/2024/Set A/signed_folder/a.pdf": []byte("%PDF signed")}}
		handler, _ := setup(t, store)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/mirror/FFS/2024/Set%20A/signed_folder/a.pdf", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("find status = %d: %s", rec.Code, rec.Body)
		}
		var body map[string]any
		json.NewDecoder(rec.Body).Decode(&body)
		if body["mirrored"] != true {
			t.Errorf("find body = %v", body)
		}

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/mirror/download/FFS/2024/Set%20A/signed_folder/a.pdf", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "%PDF signed" {
			t.Errorf("download = %d %q", rec.Code, rec.Body)
		}

		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/mirror/signed_folder/missing.pdf", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("missing status = %d, want 404", rec.Code)
		}
	})
}

func TestScopesReportFlatLayout(t *testing.T) {
	handler, _ := setup(t, nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/workflow/scopes", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var info struct {
		Scoped bool `json:"scoped"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.Scoped {
		t.Error("scoped = true with QTG_WORKFLOW_SCOPED=false")
	}
}

func TestOpenAPIDocument(t *testing.T) {
	tests := []struct {
		name       string
		mirror     storage.System
		wantMirror bool
	}{
		{"without mirror", nil, false},
		{"with mirror", &memoryStore{blobs: map[string][]byte{}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler, _ := setup(t, tt.mirror)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest("GET", "/api/openapi.json", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d", rec.Code)
			}

			var doc struct {
				OpenAPI string                    `json:"openapi"`
				Info    struct{ Title string }    `json:"info"`
				Paths   map[string]map[string]any `json:"paths"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
				t.Fatal(err)
			}

			if doc.OpenAPI != "3.1.0" || doc.Info.Title != "QTG Review API" {
				t.Errorf("header = %s %q", doc.OpenAPI, doc.Info.Title)
			}
			if _, ok := doc.Paths["/workflow/sign"]["post"]; !ok {
				t.Error("sign operation missing")
			}
			if _, ok := doc.Paths["/workflow/areas/{area}/{name}"]["get"]; !ok {
				t.Error("download operation missing")
			}
			if _, ok := doc.Paths["/mirror/{key}"]; ok != tt.wantMirror {
				t.Errorf("mirror described = %v, want %v", ok, tt.wantMirror)
			}
		})
	}
}
