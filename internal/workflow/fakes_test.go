package workflow_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/internal/workflow"
	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
	"github.com/JaimeStill/qtgreview/pkg/storage"
)

var signedAt = time.Date(2024, 3, 5, 14, 22, 9, 0, time.Local)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func flatSettings(t *testing.T) workflow.Settings {
	t.Helper()
	return workflow.Settings{
		Root: t.TempDir(),
		Now:  func() time.Time { return signedAt },
	}
}

func newSystem(t *testing.T, settings workflow.Settings, logs signlog.Backend, mirror storage.System) workflow.System {
	t.Helper()
	if logs == nil {
		logs = signlog.CSVBackend{}
	}
	return workflow.New(settings, logs, mirror, discardLogger())
}

func put(t *testing.T, dir string, area workflow.Area, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, area.Folder(), name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func exists(t *testing.T, dir string, area workflow.Area, name string) bool {
	t.Helper()
	_, err := os.Stat(filepath.Join(dir, area.Folder(), name))
	return err == nil
}

// failingLog wraps a backend whose stores reject every upsert.
type failingLog struct {
	signlog.CSVBackend
	err error
}

func (b failingLog) Open(key, dir string) signlog.Store {
	return failingStore{Store: b.CSVBackend.Open(key, dir), err: b.err}
}

type failingStore struct {
	signlog.Store
	err error
}

func (s failingStore) Upsert(context.Context, signlog.Entry) (bool, error) {
	return false, s.err
}

// fakeMirror is an in-memory storage.System. When uploading is set,
// Upload signals it and then blocks until release is closed.
type fakeMirror struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	deleted   []string
	uploadErr error

	uploading chan struct{}
	release   chan struct{}
}

func newBlockingMirror() *fakeMirror {
	f := newFakeMirror()
	f.uploading = make(chan struct{})
	f.release = make(chan struct{})
	return f
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{blobs: make(map[string][]byte)}
}

func (f *fakeMirror) Start(*lifecycle.Coordinator) error { return nil }

func (f *fakeMirror) Upload(_ context.Context, key string, r io.Reader, _ string) error {
	if f.uploading != nil {
		close(f.uploading)
		<-f.release
	}
	if f.uploadErr != nil {
		return f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = data
	return nil
}

func (f *fakeMirror) Download(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeMirror) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(f.blobs, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeMirror) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok, nil
}

