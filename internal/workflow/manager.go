package workflow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/qtgreview/internal/signlog"
	"github.com/JaimeStill/qtgreview/pkg/files"
	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
	"github.com/JaimeStill/qtgreview/pkg/pagination"
	"github.com/JaimeStill/qtgreview/pkg/stamp"
	"github.com/JaimeStill/qtgreview/pkg/storage"
)

type manager struct {
	settings Settings
	logs     signlog.Backend
	mirror   storage.System
	logger   *slog.Logger
	now      func() time.Time

	scopeLocks sync.Map
}

// New creates a workflow manager implementing System. mirror may be nil
// when no archive mirror is configured.
func New(
	settings Settings,
	logs signlog.Backend,
	mirror storage.System,
	logger *slog.Logger,
) System {
	now := settings.Now
	if now == nil {
		now = time.Now
	}
	return &manager{
		settings: settings,
		logs:     logs,
		mirror:   mirror,
		logger:   logger.With("system", "workflow"),
		now:      now,
	}
}

func (m *manager) Handler(maxUploadSize int64, page pagination.Config) *Handler {
	return NewHandler(m, m.logger, page, maxUploadSize)
}

// Start registers a startup hook that prepares the log backend and, in
// flat mode, bootstraps the root.
func (m *manager) Start(lc *lifecycle.Coordinator) error {
	lc.OnStartup("workflow bootstrap", func(ctx context.Context) error {
		if schema, ok := m.logs.(interface{ Init(context.Context) error }); ok {
			if err := schema.Init(ctx); err != nil {
				return wrap(ErrLogUpdate, err)
			}
		}
		if !m.settings.Scoped {
			if err := m.Bootstrap(ctx, Scope{}); err != nil {
				return err
			}
		}
		m.logger.Info("workflow ready",
			"root", m.settings.Root,
			"layout", m.settings.describe(),
			"log", m.logs.Format(),
			"mirror", m.mirror != nil,
		)
		return nil
	})
	return nil
}

func (m *manager) Scopes() ScopeInfo {
	return ScopeInfo{
		Scoped:      m.settings.Scoped,
		Catalog:     m.settings.Catalog,
		PINRequired: m.settings.PIN != "",
	}
}

func (m *manager) Bootstrap(ctx context.Context, scope Scope) error {
	dir, err := m.settings.resolve(scope)
	if err != nil {
		return err
	}
	return m.bootstrap(ctx, scope, dir)
}

func (m *manager) bootstrap(ctx context.Context, scope Scope, dir string) error {
	dirs := make([]string, 0, 4)
	for _, a := range Areas() {
		dirs = append(dirs, filepath.Join(dir, a.Folder()))
	}
	if err := files.EnsureDirs(dirs...); err != nil {
		return wrap(ErrIO, err)
	}
	if err := m.logs.Open(scope.Key(), dir).Bootstrap(ctx); err != nil {
		return wrap(ErrLogUpdate, err)
	}
	return nil
}

// prepare validates scope and name and bootstraps the scope directory.
func (m *manager) prepare(ctx context.Context, scope Scope, name string) (string, error) {
	if err := files.ValidateName(name); err != nil {
		return "", wrap(ErrValidation, err)
	}
	dir, err := m.settings.resolve(scope)
	if err != nil {
		return "", err
	}
	if err := m.bootstrap(ctx, scope, dir); err != nil {
		return "", err
	}
	return dir, nil
}

func (m *manager) Classify(ctx context.Context, scope Scope, name string, decision Decision) (Document, error) {
	decision, err := ParseDecision(string(decision))
	if err != nil {
		return Document{}, err
	}
	dir, err := m.prepare(ctx, scope, name)
	if err != nil {
		return Document{}, err
	}

	doc, err := m.move(scope, dir, name, AreaIntake, decision.Target())
	if err != nil {
		return Document{}, err
	}

	m.logger.Info("document classified", "scope", scope.Key(), "document", name, "decision", decision)
	return doc, nil
}

func (m *manager) Retrieve(ctx context.Context, scope Scope, name string, from Area) (Document, error) {
	if err := retrievable(from); err != nil {
		return Document{}, err
	}
	dir, err := m.prepare(ctx, scope, name)
	if err != nil {
		return Document{}, err
	}

	doc, err := m.move(scope, dir, name, from, AreaIntake)
	if err != nil {
		return Document{}, err
	}

	m.logger.Info("document retrieved", "scope", scope.Key(), "document", name, "from", from)
	return doc, nil
}

func (m *manager) RetrieveBatch(ctx context.Context, scope Scope, names []string, from Area) (BatchResult, error) {
	if len(names) == 0 {
		return BatchResult{}, validation("no documents selected")
	}
	if err := retrievable(from); err != nil {
		return BatchResult{}, err
	}
	if _, err := m.settings.resolve(scope); err != nil {
		return BatchResult{}, err
	}

	result := BatchResult{Retrieved: []Document{}, Failed: []BatchFailure{}}
	for _, name := range names {
		doc, err := m.Retrieve(ctx, scope, name, from)
		if err != nil {
			result.Failed = append(result.Failed, BatchFailure{Document: name, Error: err.Error()})
			continue
		}
		result.Retrieved = append(result.Retrieved, doc)
	}
	return result, nil
}

func retrievable(from Area) error {
	if from != AreaApproved && from != AreaRejected {
		return validation("documents can only be retrieved from approved or rejected, not %q", from)
	}
	return nil
}

// move holds the scope lock so a relocation never interleaves with a
// signing in the same scope.
func (m *manager) move(scope Scope, dir, name string, from, to Area) (Document, error) {
	unlock := m.lock(scope.Key())
	defer unlock()

	src := filepath.Join(dir, from.Folder(), name)
	dst := filepath.Join(dir, to.Folder(), name)

	if err := files.Move(src, dst); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s in %s", ErrNotFound, name, from)
		}
		return Document{}, wrap(ErrIO, err)
	}
	return stat(dst, to)
}

func (m *manager) Sign(ctx context.Context, cmd SignCommand) (SignResult, error) {
	signer := strings.TrimSpace(cmd.Signer)
	if err := files.ValidateName(cmd.Document); err != nil {
		return SignResult{}, wrap(ErrValidation, err)
	}
	if signer == "" {
		return SignResult{}, validation("signer name is required")
	}
	if len(cmd.Signature) == 0 {
		return SignResult{}, validation("signature image is required")
	}
	img, err := stamp.DecodeImage(cmd.Signature)
	if err != nil {
		return SignResult{}, wrap(ErrValidation, err)
	}
	if m.settings.PIN != "" && cmd.PIN != m.settings.PIN {
		return SignResult{}, wrap(ErrValidation, ErrInvalidPIN)
	}
	dir, err := m.settings.resolve(cmd.Scope)
	if err != nil {
		return SignResult{}, err
	}

	unlock := m.lock(cmd.Scope.Key())
	defer unlock()

	if err := m.bootstrap(ctx, cmd.Scope, dir); err != nil {
		return SignResult{}, err
	}

	src := filepath.Join(dir, AreaApproved.Folder(), cmd.Document)
	dst := filepath.Join(dir, AreaArchived.Folder(), cmd.Document)

	signedAt := m.now().Format(signlog.TimestampLayout)
	signed, err := stampFile(src, img, stamp.Label(signer, signedAt))
	if err != nil {
		return SignResult{}, err
	}

	restore, err := m.archive(dst, signed)
	if err != nil {
		return SignResult{}, err
	}

	blobKey := storage.Key(cmd.Scope.Key(), AreaArchived.Folder(), cmd.Document)
	if m.mirror != nil {
		if err := m.mirror.Upload(ctx, blobKey, bytes.NewReader(signed), "application/pdf"); err != nil {
			restore()
			return SignResult{}, wrap(ErrIO, err)
		}
	}

	entry := signlog.Entry{
		DocumentName: signlog.DocumentKey(cmd.Document),
		SignerName:   signer,
		SignedAt:     signedAt,
		Remarks:      strings.TrimSpace(cmd.Remarks),
	}
	created, err := m.logs.Open(cmd.Scope.Key(), dir).Upsert(ctx, entry)
	if err != nil {
		if m.mirror != nil {
			if derr := m.mirror.Delete(ctx, blobKey); derr != nil {
				m.logger.Warn("mirror compensation failed", "key", blobKey, "error", derr)
			}
		}
		restore()
		return SignResult{}, wrap(ErrLogUpdate, err)
	}

	if err := os.Remove(src); err != nil {
		m.logger.Warn("signed document left in approved",
			"scope", cmd.Scope.Key(),
			"source", src,
			"archived", dst,
			"error", err,
		)
		return SignResult{}, wrap(ErrIO, err)
	}

	doc, err := stat(dst, AreaArchived)
	if err != nil {
		return SignResult{}, err
	}

	archived, _ := filepath.Rel(m.settings.Root, dst)
	m.logger.Info("document signed",
		"scope", cmd.Scope.Key(),
		"document", cmd.Document,
		"signer", signer,
		"created", created,
	)

	return SignResult{
		Document:     doc,
		SignedAt:     signedAt,
		ArchivedPath: filepath.ToSlash(archived),
		Entry:        entry,
		Created:      created,
	}, nil
}

// stampFile reads the approved PDF and returns the stamped copy.
func stampFile(src string, img stamp.Image, label string) ([]byte, error) {
	f, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s in %s", ErrNotFound, filepath.Base(src), AreaApproved)
		}
		return nil, wrap(ErrIO, err)
	}
	defer f.Close()

	if _, err := stamp.PageCount(f); err != nil {
		return nil, validation("%s is not a readable PDF", filepath.Base(src))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, wrap(ErrIO, err)
	}

	var buf bytes.Buffer
	if err := stamp.Apply(f, &buf, img, label, stamp.DefaultPlacement); err != nil {
		return nil, wrap(ErrIO, err)
	}
	return buf.Bytes(), nil
}

// archive writes data to dst and returns a func that undoes the write:
// it removes a new file or restores the previous contents of an
// overwritten one.
func (m *manager) archive(dst string, data []byte) (func(), error) {
	prev, err := os.ReadFile(dst)
	existed := err == nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, wrap(ErrIO, err)
	}

	if err := files.WriteAtomic(dst, bytes.NewReader(data)); err != nil {
		return nil, wrap(ErrIO, err)
	}

	return func() {
		var err error
		if existed {
			err = files.WriteAtomic(dst, bytes.NewReader(prev))
		} else {
			err = os.Remove(dst)
		}
		if err != nil {
			m.logger.Warn("archive compensation failed", "path", dst, "error", err)
		}
	}, nil
}

func (m *manager) lock(key string) func() {
	v, _ := m.scopeLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (m *manager) List(ctx context.Context, scope Scope, area Area) ([]Document, error) {
	dir, err := m.settings.resolve(scope)
	if err != nil {
		return nil, err
	}
	return list(dir, area)
}

func list(dir string, area Area) ([]Document, error) {
	if area.Folder() == "" {
		return nil, validation("unknown area %q", area)
	}
	infos, err := files.List(filepath.Join(dir, area.Folder()))
	if err != nil {
		return nil, wrap(ErrIO, err)
	}

	docs := make([]Document, 0, len(infos))
	for _, info := range infos {
		docs = append(docs, document(info, area))
	}
	return docs, nil
}

func (m *manager) Open(ctx context.Context, scope Scope, area Area, name string) (io.ReadCloser, Document, error) {
	if area.Folder() == "" {
		return nil, Document{}, validation("unknown area %q", area)
	}
	if err := files.ValidateName(name); err != nil {
		return nil, Document{}, wrap(ErrValidation, err)
	}
	dir, err := m.settings.resolve(scope)
	if err != nil {
		return nil, Document{}, err
	}

	path := filepath.Join(dir, area.Folder(), name)
	doc, err := stat(path, area)
	if err != nil {
		return nil, Document{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Document{}, wrap(ErrIO, err)
	}
	return f, doc, nil
}

func (m *manager) Entries(ctx context.Context, scope Scope) ([]signlog.Entry, error) {
	dir, err := m.settings.resolve(scope)
	if err != nil {
		return nil, err
	}
	if err := m.bootstrap(ctx, scope, dir); err != nil {
		return nil, err
	}

	entries, err := m.logs.Open(scope.Key(), dir).Entries(ctx)
	if err != nil {
		return nil, wrap(ErrLogUpdate, err)
	}
	return entries, nil
}

// Entry returns the log entry for document, given as a file name or a
// log key.
func (m *manager) Entry(ctx context.Context, scope Scope, document string) (signlog.Entry, error) {
	key := signlog.DocumentKey(strings.TrimSpace(document))
	if key == "" || key == "." || key == "/" {
		return signlog.Entry{}, validation("document is required")
	}
	dir, err := m.settings.resolve(scope)
	if err != nil {
		return signlog.Entry{}, err
	}
	if err := m.bootstrap(ctx, scope, dir); err != nil {
		return signlog.Entry{}, err
	}

	e, err := m.logs.Open(scope.Key(), dir).Find(ctx, key)
	if errors.Is(err, signlog.ErrNotFound) {
		return signlog.Entry{}, fmt.Errorf("%w: no log entry for %s", ErrNotFound, key)
	}
	if err != nil {
		return signlog.Entry{}, wrap(ErrLogUpdate, err)
	}
	return e, nil
}

func (m *manager) Overview(ctx context.Context, scope Scope) (Overview, error) {
	dir, err := m.settings.resolve(scope)
	if err != nil {
		return Overview{}, err
	}

	areas := Areas()
	counts := make([]int, len(areas))

	g, _ := errgroup.WithContext(ctx)
	for i, area := range areas {
		g.Go(func() error {
			docs, err := list(dir, area)
			if err != nil {
				return err
			}
			counts[i] = len(docs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}

	out := Overview{Scope: scope, Counts: make(map[Area]int, len(areas))}
	for i, area := range areas {
		out.Counts[area] = counts[i]
	}
	return out, nil
}

func stat(path string, area Area) (Document, error) {
	info, err := files.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Document{}, fmt.Errorf("%w: %s in %s", ErrNotFound, filepath.Base(path), area)
		}
		return Document{}, wrap(ErrIO, err)
	}
	return document(info, area), nil
}

func document(info files.Info, area Area) Document {
	return Document{
		Name:       info.Name,
		Area:       area,
		SizeBytes:  info.SizeBytes,
		ModifiedAt: info.ModifiedAt,
	}
}
