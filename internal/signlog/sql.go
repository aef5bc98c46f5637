package signlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/qtgreview/pkg/query"
	"github.com/JaimeStill/qtgreview/pkg/repository"
)

// Schema creates the signing_log table. It is valid for both Postgres and
// SQLite and matches the first migration shipped with cmd/migrate.
const Schema = `CREATE TABLE IF NOT EXISTS signing_log (
	id            TEXT PRIMARY KEY,
	scope         TEXT NOT NULL,
	document_name TEXT NOT NULL,
	signer_name   TEXT NOT NULL,
	signed_at     TEXT NOT NULL,
	remarks       TEXT NOT NULL DEFAULT '',
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	UNIQUE (scope, document_name)
)`

// SQLBackend stores every scope's log in one table, partitioned by scope key.
type SQLBackend struct {
	db     *sql.DB
	driver string
	now    func() time.Time

	mu    sync.Mutex
	ready bool
}

// NewSQLBackend creates a backend over db. driver selects placeholder
// syntax; now defaults to time.Now.
func NewSQLBackend(db *sql.DB, driver string, now func() time.Time) *SQLBackend {
	if now == nil {
		now = time.Now
	}
	return &SQLBackend{db: db, driver: driver, now: now}
}

func (b *SQLBackend) Format() Format { return FormatSQL }

func (b *SQLBackend) Open(key, _ string) Store {
	return &sqlStore{backend: b, scope: key}
}

// Init creates the table. After the first success it is a no-op; a
// failure is retried on the next call.
func (b *SQLBackend) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ready {
		return nil
	}
	if _, err := b.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create signing_log: %w", err)
	}
	b.ready = true
	return nil
}

func (b *SQLBackend) q(stmt string) string {
	return repository.Rebind(b.driver, stmt)
}

type sqlStore struct {
	backend *SQLBackend
	scope   string
}

var projection = query.NewProjection("signing_log", "l").
	Project("scope", "scope").
	Project("document_name", "document_name").
	Project("signer_name", "signer_name").
	Project("signed_at", "signed_at").
	Project("remarks", "remarks")

var defaultSort = query.SortField{Field: "document_name"}

func (s *sqlStore) builder() *query.Builder {
	return query.NewBuilder(projection, defaultSort).WhereEquals("scope", s.scope)
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var e Entry
	var scope string
	err := s.Scan(&scope, &e.DocumentName, &e.SignerName, &e.SignedAt, &e.Remarks)
	return e, err
}

func (s *sqlStore) Bootstrap(ctx context.Context) error {
	return s.backend.Init(ctx)
}

func (s *sqlStore) Entries(ctx context.Context) ([]Entry, error) {
	stmt, args := s.builder().Build()
	entries, err := repository.QueryMany(ctx, s.backend.db, s.backend.q(stmt), args, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("list log entries: %w", err)
	}
	return entries, nil
}

func (s *sqlStore) Find(ctx context.Context, documentName string) (Entry, error) {
	stmt, args := s.builder().WhereEquals("document_name", documentName).Build()
	e, err := repository.QueryOne(ctx, s.backend.db, s.backend.q(stmt), args, scanEntry)
	if err != nil {
		return Entry{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return e, nil
}

func (s *sqlStore) Upsert(ctx context.Context, e Entry) (bool, error) {
	if err := validate(e); err != nil {
		return false, err
	}
	if err := s.backend.Init(ctx); err != nil {
		return false, err
	}

	id := uuid.NewString()
	now := s.backend.now().UTC().Format(time.RFC3339)

	stmt := s.backend.q(`
		INSERT INTO signing_log (id, scope, document_name, signer_name, signed_at, remarks, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, document_name) DO UPDATE SET
			signer_name = excluded.signer_name,
			signed_at   = excluded.signed_at,
			remarks     = excluded.remarks,
			updated_at  = excluded.updated_at
		RETURNING id`)
	args := []any{id, s.scope, e.DocumentName, e.SignerName, e.SignedAt, e.Remarks, now, now}

	rowID, err := repository.WithTx(ctx, s.backend.db, func(tx *sql.Tx) (string, error) {
		return repository.QueryOne(ctx, tx, stmt, args, func(sc repository.Scanner) (string, error) {
			var got string
			err := sc.Scan(&got)
			return got, err
		})
	})
	if err != nil {
		err = repository.MapError(err, ErrNotFound, ErrDuplicate)
		if errors.Is(err, ErrNotFound) {
			return false, fmt.Errorf("upsert log entry: no row returned")
		}
		return false, fmt.Errorf("upsert log entry: %w", err)
	}
	return rowID == id, nil
}
