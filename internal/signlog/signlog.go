// Package signlog records signing events in a tabular log keyed by document.
//
// Three backends share one contract: a CSV file per scope, an XLSX
// register per scope, or a SQL table shared by all scopes. Every backend
// upserts: signing a document again replaces its row instead of adding one.
package signlog

import (
	"context"
	"path/filepath"
	"strings"
)

// TimestampLayout is the format of Entry.SignedAt.
const TimestampLayout = "2006-01-02 15:04:05"

// Entry is one row of the signing log.
type Entry struct {
	DocumentName string `json:"document_name"`
	SignerName   string `json:"signer_name"`
	SignedAt     string `json:"signed_at"`
	Remarks      string `json:"remarks,omitempty"`
}

// DocumentKey returns the log key for a document file name: the base name
// without its .pdf extension.
func DocumentKey(filename string) string {
	base := filepath.Base(filename)
	if ext := filepath.Ext(base); strings.EqualFold(ext, ".pdf") {
		return strings.TrimSuffix(base, ext)
	}
	return base
}

// Store is the signing log of one scope.
type Store interface {
	// Bootstrap creates the log with its header schema when absent.
	Bootstrap(ctx context.Context) error
	// Entries returns every entry ordered by document name.
	Entries(ctx context.Context) ([]Entry, error)
	// Find returns the entry for a document key or ErrNotFound.
	Find(ctx context.Context, documentName string) (Entry, error)
	// Upsert writes e, replacing any entry with the same document name.
	// created reports whether a new entry was added.
	Upsert(ctx context.Context, e Entry) (created bool, err error)
}

// Format names a log backend.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatSQL  Format = "sql"
)

// Backend opens the Store for a scope. dir is the scope's directory on disk
// and key its canonical name ("" in flat mode).
type Backend interface {
	Format() Format
	Open(key, dir string) Store
}

func validate(e Entry) error {
	switch {
	case strings.TrimSpace(e.DocumentName) == "":
		return invalid("document name is required")
	case strings.TrimSpace(e.SignerName) == "":
		return invalid("signer name is required")
	case e.SignedAt == "":
		return invalid("signed at is required")
	}
	return nil
}
