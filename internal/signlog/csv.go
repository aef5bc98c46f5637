package signlog

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/JaimeStill/qtgreview/pkg/files"
)

// CSVFile is the log file name inside a scope directory.
const CSVFile = "signing_log.csv"

var (
	csvHeader       = []string{"Document Name", "Signed By", "Date/Time", "Remarks"}
	csvLegacyHeader = csvHeader[:3]
)

// CSVBackend keeps one CSV log per scope directory.
type CSVBackend struct{}

func (CSVBackend) Format() Format { return FormatCSV }

func (CSVBackend) Open(_, dir string) Store {
	return &csvStore{path: filepath.Join(dir, CSVFile)}
}

type csvStore struct {
	path string
}

// csvTable is a parsed log file. Three-column files written before
// remarks were recorded read with empty remarks and are rewritten with
// the four-column header.
type csvTable struct {
	entries []Entry
}

func (s *csvStore) Bootstrap(_ context.Context) error {
	unlock := lockFile(s.path)
	defer unlock()

	ok, err := files.Exists(s.path)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return s.write(csvTable{})
}

func (s *csvStore) Entries(_ context.Context) ([]Entry, error) {
	t, err := s.read()
	if err != nil {
		return nil, err
	}
	return sortedUnique(t.entries), nil
}

func (s *csvStore) Find(_ context.Context, documentName string) (Entry, error) {
	t, err := s.read()
	if err != nil {
		return Entry{}, err
	}
	for _, e := range t.entries {
		if e.DocumentName == documentName {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (s *csvStore) Upsert(_ context.Context, e Entry) (bool, error) {
	if err := validate(e); err != nil {
		return false, err
	}

	unlock := lockFile(s.path)
	defer unlock()

	t, err := s.read()
	if err != nil {
		return false, err
	}

	created := true
	out := make([]Entry, 0, len(t.entries)+1)
	for _, existing := range t.entries {
		if existing.DocumentName != e.DocumentName {
			out = append(out, existing)
			continue
		}
		// replace the first match and drop duplicates left by older writers
		if created {
			out = append(out, e)
			created = false
		}
	}
	if created {
		out = append(out, e)
	}

	t.entries = out
	if err := s.write(t); err != nil {
		return false, err
	}
	return created, nil
}

func (s *csvStore) read() (csvTable, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return csvTable{}, nil
		}
		return csvTable{}, fmt.Errorf("read %s: %w", CSVFile, err)
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return csvTable{}, nil
	}
	if err != nil {
		return csvTable{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var t csvTable
	legacy := false
	switch {
	case matchHeader(header, csvHeader):
	case matchHeader(header, csvLegacyHeader):
		legacy = true
	default:
		return csvTable{}, fmt.Errorf("%w: unexpected header %q", ErrCorrupt, header)
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return csvTable{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		if len(rec) < 3 || strings.TrimSpace(rec[0]) == "" {
			continue
		}
		e := Entry{
			DocumentName: strings.TrimSpace(rec[0]),
			SignerName:   rec[1],
			SignedAt:     rec[2],
		}
		if len(rec) > 3 && !legacy {
			e.Remarks = rec[3]
		}
		t.entries = append(t.entries, e)
	}
	return t, nil
}

func (s *csvStore) write(t csvTable) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	w.Write(csvHeader)
	for _, e := range t.entries {
		w.Write([]string{e.DocumentName, e.SignerName, e.SignedAt, e.Remarks})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode %s: %w", CSVFile, err)
	}

	return files.WriteAtomic(s.path, &buf)
}

func matchHeader(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if !strings.EqualFold(strings.TrimSpace(strings.TrimPrefix(got[i], "\ufeff")), want[i]) {
			return false
		}
	}
	return true
}

// sortedUnique orders entries by document name, keeping the first entry
// for each name.
func sortedUnique(entries []Entry) []Entry {
	seen := make(map[string]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if seen[e.DocumentName] {
			continue
		}
		seen[e.DocumentName] = true
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		return strings.Compare(a.DocumentName, b.DocumentName)
	})
	return out
}
