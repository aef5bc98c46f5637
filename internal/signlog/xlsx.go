package signlog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JaimeStill/qtgreview/pkg/files"
)

// XLSXFile is the register file name inside a scope directory.
const XLSXFile = "signing_log.xlsx"

const xlsxSheet = "Signing Log"

// Register columns, 1-based. The document key lives in column B and the
// signing columns I, J and K; columns in between belong to the register's
// owners and are never touched.
const (
	colItem     = 1
	colDocument = 2
	colSigner   = 9
	colSignedAt = 10
	colRemarks  = 11
)

var xlsxHeader = map[int]any{
	colItem:     "Item",
	colDocument: "Document Name",
	colSigner:   "Signer Name",
	colSignedAt: "Sign Date",
	colRemarks:  "Remarks",
}

// XLSXBackend keeps one spreadsheet register per scope directory. With
// StrictMatch, signing a document whose key has no row fails with
// ErrNotRegistered instead of appending a row.
type XLSXBackend struct {
	StrictMatch bool
}

func (XLSXBackend) Format() Format { return FormatXLSX }

func (b XLSXBackend) Open(_, dir string) Store {
	return &xlsxStore{path: filepath.Join(dir, XLSXFile), strict: b.StrictMatch}
}

type xlsxStore struct {
	path   string
	strict bool
}

func (s *xlsxStore) Bootstrap(_ context.Context) error {
	unlock := lockFile(s.path)
	defer unlock()

	ok, err := files.Exists(s.path)
	if err != nil || ok {
		return err
	}

	f, err := newRegister()
	if err != nil {
		return err
	}
	defer f.Close()
	return s.save(f)
}

func (s *xlsxStore) Entries(_ context.Context) ([]Entry, error) {
	f, sheet, err := s.open()
	if err != nil || f == nil {
		return []Entry{}, err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	var entries []Entry
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if e, ok := rowEntry(row); ok && e.SignerName != "" {
			entries = append(entries, e)
		}
	}
	return sortedUnique(entries), nil
}

func (s *xlsxStore) Find(ctx context.Context, documentName string) (Entry, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.DocumentName == documentName {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func (s *xlsxStore) Upsert(_ context.Context, e Entry) (bool, error) {
	if err := validate(e); err != nil {
		return false, err
	}

	unlock := lockFile(s.path)
	defer unlock()

	f, sheet, err := s.open()
	if err != nil {
		return false, err
	}
	if f == nil {
		if f, err = newRegister(); err != nil {
			return false, err
		}
		sheet = xlsxSheet
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	target := 0
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if existing, ok := rowEntry(row); ok && existing.DocumentName == e.DocumentName {
			target = i + 1
			break
		}
	}

	created := target == 0
	if created {
		if s.strict {
			return false, fmt.Errorf("%w: %s", ErrNotRegistered, e.DocumentName)
		}
		target = max(len(rows), 1) + 1
		if err := setCells(f, sheet, target, map[int]any{
			colItem:     target - 1,
			colDocument: e.DocumentName,
		}); err != nil {
			return false, err
		}
	}

	if err := setCells(f, sheet, target, map[int]any{
		colSigner:   e.SignerName,
		colSignedAt: e.SignedAt,
		colRemarks:  e.Remarks,
	}); err != nil {
		return false, err
	}

	if err := s.save(f); err != nil {
		return false, err
	}
	return created, nil
}

// open returns the workbook and its first sheet, or a nil file when the
// register does not exist yet.
func (s *xlsxStore) open() (*excelize.File, string, error) {
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("%w: open %s: %w", ErrCorrupt, XLSXFile, err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, "", fmt.Errorf("%w: %s has no sheets", ErrCorrupt, XLSXFile)
	}
	return f, sheets[0], nil
}

// save writes the workbook through a temp file in the same directory so
// readers never see a half-written register.
func (s *xlsxStore) save(f *excelize.File) error {
	tmp := filepath.Join(filepath.Dir(s.path), files.TempName(XLSXFile))
	if err := f.SaveAs(tmp); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("save %s: %w", XLSXFile, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", XLSXFile, err)
	}
	return nil
}

func newRegister() (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(f.GetSheetName(0), xlsxSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("create register: %w", err)
	}
	if err := setCells(f, xlsxSheet, 1, xlsxHeader); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func setCells(f *excelize.File, sheet string, row int, values map[int]any) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
	}
	return nil
}

func rowEntry(row []string) (Entry, bool) {
	cell := func(col int) string {
		if col-1 < len(row) {
			return strings.TrimSpace(row[col-1])
		}
		return ""
	}

	name := cell(colDocument)
	if name == "" {
		return Entry{}, false
	}
	return Entry{
		DocumentName: DocumentKey(name),
		SignerName:   cell(colSigner),
		SignedAt:     cell(colSignedAt),
		Remarks:      cell(colRemarks),
	}, true
}
