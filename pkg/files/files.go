// Package files provides the filesystem primitives the review workflow relies on:
// atomic moves between directories, atomic writes, and directory listings.
package files

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidName indicates a file name that is empty, hidden, or not a single path segment.
var ErrInvalidName = errors.New("invalid file name")

// Info describes a regular file found in a directory listing.
type Info struct {
	Name       string    `json:"name"`
	SizeBytes  int64     `json:"size_bytes"`
	ModifiedAt time.Time `json:"modified_at"`
}

// ValidateName reports whether name is usable as a single file name inside a directory.
func ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case strings.HasPrefix(name, "."):
		return ErrInvalidName
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return ErrInvalidName
	}
	return nil
}

// EnsureDirs creates each directory (and parents) when absent.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Exists reports whether a regular file exists at path.
func Exists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Stat returns listing info for the regular file at path.
// A missing file yields an error matching fs.ErrNotExist.
func Stat(path string) (Info, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Info{}, err
	}
	if !info.Mode().IsRegular() {
		return Info{}, fmt.Errorf("%s: %w", path, fs.ErrNotExist)
	}
	return Info{
		Name:       info.Name(),
		SizeBytes:  info.Size(),
		ModifiedAt: info.ModTime(),
	}, nil
}

// List returns the regular, non-hidden files in dir sorted by name.
// A missing directory yields an empty listing.
func List(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Info{}, nil
		}
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	result := make([]Info, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		result = append(result, Info{
			Name:       e.Name(),
			SizeBytes:  info.Size(),
			ModifiedAt: info.ModTime(),
		})
	}

	slices.SortFunc(result, func(a, b Info) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result, nil
}

// Move relocates src to dst with a single rename. The destination is replaced
// if it exists. When src and dst live on different volumes the file is copied
// into place and the source removed; if the source cannot be removed the copy
// is rolled back so the file remains only at src.
//
// A missing src yields an error matching fs.ErrNotExist and nothing is changed.
func Move(src, dst string) error {
	if _, err := Stat(src); err != nil {
		return err
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		return moveAcrossVolumes(src, dst)
	}
	return fmt.Errorf("move %s: %w", filepath.Base(src), err)
}

func moveAcrossVolumes(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}

	if err := WriteAtomic(dst, in); err != nil {
		in.Close()
		return err
	}
	in.Close()

	if err := os.Remove(src); err != nil {
		if rbErr := os.Remove(dst); rbErr != nil {
			return fmt.Errorf("remove source %s: %w (rollback failed: %v)", src, err, rbErr)
		}
		return fmt.Errorf("remove source %s: %w", src, err)
	}
	return nil
}

// WriteAtomic writes the contents of r to path through a hidden temp file in
// the same directory followed by a rename, so readers never observe a partial file.
func WriteAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, TempName(filepath.Base(path)))

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// TempName returns a hidden, unique sibling name for base that keeps its extension.
func TempName(base string) string {
	return fmt.Sprintf(".%s.%s%s", strings.TrimSuffix(base, filepath.Ext(base)), uuid.NewString(), filepath.Ext(base))
}
