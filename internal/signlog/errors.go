package signlog

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates no entry exists for the document.
	ErrNotFound = errors.New("log entry not found")
	// ErrNotRegistered indicates a strict register has no row for the document.
	ErrNotRegistered = errors.New("document not registered in log")
	// ErrInvalidEntry indicates an entry missing a required field.
	ErrInvalidEntry = errors.New("invalid log entry")
	// ErrCorrupt indicates a log file that cannot be parsed.
	ErrCorrupt = errors.New("log file is corrupt")
	// ErrDuplicate indicates a concurrent insert for the same document.
	ErrDuplicate = errors.New("duplicate log entry")
)

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidEntry, msg)
}
