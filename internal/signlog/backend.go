package signlog

import (
	"database/sql"
	"fmt"
	"time"
)

// Options configures NewBackend.
type Options struct {
	Format      Format
	StrictMatch bool
	DB          *sql.DB
	Driver      string
	Now         func() time.Time
}

// NewBackend returns the backend for opts.Format. The SQL backend requires
// opts.DB.
func NewBackend(opts Options) (Backend, error) {
	switch opts.Format {
	case FormatCSV:
		return CSVBackend{}, nil
	case FormatXLSX:
		return XLSXBackend{StrictMatch: opts.StrictMatch}, nil
	case FormatSQL:
		if opts.DB == nil {
			return nil, fmt.Errorf("sql log requires a database connection")
		}
		return NewSQLBackend(opts.DB, opts.Driver, opts.Now), nil
	default:
		return nil, fmt.Errorf("unsupported log format %q", opts.Format)
	}
}
