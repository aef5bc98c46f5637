// Package database opens a database/sql pool for Postgres (pgx) or SQLite
// (modernc) and ties its health check and close to the application lifecycle.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
)

// System manages the connection pool and its lifecycle.
type System interface {
	// Connection returns the underlying connection pool.
	Connection() *sql.DB
	// Driver returns the database/sql driver name in use.
	Driver() string
	// Start registers the startup ping and the shutdown close.
	Start(lc *lifecycle.Coordinator) error
}

type database struct {
	conn        *sql.DB
	driver      string
	logger      *slog.Logger
	connTimeout time.Duration
}

// New opens the pool described by cfg. sql.Open validates the DSN only;
// no connection is made until Start or the first query.
func New(cfg *Config, logger *slog.Logger) (System, error) {
	db, err := sql.Open(cfg.Driver, cfg.Dsn())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

	return &database{
		conn:        db,
		driver:      cfg.Driver,
		logger:      logger.With("system", "database", "driver", cfg.Driver),
		connTimeout: cfg.ConnTimeoutDuration(),
	}, nil
}

func (d *database) Connection() *sql.DB {
	return d.conn
}

func (d *database) Driver() string {
	return d.driver
}

func (d *database) Start(lc *lifecycle.Coordinator) error {
	d.logger.Info("starting database connection")

	lc.OnStartup("database ping", func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, d.connTimeout)
		defer cancel()

		if err := d.conn.PingContext(pingCtx); err != nil {
			return fmt.Errorf("%w: %w", ErrNotReady, err)
		}
		d.logger.Info("database connection established")
		return nil
	})

	lc.OnShutdown(func() {
		d.logger.Info("closing database connection")
		if err := d.conn.Close(); err != nil {
			d.logger.Error("database close failed", "error", err)
			return
		}
		d.logger.Info("database connection closed")
	})

	return nil
}
