package database_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/JaimeStill/qtgreview/pkg/database"
	"github.com/JaimeStill/qtgreview/pkg/lifecycle"
)

func TestConfigFinalize(t *testing.T) {
	tests := []struct {
		name    string
		cfg     database.Config
		wantErr bool
		check   func(t *testing.T, c database.Config)
	}{
		{
			name: "sqlite defaults",
			cfg:  database.Config{},
			check: func(t *testing.T, c database.Config) {
				if c.Driver != database.DriverSQLite || c.Path != "signing_log.db" || c.MaxOpenConns != 1 {
					t.Errorf("sqlite defaults = %+v", c)
				}
			},
		},
		{
			name: "postgres defaults",
			cfg:  database.Config{Driver: "pgx", Name: "qtg", User: "qtg"},
			check: func(t *testing.T, c database.Config) {
				if c.Host != "localhost" || c.Port != 5432 || c.SSLMode != "disable" {
					t.Errorf("postgres defaults = %+v", c)
				}
			},
		},
		{name: "postgres missing name", cfg: database.Config{Driver: "pgx", User: "qtg"}, wantErr: true},
		{name: "unknown driver", cfg: database.Config{Driver: "mysql"}, wantErr: true},
		{name: "bad timeout", cfg: database.Config{ConnTimeout: "soon"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			err := cfg.Finalize(nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Finalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("TEST_DB_DRIVER", "pgx")
	t.Setenv("TEST_DB_NAME", "qtg")
	t.Setenv("TEST_DB_USER", "reviewer")
	t.Setenv("TEST_DB_PORT", "6543")

	cfg := database.Config{}
	err := cfg.Finalize(&database.Env{
		Driver: "TEST_DB_DRIVER",
		Name:   "TEST_DB_NAME",
		User:   "TEST_DB_USER",
		Port:   "TEST_DB_PORT",
	})
	if err != nil {
		t.Fatalf("Finalize() error = %v", err)
	}
	if cfg.Port != 6543 {
		t.Errorf("Port = %d, want 6543", cfg.Port)
	}
	if dsn := cfg.Dsn(); !strings.Contains(dsn, "dbname=qtg") || !strings.Contains(dsn, "user=reviewer") {
		t.Errorf("Dsn() = %s", dsn)
	}
}

func TestSQLiteStartup(t *testing.T) {
	cfg := database.Config{Path: filepath.Join(t.TempDir(), "log.db")}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}

	sys, err := database.New(&cfg, slog.Default())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if sys.Driver() != database.DriverSQLite {
		t.Errorf("Driver() = %s", sys.Driver())
	}

	lc := lifecycle.New()
	if err := sys.Start(lc); err != nil {
		t.Fatal(err)
	}
	if err := lc.WaitForStartup(); err != nil {
		t.Fatalf("WaitForStartup() error = %v", err)
	}

	if _, err := sys.Connection().ExecContext(context.Background(), "CREATE TABLE t (id INTEGER)"); err != nil {
		t.Errorf("exec after startup: %v", err)
	}

	if err := lc.Shutdown(5 * time.Second); err != nil {
		t.Fatal(err)
	}
	if err := sys.Connection().Ping(); err == nil {
		t.Error("Ping() after shutdown succeeded, want closed pool")
	}
}
