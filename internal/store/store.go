package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	// PostgreSQL driver registered as "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

// Drivers accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Driver string `mapstructure:"driver"`
	// DSN is a file path for sqlite, a connection string for postgres and a
	// redis:// URL for redis. Empty for sqlite means DefaultDBPath.
	DSN string `mapstructure:"dsn"`
	// KeyPrefix namespaces redis keys.
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Validate checks that the driver is known and has what it needs.
func (c Config) Validate() error {
	switch c.Driver {
	case DriverSQLite, DriverMemory:
		return nil
	case DriverPostgres, DriverRedis:
		if c.DSN == "" {
			return fmt.Errorf("store driver %s requires a dsn", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("unknown store driver %q (want sqlite, postgres, redis or memory)", c.Driver)
	}
}

// Open returns the backend described by cfg.
func Open(ctx context.Context, cfg Config) (ProfileStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Driver {
	case DriverPostgres:
		return OpenPostgres(ctx, cfg.DSN)
	case DriverRedis:
		return OpenRedis(ctx, cfg.DSN, cfg.KeyPrefix)
	case DriverMemory:
		return NewMemory(), nil
	default:
		path := cfg.DSN
		if path == "" {
			p, err := DefaultDBPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return OpenSQLite(ctx, path)
	}
}

// OpenSQLite opens the SQLite database at path, applies recommended pragmas
// and runs auto-migration.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	return newSQLStore(ctx, db, dialect.SQLite)
}

// OpenPostgres connects to PostgreSQL through pgx and runs auto-migration.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return newSQLStore(ctx, db, dialect.Postgres)
}

func newSQLStore(ctx context.Context, db *sql.DB, name string) (*SQLStore, error) {
	drv := entsql.OpenDB(name, db)
	if err := migrate(ctx, drv); err != nil {
		drv.Close()
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}
	return &SQLStore{db: db, drv: drv, dialect: name}, nil
}

// sqliteDSN adds the per-connection pragmas to a file path. database/sql
// pools connections, so settings that only apply to one connection must be
// part of the DSN.
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(1)"
}

// applyPragmas applies settings that persist in the database file.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. TUTORD_DB environment variable
// 2. $XDG_DATA_HOME/tutord/tutord.db
// 3. ~/.local/share/tutord/tutord.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("TUTORD_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "tutord", "tutord.db")
	return p, ensureDir(p)
}

// ensureDir creates the parent directory of path if it doesn't exist.
func ensureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}
