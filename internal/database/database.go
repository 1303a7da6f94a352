package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"github.com/sethvargo/go-retry"

	"github.com/storeadmin-io/storeadmin/internal/config"
)

const (
	TypeSQLite   = "sqlite"
	TypePostgres = "postgres"
)

//go:embed migrations
var migrationsFS embed.FS

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// DB wraps a connection pool together with the dialect it speaks.
type DB struct {
	*sql.DB
	Type string
}

// Open connects to the configured database and waits for it to answer a
// ping, retrying MaxRetries times RetryDelay seconds apart.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)

	switch cfg.Type {
	case TypePostgres:
		conn, err = sql.Open("postgres", cfg.DSN)
	case TypeSQLite, "":
		conn, err = openSQLite(cfg.Path)
		cfg.Type = TypeSQLite
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := ping(ctx, conn, cfg.MaxRetries, time.Duration(cfg.RetryDelay)*time.Second); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("database connection established", "type", cfg.Type)
	return &DB{DB: conn, Type: cfg.Type}, nil
}

func openSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := createDataDir(filepath.Dir(path)); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return conn, nil
}

func ping(ctx context.Context, conn *sql.DB, maxRetries int, delay time.Duration) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if delay <= 0 {
		delay = time.Second
	}
	backoff := retry.WithMaxRetries(uint64(maxRetries), retry.NewConstant(delay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := conn.PingContext(ctx); err != nil {
			slog.Warn("database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// createDataDir ensures the data directory exists.
func createDataDir(dir string) error {
	if stat, err := os.Stat(dir); err == nil {
		if !stat.IsDir() {
			return fmt.Errorf("path %s exists but is not a directory", dir)
		}
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	}

	slog.Info("creating data directory", "dir", dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Rebind rewrites ? placeholders into the $n form postgres expects.
func (d *DB) Rebind(query string) string {
	return Rebind(d.Type, query)
}

func Rebind(dbType, query string) string {
	if dbType != TypePostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *DB) gooseDialect() string {
	if d.Type == TypePostgres {
		return "postgres"
	}
	return "sqlite3"
}

func (d *DB) migrationsDir() string {
	return "migrations/" + d.Type
}

func (d *DB) withGoose(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrationsFS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect(d.gooseDialect()); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	return fn()
}

// Migrate applies every pending migration.
func (d *DB) Migrate(ctx context.Context) error {
	return d.withGoose(func() error {
		if err := goose.UpContext(ctx, d.DB, d.migrationsDir()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		return nil
	})
}

// MigrateDown rolls back the most recent migration.
func (d *DB) MigrateDown(ctx context.Context) error {
	return d.withGoose(func() error {
		if err := goose.DownContext(ctx, d.DB, d.migrationsDir()); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		return nil
	})
}

// MigrationVersion reports the current schema version.
func (d *DB) MigrationVersion(ctx context.Context) (int64, error) {
	var version int64
	err := d.withGoose(func() error {
		v, err := goose.GetDBVersionContext(ctx, d.DB)
		version = v
		return err
	})
	return version, err
}

// MigrationStatus logs the state of every migration through goose's logger.
func (d *DB) MigrationStatus(ctx context.Context) error {
	return d.withGoose(func() error {
		return goose.StatusContext(ctx, d.DB, d.migrationsDir())
	})
}
