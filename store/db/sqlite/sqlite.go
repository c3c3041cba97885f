// Package sqlite is the embedded backend: a single-file SQLite database used
// through one connection, with every operation serialized.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ZaguanLabs/tlcache"
	"github.com/ZaguanLabs/tlcache/store"
)

// Config holds configuration for the embedded backend.
type Config struct {
	Path        string        // Database file, or ":memory:"
	BusyTimeout time.Duration // How long SQLite waits on a locked file (default: 5s)
}

// DB is the embedded store.Driver.
type DB struct {
	db   *sql.DB
	path string

	// mu serializes operations on the single connection.
	mu sync.Mutex
}

// Open opens (creating if needed) the database at cfg.Path.
func Open(cfg Config) (*DB, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	pragmas := []string{
		fmt.Sprintf("_pragma=busy_timeout(%d)", busy.Milliseconds()),
	}
	if !isMemory(cfg.Path) {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}
	sep := "?"
	if strings.Contains(cfg.Path, "?") {
		sep = "&"
	}
	dsn := cfg.Path + sep + strings.Join(pragmas, "&")

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", cfg.Path)
	}

	// One connection for the lifetime of the process; an in-memory database
	// lives exactly as long as it does.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	return &DB{db: db, path: cfg.Path}, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func (d *DB) Name() string {
	return "sqlite"
}

// Placeholder returns a placeholder for SQLite (uses ?).
func (d *DB) Placeholder(int) string {
	return "?"
}

func (d *DB) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + store.TableName + ` (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source_text TEXT NOT NULL,
			source_lang TEXT NOT NULL,
			target_langs TEXT NOT NULL,
			record BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			UNIQUE (source_text, source_lang, target_langs)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + store.TableName + `_source_text ON ` + store.TableName + ` (source_text)`,
	}
}

func (d *DB) Query(ctx context.Context, query string, args []any, fn func(store.Scanner) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return classify("query", err)
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return classify("query", rows.Err())
}

func (d *DB) Execute(ctx context.Context, query string, args ...any) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.ExecContext(ctx, query, args...)
	return classify("execute", err)
}

func (d *DB) ExecuteMany(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("begin", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return classify("prepare", err)
	}
	defer stmt.Close()

	for _, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return classify("execute many", err)
		}
	}

	return classify("commit", tx.Commit())
}

func (d *DB) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}

// classify maps a raw driver error onto the backend error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, op)
	}

	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED, sqlite3.SQLITE_PROTOCOL:
			return &tlcache.TransientBackendError{Op: op, Cause: err}
		}
		return &tlcache.PermanentBackendError{Op: op, Cause: err}
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return &tlcache.TransientBackendError{Op: op, Cause: err}
	}
	return &tlcache.PermanentBackendError{Op: op, Cause: err}
}

var _ store.Driver = (*DB)(nil)
