// Package postgres is the networked backend: PostgreSQL through two
// independent pgx connection pools, one for reads and one for writes.
package postgres

import (
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/ZaguanLabs/tlcache"
	"github.com/ZaguanLabs/tlcache/store"
)

// Config holds configuration for the networked backend.
type Config struct {
	ReadDSN       string // Falls back to WriteDSN when empty
	WriteDSN      string
	ReadPoolSize  int32 // Max read connections (default: 8)
	WritePoolSize int32 // Max write connections (default: 4)
}

// DB is the networked store.Driver. Queries use the read pool, writes use the
// write pool. Pools connect on first use unless Init is called.
type DB struct {
	read  *lazyPool
	write *lazyPool
}

// New creates a driver without connecting.
func New(cfg Config) (*DB, error) {
	if cfg.WriteDSN == "" {
		return nil, errors.New("postgres DSN is required")
	}
	if cfg.ReadDSN == "" {
		cfg.ReadDSN = cfg.WriteDSN
	}
	if cfg.ReadPoolSize <= 0 {
		cfg.ReadPoolSize = 8
	}
	if cfg.WritePoolSize <= 0 {
		cfg.WritePoolSize = 4
	}
	return &DB{
		read:  &lazyPool{name: "read", dsn: cfg.ReadDSN, size: cfg.ReadPoolSize},
		write: &lazyPool{name: "write", dsn: cfg.WriteDSN, size: cfg.WritePoolSize},
	}, nil
}

// Open creates a driver and connects both pools.
func Open(ctx context.Context, cfg Config) (*DB, error) {
	d, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if err := d.Init(ctx); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

// Init connects both pools. It is safe to call more than once and
// concurrently with other operations.
func (d *DB) Init(ctx context.Context) error {
	if _, err := d.read.get(ctx); err != nil {
		return err
	}
	_, err := d.write.get(ctx)
	return err
}

func (d *DB) Name() string {
	return "postgres"
}

// Placeholder returns a placeholder for PostgreSQL (uses $1, $2, ...).
func (d *DB) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (d *DB) Schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS ` + store.TableName + ` (
			id BIGSERIAL PRIMARY KEY,
			source_text TEXT NOT NULL,
			source_lang TEXT NOT NULL,
			target_langs TEXT NOT NULL,
			record BYTEA NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			UNIQUE (source_text, source_lang, target_langs)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_` + store.TableName + `_source_text ON ` + store.TableName + ` (source_text)`,
	}
}

func (d *DB) Query(ctx context.Context, query string, args []any, fn func(store.Scanner) error) error {
	pool, err := d.read.get(ctx)
	if err != nil {
		return err
	}

	rows, err := pool.Query(ctx, query, args...)
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
	pool, err := d.write.get(ctx)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, query, args...)
	return classify("execute", err)
}

func (d *DB) ExecuteMany(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	pool, err := d.write.get(ctx)
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return classify("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after Commit

	batch := &pgx.Batch{}
	for _, args := range rows {
		batch.Queue(query, args...)
	}

	results := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return classify("execute many", err)
		}
	}
	if err := results.Close(); err != nil {
		return classify("execute many", err)
	}

	return classify("commit", tx.Commit(ctx))
}

// Close waits for in-flight operations and closes both pools. Calling it
// more than once is a no-op.
func (d *DB) Close() error {
	d.read.close()
	d.write.close()
	return nil
}

// lazyPool connects a pgxpool on first use. A failed connect is not cached,
// so the next call tries again; a successful one happens exactly once.
type lazyPool struct {
	name string
	dsn  string
	size int32

	ready  atomic.Pointer[pgxpool.Pool]
	mu     sync.Mutex
	closed bool
}

func (l *lazyPool) get(ctx context.Context) (*pgxpool.Pool, error) {
	if pool := l.ready.Load(); pool != nil {
		return pool, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, &tlcache.PermanentBackendError{Op: "connect " + l.name, Cause: errors.New("pool closed")}
	}
	if pool := l.ready.Load(); pool != nil {
		return pool, nil
	}

	cfg, err := pgxpool.ParseConfig(l.dsn)
	if err != nil {
		return nil, &tlcache.PermanentBackendError{Op: "connect " + l.name, Cause: errors.Wrap(err, "invalid DSN")}
	}
	cfg.MaxConns = l.size

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, classify("connect "+l.name, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, classify("connect "+l.name, err)
	}

	l.ready.Store(pool)
	return pool, nil
}

func (l *lazyPool) close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	if pool := l.ready.Swap(nil); pool != nil {
		pool.Close()
	}
}

// transientCodes are SQLSTATEs worth retrying.
var transientCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
	"57014": true, // query_canceled (statement_timeout)
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// classify maps a pgx error onto the backend error taxonomy.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, op)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exception. Class 53: insufficient resources.
		if transientCodes[pgErr.Code] || strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "53") {
			return &tlcache.TransientBackendError{Op: op, Cause: err}
		}
		return &tlcache.PermanentBackendError{Op: op, Cause: err}
	}

	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return &tlcache.TransientBackendError{Op: op, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &tlcache.TransientBackendError{Op: op, Cause: err}
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return &tlcache.TransientBackendError{Op: op, Cause: err}
	}

	return &tlcache.PermanentBackendError{Op: op, Cause: err}
}

var _ store.Driver = (*DB)(nil)
