package store

import (
	"context"
)

// Scanner reads the columns of the current row.
type Scanner interface {
	Scan(dest ...any) error
}

// Driver is the uniform backend contract the cache store is written against.
// Every method acquires its connection for the duration of the call and
// releases it on every return path.
type Driver interface {
	// Name returns the backend name ("sqlite", "postgres").
	Name() string

	// Placeholder returns the bind parameter for the n-th argument (1-based).
	Placeholder(n int) string

	// Schema returns the idempotent DDL statements for the cache table.
	Schema() []string

	// Query runs a read query and calls fn for each row.
	Query(ctx context.Context, query string, args []any, fn func(Scanner) error) error

	// Execute runs a single write statement.
	Execute(ctx context.Context, query string, args ...any) error

	// ExecuteMany runs query once per argument row inside one transaction.
	// Either every row is applied or none is.
	ExecuteMany(ctx context.Context, query string, rows [][]any) error

	// Close drains in-flight operations and releases all connections.
	Close() error
}
