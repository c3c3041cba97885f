// Package db selects a cache backend driver by name.
package db

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ZaguanLabs/tlcache/store"
	"github.com/ZaguanLabs/tlcache/store/db/postgres"
	"github.com/ZaguanLabs/tlcache/store/db/sqlite"
)

// Config names a backend and how to reach it.
type Config struct {
	Driver        string // "sqlite" or "postgres"
	DSN           string // SQLite path, or the PostgreSQL DSN for both pools
	ReadDSN       string // PostgreSQL read pool DSN, overrides DSN
	WriteDSN      string // PostgreSQL write pool DSN, overrides DSN
	ReadPoolSize  int
	WritePoolSize int
}

// NewDriver creates and connects the driver named by cfg.Driver.
func NewDriver(ctx context.Context, cfg Config) (store.Driver, error) {
	var driver store.Driver
	var err error

	switch cfg.Driver {
	case "sqlite":
		driver, err = sqlite.Open(sqlite.Config{Path: cfg.DSN})
	case "postgres":
		pg := postgres.Config{
			ReadDSN:       firstNonEmpty(cfg.ReadDSN, cfg.DSN),
			WriteDSN:      firstNonEmpty(cfg.WriteDSN, cfg.DSN),
			ReadPoolSize:  int32(cfg.ReadPoolSize),
			WritePoolSize: int32(cfg.WritePoolSize),
		}
		driver, err = postgres.Open(ctx, pg)
	default:
		return nil, errors.Errorf("unknown db driver %q: only 'sqlite' and 'postgres' are supported", cfg.Driver)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to create db driver")
	}
	return driver, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
