// Package store provides the durable key-value backends local mode keeps
// the student collection in.
package store

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// KV is a durable key-value store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	io.Closer
}

// Backend names accepted by Open.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

var ErrUnknownBackend = errors.New("store: unknown backend")

// Config selects and locates a backend.
type Config struct {
	Backend     string
	Dir         string
	SQLitePath  string
	DatabaseURL string
	RedisAddr   string
}

// Open connects the configured backend.
func Open(ctx context.Context, cfg Config) (KV, error) {
	switch cfg.Backend {
	case "", BackendFile:
		f, err := NewFile(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return f, nil
	case BackendSQLite:
		s, err := NewSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		db, err := NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	case BackendRedis:
		r := NewRedis(cfg.RedisAddr)
		if err := r.Client.Ping(ctx).Err(); err != nil {
			r.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}
