// Package persist provides the key-value persistence used to store application state.
package persist

import (
	"context"

	"github.com/pkg/errors"
)

// Provider persists string blobs under string keys.
type Provider interface {
	// Get returns the value stored under key. The boolean is false if nothing is stored.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Close releases the underlying resources.
	Close() error
}

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverRedis    = "redis"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Opts for opening a provider.
type Opts struct {
	Driver string
	// Path of the sqlite database.
	Path string
	// Redis connection.
	RedisAddress  string
	RedisPassword string
	RedisDB       int
	// Prefix prepended to redis keys.
	RedisKeyPrefix string
	// PostgresDSN is a postgres connection string.
	PostgresDSN string
}

// Open the provider selected by opts.Driver.
func Open(ctx context.Context, opts Opts) (Provider, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		return NewSQLite(opts.Path)
	case DriverRedis:
		return NewRedis(ctx, opts)
	case DriverPostgres:
		return NewPostgres(ctx, opts.PostgresDSN)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, errors.Errorf("unknown storage driver (%s)", opts.Driver)
	}
}
