package persist

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// Postgres implements a Provider on top of a single postgres table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects to the database at dsn and creates the kv table if needed.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to postgres")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "pinging postgres")
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS inquirex_kv (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			update_timestamp BIGINT NOT NULL
		)
	`)
	if err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "creating kv table")
	}
	return &Postgres{pool: pool}, nil
}

// Get implements Provider.
func (p *Postgres) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := p.pool.QueryRow(ctx, `SELECT value FROM inquirex_kv WHERE key = $1`, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "querying key (%s)", key)
	}
	return value, true, nil
}

// Set implements Provider.
func (p *Postgres) Set(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO inquirex_kv (key, value, update_timestamp) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, update_timestamp = EXCLUDED.update_timestamp
	`, key, value, time.Now().UnixMicro())
	if err != nil {
		return errors.Wrapf(err, "writing key (%s)", key)
	}
	return nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
