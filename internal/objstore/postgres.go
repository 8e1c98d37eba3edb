package objstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the Postgres store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps documents in a Postgres table.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// NewPostgres connects to Postgres with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS documents (
	key        TEXT PRIMARY KEY,
	content    BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Migrate creates the documents table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) FetchFile(ctx context.Context, key string) ([]byte, error) {
	var content []byte
	err := s.pool.QueryRow(ctx, `SELECT content FROM documents WHERE key = $1`, key).Scan(&content)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: %s", key)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: fetch %s", key)
	}
	return content, nil
}

func (s *PostgresStore) WriteFile(ctx context.Context, key string, content []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (key, content, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at`,
		key, content, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: write %s", key)
}

func (s *PostgresStore) FetchDirectoryFiles(ctx context.Context, prefix string) (Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM documents WHERE key LIKE $1 ORDER BY key`, likePrefix(prefix))
	if err != nil {
		return Listing{}, eris.Wrapf(err, "postgres: list %s", prefix)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return Listing{}, eris.Wrapf(err, "postgres: list %s", prefix)
	}
	return listKeys(prefix, keys), nil
}

func (s *PostgresStore) DeleteFile(ctx context.Context, key string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE key = $1`, key)
	return eris.Wrapf(err, "postgres: delete %s", key)
}
