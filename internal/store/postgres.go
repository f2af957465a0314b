package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const createBlobTable = `
CREATE TABLE IF NOT EXISTS blob_objects (
    bucket     TEXT        NOT NULL,
    object_key TEXT        NOT NULL,
    payload    BYTEA       NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (bucket, object_key)
)`

// PostgresStore is a BlobStore backed by a single Postgres table. Each call
// opens and closes its own connection.
type PostgresStore struct {
	dsn string
}

// NewPostgresStore creates a store for the database at dsn.
func NewPostgresStore(dsn string) *PostgresStore {
	return &PostgresStore{dsn: dsn}
}

func (s *PostgresStore) withConn(ctx context.Context, fn func(conn *pgx.Conn) error) error {
	conn, err := pgx.Connect(ctx, s.dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	return fn(conn)
}

// EnsureSchema creates the blob table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, createBlobTable)
		return err
	})
	if err != nil {
		return storageError("ensure schema", "", "blob_objects", err)
	}
	return nil
}

// Put upserts payload under (bucket, ObjectKey(keyPrefix, filename)).
func (s *PostgresStore) Put(ctx context.Context, bucket, keyPrefix, filename string, payload []byte) error {
	key := ObjectKey(keyPrefix, filename)
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, `
INSERT INTO blob_objects (bucket, object_key, payload, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (bucket, object_key) DO UPDATE
SET payload = EXCLUDED.payload,
    updated_at = NOW()`, bucket, key, payload)
		return err
	})
	if err != nil {
		return storageError("put", bucket, key, err)
	}
	return nil
}

// Get loads the payload stored under (bucket, ObjectKey(keyPrefix, filename)).
func (s *PostgresStore) Get(ctx context.Context, bucket, keyPrefix, filename string) ([]byte, error) {
	key := ObjectKey(keyPrefix, filename)
	var payload []byte
	err := s.withConn(ctx, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx,
			`SELECT payload FROM blob_objects WHERE bucket = $1 AND object_key = $2`,
			bucket, key).Scan(&payload)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageError("get", bucket, key, err)
	}
	return payload, nil
}
