package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
)

// Runs only against a real database: TEST_DATABASE_URL=postgres://...
func TestPostgresStorePutGet(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	s := NewPostgresStore(dsn)
	if err := s.EnsureSchema(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bucket := "test-" + uuid.NewString()
	if err := s.Put(ctx, bucket, "p", "x", []byte("v1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Put(ctx, bucket, "p", "x", []byte("v2")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := s.Get(ctx, bucket, "p", "x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte("v2")) {
		t.Fatalf("expected upserted payload v2, got %q", got)
	}
	if _, err := s.Get(ctx, bucket, "p", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStoreUnreachable(t *testing.T) {
	s := NewPostgresStore("postgres://nobody@127.0.0.1:1/none?connect_timeout=1")
	_, err := s.Get(context.Background(), "bucket", "p", "x")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected a storage error, got %v", err)
	}
}
