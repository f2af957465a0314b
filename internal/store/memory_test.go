package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/i474232898/weather-tables/internal/weather"
)

func TestObjectKey(t *testing.T) {
	tests := []struct {
		prefix, filename, want string
	}{
		{prefix: "checkpoints", filename: "stations_20230101", want: "checkpoints/stations_20230101.pkl"},
		{prefix: "a/b/", filename: "x", want: "a/b/x.pkl"},
		{prefix: "", filename: "x", want: "x.pkl"},
	}
	for _, tt := range tests {
		if got := ObjectKey(tt.prefix, tt.filename); got != tt.want {
			t.Fatalf("ObjectKey(%q, %q) expected %q, got %q", tt.prefix, tt.filename, tt.want, got)
		}
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	payload := []byte("hello")
	if err := s.Put(ctx, "bucket", "prefix", "greeting", payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payload[0] = 'j'

	got, err := s.Get(ctx, "bucket", "prefix", "greeting")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("expected stored copy to be unaffected, got %q", got)
	}

	_, err = s.Get(ctx, "other", "prefix", "greeting")
	if !errors.Is(err, ErrNotFound) || !errors.Is(err, weather.ErrStorage) {
		t.Fatalf("expected ErrNotFound wrapping ErrStorage, got %v", err)
	}
}

func TestMemoryStoreRetention(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	for _, name := range []string{"a", "b", "a", "c"} {
		if err := s.Put(ctx, "bucket", "p", name, []byte(name)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 objects, got %d", s.Len())
	}
	if _, err := s.Get(ctx, "bucket", "p", "a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected oldest object to be evicted, got %v", err)
	}
	if _, err := s.Get(ctx, "bucket", "p", "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMemoryStoreHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewMemoryStore(0).Put(ctx, "bucket", "p", "x", nil)
	if !errors.Is(err, weather.ErrStorage) {
		t.Fatalf("expected ErrStorage, got %v", err)
	}
}
