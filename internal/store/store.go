package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/i474232898/weather-tables/internal/weather"
)

// ErrNotFound is returned when no object exists under the requested key.
var ErrNotFound = fmt.Errorf("%w: object not found", weather.ErrStorage)

// objectSuffix is appended to every object filename.
const objectSuffix = ".pkl"

// BlobStore is a bucket/key addressed byte store. Implementations acquire
// and release their connection within each call.
type BlobStore interface {
	Put(ctx context.Context, bucket, keyPrefix, filename string, payload []byte) error
	Get(ctx context.Context, bucket, keyPrefix, filename string) ([]byte, error)
}

// ObjectKey builds the full key "<prefix>/<filename>.pkl". An empty prefix
// yields "<filename>.pkl".
func ObjectKey(prefix, filename string) string {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return filename + objectSuffix
	}
	return prefix + "/" + filename + objectSuffix
}

func storageError(op, bucket, key string, err error) error {
	return fmt.Errorf("%w: %s %s/%s: %v", weather.ErrStorage, op, bucket, key, err)
}
