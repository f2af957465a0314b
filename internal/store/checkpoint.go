package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"

	"github.com/i474232898/weather-tables/internal/metrics"
	"github.com/i474232898/weather-tables/internal/weather"
)

// Checkpointer serializes values with encoding/gob and keeps them in a
// BlobStore under one bucket and key prefix.
type Checkpointer struct {
	Store   BlobStore
	Bucket  string
	Prefix  string
	Metrics *metrics.Collector
}

// NewCheckpointer creates a Checkpointer.
func NewCheckpointer(store BlobStore, bucket, prefix string, m *metrics.Collector) *Checkpointer {
	return &Checkpointer{Store: store, Bucket: bucket, Prefix: prefix, Metrics: m}
}

// Save encodes v and stores it under filename.
func (c *Checkpointer) Save(ctx context.Context, filename string, v any) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		err = fmt.Errorf("%w: encode %s: %v", weather.ErrStorage, filename, err)
		c.Metrics.RecordCheckpoint("save", err, 0)
		return err
	}
	err := c.Store.Put(ctx, c.Bucket, c.Prefix, filename, buf.Bytes())
	c.Metrics.RecordCheckpoint("save", err, buf.Len())
	return err
}

// Load fetches the object stored under filename and decodes it into v,
// which must be a pointer.
func (c *Checkpointer) Load(ctx context.Context, filename string, v any) error {
	payload, err := c.Store.Get(ctx, c.Bucket, c.Prefix, filename)
	if err != nil {
		c.Metrics.RecordCheckpoint("load", err, 0)
		return err
	}
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(v); err != nil {
		err = fmt.Errorf("%w: decode %s: %v", weather.ErrStorage, filename, err)
		c.Metrics.RecordCheckpoint("load", err, 0)
		return err
	}
	c.Metrics.RecordCheckpoint("load", nil, len(payload))
	return nil
}
