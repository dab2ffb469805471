// Package storage abstracts the object store that holds published datasets.
package storage

import (
	"context"
	"errors"
	"io"
	"maps"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object. Metadata carries the user metadata
// written with PutOptions, keyed as written.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
	Metadata     map[string]string
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectStore holds the published demo dataset: one Parquet file per table
// plus a JSON manifest.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
}

// Pinger is implemented by stores that can check their backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks store when it supports it and reports nil otherwise.
func Ping(ctx context.Context, store ObjectStore) error {
	if pinger, ok := store.(Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func cloneMetadata(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	return maps.Clone(metadata)
}
