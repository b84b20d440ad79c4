// Package storage abstracts the object store that holds exported result
// files. Keys are bucket-relative; implementations may prepend a configured
// prefix.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrObjectNotFound = errors.New("object not found")

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// PresignGet returns a time-limited download URL for an uploaded object.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
