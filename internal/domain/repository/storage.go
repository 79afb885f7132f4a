package repository

import (
	"context"
	"io"
	"time"
)

// ObjectStorage is C2's narrow façade (spec.md §4.2): put/get/delete_many/list
// against a deterministic key layout, with explicit content-type tagging.
type ObjectStorage interface {
	// Put uploads the contents of r to key, tagging it with contentType
	// (video/mp4, text/vtt, image/png).
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Get retrieves an object. Caller is responsible for closing the
	// returned ReadCloser.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// DeleteMany removes a set of keys. Deletion is best-effort and
	// idempotent: a missing key is not an error.
	DeleteMany(ctx context.Context, keys []string) error

	// List returns the objects under prefix.
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)

	// Exists checks if an object exists in the storage.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error
}

// ObjectInfo contains metadata about a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
