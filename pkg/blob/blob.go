// Package blob provides byte-oriented object storage behind a small Store
// interface. The S3 implementation backs production (newsletter data, content
// JSON, the static HTML shell); the local and memory implementations serve
// development and tests.
package blob

import "context"

// Store reads and writes whole objects by key.
type Store interface {
	// Get returns the object's contents. Returns ErrNotFound when the key
	// does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put writes the object, replacing any existing contents.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Exists reports whether the key is present.
	Exists(ctx context.Context, key string) bool
}
