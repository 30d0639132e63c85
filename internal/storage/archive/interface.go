// Package archive stores analysis snapshots in cold storage, either on the
// local filesystem or in an S3-compatible bucket.
package archive

import "context"

// Storage is a flat key/blob store. Paths use forward slashes on every
// backend. Read of a missing path returns core.ErrResultNotFound.
type Storage interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)

	// List returns every path under prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}
