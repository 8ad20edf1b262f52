// Package storage defines the read-only Storage interface the site uses to
// fetch its index snapshot, plus the registry of available backends.
//
// Backends register themselves from an init() function in their own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (storage.Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// cmd/server imports each backend with a blank import to trigger init().
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned (wrapped) by Download and GetMetadata when no object
// exists at the requested path.
var ErrNotFound = errors.New("object not found")

// Storage is the read side of a snapshot store. The site never writes to it;
// snapshots are published by the data pipeline.
type Storage interface {
	// Download retrieves an object and returns a reader the caller must close
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Exists checks if an object exists at the specified path
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves object metadata without downloading the body
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
}

// FileMetadata contains metadata about a stored object
type FileMetadata struct {
	// Path is the storage path of the object
	Path string

	// Size is the object size in bytes
	Size int64

	// Checksum is the SHA256 hash of the contents when the backend can
	// provide it cheaply, otherwise empty
	Checksum string

	LastModified time.Time
}
