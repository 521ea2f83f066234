// Package blob defines the interface for durable snapshot storage.
// The abstraction keeps the backup scheduler independent of a specific
// backend (Google Cloud Storage, the local filesystem, or memory in tests).
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotExist is returned by Get when no blob is stored under the name.
var ErrNotExist = errors.New("blob does not exist")

// Store persists named snapshot blobs.
type Store interface {
	// Put writes data under name, overwriting any previous blob, and returns
	// a backend URI for diagnostics.
	Put(ctx context.Context, name, contentType string, data io.Reader) (string, error)

	// Get opens the blob stored under name. The caller closes the reader.
	Get(ctx context.Context, name string) (io.ReadCloser, error)
}
