package storage

import "context"

// BlobStore accepts a byte buffer and returns a permanent public URL. The
// image pipeline only ever writes through this interface; it never exposes
// temporary generation-service URLs to the rest of the system.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}
