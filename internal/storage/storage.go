// Package storage abstracts the blob store holding document contents. The
// lifecycle core only ever deletes objects; upload and download live with
// the request-handling layer.
package storage

import "context"

// Storage is the narrow contract the lifecycle core consumes.
type Storage interface {
	// DeleteFile removes the object for a storage key. Deleting a key that
	// no longer exists is not an error.
	DeleteFile(ctx context.Context, key string) error
}
