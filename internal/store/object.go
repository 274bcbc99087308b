package store

import "context"

// ObjectStore defines the interface for blob storage of uploaded source files.
// Version: 1.0
type ObjectStore interface {
	// Upload stores the given bytes under key with the provided mime type.
	Upload(ctx context.Context, key string, data []byte, mimeType string) error

	// Download retrieves the bytes stored under key.
	// Returns ErrNotFound if no object exists for the key.
	Download(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object stored under key. Deleting a missing
	// object is not an error.
	Delete(ctx context.Context, key string) error
}
