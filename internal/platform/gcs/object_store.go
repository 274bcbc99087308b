// Package gcs implements store.ObjectStore on Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"

	"github.com/cychipo/examio-be-sub001/internal/store"
)

// Operation timeouts. Uploads carry whole PDFs, so they get more room than
// deletes.
const (
	uploadTimeout   = 2 * time.Minute
	downloadTimeout = 2 * time.Minute
	deleteTimeout   = 30 * time.Second
)

// ObjectStore stores uploaded source files in a GCS bucket.
type ObjectStore struct {
	client *storage.Client
	bucket string
	logger *slog.Logger
}

// NewObjectStore creates a GCS-backed object store for the given bucket.
func NewObjectStore(ctx context.Context, bucket string, logger *slog.Logger) (*ObjectStore, error) {
	if bucket == "" {
		return nil, errors.New("bucket name cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &ObjectStore{
		client: client,
		bucket: bucket,
		logger: logger.With(slog.String("component", "object_store")),
	}, nil
}

var _ store.ObjectStore = (*ObjectStore)(nil)

// Upload implements store.ObjectStore.Upload.
func (s *ObjectStore) Upload(ctx context.Context, key string, data []byte, mimeType string) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	if mimeType != "" {
		w.ContentType = mimeType
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write object %q: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize object %q: %w", key, err)
	}

	s.logger.Debug("object uploaded",
		slog.String("key", key),
		slog.Int("size_bytes", len(data)))
	return nil
}

// Download implements store.ObjectStore.Download.
func (s *ObjectStore) Download(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	r, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%w: object %q", store.ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to open object %q: %w", key, err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			s.logger.Warn("failed to close object reader",
				slog.String("key", key),
				slog.String("error", cerr.Error()))
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read object %q: %w", key, err)
	}
	return data, nil
}

// Delete implements store.ObjectStore.Delete. Deleting a missing object is
// not an error, so rollback stays idempotent.
func (s *ObjectStore) Delete(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()

	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}

	s.logger.Debug("object deleted", slog.String("key", key))
	return nil
}

// Close releases the underlying client.
func (s *ObjectStore) Close() error {
	return s.client.Close()
}
