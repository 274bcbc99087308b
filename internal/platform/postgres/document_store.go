package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/platform/logger"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// DocumentStore implements store.DocumentStore on PostgreSQL.
type DocumentStore struct {
	db     *DB
	logger *slog.Logger
}

// NewDocumentStore creates a PostgreSQL-backed document store. If logger is
// nil, the default logger is used.
func NewDocumentStore(db *DB, log *slog.Logger) *DocumentStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &DocumentStore{
		db:     db,
		logger: log.With(slog.String("component", "document_store")),
	}
}

var _ store.DocumentStore = (*DocumentStore)(nil)

// Create implements store.DocumentStore.Create.
func (s *DocumentStore) Create(ctx context.Context, doc *domain.Document) error {
	log := logger.FromContext(ctx)

	if err := doc.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO documents (id, owner_id, filename, size_bytes, mime_type, storage_key, status, credit_charged, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.conn(ctx).Exec(ctx, query,
		doc.ID, doc.OwnerID, doc.Filename, doc.SizeBytes, doc.MimeType,
		doc.StorageKey, doc.Status, doc.CreditCharged, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		log.Error("failed to create document",
			slog.String("error", err.Error()),
			slog.String("document_id", doc.ID.String()))
		return MapError(err)
	}

	log.Debug("document created",
		slog.String("document_id", doc.ID.String()),
		slog.Int64("size_bytes", doc.SizeBytes))
	return nil
}

// GetByID implements store.DocumentStore.GetByID.
func (s *DocumentStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error) {
	query := `
		SELECT id, owner_id, filename, size_bytes, mime_type, storage_key, status, credit_charged, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var doc domain.Document
	err := s.db.conn(ctx).QueryRow(ctx, query, id).Scan(
		&doc.ID, &doc.OwnerID, &doc.Filename, &doc.SizeBytes, &doc.MimeType,
		&doc.StorageKey, &doc.Status, &doc.CreditCharged, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrDocumentNotFound
		}
		return nil, MapError(err)
	}
	return &doc, nil
}

// UpdateStatus implements store.DocumentStore.UpdateStatus.
func (s *DocumentStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus) error {
	query := `
		UPDATE documents
		SET status = $2, updated_at = $3
		WHERE id = $1
	`
	tag, err := s.db.conn(ctx).Exec(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocumentNotFound
	}
	return nil
}

// MarkCreditCharged implements store.DocumentStore.MarkCreditCharged. The
// flag only transitions false to true; the returned bool reports whether
// this call performed the transition, which keeps the processing charge
// idempotent.
func (s *DocumentStore) MarkCreditCharged(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE documents
		SET credit_charged = TRUE, updated_at = $2
		WHERE id = $1 AND credit_charged = FALSE
	`
	tag, err := s.db.conn(ctx).Exec(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, MapError(err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// No row flipped: either the document is already charged or it does not
	// exist at all.
	var exists bool
	err = s.db.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, MapError(err)
	}
	if !exists {
		return false, store.ErrDocumentNotFound
	}
	return false, nil
}

// Delete implements store.DocumentStore.Delete.
func (s *DocumentStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.conn(ctx).Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrDocumentNotFound
	}

	s.logger.Debug("document deleted", slog.String("document_id", id.String()))
	return nil
}
