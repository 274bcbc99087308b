package store

import (
	"context"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/google/uuid"
)

// DocumentStore defines the interface for stored-document persistence.
// Version: 1.0
type DocumentStore interface {
	// Create saves a new document to the store.
	Create(ctx context.Context, doc *domain.Document) error

	// GetByID retrieves a document by its unique ID.
	// Returns ErrDocumentNotFound if the document does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Document, error)

	// UpdateStatus updates the processing status of an existing document.
	// Returns ErrDocumentNotFound if the document does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.DocumentStatus) error

	// MarkCreditCharged atomically flips the credit_charged flag from false
	// to true. It returns true when this call performed the transition and
	// false when the document was already charged, which makes OCR billing
	// idempotent. Returns ErrDocumentNotFound if the document does not exist.
	MarkCreditCharged(ctx context.Context, id uuid.UUID) (bool, error)

	// Delete removes the document row.
	// Returns ErrDocumentNotFound if the document does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ChunkStore defines the interface for chunk persistence and similarity search.
// Version: 1.0
type ChunkStore interface {
	// Create saves a new chunk with its embedding vector.
	Create(ctx context.Context, chunk *domain.Chunk) error

	// ListByDocument retrieves all chunks for a document in creation order.
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Chunk, error)

	// FindSimilar returns up to topK chunks belonging to the given documents
	// whose cosine similarity to the query vector is at least threshold,
	// ordered by descending similarity.
	FindSimilar(
		ctx context.Context,
		documentIDs []uuid.UUID,
		query []float32,
		topK int,
		threshold float64,
	) ([]*domain.Chunk, error)

	// DeleteByDocument removes all chunks belonging to a document.
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
}

// HistoryStore defines the interface for generation-history persistence.
// Version: 1.0
type HistoryStore interface {
	// Create saves a new history record.
	Create(ctx context.Context, history *domain.History) error

	// GetByID retrieves a history record by its unique ID.
	// Returns ErrHistoryNotFound if the record does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.History, error)

	// Delete removes a history record.
	// Returns ErrHistoryNotFound if the record does not exist.
	Delete(ctx context.Context, id uuid.UUID) error
}
