package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/platform/logger"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// ChunkStore implements store.ChunkStore on PostgreSQL with a pgvector
// embedding column.
type ChunkStore struct {
	db     *DB
	logger *slog.Logger
}

// NewChunkStore creates a PostgreSQL-backed chunk store. If logger is nil,
// the default logger is used.
func NewChunkStore(db *DB, log *slog.Logger) *ChunkStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &ChunkStore{
		db:     db,
		logger: log.With(slog.String("component", "chunk_store")),
	}
}

var _ store.ChunkStore = (*ChunkStore)(nil)

// Create implements store.ChunkStore.Create.
func (s *ChunkStore) Create(ctx context.Context, chunk *domain.Chunk) error {
	log := logger.FromContext(ctx)

	if err := chunk.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO chunks (id, document_id, page_range, title, text, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::vector, $7)
	`
	_, err := s.db.conn(ctx).Exec(ctx, query,
		chunk.ID, chunk.DocumentID, chunk.PageRange, chunk.Title, chunk.Text,
		vectorLiteral(chunk.Embedding), chunk.CreatedAt)
	if err != nil {
		log.Error("failed to create chunk",
			slog.String("error", err.Error()),
			slog.String("chunk_id", chunk.ID.String()),
			slog.String("document_id", chunk.DocumentID.String()))
		return MapError(err)
	}
	return nil
}

// ListByDocument implements store.ChunkStore.ListByDocument.
func (s *ChunkStore) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*domain.Chunk, error) {
	query := `
		SELECT id, document_id, page_range, title, text, embedding::text, created_at
		FROM chunks
		WHERE document_id = $1
		ORDER BY created_at ASC
	`
	rows, err := s.db.conn(ctx).Query(ctx, query, documentID)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return chunks, nil
}

// FindSimilar implements store.ChunkStore.FindSimilar using cosine distance.
// Results are ordered by descending similarity and filtered to scores at or
// above threshold.
func (s *ChunkStore) FindSimilar(
	ctx context.Context,
	documentIDs []uuid.UUID,
	query []float32,
	topK int,
	threshold float64,
) ([]*domain.Chunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}

	sql := `
		SELECT id, document_id, page_range, title, text, embedding::text, created_at
		FROM chunks
		WHERE document_id = ANY($1)
		  AND 1 - (embedding <=> $2::vector) >= $3
		ORDER BY embedding <=> $2::vector
		LIMIT $4
	`
	rows, err := s.db.conn(ctx).Query(ctx, sql,
		documentIDs, vectorLiteral(query), threshold, topK)
	if err != nil {
		return nil, MapError(err)
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows.Scan)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	s.logger.Debug("similarity search finished",
		slog.Int("matches", len(chunks)),
		slog.Int("top_k", topK),
		slog.Float64("threshold", threshold))
	return chunks, nil
}

// DeleteByDocument implements store.ChunkStore.DeleteByDocument.
func (s *ChunkStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	_, err := s.db.conn(ctx).Exec(ctx,
		`DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return MapError(err)
	}
	return nil
}

// scanChunk reads one chunk row, parsing the embedding from its text form.
func scanChunk(scan func(dest ...any) error) (*domain.Chunk, error) {
	var chunk domain.Chunk
	var embedding string
	err := scan(&chunk.ID, &chunk.DocumentID, &chunk.PageRange, &chunk.Title,
		&chunk.Text, &embedding, &chunk.CreatedAt)
	if err != nil {
		return nil, MapError(err)
	}

	chunk.Embedding, err = parseVector(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chunk embedding: %w", err)
	}
	return &chunk, nil
}
