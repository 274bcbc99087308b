package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Chunk
var (
	ErrEmptyChunkID         = errors.New("chunk ID cannot be empty")
	ErrEmptyChunkDocumentID = errors.New("chunk document ID cannot be empty")
	ErrEmptyChunkText       = errors.New("chunk text cannot be empty")
	ErrEmptyChunkEmbedding  = errors.New("chunk embedding cannot be empty")
)

// Chunk is a page-range slice of a stored document with its extracted text
// and embedding vector. Chunks with empty text are never persisted; the
// pipeline skips them instead.
type Chunk struct {
	ID         uuid.UUID `json:"id"`
	DocumentID uuid.UUID `json:"document_id"`
	PageRange  string    `json:"page_range"`
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"embedding"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewChunk creates a new Chunk for the given document, page-range label,
// extracted text, and embedding vector. Returns an error if validation fails.
func NewChunk(documentID uuid.UUID, pageRange, title, text string, embedding []float32) (*Chunk, error) {
	chunk := &Chunk{
		ID:         uuid.New(),
		DocumentID: documentID,
		PageRange:  pageRange,
		Title:      title,
		Text:       text,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	}

	if err := chunk.Validate(); err != nil {
		return nil, err
	}

	return chunk, nil
}

// Validate checks if the Chunk has valid data.
// Returns an error if any field fails validation.
func (c *Chunk) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyChunkID
	}

	if c.DocumentID == uuid.Nil {
		return ErrEmptyChunkDocumentID
	}

	if c.Text == "" {
		return ErrEmptyChunkText
	}

	if len(c.Embedding) == 0 {
		return ErrEmptyChunkEmbedding
	}

	return nil
}
