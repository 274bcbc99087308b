package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// DocumentStatus represents the processing state of a stored document.
type DocumentStatus string

// Possible document status values
const (
	DocumentStatusPending    DocumentStatus = "pending"
	DocumentStatusProcessing DocumentStatus = "processing"
	DocumentStatusCompleted  DocumentStatus = "completed"
	DocumentStatusFailed     DocumentStatus = "failed"
)

// Common validation errors for Document
var (
	ErrEmptyDocumentID      = errors.New("document ID cannot be empty")
	ErrEmptyDocumentOwnerID = errors.New("document owner ID cannot be empty")
	ErrEmptyDocumentName    = errors.New("document filename cannot be empty")
	ErrInvalidDocumentSize  = errors.New("document size must be positive")
	ErrInvalidDocumentState = errors.New("invalid document status")
)

// Document represents one uploaded source file. It tracks the storage
// location of the raw bytes, the OCR processing state, and whether the
// OCR credit charge has already been applied.
type Document struct {
	ID            uuid.UUID      `json:"id"`
	OwnerID       uuid.UUID      `json:"owner_id"`
	Filename      string         `json:"filename"`
	SizeBytes     int64          `json:"size_bytes"`
	MimeType      string         `json:"mime_type"`
	StorageKey    string         `json:"storage_key"`
	Status        DocumentStatus `json:"status"`
	CreditCharged bool           `json:"credit_charged"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewDocument creates a new Document with pending status for the given owner
// and file metadata. Returns an error if validation fails.
func NewDocument(ownerID uuid.UUID, filename, mimeType string, sizeBytes int64) (*Document, error) {
	now := time.Now().UTC()
	doc := &Document{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Filename:  filename,
		SizeBytes: sizeBytes,
		MimeType:  mimeType,
		Status:    DocumentStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}

	return doc, nil
}

// Validate checks if the Document has valid data.
// Returns an error if any field fails validation.
func (d *Document) Validate() error {
	if d.ID == uuid.Nil {
		return ErrEmptyDocumentID
	}

	if d.OwnerID == uuid.Nil {
		return ErrEmptyDocumentOwnerID
	}

	if d.Filename == "" {
		return ErrEmptyDocumentName
	}

	if d.SizeBytes <= 0 {
		return ErrInvalidDocumentSize
	}

	if !isValidDocumentStatus(d.Status) {
		return ErrInvalidDocumentState
	}

	return nil
}

// isValidDocumentStatus checks if the given status is a valid DocumentStatus.
func isValidDocumentStatus(status DocumentStatus) bool {
	switch status {
	case DocumentStatusPending, DocumentStatusProcessing,
		DocumentStatusCompleted, DocumentStatusFailed:
		return true
	default:
		return false
	}
}
