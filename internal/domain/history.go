package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for History
var (
	ErrEmptyHistoryID      = errors.New("history ID cannot be empty")
	ErrEmptyHistoryOwnerID = errors.New("history owner ID cannot be empty")
	ErrEmptyHistoryItems   = errors.New("history items cannot be empty")
)

// History records one completed generation: which document it drew from,
// what kind of content was produced, and the items themselves. Canceling a
// job deletes the history record it created.
type History struct {
	ID         uuid.UUID         `json:"id"`
	OwnerID    uuid.UUID         `json:"owner_id"`
	DocumentID uuid.UUID         `json:"document_id"`
	Type       JobType           `json:"type"`
	Items      []json.RawMessage `json:"items"`
	CreatedAt  time.Time         `json:"created_at"`
}

// NewHistory creates a new History record. Returns an error if validation fails.
func NewHistory(ownerID, documentID uuid.UUID, jobType JobType, items []json.RawMessage) (*History, error) {
	h := &History{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		DocumentID: documentID,
		Type:       jobType,
		Items:      items,
		CreatedAt:  time.Now().UTC(),
	}

	if err := h.Validate(); err != nil {
		return nil, err
	}

	return h, nil
}

// Validate checks if the History has valid data.
func (h *History) Validate() error {
	if h.ID == uuid.Nil {
		return ErrEmptyHistoryID
	}

	if h.OwnerID == uuid.Nil {
		return ErrEmptyHistoryOwnerID
	}

	if !isValidJobType(h.Type) {
		return ErrInvalidJobType
	}

	if len(h.Items) == 0 {
		return ErrEmptyHistoryItems
	}

	return nil
}
