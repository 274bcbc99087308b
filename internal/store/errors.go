package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the
	// store. This is a generic version of the entity-specific not found
	// errors (e.g., ErrDocumentNotFound, ErrJobNotFound).
	ErrNotFound = errors.New("entity not found")

	// ErrForbidden is returned when an operation is attempted by a user
	// who does not own the target entity.
	ErrForbidden = errors.New("operation forbidden")

	// ErrInvalidState is returned when an operation is not valid for the
	// entity's current state, e.g. canceling an already-terminal job.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrInsufficientCredit is returned when a balance decrement would go
	// below zero.
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrTransactionFailed is returned when a store transaction fails to
	// commit or when an operation within a transaction fails.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when a write violates a database
	// constraint, e.g. referencing a missing owner.
	ErrInvalidEntity = errors.New("invalid entity")

	// Entity-specific "not found" errors

	// ErrDocumentNotFound indicates that the requested document does not exist.
	ErrDocumentNotFound = fmt.Errorf("%w: document", ErrNotFound)

	// ErrChunkNotFound indicates that the requested chunk does not exist.
	ErrChunkNotFound = fmt.Errorf("%w: chunk", ErrNotFound)

	// ErrHistoryNotFound indicates that the requested history record does not exist.
	ErrHistoryNotFound = fmt.Errorf("%w: history", ErrNotFound)

	// ErrJobNotFound indicates that the requested job does not exist.
	ErrJobNotFound = fmt.Errorf("%w: job", ErrNotFound)

	// ErrWalletNotFound indicates that the owner has no credit wallet.
	ErrWalletNotFound = fmt.Errorf("%w: wallet", ErrNotFound)

	// ErrNoSimilarContent indicates that a narrow search found no chunk
	// above the similarity threshold.
	ErrNoSimilarContent = fmt.Errorf("%w: no similar content", ErrNotFound)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "document", "chunk")
	Operation string // The operation that failed (e.g., "create", "update")
	Message   string // Error message
	Err       error  // Original error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation,
// message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
