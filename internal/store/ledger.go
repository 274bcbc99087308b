package store

import (
	"context"

	"github.com/google/uuid"
)

// CreditLedger defines the interface for wallet balance reads and charges.
// Version: 1.0
type CreditLedger interface {
	// GetBalance returns the owner's current credit balance.
	// Returns ErrWalletNotFound if the owner has no wallet.
	GetBalance(ctx context.Context, ownerID uuid.UUID) (int64, error)

	// DecrementAndLog decrements the owner's balance by amount and appends
	// a ledger entry with the given reason. Both writes happen in the same
	// transaction: either both succeed or neither does.
	// Returns ErrInsufficientCredit if the balance would go below zero.
	DecrementAndLog(ctx context.Context, ownerID uuid.UUID, amount int64, reason string) error
}
