package domain

import (
	"time"

	"github.com/google/uuid"
)

// LedgerEntry is one append-only record of a credit charge. Every balance
// decrement writes a matching ledger entry in the same transaction.
type LedgerEntry struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}
