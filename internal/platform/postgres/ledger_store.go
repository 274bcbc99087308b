package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cychipo/examio-be-sub001/internal/platform/logger"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// LedgerStore implements store.CreditLedger on PostgreSQL. Balances live in
// the wallets table; every decrement appends a matching row to
// ledger_entries in the same transaction.
type LedgerStore struct {
	db     *DB
	logger *slog.Logger
}

// NewLedgerStore creates a PostgreSQL-backed credit ledger. If logger is
// nil, the default logger is used.
func NewLedgerStore(db *DB, log *slog.Logger) *LedgerStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &LedgerStore{
		db:     db,
		logger: log.With(slog.String("component", "ledger_store")),
	}
}

var _ store.CreditLedger = (*LedgerStore)(nil)

// GetBalance implements store.CreditLedger.GetBalance.
func (s *LedgerStore) GetBalance(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var balance int64
	err := s.db.conn(ctx).QueryRow(ctx,
		`SELECT balance FROM wallets WHERE owner_id = $1`, ownerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrWalletNotFound
		}
		return 0, MapError(err)
	}
	return balance, nil
}

// DecrementAndLog implements store.CreditLedger.DecrementAndLog. The guarded
// UPDATE both enforces the non-negative balance invariant and serializes
// concurrent charges on the same wallet; the ledger row is written under the
// same transaction so the audit trail can never drift from the balance.
func (s *LedgerStore) DecrementAndLog(ctx context.Context, ownerID uuid.UUID, amount int64, reason string) error {
	if amount <= 0 {
		return fmt.Errorf("charge amount must be positive, got %d", amount)
	}

	log := logger.FromContext(ctx)

	return s.db.RunInTransaction(ctx, func(ctx context.Context) error {
		tag, err := s.db.conn(ctx).Exec(ctx, `
			UPDATE wallets
			SET balance = balance - $2, updated_at = $3
			WHERE owner_id = $1 AND balance >= $2
		`, ownerID, amount, time.Now().UTC())
		if err != nil {
			return MapError(err)
		}

		if tag.RowsAffected() == 0 {
			// Either the wallet is missing or the balance is too low.
			var exists bool
			err := s.db.conn(ctx).QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM wallets WHERE owner_id = $1)`, ownerID).Scan(&exists)
			if err != nil {
				return MapError(err)
			}
			if !exists {
				return store.ErrWalletNotFound
			}
			return fmt.Errorf("%w: charge of %d for %q", store.ErrInsufficientCredit, amount, reason)
		}

		_, err = s.db.conn(ctx).Exec(ctx, `
			INSERT INTO ledger_entries (id, owner_id, amount, reason, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, uuid.New(), ownerID, amount, reason, time.Now().UTC())
		if err != nil {
			return MapError(err)
		}

		log.Debug("balance decremented",
			slog.String("owner_id", ownerID.String()),
			slog.Int64("amount", amount),
			slog.String("reason", reason))
		return nil
	})
}
