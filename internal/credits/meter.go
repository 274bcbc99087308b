package credits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/store"
)

// Meter applies charges to owner wallets. All mutations go through the
// transactor so the charged flag, the balance decrement, and the ledger
// entry commit together.
type Meter struct {
	docs   store.DocumentStore
	ledger store.CreditLedger
	tx     store.Transactor
	logger *slog.Logger
}

// NewMeter creates a Meter.
func NewMeter(docs store.DocumentStore, ledger store.CreditLedger, tx store.Transactor, logger *slog.Logger) (*Meter, error) {
	if docs == nil {
		return nil, errors.New("document store cannot be nil")
	}
	if ledger == nil {
		return nil, errors.New("credit ledger cannot be nil")
	}
	if tx == nil {
		return nil, errors.New("transactor cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Meter{
		docs:   docs,
		ledger: ledger,
		tx:     tx,
		logger: logger.With(slog.String("component", "credits")),
	}, nil
}

// CheckBalance verifies the owner can afford total credits. It returns
// store.ErrInsufficientCredit when the balance falls short. The check is
// advisory; the decrement itself re-verifies under the transaction.
func (m *Meter) CheckBalance(ctx context.Context, ownerID uuid.UUID, total int64) error {
	balance, err := m.ledger.GetBalance(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}

	if balance < total {
		return fmt.Errorf("%w: have %d, need %d", store.ErrInsufficientCredit, balance, total)
	}
	return nil
}

// ChargeOCR charges the owner for processing the given document, exactly once
// per document. The credit_charged flag flip and the balance decrement share
// one transaction; when the flag was already set the call is a no-op and
// returns 0. On success it returns the amount charged.
func (m *Meter) ChargeOCR(ctx context.Context, ownerID, documentID uuid.UUID, sizeBytes int64) (int64, error) {
	cost := OCRCost(sizeBytes)

	var charged int64
	err := m.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		first, err := m.docs.MarkCreditCharged(ctx, documentID)
		if err != nil {
			return fmt.Errorf("failed to mark document charged: %w", err)
		}
		if !first {
			return nil
		}

		reason := fmt.Sprintf("ocr:%s", documentID)
		if err := m.ledger.DecrementAndLog(ctx, ownerID, cost, reason); err != nil {
			return err
		}
		charged = cost
		return nil
	})
	if err != nil {
		return 0, err
	}

	if charged == 0 {
		m.logger.DebugContext(ctx, "document already charged for processing, skipping",
			slog.String("document_id", documentID.String()))
	} else {
		m.logger.InfoContext(ctx, "charged processing cost",
			slog.String("document_id", documentID.String()),
			slog.Int64("amount", charged))
	}
	return charged, nil
}

// ChargeGeneration charges the owner for actualCount generated items on
// behalf of jobID. Zero items cost nothing and write no ledger entry. On
// success it returns the amount charged.
func (m *Meter) ChargeGeneration(ctx context.Context, ownerID, jobID uuid.UUID, actualCount int) (int64, error) {
	cost := GenerationCost(actualCount)
	if cost == 0 {
		return 0, nil
	}

	reason := fmt.Sprintf("generation:%s", jobID)
	err := m.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		return m.ledger.DecrementAndLog(ctx, ownerID, cost, reason)
	})
	if err != nil {
		return 0, err
	}

	m.logger.InfoContext(ctx, "charged generation cost",
		slog.String("job_id", jobID.String()),
		slog.Int("items", actualCount),
		slog.Int64("amount", cost))
	return cost, nil
}
