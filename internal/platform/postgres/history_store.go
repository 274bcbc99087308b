package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/platform/logger"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// HistoryStore implements store.HistoryStore on PostgreSQL. Generated items
// are stored as a JSONB array.
type HistoryStore struct {
	db     *DB
	logger *slog.Logger
}

// NewHistoryStore creates a PostgreSQL-backed history store. If logger is
// nil, the default logger is used.
func NewHistoryStore(db *DB, log *slog.Logger) *HistoryStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if log == nil {
		log = slog.Default()
	}

	return &HistoryStore{
		db:     db,
		logger: log.With(slog.String("component", "history_store")),
	}
}

var _ store.HistoryStore = (*HistoryStore)(nil)

// Create implements store.HistoryStore.Create.
func (s *HistoryStore) Create(ctx context.Context, history *domain.History) error {
	log := logger.FromContext(ctx)

	if err := history.Validate(); err != nil {
		return err
	}

	items, err := json.Marshal(history.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal history items: %w", err)
	}

	query := `
		INSERT INTO histories (id, owner_id, document_id, type, items, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.conn(ctx).Exec(ctx, query,
		history.ID, history.OwnerID, history.DocumentID, history.Type, items, history.CreatedAt)
	if err != nil {
		log.Error("failed to create history record",
			slog.String("error", err.Error()),
			slog.String("history_id", history.ID.String()))
		return MapError(err)
	}

	log.Debug("history record created",
		slog.String("history_id", history.ID.String()),
		slog.Int("items", len(history.Items)))
	return nil
}

// GetByID implements store.HistoryStore.GetByID.
func (s *HistoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.History, error) {
	query := `
		SELECT id, owner_id, document_id, type, items, created_at
		FROM histories
		WHERE id = $1
	`
	var history domain.History
	var items []byte
	err := s.db.conn(ctx).QueryRow(ctx, query, id).Scan(
		&history.ID, &history.OwnerID, &history.DocumentID, &history.Type, &items, &history.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrHistoryNotFound
		}
		return nil, MapError(err)
	}

	if err := json.Unmarshal(items, &history.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history items: %w", err)
	}
	return &history, nil
}

// Delete implements store.HistoryStore.Delete.
func (s *HistoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.conn(ctx).Exec(ctx, `DELETE FROM histories WHERE id = $1`, id)
	if err != nil {
		return MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrHistoryNotFound
	}

	s.logger.Debug("history record deleted", slog.String("history_id", id.String()))
	return nil
}
