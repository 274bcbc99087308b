package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cychipo/examio-be-sub001/internal/store"
)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txKey carries an open transaction through the context.
type txKey struct{}

// DB wraps a pgx connection pool and implements store.Transactor.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB connects to the database at dsn and verifies the connection.
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Pool exposes the underlying pool for migrations and shutdown.
func (d *DB) Pool() *pgxpool.Pool {
	return d.pool
}

// Close releases the connection pool.
func (d *DB) Close() {
	d.pool.Close()
}

// conn returns the transaction from the context when one is open, otherwise
// the pool itself. Stores route every query through this so they
// transparently join an enclosing RunInTransaction.
func (d *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return d.pool
}

// RunInTransaction implements store.Transactor. A nested call joins the
// already-open transaction instead of starting a second one.
func (d *DB) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", store.ErrTransactionFailed, err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", store.ErrTransactionFailed, err)
	}
	return nil
}

var _ store.Transactor = (*DB)(nil)
