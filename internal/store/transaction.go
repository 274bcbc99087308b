package store

import "context"

// Transactor runs a function inside a single store transaction. Store
// implementations obtained from the same backend observe the transaction
// through the context, so multi-store operations (e.g. a charge that flips
// the credit flag, decrements the balance, and appends a ledger entry)
// either fully commit or fully roll back.
type Transactor interface {
	// RunInTransaction executes fn within a transaction. The transaction is
	// committed if fn returns nil and rolled back otherwise.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
