// Package store defines the persistence and collaborator interfaces the
// generation engine depends on: the document store, chunk store with vector
// similarity search, history store, credit ledger, and object store. The
// engine is given implementations (or test doubles) of these interfaces;
// it never talks to infrastructure directly.
package store
