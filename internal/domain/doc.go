// Package domain defines the core business entities of the content-generation
// engine: jobs, stored documents, chunks, generated items, history records,
// and credit ledger entries.
package domain
