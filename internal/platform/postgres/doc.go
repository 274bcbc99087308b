// Package postgres provides PostgreSQL implementations of the store
// interfaces. Chunk embeddings live in a pgvector column; similarity search
// uses the cosine distance operator. All stores share one DB handle, and
// RunInTransaction carries the open transaction through the context so
// multi-store operations commit atomically.
package postgres
