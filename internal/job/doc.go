// Package job implements the asynchronous job engine: submission with
// synchronous validation, a background processor driving the document
// pipeline, credit charges and content generation in sequence, status
// queries, and cancellation with best-effort rollback.
//
// Job records live in an in-process repository. Status queries and cancels
// issued against a different instance than the one holding the job will see
// not-found; the Repository interface exists so a shared store can replace
// the in-memory implementation without touching the service.
package job
