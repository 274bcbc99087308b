// Package provider defines the boundary to the external generation provider:
// the client interface for embedding and JSON generation calls, the error
// classification used to tell quota exhaustion from transient unavailability,
// the rotating credential pool, and the retry policy that absorbs provider
// flakiness. Every external generation or embedding call in the engine goes
// through this package's Executor.
package provider
