package provider

import "context"

// Call carries the credential and model identifier selected by the pool for
// one provider invocation.
type Call struct {
	Key   string
	Model string
}

// Client defines the interface for the external generation provider.
// Implementations map their native errors into this package's Error type so
// the retry policy can classify them.
// Version: 1.0
type Client interface {
	// Embed computes an embedding vector for the given text.
	Embed(ctx context.Context, call Call, text string) ([]float32, error)

	// GenerateJSON sends the prompt and returns the raw response text,
	// which is expected to be a JSON document.
	GenerateJSON(ctx context.Context, call Call, prompt string) (string, error)
}
