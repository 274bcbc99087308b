package provider

import (
	"context"
	"log/slog"
)

// Runner binds a Client to the credential pool and retry policy, exposing
// the two calls the engine makes: embeddings and JSON generation. The
// document pipeline and the content generator both depend on this type.
type Runner struct {
	client     Client
	exec       *Executor
	embedModel string
	logger     *slog.Logger
}

// NewRunner creates a Runner. embedModel is used for all embedding calls;
// generation calls use the pool's rotating model list.
func NewRunner(client Client, exec *Executor, embedModel string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		client:     client,
		exec:       exec,
		embedModel: embedModel,
		logger:     logger.With("component", "provider_runner"),
	}
}

// Embed computes an embedding vector for text, with retry and key rotation.
func (r *Runner) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := r.exec.Do(ctx, "embed", func(ctx context.Context, call Call) error {
		call.Model = r.embedModel
		v, err := r.client.Embed(ctx, call, text)
		if err != nil {
			return err
		}
		vector = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}

// GenerateJSON sends a prompt and returns the provider's raw JSON response,
// with retry, key rotation, and model fallback.
func (r *Runner) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	var text string
	err := r.exec.Do(ctx, "generate", func(ctx context.Context, call Call) error {
		out, err := r.client.GenerateJSON(ctx, call, prompt)
		if err != nil {
			return err
		}
		text = out
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}
