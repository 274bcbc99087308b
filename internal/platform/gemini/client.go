package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/cychipo/examio-be-sub001/internal/provider"
	"google.golang.org/genai"
)

// Client implements provider.Client against the Gemini API. Because the
// credential pool rotates API keys per call, the underlying genai clients
// are constructed lazily and cached per key rather than held as a single
// mutable singleton.
type Client struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewClient creates a Gemini-backed provider client.
func NewClient(logger *slog.Logger) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Client{
		logger:  logger.With("component", "gemini_client"),
		clients: make(map[string]*genai.Client),
	}, nil
}

// clientForKey returns the cached genai client for the API key, creating it
// on first use.
func (c *Client) clientForKey(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[key]; ok {
		return client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, provider.FatalError(fmt.Errorf("failed to create Gemini client: %w", err))
	}

	c.clients[key] = client
	return client, nil
}

// Embed computes an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, call provider.Call, text string) ([]float32, error) {
	if text == "" {
		return nil, provider.FatalError(errors.New("embedding text cannot be empty"))
	}

	client, err := c.clientForKey(ctx, call.Key)
	if err != nil {
		return nil, err
	}

	resp, err := client.Models.EmbedContent(ctx, call.Model, genai.Text(text), nil)
	if err != nil {
		return nil, classify(err)
	}

	if resp == nil || len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, provider.FatalError(errors.New("empty embedding response"))
	}

	return resp.Embeddings[0].Values, nil
}

// GenerateJSON sends the prompt requesting a JSON response and returns the
// raw response text.
func (c *Client) GenerateJSON(ctx context.Context, call provider.Call, prompt string) (string, error) {
	if prompt == "" {
		return "", provider.FatalError(errors.New("prompt cannot be empty"))
	}

	client, err := c.clientForKey(ctx, call.Key)
	if err != nil {
		return "", err
	}

	c.logger.DebugContext(ctx, "making Gemini generation call",
		"model", call.Model,
		"prompt_length", len(prompt))

	resp, err := client.Models.GenerateContent(ctx, call.Model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		})
	if err != nil {
		return "", classify(err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", provider.FatalError(errors.New("no content generated"))
	}

	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", provider.FatalError(errors.New("content blocked by safety filters"))
	}

	text := resp.Text()
	if text == "" {
		return "", provider.FatalError(errors.New("empty content in response"))
	}

	return text, nil
}

// classify maps a genai error onto the provider error taxonomy using the
// HTTP status code when one is available.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return provider.QuotaError(err)
		case http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return provider.TransientError(err)
		default:
			return provider.FatalError(err)
		}
	}

	// No structured status: fall back to message classification.
	switch provider.KindOf(err) {
	case provider.KindQuota:
		return provider.QuotaError(err)
	case provider.KindTransient:
		return provider.TransientError(err)
	default:
		return provider.FatalError(err)
	}
}
