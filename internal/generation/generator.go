package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// Similarity search defaults for narrow-search keyword filtering.
const (
	DefaultSimilarityTopK      = 15
	DefaultSimilarityThreshold = 0.7
)

// Provider is the slice of the LLM runner the generator needs.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Request describes one generation run against a stored document.
type Request struct {
	DocumentID   uuid.UUID
	Type         domain.JobType
	Count        int
	NarrowSearch bool
	Keyword      string
}

// Result is the outcome of a generation run. ActualCount, not the requested
// count, drives generation billing.
type Result struct {
	Items       []json.RawMessage
	ActualCount int
}

// Generator produces quiz questions and flashcards from document chunks.
type Generator struct {
	chunks    store.ChunkStore
	provider  Provider
	topK      int
	threshold float64
	logger    *slog.Logger

	// shuffle is swapped out in tests for deterministic ordering.
	shuffle func(n int, swap func(i, j int))
}

// NewGenerator creates a Generator. topK and threshold of zero fall back to
// the similarity defaults.
func NewGenerator(chunks store.ChunkStore, provider Provider, topK int, threshold float64, logger *slog.Logger) (*Generator, error) {
	if chunks == nil {
		return nil, errors.New("chunk store cannot be nil")
	}
	if provider == nil {
		return nil, errors.New("provider cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if topK <= 0 {
		topK = DefaultSimilarityTopK
	}
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}

	return &Generator{
		chunks:    chunks,
		provider:  provider,
		topK:      topK,
		threshold: threshold,
		logger:    logger.With(slog.String("component", "generator")),
		shuffle:   rand.Shuffle,
	}, nil
}

// Generate selects source chunks for the request, distributes the requested
// count across chunk groups, and prompts the provider once per group. A
// failing group loses only its own output; Generate fails when no group
// produced anything. The combined output is shuffled and truncated to the
// requested count.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	log := g.logger.With(
		slog.String("document_id", req.DocumentID.String()),
		slog.String("type", string(req.Type)))

	chunks, err := g.selectChunks(ctx, req)
	if err != nil {
		return nil, err
	}

	groups := GroupChunks(chunks, req.Count)
	log.DebugContext(ctx, "generating content",
		slog.Int("chunks", len(chunks)),
		slog.Int("groups", len(groups)),
		slog.Int("requested", req.Count))

	var items []json.RawMessage
	var lastErr error
	for i, group := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if group.Quota == 0 {
			continue
		}

		groupItems, err := g.generateGroup(ctx, req.Type, group)
		if err != nil {
			lastErr = err
			log.WarnContext(ctx, "chunk group failed, dropping its output",
				slog.Int("group", i),
				slog.String("error", err.Error()))
			continue
		}
		items = append(items, groupItems...)
	}

	if len(items) == 0 {
		if lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoItems, lastErr)
		}
		return nil, ErrNoItems
	}

	g.shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	if len(items) > req.Count {
		items = items[:req.Count]
	}

	log.InfoContext(ctx, "content generated",
		slog.Int("requested", req.Count),
		slog.Int("actual", len(items)))

	return &Result{Items: items, ActualCount: len(items)}, nil
}

// selectChunks loads the source material: all of the document's chunks, or
// the similarity-filtered subset when narrow search is requested.
func (g *Generator) selectChunks(ctx context.Context, req Request) ([]*domain.Chunk, error) {
	if req.NarrowSearch {
		vector, err := g.provider.Embed(ctx, req.Keyword)
		if err != nil {
			return nil, fmt.Errorf("failed to embed search keyword: %w", err)
		}

		chunks, err := g.chunks.FindSimilar(ctx, []uuid.UUID{req.DocumentID}, vector, g.topK, g.threshold)
		if err != nil {
			return nil, fmt.Errorf("similarity search failed: %w", err)
		}
		if len(chunks) == 0 {
			return nil, store.ErrNoSimilarContent
		}
		return chunks, nil
	}

	chunks, err := g.chunks.ListByDocument(ctx, req.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	return chunks, nil
}

// generateGroup prompts the provider for one group and returns its validated
// items.
func (g *Generator) generateGroup(ctx context.Context, jobType domain.JobType, group Group) ([]json.RawMessage, error) {
	prompt, err := buildPrompt(jobType, group)
	if err != nil {
		return nil, err
	}

	response, err := g.provider.GenerateJSON(ctx, prompt)
	if err != nil {
		return nil, err
	}

	items, err := parseItems(jobType, response)
	if err != nil {
		return nil, err
	}
	return items, nil
}

// parseItems parses the provider's response into a JSON array and keeps only
// the elements that validate for the job type.
func parseItems(jobType domain.JobType, response string) ([]json.RawMessage, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(response)), &raw); err != nil {
		return nil, fmt.Errorf("response is not a JSON array: %w", err)
	}

	items := make([]json.RawMessage, 0, len(raw))
	for _, item := range raw {
		if err := validateItem(jobType, item); err != nil {
			continue
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("response contained no valid items")
	}
	return items, nil
}

func validateItem(jobType domain.JobType, data json.RawMessage) error {
	switch jobType {
	case domain.JobTypeQuiz:
		var item domain.QuizItem
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		return item.Validate()
	case domain.JobTypeFlashcard:
		var item domain.Flashcard
		if err := json.Unmarshal(data, &item); err != nil {
			return err
		}
		return item.Validate()
	default:
		return fmt.Errorf("unsupported job type %q", jobType)
	}
}

// stripCodeFence removes a surrounding markdown code fence, which some models
// add despite the JSON response instruction.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
