package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// ErrNoChunks indicates that no page range of the document yielded a usable
// chunk, so processing failed as a whole.
var ErrNoChunks = errors.New("no chunks could be extracted from the document")

// Pause before the single retry a chunk gets when its embedding or persist
// attempt fails.
const (
	embedRetryDelay   = 2 * time.Second
	persistRetryDelay = 2 * time.Second
)

// Embedder computes an embedding vector for a chunk of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Processor turns an uploaded PDF into persisted, embedded chunks.
type Processor struct {
	chunks   store.ChunkStore
	embedder Embedder
	logger   *slog.Logger

	chunkSize int
	limits    Limits

	// extract is swapped out in tests.
	extract func(data []byte, r PageRange) (string, error)
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewProcessor creates a Processor persisting chunks through chunkStore and
// embedding text through embedder. chunkSize of zero or less falls back to
// DefaultPageChunkSize.
func NewProcessor(chunkStore store.ChunkStore, embedder Embedder, limits Limits, chunkSize int, logger *slog.Logger) (*Processor, error) {
	if chunkStore == nil {
		return nil, errors.New("chunk store cannot be nil")
	}
	if embedder == nil {
		return nil, errors.New("embedder cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if chunkSize <= 0 {
		chunkSize = DefaultPageChunkSize
	}

	return &Processor{
		chunks:    chunkStore,
		embedder:  embedder,
		logger:    logger.With(slog.String("component", "pipeline")),
		chunkSize: chunkSize,
		limits:    limits,
		extract:   ExtractText,
		sleep:     sleepContext,
	}, nil
}

// Validate checks data against the processor's limits and returns the page
// count. Submission handlers call this before a job is created.
func (p *Processor) Validate(data []byte) (int, error) {
	return Validate(data, p.limits)
}

// Process extracts, embeds, and persists one chunk per page range of the
// document. Ranges with no extractable text are skipped, and chunks whose
// embedding or persist fails twice are dropped; Process fails only when not
// a single chunk survives. It returns the number of chunks persisted.
func (p *Processor) Process(ctx context.Context, documentID uuid.UUID, data []byte, pages int) (int, error) {
	log := p.logger.With(slog.String("document_id", documentID.String()))

	ranges := SplitPageRanges(pages, p.chunkSize)
	log.DebugContext(ctx, "processing document",
		slog.Int("pages", pages),
		slog.Int("ranges", len(ranges)))

	persisted := 0
	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return persisted, err
		}

		text, err := p.extract(data, r)
		if err != nil {
			log.WarnContext(ctx, "failed to extract text from page range",
				slog.String("pages", r.Label()),
				slog.String("error", err.Error()))
			continue
		}
		if text == "" {
			log.DebugContext(ctx, "page range has no extractable text, skipping",
				slog.String("pages", r.Label()))
			continue
		}

		embedding, err := p.embedWithRetry(ctx, text)
		if err != nil {
			log.WarnContext(ctx, "failed to embed chunk, dropping it",
				slog.String("pages", r.Label()),
				slog.String("error", err.Error()))
			continue
		}

		chunk, err := domain.NewChunk(documentID, r.Label(), chunkTitle(r, text), text, embedding)
		if err != nil {
			log.WarnContext(ctx, "extracted chunk failed validation",
				slog.String("pages", r.Label()),
				slog.String("error", err.Error()))
			continue
		}

		if err := p.persistWithRetry(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				return persisted, err
			}
			log.WarnContext(ctx, "failed to persist chunk, dropping it",
				slog.String("pages", r.Label()),
				slog.String("error", err.Error()))
			continue
		}
		persisted++
	}

	if persisted == 0 {
		return 0, ErrNoChunks
	}

	log.InfoContext(ctx, "document processed",
		slog.Int("chunks", persisted),
		slog.Int("ranges", len(ranges)))
	return persisted, nil
}

// embedWithRetry attempts the embedding call once and retries a single time
// after a short delay. Transient provider hiccups are common enough that one
// retry salvages most chunks.
func (p *Processor) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	embedding, err := p.embedder.Embed(ctx, text)
	if err == nil {
		return embedding, nil
	}

	if serr := p.sleep(ctx, embedRetryDelay); serr != nil {
		return nil, serr
	}

	return p.embedder.Embed(ctx, text)
}

// persistWithRetry writes the chunk once and retries a single time after a
// short delay, so a transient store error does not cost the chunk.
func (p *Processor) persistWithRetry(ctx context.Context, chunk *domain.Chunk) error {
	if err := p.chunks.Create(ctx, chunk); err == nil {
		return nil
	}

	if serr := p.sleep(ctx, persistRetryDelay); serr != nil {
		return serr
	}

	return p.chunks.Create(ctx, chunk)
}

// chunkTitle derives a short human-readable title from the range and the
// first line of its text.
func chunkTitle(r PageRange, text string) string {
	const maxTitle = 80

	line := text
	for i, c := range line {
		if c == '\n' {
			line = line[:i]
			break
		}
	}
	if len(line) > maxTitle {
		cut := maxTitle
		for cut > 0 && !utf8.RuneStart(line[cut]) {
			cut--
		}
		line = line[:cut]
	}

	return fmt.Sprintf("Pages %s: %s", r.Label(), line)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
