package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/credits"
	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/generation"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// CancelReason is the error recorded on jobs canceled by their owner.
const CancelReason = "canceled by user"

// On-demand processing poll defaults: how long a caller waits for another
// job to finish processing the same document.
const (
	DefaultPollAttempts = 30
	DefaultPollInterval = 2 * time.Second
)

// DocumentPipeline is the slice of the pipeline the job service drives.
type DocumentPipeline interface {
	Validate(data []byte) (int, error)
	Process(ctx context.Context, documentID uuid.UUID, data []byte, pages int) (int, error)
}

// ContentGenerator produces the job's items from stored chunks.
type ContentGenerator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// CreditMeter applies the cost model.
type CreditMeter interface {
	CheckBalance(ctx context.Context, ownerID uuid.UUID, total int64) error
	ChargeOCR(ctx context.Context, ownerID, documentID uuid.UUID, sizeBytes int64) (int64, error)
	ChargeGeneration(ctx context.Context, ownerID, jobID uuid.UUID, actualCount int) (int64, error)
}

// Config tunes the job service.
type Config struct {
	// PollAttempts and PollInterval bound the wait for a document another
	// job is currently processing.
	PollAttempts int
	PollInterval time.Duration
}

// Service is the job engine's front door: it validates submissions, spawns
// background processing, and answers status and cancel requests.
type Service struct {
	repo      Repository
	docs      store.DocumentStore
	chunks    store.ChunkStore
	histories store.HistoryStore
	objects   store.ObjectStore
	tx        store.Transactor
	meter     CreditMeter
	pipeline  DocumentPipeline
	generator ContentGenerator
	logger    *slog.Logger

	pollAttempts int
	pollInterval time.Duration

	// sleep and spawn are swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
	spawn func(fn func())
}

// NewService creates the job Service. Zero Config fields fall back to the
// poll defaults.
func NewService(
	repo Repository,
	docs store.DocumentStore,
	chunks store.ChunkStore,
	histories store.HistoryStore,
	objects store.ObjectStore,
	tx store.Transactor,
	meter CreditMeter,
	pipeline DocumentPipeline,
	generator ContentGenerator,
	cfg Config,
	logger *slog.Logger,
) (*Service, error) {
	switch {
	case repo == nil:
		return nil, errors.New("repository cannot be nil")
	case docs == nil:
		return nil, errors.New("document store cannot be nil")
	case chunks == nil:
		return nil, errors.New("chunk store cannot be nil")
	case histories == nil:
		return nil, errors.New("history store cannot be nil")
	case objects == nil:
		return nil, errors.New("object store cannot be nil")
	case tx == nil:
		return nil, errors.New("transactor cannot be nil")
	case meter == nil:
		return nil, errors.New("credit meter cannot be nil")
	case pipeline == nil:
		return nil, errors.New("pipeline cannot be nil")
	case generator == nil:
		return nil, errors.New("generator cannot be nil")
	case logger == nil:
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = DefaultPollAttempts
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	return &Service{
		repo:         repo,
		docs:         docs,
		chunks:       chunks,
		histories:    histories,
		objects:      objects,
		tx:           tx,
		meter:        meter,
		pipeline:     pipeline,
		generator:    generator,
		logger:       logger.With(slog.String("component", "job_service")),
		pollAttempts: cfg.PollAttempts,
		pollInterval: cfg.PollInterval,
		sleep:        sleepContext,
		spawn:        func(fn func()) { go fn() },
	}, nil
}

// Submit validates the request synchronously, persists a pending job, and
// schedules background execution without blocking. data carries the uploaded
// file for new-document jobs and is nil for regenerate jobs.
func (s *Service) Submit(ctx context.Context, ownerID uuid.UUID, jobType domain.JobType, params domain.JobParams, data []byte) (*domain.Job, error) {
	job, err := domain.NewJob(ownerID, jobType, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	var sizeBytes int64
	var ocrCharged bool

	switch {
	case len(data) > 0:
		if _, err := s.pipeline.Validate(data); err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		sizeBytes = int64(len(data))
		job.Params.SizeBytes = sizeBytes

	case params.DocumentID != uuid.Nil:
		doc, err := s.docs.GetByID(ctx, params.DocumentID)
		if err != nil {
			return nil, err
		}
		if doc.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: document belongs to another owner", store.ErrForbidden)
		}
		sizeBytes = doc.SizeBytes
		ocrCharged = doc.CreditCharged

	default:
		return nil, fmt.Errorf("%w: either a file or a document id is required", domain.ErrValidation)
	}

	// Fail fast when the balance cannot cover the worst case: full OCR cost
	// plus every requested item produced.
	maxCost := credits.GenerationCost(effectiveCount(jobType, params.Count))
	if !ocrCharged {
		maxCost += credits.OCRCost(sizeBytes)
	}
	if err := s.meter.CheckBalance(ctx, ownerID, maxCost); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	s.logger.InfoContext(ctx, "job submitted",
		slog.String("job_id", job.ID.String()),
		slog.String("type", string(jobType)),
		slog.Int("count", params.Count))

	s.spawn(func() { s.run(job.ID, data) })

	snapshot := *job
	return &snapshot, nil
}

// Status returns the current snapshot of a job.
func (s *Service) Status(ctx context.Context, jobID, requesterID uuid.UUID) (*domain.Job, error) {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if job.OwnerID != requesterID {
		return nil, fmt.Errorf("%w: job belongs to another owner", store.ErrForbidden)
	}
	return job, nil
}

// Cancel marks a non-terminal job failed with CancelReason and rolls back
// the data it created: its history record always, its document, chunks and
// stored object only when the job created the document rather than reusing
// an existing upload. Rollback failures are logged but never block the
// cancellation itself. Credits already spent on document processing stay
// spent.
func (s *Service) Cancel(ctx context.Context, jobID, requesterID uuid.UUID) error {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}

	if job.OwnerID != requesterID {
		return fmt.Errorf("%w: job belongs to another owner", store.ErrForbidden)
	}
	if job.Terminal() {
		return fmt.Errorf("%w: job is already %s", store.ErrInvalidState, job.Status)
	}

	// Claim the record before touching any data, so the background processor
	// cannot complete the job while its side effects are being removed.
	err = s.repo.Update(ctx, jobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusFailed
		j.Error = CancelReason
		j.CompletedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		// The background processor may have finished in the meantime.
		if errors.Is(err, store.ErrInvalidState) {
			return fmt.Errorf("%w: job finished before it could be canceled", store.ErrInvalidState)
		}
		return err
	}

	// Re-read the claimed record: the processor may have recorded a document
	// or history reference after the snapshot taken above.
	if job, err = s.repo.Get(ctx, jobID); err != nil {
		return err
	}
	s.rollback(ctx, job)

	s.logger.InfoContext(ctx, "job canceled",
		slog.String("job_id", jobID.String()))
	return nil
}

// rollback deletes the job's side effects in one store transaction; the
// stored object is removed afterwards since blob storage is not
// transactional.
func (s *Service) rollback(ctx context.Context, job *domain.Job) {
	log := s.logger.With(slog.String("job_id", job.ID.String()))

	var storageKey string
	err := s.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		if job.HistoryID != uuid.Nil {
			if err := s.histories.Delete(ctx, job.HistoryID); err != nil && !store.IsNotFoundError(err) {
				return fmt.Errorf("failed to delete history record: %w", err)
			}
		}

		if !job.CreatedDocument || job.DocumentID == uuid.Nil {
			return nil
		}

		doc, err := s.docs.GetByID(ctx, job.DocumentID)
		if err != nil {
			if store.IsNotFoundError(err) {
				return nil
			}
			return fmt.Errorf("failed to load document for rollback: %w", err)
		}
		storageKey = doc.StorageKey

		if err := s.chunks.DeleteByDocument(ctx, job.DocumentID); err != nil {
			return fmt.Errorf("failed to delete chunks: %w", err)
		}
		if err := s.docs.Delete(ctx, job.DocumentID); err != nil {
			return fmt.Errorf("failed to delete document: %w", err)
		}
		return nil
	})
	if err != nil {
		log.WarnContext(ctx, "rollback failed, job will still be marked failed",
			slog.String("error", err.Error()))
		return
	}

	if storageKey != "" {
		if err := s.objects.Delete(ctx, storageKey); err != nil {
			log.WarnContext(ctx, "failed to delete stored object during rollback",
				slog.String("storage_key", storageKey),
				slog.String("error", err.Error()))
		}
	}
}

// effectiveCount is the item count used for worst-case cost estimation.
// Knowledge-base jobs generate nothing.
func effectiveCount(jobType domain.JobType, count int) int {
	if jobType == domain.JobTypeKnowledgeBase {
		return 0
	}
	return count
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
