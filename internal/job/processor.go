package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/generation"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// Progress milestones reported while a job runs. Updates are coarse on
// purpose; observers only need to see the job moving through its phases.
const (
	progressStarted     = 10
	progressDocReady    = 20
	progressChunksReady = 40
	progressOCRCharged  = 60
	progressGenerated   = 80
	progressGenCharged  = 90
	progressDone        = 100
)

// run executes one job in the background. It never lets an error or panic
// escape: every failure ends with the job marked failed, and a cancel
// observed mid-run stops the remaining phases.
func (s *Service) run(jobID uuid.UUID, data []byte) {
	ctx := context.Background()
	log := s.logger.With(slog.String("job_id", jobID.String()))

	defer func() {
		if r := recover(); r != nil {
			log.ErrorContext(ctx, "panic during job execution",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
			s.markFailed(ctx, jobID, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := s.execute(ctx, jobID, data); err != nil {
		// A terminal record here means the job was canceled while running;
		// the cancel path already marked it failed.
		if errors.Is(err, store.ErrInvalidState) {
			log.InfoContext(ctx, "job stopped mid-run")
			return
		}

		log.WarnContext(ctx, "job failed",
			slog.String("error", err.Error()))
		s.markFailed(ctx, jobID, err)
	}
}

// execute drives the job's phases in order: resolve the source document,
// process it into chunks, charge the processing cost, then (except for
// knowledge-base jobs) generate content, charge for it, and persist the
// result history.
func (s *Service) execute(ctx context.Context, jobID uuid.UUID, data []byte) error {
	job, err := s.repo.Get(ctx, jobID)
	if err != nil {
		return err
	}

	err = s.repo.Update(ctx, jobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusProcessing
		j.Progress = progressStarted
		j.StartedAt = time.Now().UTC()
		return nil
	})
	if err != nil {
		return err
	}

	doc, chunkCount, err := s.resolveDocument(ctx, job, data)
	if err != nil {
		return err
	}

	if job.Type == domain.JobTypeKnowledgeBase {
		return s.complete(ctx, jobID, &domain.JobResult{
			DocumentID: doc.ID,
			Filename:   doc.Filename,
			ChunkCount: chunkCount,
		})
	}

	result, err := s.generator.Generate(ctx, generation.Request{
		DocumentID:   doc.ID,
		Type:         job.Type,
		Count:        job.Params.Count,
		NarrowSearch: job.Params.NarrowSearch,
		Keyword:      job.Params.Keyword,
	})
	if err != nil {
		return err
	}
	if err := s.setProgress(ctx, jobID, progressGenerated); err != nil {
		return err
	}

	if _, err := s.meter.ChargeGeneration(ctx, job.OwnerID, jobID, result.ActualCount); err != nil {
		return err
	}
	if err := s.setProgress(ctx, jobID, progressGenCharged); err != nil {
		return err
	}

	history, err := domain.NewHistory(job.OwnerID, doc.ID, job.Type, result.Items)
	if err != nil {
		return fmt.Errorf("failed to build history record: %w", err)
	}
	if err := s.histories.Create(ctx, history); err != nil {
		return fmt.Errorf("failed to persist history record: %w", err)
	}
	if err := s.repo.Update(ctx, jobID, func(j *domain.Job) error {
		j.HistoryID = history.ID
		return nil
	}); err != nil {
		// A cancel that claimed the job between the insert above and this
		// update cannot see the history record; remove it here.
		if errors.Is(err, store.ErrInvalidState) {
			if derr := s.histories.Delete(ctx, history.ID); derr != nil && !store.IsNotFoundError(derr) {
				s.logger.WarnContext(ctx, "failed to delete history record of stopped job",
					slog.String("history_id", history.ID.String()),
					slog.String("error", derr.Error()))
			}
		}
		return err
	}

	return s.complete(ctx, jobID, &domain.JobResult{
		Items:       result.Items,
		ActualCount: result.ActualCount,
		HistoryID:   history.ID,
		DocumentID:  doc.ID,
		Filename:    doc.Filename,
		ChunkCount:  chunkCount,
	})
}

// resolveDocument makes sure the job has a fully processed document to
// generate from, creating and processing one for fresh uploads, or reusing
// (and, when needed, lazily processing) an existing stored document for
// regenerate jobs. It returns the document and its chunk count.
func (s *Service) resolveDocument(ctx context.Context, job *domain.Job, data []byte) (*domain.Document, int, error) {
	if len(data) > 0 {
		return s.processUpload(ctx, job, data)
	}

	doc, err := s.docs.GetByID(ctx, job.Params.DocumentID)
	if err != nil {
		return nil, 0, err
	}

	if err := s.repo.Update(ctx, job.ID, func(j *domain.Job) error {
		j.DocumentID = doc.ID
		j.Progress = progressDocReady
		return nil
	}); err != nil {
		return nil, 0, err
	}

	chunkCount, err := s.ensureProcessed(ctx, job, doc)
	if err != nil {
		return nil, 0, err
	}
	return doc, chunkCount, nil
}

// processUpload stores the uploaded file as a new document and runs it
// through the pipeline.
func (s *Service) processUpload(ctx context.Context, job *domain.Job, data []byte) (*domain.Document, int, error) {
	pages, err := s.pipeline.Validate(data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}

	doc, err := domain.NewDocument(job.OwnerID, job.Params.Filename, job.Params.MimeType, int64(len(data)))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	doc.StorageKey = fmt.Sprintf("documents/%s/%s", job.OwnerID, doc.ID)

	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, 0, fmt.Errorf("failed to persist document: %w", err)
	}
	if err := s.objects.Upload(ctx, doc.StorageKey, data, doc.MimeType); err != nil {
		return nil, 0, fmt.Errorf("failed to upload source file: %w", err)
	}

	if err := s.repo.Update(ctx, job.ID, func(j *domain.Job) error {
		j.DocumentID = doc.ID
		j.CreatedDocument = true
		j.Progress = progressDocReady
		return nil
	}); err != nil {
		return nil, 0, err
	}

	chunkCount, err := s.processDocument(ctx, job, doc, data, pages)
	if err != nil {
		return nil, 0, err
	}
	return doc, chunkCount, nil
}

// processDocument runs the pipeline over the document's bytes and charges
// the processing cost. The document's own status tracks the outcome so
// on-demand consumers can observe it.
func (s *Service) processDocument(ctx context.Context, job *domain.Job, doc *domain.Document, data []byte, pages int) (int, error) {
	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusProcessing); err != nil {
		return 0, fmt.Errorf("failed to mark document processing: %w", err)
	}

	chunkCount, err := s.pipeline.Process(ctx, doc.ID, data, pages)
	if err != nil {
		if statusErr := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusFailed); statusErr != nil {
			s.logger.WarnContext(ctx, "failed to mark document failed",
				slog.String("document_id", doc.ID.String()),
				slog.String("error", statusErr.Error()))
		}
		return 0, fmt.Errorf("document processing failed: %w", err)
	}

	if err := s.docs.UpdateStatus(ctx, doc.ID, domain.DocumentStatusCompleted); err != nil {
		return 0, fmt.Errorf("failed to mark document completed: %w", err)
	}
	if err := s.setProgress(ctx, job.ID, progressChunksReady); err != nil {
		return 0, err
	}

	if _, err := s.meter.ChargeOCR(ctx, job.OwnerID, doc.ID, doc.SizeBytes); err != nil {
		return 0, err
	}
	if err := s.setProgress(ctx, job.ID, progressOCRCharged); err != nil {
		return 0, err
	}

	return chunkCount, nil
}

// ensureProcessed brings an existing document to completed status. A pending
// document is processed on demand from its stored bytes; a document another
// job is currently processing is polled until it settles.
func (s *Service) ensureProcessed(ctx context.Context, job *domain.Job, doc *domain.Document) (int, error) {
	switch doc.Status {
	case domain.DocumentStatusCompleted:
		if err := s.setProgress(ctx, job.ID, progressOCRCharged); err != nil {
			return 0, err
		}
		return s.countChunks(ctx, doc.ID)

	case domain.DocumentStatusFailed:
		return 0, fmt.Errorf("document %s previously failed processing", doc.ID)

	case domain.DocumentStatusPending:
		data, err := s.objects.Download(ctx, doc.StorageKey)
		if err != nil {
			return 0, fmt.Errorf("failed to download source file: %w", err)
		}
		pages, err := s.pipeline.Validate(data)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		return s.processDocument(ctx, job, doc, data, pages)

	case domain.DocumentStatusProcessing:
		return s.pollProcessing(ctx, job, doc.ID)

	default:
		return 0, fmt.Errorf("document %s has unexpected status %q", doc.ID, doc.Status)
	}
}

// pollProcessing waits for another job's in-flight processing of the same
// document, re-reading its status a bounded number of times.
func (s *Service) pollProcessing(ctx context.Context, job *domain.Job, documentID uuid.UUID) (int, error) {
	for attempt := 0; attempt < s.pollAttempts; attempt++ {
		if err := s.sleep(ctx, s.pollInterval); err != nil {
			return 0, err
		}

		doc, err := s.docs.GetByID(ctx, documentID)
		if err != nil {
			return 0, err
		}

		switch doc.Status {
		case domain.DocumentStatusCompleted:
			if err := s.setProgress(ctx, job.ID, progressOCRCharged); err != nil {
				return 0, err
			}
			return s.countChunks(ctx, documentID)
		case domain.DocumentStatusFailed:
			return 0, fmt.Errorf("document %s failed processing", documentID)
		}
	}

	return 0, fmt.Errorf("document %s is still processing after %d checks", documentID, s.pollAttempts)
}

func (s *Service) countChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	chunks, err := s.chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return 0, fmt.Errorf("failed to list document chunks: %w", err)
	}
	return len(chunks), nil
}

func (s *Service) setProgress(ctx context.Context, jobID uuid.UUID, progress int) error {
	return s.repo.Update(ctx, jobID, func(j *domain.Job) error {
		j.Progress = progress
		return nil
	})
}

func (s *Service) complete(ctx context.Context, jobID uuid.UUID, result *domain.JobResult) error {
	return s.repo.Update(ctx, jobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusCompleted
		j.Progress = progressDone
		j.Result = result
		j.CompletedAt = time.Now().UTC()
		return nil
	})
}

// markFailed records the failure on the job. Nothing to do when the record
// is already terminal.
func (s *Service) markFailed(ctx context.Context, jobID uuid.UUID, cause error) {
	err := s.repo.Update(ctx, jobID, func(j *domain.Job) error {
		j.Status = domain.JobStatusFailed
		j.Error = cause.Error()
		j.CompletedAt = time.Now().UTC()
		return nil
	})
	if err != nil && !errors.Is(err, store.ErrInvalidState) {
		s.logger.ErrorContext(ctx, "failed to mark job failed",
			slog.String("job_id", jobID.String()),
			slog.String("error", err.Error()))
	}
}
