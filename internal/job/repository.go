package job

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

// Repository stores job records. Updates are atomic per job id and must
// uphold two invariants: a terminal job never changes again, and progress
// never decreases.
type Repository interface {
	// Create saves a new job record.
	Create(ctx context.Context, job *domain.Job) error

	// Get returns a snapshot of the job.
	// Returns store.ErrJobNotFound if the id is unknown.
	Get(ctx context.Context, id uuid.UUID) (*domain.Job, error)

	// Update applies fn to the job under the repository's lock and persists
	// the result. Returns store.ErrJobNotFound if the id is unknown and
	// store.ErrInvalidState if the job is already terminal.
	Update(ctx context.Context, id uuid.UUID, fn func(job *domain.Job) error) error
}

// MemoryRepository is a mutex-guarded in-process Repository.
type MemoryRepository struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*domain.Job
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{jobs: make(map[uuid.UUID]*domain.Job)}
}

// Create saves a new job record.
func (r *MemoryRepository) Create(_ context.Context, job *domain.Job) error {
	if err := job.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}

	stored := *job
	r.jobs[job.ID] = &stored
	return nil
}

// Get returns a snapshot of the job, so callers never observe a record
// mid-update.
func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}

	snapshot := *job
	return &snapshot, nil
}

// Update applies fn to a copy of the job and persists it. Terminal jobs are
// immutable; attempts to modify one fail with store.ErrInvalidState, which
// the background processor treats as a stop signal after a cancel. Progress
// regressions are discarded so observers only ever see it climb.
func (r *MemoryRepository) Update(_ context.Context, id uuid.UUID, fn func(job *domain.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return store.ErrJobNotFound
	}

	if current.Terminal() {
		return fmt.Errorf("%w: job %s is already %s", store.ErrInvalidState, id, current.Status)
	}

	updated := *current
	if err := fn(&updated); err != nil {
		return err
	}

	if updated.Progress < current.Progress {
		updated.Progress = current.Progress
	}

	r.jobs[id] = &updated
	return nil
}
