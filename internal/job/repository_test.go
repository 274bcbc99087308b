package job

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

func newPendingJob(t *testing.T) *domain.Job {
	t.Helper()

	job, err := domain.NewJob(uuid.New(), domain.JobTypeQuiz, domain.JobParams{Count: 5})
	require.NoError(t, err)
	return job
}

func TestMemoryRepository_CreateAndGet(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	job := newPendingJob(t)

	require.NoError(t, repo.Create(context.Background(), job))

	got, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, domain.JobStatusPending, got.Status)
}

func TestMemoryRepository_GetUnknownID(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, store.ErrJobNotFound)
}

func TestMemoryRepository_CreateDuplicate(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	job := newPendingJob(t)

	require.NoError(t, repo.Create(context.Background(), job))
	assert.Error(t, repo.Create(context.Background(), job))
}

func TestMemoryRepository_GetReturnsSnapshot(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	job := newPendingJob(t)
	require.NoError(t, repo.Create(context.Background(), job))

	got, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)

	// Mutating the snapshot must not leak into the stored record.
	got.Status = domain.JobStatusFailed
	got.Error = "tampered"

	fresh, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, fresh.Status)
	assert.Empty(t, fresh.Error)
}

func TestMemoryRepository_UpdateTerminalJobFails(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	job := newPendingJob(t)
	require.NoError(t, repo.Create(context.Background(), job))

	err := repo.Update(context.Background(), job.ID, func(j *domain.Job) error {
		j.Status = domain.JobStatusCompleted
		j.Progress = 100
		return nil
	})
	require.NoError(t, err)

	err = repo.Update(context.Background(), job.ID, func(j *domain.Job) error {
		j.Status = domain.JobStatusProcessing
		return nil
	})
	assert.ErrorIs(t, err, store.ErrInvalidState)

	got, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
}

func TestMemoryRepository_ProgressNeverDecreases(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	job := newPendingJob(t)
	require.NoError(t, repo.Create(context.Background(), job))

	require.NoError(t, repo.Update(context.Background(), job.ID, func(j *domain.Job) error {
		j.Progress = 60
		return nil
	}))
	require.NoError(t, repo.Update(context.Background(), job.ID, func(j *domain.Job) error {
		j.Progress = 40
		return nil
	}))

	got, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.Progress)
}

func TestMemoryRepository_UpdateCallbackErrorDiscardsChanges(t *testing.T) {
	t.Parallel()

	repo := NewMemoryRepository()
	job := newPendingJob(t)
	require.NoError(t, repo.Create(context.Background(), job))

	err := repo.Update(context.Background(), job.ID, func(j *domain.Job) error {
		j.Progress = 90
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	got, err := repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Zero(t, got.Progress)
}
