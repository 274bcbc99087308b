package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the current state of a generation job.
type JobStatus string

// Possible job status values. Pending and Processing are transient;
// Completed and Failed are terminal.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// JobType identifies what kind of content a job produces.
type JobType string

// Possible job types. KnowledgeBase jobs run OCR and embedding only,
// without question generation.
const (
	JobTypeQuiz          JobType = "quiz"
	JobTypeFlashcard     JobType = "flashcard"
	JobTypeKnowledgeBase JobType = "knowledge_base"
)

// Common validation errors for Job
var (
	ErrEmptyJobID       = errors.New("job ID cannot be empty")
	ErrEmptyJobOwnerID  = errors.New("job owner ID cannot be empty")
	ErrInvalidJobType   = errors.New("invalid job type")
	ErrInvalidJobStatus = errors.New("invalid job status")
	ErrInvalidJobCount  = errors.New("requested count must be positive")
)

// JobParams carries the generation request parameters.
type JobParams struct {
	// Count is the requested number of generated items. Ignored for
	// knowledge-base jobs.
	Count int `json:"count"`

	// NarrowSearch restricts source material to chunks similar to Keyword.
	NarrowSearch bool `json:"narrow_search"`

	// Keyword is the (possibly comma-separated) narrow-search query string.
	Keyword string `json:"keyword,omitempty"`

	// DocumentID references an existing stored document for regenerate
	// jobs. Nil for jobs that upload a new file.
	DocumentID uuid.UUID `json:"document_id,omitempty"`

	// Filename, MimeType and SizeBytes describe the uploaded source file.
	// Empty for regenerate jobs.
	Filename  string `json:"filename,omitempty"`
	MimeType  string `json:"mime_type,omitempty"`
	SizeBytes int64  `json:"size_bytes,omitempty"`
}

// JobResult holds the output of a completed job.
type JobResult struct {
	// Items are the generated quiz questions or flashcards, one JSON
	// document per item. Empty for knowledge-base jobs.
	Items []json.RawMessage `json:"items,omitempty"`

	// ActualCount is the number of items actually produced, which is
	// authoritative for generation billing.
	ActualCount int `json:"actual_count"`

	// HistoryID references the persisted history record, if any.
	HistoryID uuid.UUID `json:"history_id,omitempty"`

	// DocumentID and Filename identify the processed source document.
	DocumentID uuid.UUID `json:"document_id"`
	Filename   string    `json:"filename,omitempty"`

	// ChunkCount is the number of chunks persisted by the pipeline.
	ChunkCount int `json:"chunk_count"`
}

// Job is the unit of asynchronous work. The job service exclusively owns and
// mutates Job records; once a job reaches a terminal status it is read-only.
type Job struct {
	ID       uuid.UUID `json:"id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	Type     JobType   `json:"type"`
	Status   JobStatus `json:"status"`
	Params   JobParams `json:"params"`
	Progress int       `json:"progress"`

	// Result is set only on completed jobs; Error only on failed ones.
	Result *JobResult `json:"result,omitempty"`
	Error  string     `json:"error,omitempty"`

	// DocumentID is the document the job is processing, recorded once known.
	// CreatedDocument reports whether this job created the document (as
	// opposed to regenerating from an existing upload); rollback on cancel
	// removes documents only if the job created them.
	DocumentID      uuid.UUID `json:"-"`
	CreatedDocument bool      `json:"-"`

	// HistoryID is the result history record created by the job, if any.
	HistoryID uuid.UUID `json:"-"`

	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
}

// NewJob creates a new Job in pending state for the given owner, type and
// parameters. Returns an error if validation fails.
func NewJob(ownerID uuid.UUID, jobType JobType, params JobParams) (*Job, error) {
	job := &Job{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Type:      jobType,
		Status:    JobStatusPending,
		Params:    params,
		CreatedAt: time.Now().UTC(),
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the Job has valid data.
// Returns an error if any field fails validation.
func (j *Job) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}

	if j.OwnerID == uuid.Nil {
		return ErrEmptyJobOwnerID
	}

	if !isValidJobType(j.Type) {
		return ErrInvalidJobType
	}

	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}

	if j.Type != JobTypeKnowledgeBase && j.Params.Count <= 0 {
		return ErrInvalidJobCount
	}

	return nil
}

// Terminal reports whether the job has reached a terminal status.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// isValidJobType checks if the given type is a valid JobType.
func isValidJobType(t JobType) bool {
	switch t {
	case JobTypeQuiz, JobTypeFlashcard, JobTypeKnowledgeBase:
		return true
	default:
		return false
	}
}

// isValidJobStatus checks if the given status is a valid JobStatus.
func isValidJobStatus(status JobStatus) bool {
	switch status {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
