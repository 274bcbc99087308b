package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/domain"
)

// Common request/response structures

// SubmitJobRequest carries the non-file fields of a job submission. For
// uploads they arrive as multipart form values alongside the file; for
// regenerate jobs they arrive as a JSON body referencing an existing
// document.
type SubmitJobRequest struct {
	Type         string    `json:"type"`
	Count        int       `json:"count"`
	NarrowSearch bool      `json:"narrow_search"`
	Keyword      string    `json:"keyword"`
	DocumentID   uuid.UUID `json:"document_id"`
}

// JobResponse is the wire form of a job snapshot.
type JobResponse struct {
	ID        uuid.UUID          `json:"id"`
	Type      domain.JobType     `json:"type"`
	Status    domain.JobStatus   `json:"status"`
	Progress  int                `json:"progress"`
	Result    *JobResultResponse `json:"result,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// JobResultResponse is the wire form of a completed job's output.
type JobResultResponse struct {
	Items       []json.RawMessage `json:"items,omitempty"`
	ActualCount int               `json:"actual_count"`
	DocumentID  uuid.UUID         `json:"document_id"`
	Filename    string            `json:"filename,omitempty"`
	ChunkCount  int               `json:"chunk_count"`
}

// NewJobResponse converts a job snapshot to its wire form.
func NewJobResponse(job *domain.Job) JobResponse {
	resp := JobResponse{
		ID:        job.ID,
		Type:      job.Type,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
	}

	if job.Result != nil {
		resp.Result = &JobResultResponse{
			Items:       job.Result.Items,
			ActualCount: job.Result.ActualCount,
			DocumentID:  job.Result.DocumentID,
			Filename:    job.Result.Filename,
			ChunkCount:  job.Result.ChunkCount,
		}
	}
	return resp
}
