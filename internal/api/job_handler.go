package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cychipo/examio-be-sub001/internal/domain"
)

// ownerHeader names the caller. The authenticating proxy in front of this
// service sets it; requests without it are rejected.
const ownerHeader = "X-User-ID"

// maxUploadBytes bounds the multipart form memory before spilling to disk.
const maxUploadBytes = 64 << 20

// JobService is the slice of the job engine the handlers call.
type JobService interface {
	Submit(ctx context.Context, ownerID uuid.UUID, jobType domain.JobType, params domain.JobParams, data []byte) (*domain.Job, error)
	Status(ctx context.Context, jobID, requesterID uuid.UUID) (*domain.Job, error)
	Cancel(ctx context.Context, jobID, requesterID uuid.UUID) error
}

// JobHandler exposes the job service over HTTP.
type JobHandler struct {
	service JobService
	logger  *slog.Logger
}

// NewJobHandler creates a JobHandler.
func NewJobHandler(service JobService, logger *slog.Logger) *JobHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandler{
		service: service,
		logger:  logger.With(slog.String("component", "job_handler")),
	}
}

// Routes mounts the job endpoints on a chi router.
func (h *JobHandler) Routes(r chi.Router) {
	r.Post("/jobs", h.Submit)
	r.Get("/jobs/{id}", h.Status)
	r.Delete("/jobs/{id}", h.Cancel)
}

// Submit handles POST /jobs. Uploads arrive as multipart forms carrying the
// file plus parameters; regenerate requests arrive as JSON referencing an
// existing document.
func (h *JobHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requireOwner(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	var req SubmitJobRequest
	var data []byte
	var filename string

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		req, data, filename, err = parseMultipartSubmit(r)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
		if err != nil {
			err = fmt.Errorf("%w: malformed request body", domain.ErrValidation)
		}
	}
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	jobType := domain.JobType(req.Type)
	params := domain.JobParams{
		Count:        req.Count,
		NarrowSearch: req.NarrowSearch,
		Keyword:      req.Keyword,
		DocumentID:   req.DocumentID,
		Filename:     filename,
		MimeType:     "application/pdf",
		SizeBytes:    int64(len(data)),
	}

	submitted, err := h.service.Submit(r.Context(), ownerID, jobType, params, data)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusAccepted, NewJobResponse(submitted))
}

// Status handles GET /jobs/{id}.
func (h *JobHandler) Status(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requireOwner(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	jobID, err := parseJobID(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	snapshot, err := h.service.Status(r.Context(), jobID, ownerID)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, NewJobResponse(snapshot))
}

// Cancel handles DELETE /jobs/{id}.
func (h *JobHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requireOwner(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	jobID, err := parseJobID(r)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	if err := h.service.Cancel(r.Context(), jobID, ownerID); err != nil {
		RespondWithError(w, r, err)
		return
	}

	snapshot, err := h.service.Status(r.Context(), jobID, ownerID)
	if err != nil {
		RespondWithError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, NewJobResponse(snapshot))
}

// parseMultipartSubmit extracts the uploaded file and the form-encoded
// parameters from a multipart submission.
func parseMultipartSubmit(r *http.Request) (SubmitJobRequest, []byte, string, error) {
	var req SubmitJobRequest

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, nil, "", fmt.Errorf("%w: malformed multipart form", domain.ErrValidation)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return req, nil, "", fmt.Errorf("%w: missing file field", domain.ErrValidation)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return req, nil, "", fmt.Errorf("%w: failed to read uploaded file", domain.ErrValidation)
	}

	req.Type = r.FormValue("type")
	req.Keyword = r.FormValue("keyword")
	req.NarrowSearch = r.FormValue("narrow_search") == "true"
	if v := r.FormValue("count"); v != "" {
		count, err := strconv.Atoi(v)
		if err != nil {
			return req, nil, "", fmt.Errorf("%w: count must be an integer", domain.ErrValidation)
		}
		req.Count = count
	}

	return req, data, header.Filename, nil
}

func requireOwner(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get(ownerHeader)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: missing %s header", domain.ErrUnauthorized, ownerHeader)
	}

	ownerID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed %s header", domain.ErrUnauthorized, ownerHeader)
	}
	return ownerID, nil
}

func parseJobID(r *http.Request) (uuid.UUID, error) {
	jobID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed job id", domain.ErrValidation)
	}
	return jobID, nil
}
