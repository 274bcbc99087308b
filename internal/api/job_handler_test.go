package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

type stubJobService struct {
	submitJob    *domain.Job
	submitErr    error
	submitParams domain.JobParams
	submitType   domain.JobType
	submitData   []byte
	submitOwner  uuid.UUID

	statusJob *domain.Job
	statusErr error

	cancelErr error
	canceled  []uuid.UUID
}

func (s *stubJobService) Submit(_ context.Context, ownerID uuid.UUID, jobType domain.JobType, params domain.JobParams, data []byte) (*domain.Job, error) {
	s.submitOwner = ownerID
	s.submitType = jobType
	s.submitParams = params
	s.submitData = data
	return s.submitJob, s.submitErr
}

func (s *stubJobService) Status(_ context.Context, jobID, _ uuid.UUID) (*domain.Job, error) {
	return s.statusJob, s.statusErr
}

func (s *stubJobService) Cancel(_ context.Context, jobID, _ uuid.UUID) error {
	s.canceled = append(s.canceled, jobID)
	return s.cancelErr
}

func newTestRouter(svc *stubJobService) chi.Router {
	r := chi.NewRouter()
	NewJobHandler(svc, slog.Default()).Routes(r)
	return r
}

func completedJob(t *testing.T, ownerID uuid.UUID) *domain.Job {
	t.Helper()

	j, err := domain.NewJob(ownerID, domain.JobTypeQuiz, domain.JobParams{Count: 5})
	require.NoError(t, err)
	j.Status = domain.JobStatusCompleted
	j.Progress = 100
	j.Result = &domain.JobResult{
		Items:       []json.RawMessage{json.RawMessage(`{"front":"f","back":"b"}`)},
		ActualCount: 1,
		DocumentID:  uuid.New(),
		ChunkCount:  3,
	}
	return j
}

func multipartBody(t *testing.T, fields map[string]string, filename string, file []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(file)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return &buf, mw.FormDataContentType()
}

func TestSubmit_MultipartUpload(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	pending, err := domain.NewJob(ownerID, domain.JobTypeQuiz, domain.JobParams{Count: 10})
	require.NoError(t, err)

	svc := &stubJobService{submitJob: pending}
	router := newTestRouter(svc)

	body, contentType := multipartBody(t, map[string]string{
		"type":          "quiz",
		"count":         "10",
		"narrow_search": "true",
		"keyword":       "mitosis",
	}, "bio.pdf", []byte("%PDF-fake"))

	req := httptest.NewRequest(http.MethodPost, "/jobs", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(ownerHeader, ownerID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, ownerID, svc.submitOwner)
	assert.Equal(t, domain.JobTypeQuiz, svc.submitType)
	assert.Equal(t, 10, svc.submitParams.Count)
	assert.True(t, svc.submitParams.NarrowSearch)
	assert.Equal(t, "mitosis", svc.submitParams.Keyword)
	assert.Equal(t, "bio.pdf", svc.submitParams.Filename)
	assert.Equal(t, []byte("%PDF-fake"), svc.submitData)

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, pending.ID, resp.ID)
	assert.Equal(t, domain.JobStatusPending, resp.Status)
}

func TestSubmit_RegenerateJSON(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	documentID := uuid.New()
	pending, err := domain.NewJob(ownerID, domain.JobTypeFlashcard,
		domain.JobParams{Count: 5, DocumentID: documentID})
	require.NoError(t, err)

	svc := &stubJobService{submitJob: pending}
	router := newTestRouter(svc)

	payload := fmt.Sprintf(`{"type":"flashcard","count":5,"document_id":%q}`, documentID)
	req := httptest.NewRequest(http.MethodPost, "/jobs", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ownerHeader, ownerID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, domain.JobTypeFlashcard, svc.submitType)
	assert.Equal(t, documentID, svc.submitParams.DocumentID)
	assert.Empty(t, svc.submitData)
}

func TestSubmit_ErrorsMapToStatusCodes(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", fmt.Errorf("%w: not a pdf", domain.ErrValidation), http.StatusBadRequest},
		{"insufficient credit", store.ErrInsufficientCredit, http.StatusPaymentRequired},
		{"forbidden", store.ErrForbidden, http.StatusForbidden},
		{"document not found", store.ErrDocumentNotFound, http.StatusNotFound},
		{"internal", fmt.Errorf("database down"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			svc := &stubJobService{submitErr: tc.err}
			router := newTestRouter(svc)

			req := httptest.NewRequest(http.MethodPost, "/jobs",
				strings.NewReader(`{"type":"quiz","count":5}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set(ownerHeader, uuid.New().String())
			rec := httptest.NewRecorder()

			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSubmit_MissingOwnerHeader(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubJobService{})

	req := httptest.NewRequest(http.MethodPost, "/jobs",
		strings.NewReader(`{"type":"quiz","count":5}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStatus_ReturnsJobSnapshot(t *testing.T) {
	t.Parallel()

	ownerID := uuid.New()
	done := completedJob(t, ownerID)
	svc := &stubJobService{statusJob: done}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+done.ID.String(), nil)
	req.Header.Set(ownerHeader, ownerID.String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp JobResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, done.ID, resp.ID)
	assert.Equal(t, domain.JobStatusCompleted, resp.Status)
	assert.Equal(t, 100, resp.Progress)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 1, resp.Result.ActualCount)
	assert.Equal(t, 3, resp.Result.ChunkCount)
}

func TestStatus_UnknownJob(t *testing.T) {
	t.Parallel()

	svc := &stubJobService{statusErr: store.ErrJobNotFound}
	router := newTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+uuid.New().String(), nil)
	req.Header.Set(ownerHeader, uuid.New().String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatus_MalformedJobID(t *testing.T) {
	t.Parallel()

	router := newTestRouter(&stubJobService{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/not-a-uuid", nil)
	req.Header.Set(ownerHeader, uuid.New().String())
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancel(t *testing.T) {
	t.Parallel()

	t.Run("cancels and returns the failed snapshot", func(t *testing.T) {
		t.Parallel()

		ownerID := uuid.New()
		canceled, err := domain.NewJob(ownerID, domain.JobTypeQuiz, domain.JobParams{Count: 5})
		require.NoError(t, err)
		canceled.Status = domain.JobStatusFailed
		canceled.Error = "canceled by user"

		svc := &stubJobService{statusJob: canceled}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodDelete, "/jobs/"+canceled.ID.String(), nil)
		req.Header.Set(ownerHeader, ownerID.String())
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []uuid.UUID{canceled.ID}, svc.canceled)

		var resp JobResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, domain.JobStatusFailed, resp.Status)
		assert.Equal(t, "canceled by user", resp.Error)
	})

	t.Run("terminal job conflicts", func(t *testing.T) {
		t.Parallel()

		svc := &stubJobService{cancelErr: store.ErrInvalidState}
		router := newTestRouter(svc)

		req := httptest.NewRequest(http.MethodDelete, "/jobs/"+uuid.New().String(), nil)
		req.Header.Set(ownerHeader, uuid.New().String())
		rec := httptest.NewRecorder()

		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}
