package job

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cychipo/examio-be-sub001/internal/domain"
	"github.com/cychipo/examio-be-sub001/internal/generation"
	"github.com/cychipo/examio-be-sub001/internal/store"
)

type fakeDocs struct {
	mu      sync.Mutex
	docs    map[uuid.UUID]*domain.Document
	deleted []uuid.UUID
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: make(map[uuid.UUID]*domain.Document)}
}

func (f *fakeDocs) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *doc
	f.docs[doc.ID] = &stored
	return nil
}

func (f *fakeDocs) GetByID(_ context.Context, id uuid.UUID) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, store.ErrDocumentNotFound
	}
	snapshot := *doc
	return &snapshot, nil
}

func (f *fakeDocs) UpdateStatus(_ context.Context, id uuid.UUID, status domain.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return store.ErrDocumentNotFound
	}
	doc.Status = status
	return nil
}

func (f *fakeDocs) MarkCreditCharged(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return false, store.ErrDocumentNotFound
	}
	if doc.CreditCharged {
		return false, nil
	}
	doc.CreditCharged = true
	return true, nil
}

func (f *fakeDocs) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return store.ErrDocumentNotFound
	}
	delete(f.docs, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeChunks struct {
	mu      sync.Mutex
	byDoc   map[uuid.UUID][]*domain.Chunk
	deleted []uuid.UUID
}

func newFakeChunks() *fakeChunks {
	return &fakeChunks{byDoc: make(map[uuid.UUID][]*domain.Chunk)}
}

func (f *fakeChunks) Create(_ context.Context, chunk *domain.Chunk) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.byDoc[chunk.DocumentID] = append(f.byDoc[chunk.DocumentID], chunk)
	return nil
}

func (f *fakeChunks) ListByDocument(_ context.Context, documentID uuid.UUID) ([]*domain.Chunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byDoc[documentID], nil
}

func (f *fakeChunks) FindSimilar(context.Context, []uuid.UUID, []float32, int, float64) ([]*domain.Chunk, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeChunks) DeleteByDocument(_ context.Context, documentID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byDoc, documentID)
	f.deleted = append(f.deleted, documentID)
	return nil
}

type fakeHistories struct {
	mu      sync.Mutex
	records map[uuid.UUID]*domain.History
	deleted []uuid.UUID

	// Hooks let tests interleave concurrent work with store calls.
	createHook func()
	deleteHook func()
}

func newFakeHistories() *fakeHistories {
	return &fakeHistories{records: make(map[uuid.UUID]*domain.History)}
}

func (f *fakeHistories) Create(_ context.Context, h *domain.History) error {
	if f.createHook != nil {
		f.createHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[h.ID] = h
	return nil
}

func (f *fakeHistories) GetByID(_ context.Context, id uuid.UUID) (*domain.History, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.records[id]
	if !ok {
		return nil, store.ErrHistoryNotFound
	}
	return h, nil
}

func (f *fakeHistories) Delete(_ context.Context, id uuid.UUID) error {
	if f.deleteHook != nil {
		f.deleteHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return store.ErrHistoryNotFound
	}
	delete(f.records, id)
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) Upload(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) Download(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return data, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeTransactor struct{}

func (fakeTransactor) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type charge struct {
	kind   string
	amount int64
	count  int
}

type fakeMeter struct {
	mu         sync.Mutex
	balance    int64
	checkErr   error
	ocrErr     error
	genErr     error
	ocrCalls   int
	charges    []charge
	chargedDoc map[uuid.UUID]bool
}

func newFakeMeter(balance int64) *fakeMeter {
	return &fakeMeter{balance: balance, chargedDoc: make(map[uuid.UUID]bool)}
}

func (f *fakeMeter) CheckBalance(_ context.Context, _ uuid.UUID, total int64) error {
	if f.checkErr != nil {
		return f.checkErr
	}
	if f.balance < total {
		return store.ErrInsufficientCredit
	}
	return nil
}

func (f *fakeMeter) ChargeOCR(_ context.Context, _, documentID uuid.UUID, _ int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ocrCalls++
	if f.ocrErr != nil {
		return 0, f.ocrErr
	}
	if f.chargedDoc[documentID] {
		return 0, nil
	}
	f.chargedDoc[documentID] = true
	f.charges = append(f.charges, charge{kind: "ocr", amount: 2})
	return 2, nil
}

func (f *fakeMeter) ChargeGeneration(_ context.Context, _, _ uuid.UUID, actualCount int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.genErr != nil {
		return 0, f.genErr
	}
	f.charges = append(f.charges, charge{kind: "generation", count: actualCount})
	return 1, nil
}

type mockPipeline struct {
	pages       int
	validateErr error
	processErr  error
	chunkCount  int
	processed   []uuid.UUID
}

func (m *mockPipeline) Validate([]byte) (int, error) {
	if m.validateErr != nil {
		return 0, m.validateErr
	}
	return m.pages, nil
}

func (m *mockPipeline) Process(_ context.Context, documentID uuid.UUID, _ []byte, _ int) (int, error) {
	if m.processErr != nil {
		return 0, m.processErr
	}
	m.processed = append(m.processed, documentID)
	return m.chunkCount, nil
}

type mockGenerator struct {
	result   *generation.Result
	err      error
	requests []generation.Request
}

func (m *mockGenerator) Generate(_ context.Context, req generation.Request) (*generation.Result, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type harness struct {
	service   *Service
	repo      *MemoryRepository
	docs      *fakeDocs
	chunks    *fakeChunks
	histories *fakeHistories
	objects   *fakeObjects
	meter     *fakeMeter
	pipeline  *mockPipeline
	generator *mockGenerator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		repo:      NewMemoryRepository(),
		docs:      newFakeDocs(),
		chunks:    newFakeChunks(),
		histories: newFakeHistories(),
		objects:   newFakeObjects(),
		meter:     newFakeMeter(100),
		pipeline:  &mockPipeline{pages: 25, chunkCount: 3},
		generator: &mockGenerator{result: &generation.Result{
			Items:       []json.RawMessage{json.RawMessage(`{"front":"f","back":"b"}`)},
			ActualCount: 1,
		}},
	}

	svc, err := NewService(
		h.repo, h.docs, h.chunks, h.histories, h.objects,
		fakeTransactor{}, h.meter, h.pipeline, h.generator,
		Config{PollAttempts: 3, PollInterval: time.Millisecond},
		slog.Default(),
	)
	require.NoError(t, err)

	// Run the background task inline so tests observe the final state.
	svc.spawn = func(fn func()) { fn() }
	svc.sleep = func(context.Context, time.Duration) error { return nil }

	h.service = svc
	return h
}

func uploadParams(count int) domain.JobParams {
	return domain.JobParams{
		Count:    count,
		Filename: "lecture.pdf",
		MimeType: "application/pdf",
	}
}

func TestSubmit_UploadJobRunsToCompletion(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	job, err := h.service.Submit(context.Background(), ownerID, domain.JobTypeQuiz,
		uploadParams(10), []byte("%PDF-fake"))
	require.NoError(t, err)

	got, err := h.service.Status(context.Background(), job.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	assert.Equal(t, 1, got.Result.ActualCount)
	assert.Equal(t, 3, got.Result.ChunkCount)
	assert.NotEqual(t, uuid.Nil, got.Result.HistoryID)

	// Document persisted, uploaded, processed, and charged.
	require.Len(t, h.pipeline.processed, 1)
	doc, err := h.docs.GetByID(context.Background(), h.pipeline.processed[0])
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCompleted, doc.Status)
	assert.True(t, doc.CreditCharged)
	assert.Len(t, h.objects.objects, 1)

	// One OCR charge, one generation charge, in that order.
	require.Len(t, h.meter.charges, 2)
	assert.Equal(t, "ocr", h.meter.charges[0].kind)
	assert.Equal(t, "generation", h.meter.charges[1].kind)
	assert.Equal(t, 1, h.meter.charges[1].count)

	// History record persisted with the generated items.
	history, err := h.histories.GetByID(context.Background(), got.Result.HistoryID)
	require.NoError(t, err)
	assert.Len(t, history.Items, 1)
}

func TestSubmit_KnowledgeBaseJobSkipsGeneration(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	job, err := h.service.Submit(context.Background(), ownerID, domain.JobTypeKnowledgeBase,
		domain.JobParams{Filename: "notes.pdf", MimeType: "application/pdf"}, []byte("%PDF-fake"))
	require.NoError(t, err)

	got, err := h.service.Status(context.Background(), job.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, 3, got.Result.ChunkCount)
	assert.Empty(t, got.Result.Items)

	assert.Empty(t, h.generator.requests)
	require.Len(t, h.meter.charges, 1)
	assert.Equal(t, "ocr", h.meter.charges[0].kind)
}

func TestSubmit_ValidationFailures(t *testing.T) {
	t.Parallel()

	t.Run("neither file nor document id", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		_, err := h.service.Submit(context.Background(), uuid.New(), domain.JobTypeQuiz,
			domain.JobParams{Count: 5}, nil)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("zero count", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		_, err := h.service.Submit(context.Background(), uuid.New(), domain.JobTypeQuiz,
			uploadParams(0), []byte("%PDF-fake"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("invalid file rejected before job creation", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		h.pipeline.validateErr = errors.New("not a pdf")

		_, err := h.service.Submit(context.Background(), uuid.New(), domain.JobTypeQuiz,
			uploadParams(5), []byte("not a pdf"))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestSubmit_InsufficientBalance(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.meter.balance = 1

	_, err := h.service.Submit(context.Background(), uuid.New(), domain.JobTypeQuiz,
		uploadParams(40), []byte("%PDF-fake"))

	assert.ErrorIs(t, err, store.ErrInsufficientCredit)
}

func TestSubmit_RegenerateForeignDocumentForbidden(t *testing.T) {
	t.Parallel()

	h := newHarness(t)

	doc, err := domain.NewDocument(uuid.New(), "other.pdf", "application/pdf", 1024)
	require.NoError(t, err)
	require.NoError(t, h.docs.Create(context.Background(), doc))

	_, err = h.service.Submit(context.Background(), uuid.New(), domain.JobTypeQuiz,
		domain.JobParams{Count: 5, DocumentID: doc.ID}, nil)

	assert.ErrorIs(t, err, store.ErrForbidden)
}

func TestSubmit_RegenerateUsesExistingDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	doc, err := domain.NewDocument(ownerID, "existing.pdf", "application/pdf", 1024)
	require.NoError(t, err)
	doc.Status = domain.DocumentStatusCompleted
	doc.CreditCharged = true
	require.NoError(t, h.docs.Create(context.Background(), doc))

	chunk, err := domain.NewChunk(doc.ID, "1-10", "t", "text", []float32{1})
	require.NoError(t, err)
	require.NoError(t, h.chunks.Create(context.Background(), chunk))

	job, err := h.service.Submit(context.Background(), ownerID, domain.JobTypeFlashcard,
		domain.JobParams{Count: 5, DocumentID: doc.ID}, nil)
	require.NoError(t, err)

	got, err := h.service.Status(context.Background(), job.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, doc.ID, got.Result.DocumentID)
	assert.Equal(t, 1, got.Result.ChunkCount)

	// No pipeline run, no second OCR charge.
	assert.Empty(t, h.pipeline.processed)
	require.Len(t, h.meter.charges, 1)
	assert.Equal(t, "generation", h.meter.charges[0].kind)
}

func TestSubmit_OnDemandProcessingOfPendingDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	doc, err := domain.NewDocument(ownerID, "lazy.pdf", "application/pdf", 2048)
	require.NoError(t, err)
	doc.StorageKey = "documents/" + ownerID.String() + "/" + doc.ID.String()
	require.NoError(t, h.docs.Create(context.Background(), doc))
	require.NoError(t, h.objects.Upload(context.Background(), doc.StorageKey, []byte("%PDF-fake"), "application/pdf"))

	job, err := h.service.Submit(context.Background(), ownerID, domain.JobTypeQuiz,
		domain.JobParams{Count: 5, DocumentID: doc.ID}, nil)
	require.NoError(t, err)

	got, err := h.service.Status(context.Background(), job.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)

	// The pending document was processed and charged on first reference.
	require.Len(t, h.pipeline.processed, 1)
	assert.Equal(t, doc.ID, h.pipeline.processed[0])

	fresh, err := h.docs.GetByID(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusCompleted, fresh.Status)
	assert.True(t, fresh.CreditCharged)
}

func TestSubmit_PollsDocumentProcessedElsewhere(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	doc, err := domain.NewDocument(ownerID, "busy.pdf", "application/pdf", 2048)
	require.NoError(t, err)
	doc.Status = domain.DocumentStatusProcessing
	require.NoError(t, h.docs.Create(context.Background(), doc))

	// Another worker finishes the document after two poll sleeps.
	sleeps := 0
	h.service.sleep = func(context.Context, time.Duration) error {
		sleeps++
		if sleeps == 2 {
			require.NoError(t, h.docs.UpdateStatus(context.Background(), doc.ID, domain.DocumentStatusCompleted))
		}
		return nil
	}

	job, err := h.service.Submit(context.Background(), ownerID, domain.JobTypeQuiz,
		domain.JobParams{Count: 5, DocumentID: doc.ID}, nil)
	require.NoError(t, err)

	got, err := h.service.Status(context.Background(), job.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Empty(t, h.pipeline.processed)
	assert.Equal(t, 2, sleeps)
}

func TestSubmit_PollExhaustionFailsJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	doc, err := domain.NewDocument(ownerID, "stuck.pdf", "application/pdf", 2048)
	require.NoError(t, err)
	doc.Status = domain.DocumentStatusProcessing
	require.NoError(t, h.docs.Create(context.Background(), doc))

	job, err := h.service.Submit(context.Background(), ownerID, domain.JobTypeQuiz,
		domain.JobParams{Count: 5, DocumentID: doc.ID}, nil)
	require.NoError(t, err)

	got, err := h.service.Status(context.Background(), job.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "still processing")
}

func TestSubmit_GeneratorFailureFailsJob(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	h.generator.err = errors.New("all provider keys exhausted")
	ownerID := uuid.New()

	job, err := h.service.Submit(context.Background(), ownerID, domain.JobTypeQuiz,
		uploadParams(5), []byte("%PDF-fake"))
	require.NoError(t, err)

	got, err := h.service.Status(context.Background(), job.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "exhausted")

	// OCR was still charged; generation was not.
	require.Len(t, h.meter.charges, 1)
	assert.Equal(t, "ocr", h.meter.charges[0].kind)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		_, err := h.service.Status(context.Background(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		job := newPendingJob(t)
		require.NoError(t, h.repo.Create(context.Background(), job))

		_, err := h.service.Status(context.Background(), job.ID, uuid.New())
		assert.ErrorIs(t, err, store.ErrForbidden)
	})
}

func TestCancel_RollsBackCreatedDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	doc, err := domain.NewDocument(ownerID, "doomed.pdf", "application/pdf", 1024)
	require.NoError(t, err)
	doc.StorageKey = "documents/key"
	require.NoError(t, h.docs.Create(context.Background(), doc))
	require.NoError(t, h.objects.Upload(context.Background(), doc.StorageKey, []byte("%PDF-"), "application/pdf"))

	chunk, err := domain.NewChunk(doc.ID, "1-10", "t", "text", []float32{1})
	require.NoError(t, err)
	require.NoError(t, h.chunks.Create(context.Background(), chunk))

	history, err := domain.NewHistory(ownerID, doc.ID, domain.JobTypeQuiz,
		[]json.RawMessage{json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, h.histories.Create(context.Background(), history))

	job, err := domain.NewJob(ownerID, domain.JobTypeQuiz, domain.JobParams{Count: 5})
	require.NoError(t, err)
	job.Status = domain.JobStatusProcessing
	job.DocumentID = doc.ID
	job.CreatedDocument = true
	job.HistoryID = history.ID
	require.NoError(t, h.repo.Create(context.Background(), job))

	require.NoError(t, h.service.Cancel(context.Background(), job.ID, ownerID))

	got, err := h.repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, CancelReason, got.Error)

	// History, chunks, document, and stored object are all gone.
	assert.Equal(t, []uuid.UUID{history.ID}, h.histories.deleted)
	assert.Equal(t, []uuid.UUID{doc.ID}, h.chunks.deleted)
	assert.Equal(t, []uuid.UUID{doc.ID}, h.docs.deleted)
	assert.Equal(t, []string{doc.StorageKey}, h.objects.deleted)
}

func TestCancel_RegenerateJobKeepsDocument(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	doc, err := domain.NewDocument(ownerID, "keep.pdf", "application/pdf", 1024)
	require.NoError(t, err)
	require.NoError(t, h.docs.Create(context.Background(), doc))

	history, err := domain.NewHistory(ownerID, doc.ID, domain.JobTypeQuiz,
		[]json.RawMessage{json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, h.histories.Create(context.Background(), history))

	job, err := domain.NewJob(ownerID, domain.JobTypeQuiz,
		domain.JobParams{Count: 5, DocumentID: doc.ID})
	require.NoError(t, err)
	job.Status = domain.JobStatusProcessing
	job.DocumentID = doc.ID
	job.HistoryID = history.ID
	require.NoError(t, h.repo.Create(context.Background(), job))

	require.NoError(t, h.service.Cancel(context.Background(), job.ID, ownerID))

	// Only the history record is rolled back.
	assert.Equal(t, []uuid.UUID{history.ID}, h.histories.deleted)
	assert.Empty(t, h.docs.deleted)
	assert.Empty(t, h.chunks.deleted)
	assert.Empty(t, h.objects.deleted)

	_, err = h.docs.GetByID(context.Background(), doc.ID)
	assert.NoError(t, err)
}

func TestCancel_ClaimsJobBeforeRollback(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	history, err := domain.NewHistory(ownerID, uuid.New(), domain.JobTypeQuiz,
		[]json.RawMessage{json.RawMessage(`{}`)})
	require.NoError(t, err)
	require.NoError(t, h.histories.Create(context.Background(), history))

	job, err := domain.NewJob(ownerID, domain.JobTypeQuiz, domain.JobParams{Count: 5})
	require.NoError(t, err)
	job.Status = domain.JobStatusProcessing
	job.HistoryID = history.ID
	require.NoError(t, h.repo.Create(context.Background(), job))

	// The background processor tries to complete the job while the rollback
	// is underway; the record must already be claimed.
	var completeErr error
	h.histories.deleteHook = func() {
		completeErr = h.repo.Update(context.Background(), job.ID, func(j *domain.Job) error {
			j.Status = domain.JobStatusCompleted
			j.Progress = 100
			return nil
		})
	}

	require.NoError(t, h.service.Cancel(context.Background(), job.ID, ownerID))

	assert.ErrorIs(t, completeErr, store.ErrInvalidState)

	got, err := h.repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, CancelReason, got.Error)
	assert.Equal(t, []uuid.UUID{history.ID}, h.histories.deleted)
}

func TestCancel_MidRunDeletesFreshHistoryRecord(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	job, err := domain.NewJob(ownerID, domain.JobTypeQuiz, uploadParams(5))
	require.NoError(t, err)
	require.NoError(t, h.repo.Create(context.Background(), job))

	// Cancel lands after the history insert but before the job record learns
	// the history ID; the rollback cannot see the row, so the processor must
	// remove it itself.
	h.histories.createHook = func() {
		require.NoError(t, h.service.Cancel(context.Background(), job.ID, ownerID))
	}

	h.service.run(job.ID, []byte("%PDF-fake"))

	got, err := h.repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, CancelReason, got.Error)

	assert.Empty(t, h.histories.records)
	require.Len(t, h.histories.deleted, 1)

	// The document the job created was rolled back by the cancel itself.
	assert.Len(t, h.docs.deleted, 1)
}

func TestCancel_Authorization(t *testing.T) {
	t.Parallel()

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		err := h.service.Cancel(context.Background(), uuid.New(), uuid.New())
		assert.ErrorIs(t, err, store.ErrJobNotFound)
	})

	t.Run("non-owner forbidden", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		job := newPendingJob(t)
		require.NoError(t, h.repo.Create(context.Background(), job))

		err := h.service.Cancel(context.Background(), job.ID, uuid.New())
		assert.ErrorIs(t, err, store.ErrForbidden)
	})

	t.Run("terminal job invalid state", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t)
		job := newPendingJob(t)
		require.NoError(t, h.repo.Create(context.Background(), job))
		require.NoError(t, h.repo.Update(context.Background(), job.ID, func(j *domain.Job) error {
			j.Status = domain.JobStatusCompleted
			return nil
		}))

		err := h.service.Cancel(context.Background(), job.ID, job.OwnerID)
		assert.ErrorIs(t, err, store.ErrInvalidState)
	})
}

func TestRun_RecoversFromPanic(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ownerID := uuid.New()

	job, err := domain.NewJob(ownerID, domain.JobTypeQuiz, domain.JobParams{Count: 5})
	require.NoError(t, err)
	require.NoError(t, h.repo.Create(context.Background(), job))

	// A nil document store access inside execute would be a bug; simulate an
	// unexpected panic with a poisoned pipeline instead.
	h.service.pipeline = panickyPipeline{}

	h.service.run(job.ID, []byte("%PDF-fake"))

	got, err := h.repo.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, "internal error")
}

type panickyPipeline struct{}

func (panickyPipeline) Validate([]byte) (int, error) { panic("boom") }

func (panickyPipeline) Process(context.Context, uuid.UUID, []byte, int) (int, error) {
	panic("boom")
}
