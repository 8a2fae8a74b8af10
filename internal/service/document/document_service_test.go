package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feichai0017/pdf-analyzer/config"
	agentdoc "github.com/feichai0017/pdf-analyzer/internal/agent/document"
	"github.com/feichai0017/pdf-analyzer/internal/models"
	"github.com/feichai0017/pdf-analyzer/pkg/logger"
	"github.com/feichai0017/pdf-analyzer/pkg/queue"
	"github.com/feichai0017/pdf-analyzer/pkg/storage"
	"github.com/feichai0017/pdf-analyzer/pkg/storage/local"
)

// plainTextLayer treats content as pages separated by form feeds.
type plainTextLayer struct{}

type plainPages []string

func (plainTextLayer) Open(content []byte) (agentdoc.TextLayerDocument, error) {
	if bytes.HasPrefix(content, []byte("%BROKEN")) {
		return nil, errors.New("malformed pdf")
	}
	return plainPages(strings.Split(string(content), "\f")), nil
}

func (p plainPages) NumPage() int { return len(p) }

func (p plainPages) ExtractPage(i int) agentdoc.PageContent {
	if strings.TrimSpace(p[i]) == "" {
		return agentdoc.NeedsOCR{Reason: "no text layer"}
	}
	return agentdoc.TextLayer{Text: p[i]}
}

type noRasterizer struct{}

func (noRasterizer) Open([]byte) (agentdoc.RasterDocument, error) {
	return nil, errors.New("renderer unavailable")
}

type noRecognizer struct{}

func (noRecognizer) Name() string { return "none" }

func (noRecognizer) Recognize(context.Context, image.Image, string) (string, error) {
	return "", errors.New("not called")
}

type memQueue struct {
	mu       sync.Mutex
	tasks    []*queue.Task
	statuses map[string][]queue.TaskStatus
	cancels  []string
}

func newMemQueue() *memQueue {
	return &memQueue{statuses: make(map[string][]queue.TaskStatus)}
}

func (q *memQueue) Enqueue(_ context.Context, task *queue.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *memQueue) GetTaskStatus(_ context.Context, id string) (*queue.TaskStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	history := q.statuses[id]
	if len(history) == 0 {
		return nil, fmt.Errorf("%w: %s", queue.ErrTaskNotFound, id)
	}
	last := history[len(history)-1]
	return &last, nil
}

func (q *memQueue) CancelTask(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.cancels = append(q.cancels, id)
	return nil
}

func (q *memQueue) SaveStatus(_ context.Context, status *queue.TaskStatus) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses[status.TaskID] = append(q.statuses[status.TaskID], *status)
	return nil
}

func (q *memQueue) Close() error { return nil }

type testService struct {
	*DocumentService
	queue *memQueue
	store storage.Storage
}

func newTestService(t *testing.T, gen TextGenerator) testService {
	t.Helper()
	log := logger.NewTestLogger()
	store, err := local.NewLocalStorage(t.TempDir(), log)
	require.NoError(t, err)

	extractor := agentdoc.NewExtractor(plainTextLayer{}, noRasterizer{}, noRecognizer{}, log)
	pipeline := config.Default().Pipeline
	pipeline.SizeLimit = 64
	q := newMemQueue()

	svc := NewService(extractor, gen, storage.NewArtifactStore(store, log), q, log, &ServiceConfig{Pipeline: pipeline})
	return testService{DocumentService: svc, queue: q, store: store}
}

func TestStreamBatch_WritesArtifactsAndReport(t *testing.T) {
	svc := newTestService(t, &fakeGenerator{})
	ctx := context.Background()

	docs := []models.Document{
		models.NewDocument("memo.pdf", []byte("Hello   world\fFoo\tBar")),
		models.NewDocument("broken.pdf", []byte("%BROKEN")),
		models.NewDocument("huge.pdf", []byte(strings.Repeat("x", 65))),
	}
	batchID, events := svc.StreamBatch(ctx, docs)
	require.NotEmpty(t, batchID)

	var outcomes []models.BatchItemOutcome
	for ev := range events {
		outcomes = append(outcomes, ev.Outcome)
	}
	require.Len(t, outcomes, 3)

	memo := outcomes[0]
	assert.Equal(t, models.StatusCompleted, memo.Status)
	require.NotNil(t, memo.Extraction)
	assert.Equal(t, batchID+"/memo.txt", memo.Extraction.Transcript)

	transcript, err := svc.ReadArtifact(ctx, batchID+"/memo.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello   world\nFoo\tBar", transcript)
	cleaned, err := svc.ReadArtifact(ctx, batchID+"/memo_cleaned.txt")
	require.NoError(t, err)
	assert.Equal(t, "Hello world\nFoo Bar", cleaned)
	keywords, err := svc.ReadArtifact(ctx, batchID+"/memo_keywords.txt")
	require.NoError(t, err)
	assert.Equal(t, "basel\ncapital\nliquidity", keywords)

	assert.Equal(t, models.StatusFailed, outcomes[1].Status)
	assert.ErrorIs(t, outcomes[1].Err, models.ErrExtraction)
	assert.ErrorIs(t, outcomes[2].Err, models.ErrSizeLimitExceeded)

	report, err := svc.GetBatchReport(ctx, batchID)
	require.NoError(t, err)
	assert.Equal(t, batchID, report.TaskID)
	assert.Equal(t, string(models.StatusPartial), report.Status)
	assert.Equal(t, 3, report.Summary.Total)
	assert.Equal(t, 1, report.Summary.Completed)
	assert.Equal(t, 2, report.Summary.Failed)
}

func TestStreamBatch_EarlyBreakWritesNoReport(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	batchID, events := svc.StreamBatch(ctx, []models.Document{
		models.NewDocument("a.pdf", []byte("a")),
		models.NewDocument("b.pdf", []byte("b")),
	})
	for range events {
		break
	}

	_, err := svc.GetBatchReport(ctx, batchID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func multipartFiles(t *testing.T, files map[string]string, order []string) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range order {
		w, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = w.Write([]byte(files[name]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["files"]
}

func TestSubmitAndHandleBatch(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	files := multipartFiles(t, map[string]string{
		"a.pdf":   "first page\fsecond page",
		"big.pdf": strings.Repeat("y", 100),
	}, []string{"a.pdf", "big.pdf"})

	task, err := svc.SubmitBatch(ctx, files)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, task.Status)
	assert.Equal(t, 2, task.Total)

	require.Len(t, svc.queue.tasks, 1)
	queued := svc.queue.tasks[0]
	assert.Equal(t, queue.TaskTypeBatchProcess, queued.Type)
	require.Len(t, queued.Files, 2)
	assert.NotEmpty(t, queued.Files[0].Key)
	assert.Empty(t, queued.Files[1].Key, "oversized uploads are not staged")
	assert.EqualValues(t, 100, queued.Files[1].Size)

	status, err := svc.GetBatchStatus(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, status.Status)

	require.NoError(t, svc.HandleBatch(ctx, queued))

	history := svc.queue.statuses[task.ID]
	require.GreaterOrEqual(t, len(history), 3)
	final := history[len(history)-1]
	assert.Equal(t, string(models.StatusPartial), final.Status)
	assert.Equal(t, 1.0, final.Progress)
	assert.Equal(t, 2, final.Completed)
	for _, s := range history[1 : len(history)-1] {
		assert.Equal(t, string(models.StatusRunning), s.Status)
		assert.Less(t, s.Progress, 1.0)
	}

	report, err := svc.GetBatchReport(ctx, task.ID)
	require.NoError(t, err)
	require.Len(t, report.Documents, 2)
	assert.Equal(t, "completed", report.Documents[0].Status)
	assert.Equal(t, 2, report.Documents[0].PageCount)
	assert.Equal(t, "size exceeded", report.Documents[1].Error)

	cleaned, err := svc.ReadArtifact(ctx, task.ID+"/a_cleaned.txt")
	require.NoError(t, err)
	assert.Equal(t, "first page\nsecond page", cleaned)

	_, err = svc.store.Get(ctx, queued.Files[0].Key)
	assert.True(t, storage.IsNotFound(err), "staged upload is removed after the batch")
}

func TestHandleBatch_MissingStagedFileFailsOnlyThatDocument(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.store.Store(ctx, strings.NewReader("present page"), "uploads/b2/001_good.pdf")
	require.NoError(t, err)

	require.NoError(t, svc.HandleBatch(ctx, &queue.Task{
		ID: "b2",
		Files: []queue.FileRef{
			{Name: "gone.pdf", Key: "uploads/b2/000_gone.pdf", Size: 3},
			{Name: "good.pdf", Key: "uploads/b2/001_good.pdf", Size: 12},
		},
	}))

	status, err := svc.GetBatchStatus(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartial, status.Status)
	assert.Equal(t, 1.0, status.Progress)

	report, err := svc.GetBatchReport(ctx, "b2")
	require.NoError(t, err)
	require.Len(t, report.Documents, 2)
	assert.Equal(t, "failed", report.Documents[0].Status)
	assert.NotEmpty(t, report.Documents[0].Error)
	assert.Equal(t, "completed", report.Documents[1].Status)

	cleaned, err := svc.ReadArtifact(ctx, "b2/good_cleaned.txt")
	require.NoError(t, err)
	assert.Equal(t, "present page", cleaned)
}

func TestHandleBatch_InvalidTask(t *testing.T) {
	svc := newTestService(t, nil)
	assert.Error(t, svc.HandleBatch(context.Background(), nil))
	assert.Error(t, svc.HandleBatch(context.Background(), &queue.Task{}))
}

func TestGetBatchStatus_Unknown(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.GetBatchStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelBatch(t *testing.T) {
	svc := newTestService(t, nil)
	require.NoError(t, svc.CancelBatch(context.Background(), "b1"))
	assert.Equal(t, []string{"b1"}, svc.queue.cancels)
}

func TestReadArtifact_Missing(t *testing.T) {
	svc := newTestService(t, nil)
	_, err := svc.ReadArtifact(context.Background(), "b/none.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAsyncOperationsWithoutQueue(t *testing.T) {
	log := logger.NewTestLogger()
	store, err := local.NewLocalStorage(t.TempDir(), log)
	require.NoError(t, err)
	extractor := agentdoc.NewExtractor(plainTextLayer{}, noRasterizer{}, noRecognizer{}, log)
	svc := NewService(extractor, nil, storage.NewArtifactStore(store, log), nil, log, nil)
	ctx := context.Background()

	_, err = svc.SubmitBatch(ctx, nil)
	assert.ErrorIs(t, err, ErrQueueDisabled)
	_, err = svc.GetBatchStatus(ctx, "x")
	assert.ErrorIs(t, err, ErrQueueDisabled)
	assert.ErrorIs(t, svc.CancelBatch(ctx, "x"), ErrQueueDisabled)
}
