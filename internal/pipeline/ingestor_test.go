package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/internal/corpus"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/pkg/es"
	"rag-chatbot-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeVectorStore struct {
	upserted    []es.Record
	existing    map[string]bool
	upsertErr   error
	ensureErr   error
	collections map[string]int
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{existing: map[string]bool{}, collections: map[string]int{}}
}

func (f *fakeVectorStore) EnsureCollection(ctx context.Context, vendorID string) (string, error) {
	if f.ensureErr != nil {
		return "", f.ensureErr
	}
	name := es.CollectionName(vendorID)
	f.collections[name]++
	return name, nil
}

func (f *fakeVectorStore) Upsert(ctx context.Context, collection string, records []es.Record) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeVectorStore) Exists(ctx context.Context, collection, id string) (bool, error) {
	return f.existing[id], nil
}

type fakeObjectStore struct {
	content  string
	fetchErr error
}

func (f *fakeObjectStore) Put(ctx context.Context, objectName string, r io.Reader, size int64) error {
	return nil
}

func (f *fakeObjectStore) Fetch(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

type fakeUploadRepo struct {
	uploads map[uint]*model.CorpusUpload
}

func (f *fakeUploadRepo) Create(u *model.CorpusUpload) error { f.uploads[u.ID] = u; return nil }
func (f *fakeUploadRepo) FindByID(id uint) (*model.CorpusUpload, error) {
	u, ok := f.uploads[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return u, nil
}
func (f *fakeUploadRepo) FindByIDForVendor(id, vendorID uint) (*model.CorpusUpload, error) {
	return f.FindByID(id)
}
func (f *fakeUploadRepo) FindLatestByVendor(vendorID uint) (*model.CorpusUpload, error) {
	return nil, errors.New("record not found")
}
func (f *fakeUploadRepo) ListByVendor(vendorID uint) ([]model.CorpusUpload, error) { return nil, nil }
func (f *fakeUploadRepo) Update(u *model.CorpusUpload) error                       { f.uploads[u.ID] = u; return nil }

type fakeJobRepo struct {
	jobs map[uint]*model.IngestionJob
}

func (f *fakeJobRepo) Create(j *model.IngestionJob) error { f.jobs[j.ID] = j; return nil }
func (f *fakeJobRepo) FindByID(id uint) (*model.IngestionJob, error) {
	j, ok := f.jobs[id]
	if !ok {
		return nil, errors.New("record not found")
	}
	return j, nil
}
func (f *fakeJobRepo) ListByUpload(uploadID uint) ([]model.IngestionJob, error) { return nil, nil }
func (f *fakeJobRepo) Update(j *model.IngestionJob) error                       { f.jobs[j.ID] = j; return nil }

// --- helpers ---

type fixture struct {
	ingestor *Ingestor
	store    *fakeVectorStore
	objects  *fakeObjectStore
	upload   *model.CorpusUpload
	job      *model.IngestionJob
	task     tasks.IngestionTask
}

func newFixture(csvContent, onConflict string) *fixture {
	store := newFakeVectorStore()
	objects := &fakeObjectStore{content: csvContent}
	upload := &model.CorpusUpload{ID: 3, VendorID: 1, Filename: "faq.csv", ObjectName: "uploads/vendor_1/faq.csv", Status: model.UploadStatusPending}
	job := &model.IngestionJob{ID: 5, UploadID: 3, Status: model.JobStatusQueued}
	uploadRepo := &fakeUploadRepo{uploads: map[uint]*model.CorpusUpload{upload.ID: upload}}
	jobRepo := &fakeJobRepo{jobs: map[uint]*model.IngestionJob{job.ID: job}}

	return &fixture{
		ingestor: NewIngestor(store, objects, uploadRepo, jobRepo, config.IngestConfig{OnConflict: onConflict}),
		store:    store,
		objects:  objects,
		upload:   upload,
		job:      job,
		task:     tasks.IngestionTask{UploadID: upload.ID, JobID: job.ID, VendorID: upload.VendorID},
	}
}

const validCSV = "question,answer\nWhat are your hours?,9-5\nDo you ship?,Yes\n"

// --- tests ---

func TestProcessSuccess(t *testing.T) {
	f := newFixture(validCSV, "")

	err := f.ingestor.Process(context.Background(), f.task)
	require.NoError(t, err)

	// N 行语料产生 N 条记录，ID 形如 {vendor}_upload{U}_id_{0..N-1}
	require.Len(t, f.store.upserted, 2)
	assert.Equal(t, "1_upload3_id_0", f.store.upserted[0].ID)
	assert.Equal(t, "1_upload3_id_1", f.store.upserted[1].ID)
	assert.Equal(t, "What are your hours?", f.store.upserted[0].Question)
	assert.Equal(t, "9-5", f.store.upserted[0].Answer)

	assert.Equal(t, model.UploadStatusCompleted, f.upload.Status)
	assert.Equal(t, model.JobStatusFinished, f.job.Status)
	require.NotNil(t, f.job.StartedAt)
	require.NotNil(t, f.job.FinishedAt)
	assert.False(t, f.job.FinishedAt.Before(*f.job.StartedAt))
	assert.Empty(t, f.job.ErrorMessage)
}

func TestProcessMissingColumnFailsBothRecords(t *testing.T) {
	f := newFixture("q,a\nfoo,bar\n", "")

	err := f.ingestor.Process(context.Background(), f.task)
	require.Error(t, err)

	var schemaErr *corpus.SchemaValidationError
	assert.True(t, errors.As(err, &schemaErr))

	assert.Equal(t, model.UploadStatusFailed, f.upload.Status)
	assert.Equal(t, model.JobStatusFailed, f.job.Status)
	assert.NotEmpty(t, f.upload.ErrorMessage)
	assert.Equal(t, f.upload.ErrorMessage, f.job.ErrorMessage)
	require.NotNil(t, f.job.FinishedAt)
	// 零条记录写入集合
	assert.Empty(t, f.store.upserted)
}

func TestProcessStorageFailure(t *testing.T) {
	f := newFixture(validCSV, "")
	f.store.upsertErr = &es.StorageError{Op: "upsert", Err: errors.New("connection refused")}

	err := f.ingestor.Process(context.Background(), f.task)
	require.Error(t, err)

	var storageErr *es.StorageError
	assert.True(t, errors.As(err, &storageErr))
	assert.Equal(t, model.UploadStatusFailed, f.upload.Status)
	assert.Equal(t, model.JobStatusFailed, f.job.Status)
	assert.Contains(t, f.job.ErrorMessage, "connection refused")
}

func TestProcessFetchFailure(t *testing.T) {
	f := newFixture("", "")
	f.objects.fetchErr = errors.New("object does not exist")

	err := f.ingestor.Process(context.Background(), f.task)
	require.Error(t, err)
	assert.Equal(t, model.UploadStatusFailed, f.upload.Status)
	assert.Equal(t, model.JobStatusFailed, f.job.Status)
	assert.Contains(t, f.job.ErrorMessage, "object does not exist")
}

func TestProcessEmptyDataRowsFinishes(t *testing.T) {
	f := newFixture("question,answer\n", "")

	err := f.ingestor.Process(context.Background(), f.task)
	require.NoError(t, err)
	assert.Empty(t, f.store.upserted)
	assert.Equal(t, model.UploadStatusCompleted, f.upload.Status)
	assert.Equal(t, model.JobStatusFinished, f.job.Status)
}

func TestProcessRejectPolicyOnDuplicate(t *testing.T) {
	f := newFixture(validCSV, ConflictReject)
	f.store.existing["1_upload3_id_0"] = true

	err := f.ingestor.Process(context.Background(), f.task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateBatch))
	assert.Empty(t, f.store.upserted)
	assert.Equal(t, model.JobStatusFailed, f.job.Status)
}

func TestProcessRejectPolicyFirstIngestion(t *testing.T) {
	f := newFixture(validCSV, ConflictReject)

	err := f.ingestor.Process(context.Background(), f.task)
	require.NoError(t, err)
	assert.Len(t, f.store.upserted, 2)
}

func TestProcessAppendNewBatchVersionsIDs(t *testing.T) {
	f := newFixture(validCSV, ConflictAppendNewBatch)

	err := f.ingestor.Process(context.Background(), f.task)
	require.NoError(t, err)
	require.Len(t, f.store.upserted, 2)
	assert.Equal(t, fmt.Sprintf("1_upload3_id_0_job%d", f.job.ID), f.store.upserted[0].ID)
	assert.Equal(t, fmt.Sprintf("1_upload3_id_1_job%d", f.job.ID), f.store.upserted[1].ID)
}

func TestProcessRedeliveryToTerminalJobFailsFast(t *testing.T) {
	f := newFixture(validCSV, "")
	f.job.Status = model.JobStatusFailed
	f.upload.Status = model.UploadStatusFailed

	err := f.ingestor.Process(context.Background(), f.task)
	require.Error(t, err)
	// 终态不允许再转移，也不应有任何写入
	assert.Equal(t, model.JobStatusFailed, f.job.Status)
	assert.Empty(t, f.store.upserted)
}

func TestProcessCreatesCollectionOncePerVendor(t *testing.T) {
	f := newFixture(validCSV, "")

	require.NoError(t, f.ingestor.Process(context.Background(), f.task))
	assert.Equal(t, 1, f.store.collections["faqs_vendor_1"])
}
