package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"rag-chatbot-go/internal/corpus"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const validUploadCSV = "question,answer\nWhat are your hours?,9-5 Mon-Fri\nDo you ship abroad?,Yes to EU\n"

type fakeVendorRepo struct {
	vendors map[uint]*model.Vendor
}

func (f *fakeVendorRepo) Create(vendor *model.Vendor) error {
	vendor.ID = uint(len(f.vendors) + 1)
	f.vendors[vendor.ID] = vendor
	return nil
}

func (f *fakeVendorRepo) FindByID(id uint) (*model.Vendor, error) {
	if v, ok := f.vendors[id]; ok {
		return v, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeVendorRepo) FindAll() ([]model.Vendor, error) {
	var out []model.Vendor
	for _, v := range f.vendors {
		out = append(out, *v)
	}
	return out, nil
}

type fakeUploadRepo struct {
	uploads map[uint]*model.CorpusUpload
	nextID  uint
}

func (f *fakeUploadRepo) Create(upload *model.CorpusUpload) error {
	f.nextID++
	upload.ID = f.nextID
	upload.CreatedAt = time.Now()
	f.uploads[upload.ID] = upload
	return nil
}

func (f *fakeUploadRepo) FindByID(id uint) (*model.CorpusUpload, error) {
	if u, ok := f.uploads[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeUploadRepo) FindByIDForVendor(id, vendorID uint) (*model.CorpusUpload, error) {
	u, ok := f.uploads[id]
	if !ok || u.VendorID != vendorID {
		return nil, gorm.ErrRecordNotFound
	}
	return u, nil
}

func (f *fakeUploadRepo) FindLatestByVendor(vendorID uint) (*model.CorpusUpload, error) {
	var latest *model.CorpusUpload
	for _, u := range f.uploads {
		if u.VendorID != vendorID {
			continue
		}
		if latest == nil || u.CreatedAt.After(latest.CreatedAt) {
			latest = u
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return latest, nil
}

func (f *fakeUploadRepo) ListByVendor(vendorID uint) ([]model.CorpusUpload, error) {
	var out []model.CorpusUpload
	for id := f.nextID; id >= 1; id-- {
		if u, ok := f.uploads[id]; ok && u.VendorID == vendorID {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (f *fakeUploadRepo) Update(upload *model.CorpusUpload) error {
	f.uploads[upload.ID] = upload
	return nil
}

type fakeJobRepo struct {
	jobs   map[uint]*model.IngestionJob
	nextID uint
}

func (f *fakeJobRepo) Create(job *model.IngestionJob) error {
	f.nextID++
	job.ID = f.nextID
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeJobRepo) FindByID(id uint) (*model.IngestionJob, error) {
	if j, ok := f.jobs[id]; ok {
		return j, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeJobRepo) ListByUpload(uploadID uint) ([]model.IngestionJob, error) {
	var out []model.IngestionJob
	for _, j := range f.jobs {
		if j.UploadID == uploadID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (f *fakeJobRepo) Update(job *model.IngestionJob) error {
	f.jobs[job.ID] = job
	return nil
}

type fakeObjects struct {
	stored map[string][]byte
}

func (f *fakeObjects) Put(ctx context.Context, objectName string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.stored[objectName] = data
	return nil
}

func (f *fakeObjects) Fetch(ctx context.Context, objectName string) (io.ReadCloser, error) {
	data, ok := f.stored[objectName]
	if !ok {
		return nil, errors.New("object not found: " + objectName)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeProducer struct {
	keys  []string
	tasks []tasks.IngestionTask
	err   error
}

func (f *fakeProducer) Produce(ctx context.Context, key string, task tasks.IngestionTask) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	f.tasks = append(f.tasks, task)
	return nil
}

type uploadFixture struct {
	svc      UploadService
	vendors  *fakeVendorRepo
	uploads  *fakeUploadRepo
	jobs     *fakeJobRepo
	objects  *fakeObjects
	producer *fakeProducer
}

func newUploadFixture() *uploadFixture {
	vendors := &fakeVendorRepo{vendors: map[uint]*model.Vendor{
		1: {ID: 1, Name: "Acme", Slug: "acme"},
	}}
	uploads := &fakeUploadRepo{uploads: map[uint]*model.CorpusUpload{}}
	jobs := &fakeJobRepo{jobs: map[uint]*model.IngestionJob{}}
	objects := &fakeObjects{stored: map[string][]byte{}}
	producer := &fakeProducer{}
	svc := NewUploadService(vendors, uploads, jobs, objects, producer)
	return &uploadFixture{svc: svc, vendors: vendors, uploads: uploads, jobs: jobs, objects: objects, producer: producer}
}

func TestUploadCSVAcceptsValidFile(t *testing.T) {
	f := newUploadFixture()

	upload, err := f.svc.UploadCSV(context.Background(), 1, "faqs.csv", strings.NewReader(validUploadCSV))

	require.NoError(t, err)
	assert.Equal(t, model.UploadStatusPending, upload.Status)
	assert.Equal(t, "faqs.csv", upload.Filename)
	assert.Contains(t, upload.ObjectName, "uploads/vendor_1/")
	assert.Equal(t, []byte(validUploadCSV), f.objects.stored[upload.ObjectName])
	assert.Empty(t, f.producer.tasks, "accepting an upload must not enqueue ingestion")
}

func TestUploadCSVRejectsMissingColumn(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadCSV(context.Background(), 1, "faqs.csv", strings.NewReader("question,text\nq1,a1\n"))

	var schemaErr *corpus.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.Empty(t, f.objects.stored, "rejected files must not reach object storage")
	assert.Empty(t, f.uploads.uploads)
}

func TestUploadCSVUnknownVendor(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.UploadCSV(context.Background(), 99, "faqs.csv", strings.NewReader(validUploadCSV))

	assert.ErrorIs(t, err, ErrVendorNotFound)
}

func TestTriggerIngestEnqueuesJob(t *testing.T) {
	f := newUploadFixture()
	upload, err := f.svc.UploadCSV(context.Background(), 1, "faqs.csv", strings.NewReader(validUploadCSV))
	require.NoError(t, err)

	uploadID := upload.ID
	job, err := f.svc.TriggerIngest(context.Background(), 1, &uploadID)

	require.NoError(t, err)
	assert.Equal(t, model.JobStatusQueued, job.Status)
	assert.NotEmpty(t, job.QueueMessageID)
	require.Len(t, f.producer.tasks, 1)
	assert.Equal(t, tasks.IngestionTask{UploadID: upload.ID, JobID: job.ID, VendorID: 1}, f.producer.tasks[0])
	assert.Equal(t, job.QueueMessageID, f.producer.keys[0])
}

func TestTriggerIngestDefaultsToLatestUpload(t *testing.T) {
	f := newUploadFixture()
	_, err := f.svc.UploadCSV(context.Background(), 1, "old.csv", strings.NewReader(validUploadCSV))
	require.NoError(t, err)
	newer, err := f.svc.UploadCSV(context.Background(), 1, "new.csv", strings.NewReader(validUploadCSV))
	require.NoError(t, err)
	// 保证两条记录的创建时间可区分
	newer.CreatedAt = newer.CreatedAt.Add(time.Second)

	job, err := f.svc.TriggerIngest(context.Background(), 1, nil)

	require.NoError(t, err)
	assert.Equal(t, newer.ID, job.UploadID)
}

func TestTriggerIngestUnknownUpload(t *testing.T) {
	f := newUploadFixture()

	uploadID := uint(42)
	_, err := f.svc.TriggerIngest(context.Background(), 1, &uploadID)

	assert.ErrorIs(t, err, ErrUploadNotFound)
	assert.Empty(t, f.jobs.jobs, "no job record may exist for a missing upload")
}

func TestTriggerIngestNoUploadsYet(t *testing.T) {
	f := newUploadFixture()

	_, err := f.svc.TriggerIngest(context.Background(), 1, nil)

	assert.ErrorIs(t, err, ErrUploadNotFound)
}

func TestTriggerIngestProduceFailureMarksJobFailed(t *testing.T) {
	f := newUploadFixture()
	upload, err := f.svc.UploadCSV(context.Background(), 1, "faqs.csv", strings.NewReader(validUploadCSV))
	require.NoError(t, err)
	f.producer.err = errors.New("broker unreachable")

	uploadID := upload.ID
	_, err = f.svc.TriggerIngest(context.Background(), 1, &uploadID)

	require.Error(t, err)
	require.Len(t, f.jobs.jobs, 1)
	for _, job := range f.jobs.jobs {
		assert.Equal(t, model.JobStatusFailed, job.Status)
		assert.Contains(t, job.ErrorMessage, "broker unreachable")
	}
}

func TestListJobsReturnsAttemptHistory(t *testing.T) {
	f := newUploadFixture()
	upload, err := f.svc.UploadCSV(context.Background(), 1, "faqs.csv", strings.NewReader(validUploadCSV))
	require.NoError(t, err)
	uploadID := upload.ID
	_, err = f.svc.TriggerIngest(context.Background(), 1, &uploadID)
	require.NoError(t, err)
	_, err = f.svc.TriggerIngest(context.Background(), 1, &uploadID)
	require.NoError(t, err)

	jobs, err := f.svc.ListJobs(1, uploadID)

	require.NoError(t, err)
	assert.Len(t, jobs, 2)
}

func TestGetJobRejectsCrossVendorAccess(t *testing.T) {
	f := newUploadFixture()
	f.vendors.vendors[2] = &model.Vendor{ID: 2, Name: "Beta", Slug: "beta"}
	upload, err := f.svc.UploadCSV(context.Background(), 1, "faqs.csv", strings.NewReader(validUploadCSV))
	require.NoError(t, err)
	uploadID := upload.ID
	job, err := f.svc.TriggerIngest(context.Background(), 1, &uploadID)
	require.NoError(t, err)

	_, err = f.svc.GetJob(2, job.ID)

	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestListFaqsReturnsCompletedCorpus(t *testing.T) {
	f := newUploadFixture()
	upload, err := f.svc.UploadCSV(context.Background(), 1, "faqs.csv", strings.NewReader(validUploadCSV))
	require.NoError(t, err)
	upload.Status = model.UploadStatusCompleted

	rows, err := f.svc.ListFaqs(context.Background(), 1)

	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, corpus.Row{Question: "What are your hours?", Answer: "9-5 Mon-Fri"}, rows[0])
}

func TestListFaqsEmptyWhenNothingCompleted(t *testing.T) {
	f := newUploadFixture()
	_, err := f.svc.UploadCSV(context.Background(), 1, "faqs.csv", strings.NewReader(validUploadCSV))
	require.NoError(t, err)

	rows, err := f.svc.ListFaqs(context.Background(), 1)

	require.NoError(t, err)
	assert.Empty(t, rows)
}
