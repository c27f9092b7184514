package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"rag-chatbot-go/internal/corpus"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/repository"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/storage"
	"rag-chatbot-go/pkg/tasks"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// maxCSVSize 限制单个语料文件的大小，超过视为非法请求。
const maxCSVSize = 10 << 20

// TaskProducer 把摄取任务投递到外部任务队列并返回不透明的消息句柄。
type TaskProducer interface {
	Produce(ctx context.Context, key string, task tasks.IngestionTask) error
}

// UploadService 定义了语料上传与摄取任务编排的接口。
type UploadService interface {
	// UploadCSV 受理一份 CSV 文件：前置校验表头、写入对象存储、
	// 落库一条 pending 状态的上传记录。受理不触发摄取。
	UploadCSV(ctx context.Context, vendorID uint, filename string, r io.Reader) (*model.CorpusUpload, error)
	// TriggerIngest 为指定上传创建一条 queued 任务并投递到队列。
	// uploadID 为 nil 时选择该租户最新的一次上传。
	TriggerIngest(ctx context.Context, vendorID uint, uploadID *uint) (*model.IngestionJob, error)
	GetUpload(vendorID, uploadID uint) (*model.CorpusUpload, error)
	// ListJobs 返回某次上传的全部摄取尝试，按时间倒序。
	ListJobs(vendorID, uploadID uint) ([]model.IngestionJob, error)
	GetJob(vendorID, jobID uint) (*model.IngestionJob, error)
	ListUploads(vendorID uint) ([]model.CorpusUpload, error)
	// ListFaqs 返回该租户最近一次摄取成功的语料的全部问答行。
	ListFaqs(ctx context.Context, vendorID uint) ([]corpus.Row, error)
}

type uploadService struct {
	vendorRepo repository.VendorRepository
	uploadRepo repository.UploadRepository
	jobRepo    repository.IngestionJobRepository
	objects    storage.ObjectStore
	producer   TaskProducer
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(
	vendorRepo repository.VendorRepository,
	uploadRepo repository.UploadRepository,
	jobRepo repository.IngestionJobRepository,
	objects storage.ObjectStore,
	producer TaskProducer,
) UploadService {
	return &uploadService{
		vendorRepo: vendorRepo,
		uploadRepo: uploadRepo,
		jobRepo:    jobRepo,
		objects:    objects,
		producer:   producer,
	}
}

// UploadCSV 受理一份语料文件。
func (s *uploadService) UploadCSV(ctx context.Context, vendorID uint, filename string, r io.Reader) (*model.CorpusUpload, error) {
	if err := s.ensureVendor(vendorID); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, maxCSVSize+1))
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}
	if len(data) > maxCSVSize {
		return nil, errors.New("CSV file exceeds the 10MB size limit")
	}

	// 受理时只做表头前置校验，行内容的问题留给摄取阶段
	if err := corpus.ValidateHeader(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("uploads/vendor_%d/%s%s", vendorID, uuid.New().String(), filepath.Ext(filename))
	if err := s.objects.Put(ctx, objectName, bytes.NewReader(data), int64(len(data))); err != nil {
		return nil, fmt.Errorf("写入对象存储失败: %w", err)
	}

	upload := &model.CorpusUpload{
		VendorID:   vendorID,
		Filename:   filepath.Base(filename),
		ObjectName: objectName,
		Status:     model.UploadStatusPending,
	}
	if err := s.uploadRepo.Create(upload); err != nil {
		return nil, err
	}

	log.Infof("[UploadService] 语料文件已受理, vendor: %d, upload: %d, object: %s", vendorID, upload.ID, objectName)
	return upload, nil
}

// TriggerIngest 创建并投递一条摄取任务。
func (s *uploadService) TriggerIngest(ctx context.Context, vendorID uint, uploadID *uint) (*model.IngestionJob, error) {
	if err := s.ensureVendor(vendorID); err != nil {
		return nil, err
	}

	upload, err := s.resolveUpload(vendorID, uploadID)
	if err != nil {
		return nil, err
	}

	// 消息句柄在投递前生成，同时用作队列消息的 key
	job := &model.IngestionJob{
		UploadID:       upload.ID,
		QueueMessageID: uuid.New().String(),
		Status:         model.JobStatusQueued,
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	task := tasks.IngestionTask{UploadID: upload.ID, JobID: job.ID, VendorID: vendorID}
	if err := s.producer.Produce(ctx, job.QueueMessageID, task); err != nil {
		// 投递失败时任务已落库，就地标记为 failed，不留下永远 queued 的僵尸记录
		job.Status = model.JobStatusFailed
		job.ErrorMessage = fmt.Sprintf("failed to enqueue ingestion task: %v", err)
		if uerr := s.jobRepo.Update(job); uerr != nil {
			log.Errorf("[UploadService] 标记投递失败任务出错: %v", uerr)
		}
		return nil, fmt.Errorf("投递摄取任务失败: %w", err)
	}

	log.Infof("[UploadService] 摄取任务已投递, vendor: %d, upload: %d, job: %d, message: %s",
		vendorID, upload.ID, job.ID, job.QueueMessageID)
	return job, nil
}

// GetUpload 返回属于指定租户的上传记录。
func (s *uploadService) GetUpload(vendorID, uploadID uint) (*model.CorpusUpload, error) {
	upload, err := s.uploadRepo.FindByIDForVendor(uploadID, vendorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	return upload, nil
}

// ListJobs 返回属于指定租户的上传记录的全部摄取尝试。
func (s *uploadService) ListJobs(vendorID, uploadID uint) ([]model.IngestionJob, error) {
	if _, err := s.GetUpload(vendorID, uploadID); err != nil {
		return nil, err
	}
	return s.jobRepo.ListByUpload(uploadID)
}

// GetJob 返回摄取任务记录，并校验其归属于指定租户。
func (s *uploadService) GetJob(vendorID, jobID uint) (*model.IngestionJob, error) {
	job, err := s.jobRepo.FindByID(jobID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := s.uploadRepo.FindByIDForVendor(job.UploadID, vendorID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 跨租户的任务 ID 一律视为不存在
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListUploads 返回该租户的全部上传记录。
func (s *uploadService) ListUploads(vendorID uint) ([]model.CorpusUpload, error) {
	if err := s.ensureVendor(vendorID); err != nil {
		return nil, err
	}
	return s.uploadRepo.ListByVendor(vendorID)
}

// ListFaqs 返回该租户当前生效的问答语料。
func (s *uploadService) ListFaqs(ctx context.Context, vendorID uint) ([]corpus.Row, error) {
	if err := s.ensureVendor(vendorID); err != nil {
		return nil, err
	}

	uploads, err := s.uploadRepo.ListByVendor(vendorID)
	if err != nil {
		return nil, err
	}

	// 取最近一次摄取完成的上传；没有已完成的语料时返回空序列
	for _, upload := range uploads {
		if upload.Status != model.UploadStatusCompleted {
			continue
		}
		reader, err := s.objects.Fetch(ctx, upload.ObjectName)
		if err != nil {
			return nil, fmt.Errorf("读取语料文件失败: %w", err)
		}
		defer reader.Close()
		return corpus.Load(reader)
	}
	return []corpus.Row{}, nil
}

// ensureVendor 校验租户存在，不存在时返回 ErrVendorNotFound。
func (s *uploadService) ensureVendor(vendorID uint) error {
	_, err := s.vendorRepo.FindByID(vendorID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrVendorNotFound
	}
	return err
}

// resolveUpload 定位要摄取的上传记录。
func (s *uploadService) resolveUpload(vendorID uint, uploadID *uint) (*model.CorpusUpload, error) {
	var (
		upload *model.CorpusUpload
		err    error
	)
	if uploadID != nil {
		upload, err = s.uploadRepo.FindByIDForVendor(*uploadID, vendorID)
	} else {
		upload, err = s.uploadRepo.FindLatestByVendor(vendorID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUploadNotFound
	}
	if err != nil {
		return nil, err
	}
	return upload, nil
}
