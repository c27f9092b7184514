package repository

import (
	"rag-chatbot-go/internal/model"

	"gorm.io/gorm"
)

// IngestionJobRepository 接口定义了摄取任务记录的数据持久化操作。
type IngestionJobRepository interface {
	Create(job *model.IngestionJob) error
	FindByID(id uint) (*model.IngestionJob, error)
	ListByUpload(uploadID uint) ([]model.IngestionJob, error)
	Update(job *model.IngestionJob) error
}

type ingestionJobRepository struct {
	db *gorm.DB
}

// NewIngestionJobRepository 创建一个新的 IngestionJobRepository 实例。
func NewIngestionJobRepository(db *gorm.DB) IngestionJobRepository {
	return &ingestionJobRepository{db: db}
}

// Create 在数据库中创建一条新的摄取任务记录，初始状态为 queued。
func (r *ingestionJobRepository) Create(job *model.IngestionJob) error {
	return r.db.Create(job).Error
}

// FindByID 根据主键检索摄取任务记录。
func (r *ingestionJobRepository) FindByID(id uint) (*model.IngestionJob, error) {
	var job model.IngestionJob
	if err := r.db.First(&job, id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListByUpload 返回某条上传记录的全部摄取尝试，按时间倒序。
func (r *ingestionJobRepository) ListByUpload(uploadID uint) ([]model.IngestionJob, error) {
	var jobs []model.IngestionJob
	err := r.db.Where("upload_id = ?", uploadID).Order("created_at desc").Find(&jobs).Error
	return jobs, err
}

// Update 持久化摄取任务记录的状态、时间戳与错误信息。
func (r *ingestionJobRepository) Update(job *model.IngestionJob) error {
	return r.db.Save(job).Error
}
