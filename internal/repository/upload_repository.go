package repository

import (
	"rag-chatbot-go/internal/model"

	"gorm.io/gorm"
)

// UploadRepository 接口定义了语料上传记录的数据持久化操作。
// 状态字段只由摄取管道的单一任务写入，这里不做乐观锁。
type UploadRepository interface {
	Create(upload *model.CorpusUpload) error
	FindByID(id uint) (*model.CorpusUpload, error)
	FindByIDForVendor(id, vendorID uint) (*model.CorpusUpload, error)
	FindLatestByVendor(vendorID uint) (*model.CorpusUpload, error)
	ListByVendor(vendorID uint) ([]model.CorpusUpload, error)
	Update(upload *model.CorpusUpload) error
}

type uploadRepository struct {
	db *gorm.DB
}

// NewUploadRepository 创建一个新的 UploadRepository 实例。
func NewUploadRepository(db *gorm.DB) UploadRepository {
	return &uploadRepository{db: db}
}

// Create 在数据库中创建一条新的语料上传记录。
func (r *uploadRepository) Create(upload *model.CorpusUpload) error {
	return r.db.Create(upload).Error
}

// FindByID 根据主键检索语料上传记录。
func (r *uploadRepository) FindByID(id uint) (*model.CorpusUpload, error) {
	var upload model.CorpusUpload
	if err := r.db.First(&upload, id).Error; err != nil {
		return nil, err
	}
	return &upload, nil
}

// FindByIDForVendor 检索属于指定租户的语料上传记录。
func (r *uploadRepository) FindByIDForVendor(id, vendorID uint) (*model.CorpusUpload, error) {
	var upload model.CorpusUpload
	err := r.db.Where("id = ? AND vendor_id = ?", id, vendorID).First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// FindLatestByVendor 返回指定租户最新提交的语料上传记录。
func (r *uploadRepository) FindLatestByVendor(vendorID uint) (*model.CorpusUpload, error) {
	var upload model.CorpusUpload
	err := r.db.Where("vendor_id = ?", vendorID).Order("created_at desc").First(&upload).Error
	if err != nil {
		return nil, err
	}
	return &upload, nil
}

// ListByVendor 返回指定租户的全部语料上传记录，按时间倒序。
func (r *uploadRepository) ListByVendor(vendorID uint) ([]model.CorpusUpload, error) {
	var uploads []model.CorpusUpload
	err := r.db.Where("vendor_id = ?", vendorID).Order("created_at desc").Find(&uploads).Error
	return uploads, err
}

// Update 持久化语料上传记录的状态与错误信息。
func (r *uploadRepository) Update(upload *model.CorpusUpload) error {
	return r.db.Save(upload).Error
}
