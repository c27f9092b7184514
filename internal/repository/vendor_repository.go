// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"rag-chatbot-go/internal/model"

	"gorm.io/gorm"
)

// VendorRepository 接口定义了租户相关的数据持久化操作。
type VendorRepository interface {
	Create(vendor *model.Vendor) error
	FindByID(id uint) (*model.Vendor, error)
	FindAll() ([]model.Vendor, error)
}

type vendorRepository struct {
	db *gorm.DB
}

// NewVendorRepository 创建一个新的 VendorRepository 实例。
func NewVendorRepository(db *gorm.DB) VendorRepository {
	return &vendorRepository{db: db}
}

// Create 在数据库中创建一条新的租户记录。
func (r *vendorRepository) Create(vendor *model.Vendor) error {
	return r.db.Create(vendor).Error
}

// FindByID 根据主键检索租户记录。
func (r *vendorRepository) FindByID(id uint) (*model.Vendor, error) {
	var vendor model.Vendor
	if err := r.db.First(&vendor, id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// FindAll 返回全部租户记录。
func (r *vendorRepository) FindAll() ([]model.Vendor, error) {
	var vendors []model.Vendor
	err := r.db.Order("id asc").Find(&vendors).Error
	return vendors, err
}
