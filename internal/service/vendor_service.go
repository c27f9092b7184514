package service

import (
	"errors"
	"strings"

	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/repository"

	"gorm.io/gorm"
)

// 领域级别的未找到错误，handler 层据此返回 404。
var (
	ErrVendorNotFound = errors.New("vendor not found")
	ErrUploadNotFound = errors.New("upload not found")
	ErrJobNotFound    = errors.New("ingestion job not found")
)

// VendorService 定义了租户管理的接口。
type VendorService interface {
	CreateVendor(name string) (*model.Vendor, error)
	GetVendor(id uint) (*model.Vendor, error)
	ListVendors() ([]model.Vendor, error)
}

type vendorService struct {
	vendorRepo repository.VendorRepository
}

// NewVendorService 创建一个新的 VendorService 实例。
func NewVendorService(vendorRepo repository.VendorRepository) VendorService {
	return &vendorService{vendorRepo: vendorRepo}
}

// CreateVendor 创建新租户并生成其 slug。
func (s *vendorService) CreateVendor(name string) (*model.Vendor, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("vendor name is required")
	}

	vendor := &model.Vendor{
		Name: name,
		Slug: slugify(name),
	}
	if err := s.vendorRepo.Create(vendor); err != nil {
		return nil, err
	}
	return vendor, nil
}

// GetVendor 根据主键检索租户，不存在时返回 ErrVendorNotFound。
func (s *vendorService) GetVendor(id uint) (*model.Vendor, error) {
	vendor, err := s.vendorRepo.FindByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, err
	}
	return vendor, nil
}

// ListVendors 返回全部租户。
func (s *vendorService) ListVendors() ([]model.Vendor, error) {
	return s.vendorRepo.FindAll()
}

// slugify 把租户名转成 URL 友好的 slug。
func slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
