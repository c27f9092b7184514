// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// UploadStatus 是语料上传记录的状态枚举。
// 状态只能沿 pending → processing → {completed, failed} 单向推进。
type UploadStatus string

const (
	UploadStatusPending    UploadStatus = "pending"
	UploadStatusProcessing UploadStatus = "processing"
	UploadStatusCompleted  UploadStatus = "completed"
	UploadStatusFailed     UploadStatus = "failed"
)

// CanTransition 判断上传状态能否从当前状态推进到 to。
// completed 与 failed 是终态，不允许再转移。
func (s UploadStatus) CanTransition(to UploadStatus) bool {
	switch s {
	case UploadStatusPending:
		return to == UploadStatusProcessing || to == UploadStatusFailed
	case UploadStatusProcessing:
		return to == UploadStatusCompleted || to == UploadStatusFailed
	default:
		return false
	}
}

// Terminal 报告该状态是否为终态。
func (s UploadStatus) Terminal() bool {
	return s == UploadStatusCompleted || s == UploadStatusFailed
}

// CorpusUpload 对应于数据库中的 'corpus_uploads' 表。
// 它记录了租户提交的一份 CSV 问答语料文件及其摄取状态。
type CorpusUpload struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	VendorID uint   `gorm:"not null;index" json:"vendorId"`
	Filename string `gorm:"type:varchar(255);not null" json:"filename"`
	// ObjectName 是文件在对象存储中的引用，核心流程不解释其内部结构。
	ObjectName   string       `gorm:"type:varchar(512);not null" json:"objectName"`
	Status       UploadStatus `gorm:"type:varchar(20);not null;default:pending" json:"status"`
	ErrorMessage string       `gorm:"type:text" json:"errorMessage"`
	CreatedAt    time.Time    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (CorpusUpload) TableName() string {
	return "corpus_uploads"
}
