package model

import "time"

// JobStatus 是摄取任务记录的状态枚举。
// 状态只能沿 queued → started → {finished, failed} 单向推进。
type JobStatus string

const (
	JobStatusQueued   JobStatus = "queued"
	JobStatusStarted  JobStatus = "started"
	JobStatusFinished JobStatus = "finished"
	JobStatusFailed   JobStatus = "failed"
)

// CanTransition 判断任务状态能否从当前状态推进到 to。
func (s JobStatus) CanTransition(to JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return to == JobStatusStarted || to == JobStatusFailed
	case JobStatusStarted:
		return to == JobStatusFinished || to == JobStatusFailed
	default:
		return false
	}
}

// Terminal 报告该状态是否为终态。
func (s JobStatus) Terminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}

// IngestionJob 对应于数据库中的 'ingestion_jobs' 表。
// 每次摄取尝试产生一条记录，归属于唯一的一条 CorpusUpload；
// 同一 Upload 重试时会产生多条记录。
type IngestionJob struct {
	ID       uint `gorm:"primaryKey;autoIncrement" json:"id"`
	UploadID uint `gorm:"not null;index" json:"uploadId"`
	// QueueMessageID 是外部任务队列返回的不透明句柄，提交前为空。
	QueueMessageID string     `gorm:"type:varchar(64)" json:"queueMessageId"`
	Status         JobStatus  `gorm:"type:varchar(20);not null;default:queued" json:"status"`
	StartedAt      *time.Time `gorm:"default:null" json:"startedAt"`
	FinishedAt     *time.Time `gorm:"default:null" json:"finishedAt"`
	ErrorMessage   string     `gorm:"type:text" json:"errorMessage"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (IngestionJob) TableName() string {
	return "ingestion_jobs"
}
