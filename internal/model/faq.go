package model

import "time"

// FaqRecord 代表存储在 Elasticsearch 租户集合中的一条问答文档。
// RecordID 形如 {vendor_id}_upload{upload_id}_id_{row}，全局唯一。
type FaqRecord struct {
	RecordID     string    `json:"record_id"`
	VendorID     string    `json:"vendor_id"`
	UploadID     uint      `json:"upload_id"`
	RowIndex     int       `json:"row_index"`
	Question     string    `json:"question"`
	Answer       string    `json:"answer"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
}

// FaqHit 是一次最近邻检索命中的结果。
type FaqHit struct {
	RecordID string  `json:"recordId"`
	Question string  `json:"question"`
	Answer   string  `json:"answer"`
	Score    float64 `json:"score"`
}

// ChatMessage 是会话历史中的一条消息。
type ChatMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
