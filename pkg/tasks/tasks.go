// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestionTask represents the payload of one asynchronous corpus ingestion job.
type IngestionTask struct {
	UploadID uint `json:"upload_id"`
	JobID    uint `json:"job_id"`
	VendorID uint `json:"vendor_id"`
}
