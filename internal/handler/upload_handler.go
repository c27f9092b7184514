package handler

import (
	"errors"
	"net/http"

	"rag-chatbot-go/internal/corpus"
	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// UploadHandler 负责处理语料上传与摄取任务相关的 API 请求。
type UploadHandler struct {
	uploadService service.UploadService
}

// NewUploadHandler 创建一个新的 UploadHandler 实例。
func NewUploadHandler(uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{uploadService: uploadService}
}

// UploadCSV 处理语料文件上传的请求。受理成功返回 pending 状态的上传记录。
func (h *UploadHandler) UploadCSV(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing 'file' form field"})
		return
	}
	defer file.Close()

	upload, err := h.uploadService.UploadCSV(c.Request.Context(), vendorID, header.Filename, file)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusCreated, upload)
}

// TriggerIngestRequest 定义了触发摄取 API 的请求体结构。
// uploadId 缺省时摄取该租户最新的一次上传。
type TriggerIngestRequest struct {
	UploadID *uint `json:"uploadId"`
}

// TriggerIngest 处理触发摄取的请求，受理后立即返回 202 与任务记录。
func (h *UploadHandler) TriggerIngest(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}

	var req TriggerIngestRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
			return
		}
	}

	job, err := h.uploadService.TriggerIngest(c.Request.Context(), vendorID, req.UploadID)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetUploadStatus 处理查询上传状态的请求。
func (h *UploadHandler) GetUploadStatus(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}
	uploadID, ok := parseUintParam(c, "uploadId")
	if !ok {
		return
	}

	upload, err := h.uploadService.GetUpload(vendorID, uploadID)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}
	jobs, err := h.uploadService.ListJobs(vendorID, uploadID)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"upload": upload,
		"jobs":   jobs,
	})
}

// ListUploads 处理列出租户全部上传记录的请求。
func (h *UploadHandler) ListUploads(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}

	uploads, err := h.uploadService.ListUploads(vendorID)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"uploads": uploads})
}

// GetJob 处理查询摄取任务状态的请求。
func (h *UploadHandler) GetJob(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}
	jobID, ok := parseUintParam(c, "jobId")
	if !ok {
		return
	}

	job, err := h.uploadService.GetJob(vendorID, jobID)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListFaqs 处理列出租户当前生效语料的请求。
func (h *UploadHandler) ListFaqs(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}

	rows, err := h.uploadService.ListFaqs(c.Request.Context(), vendorID)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}

	faqs := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		faqs = append(faqs, gin.H{"question": row.Question, "answer": row.Answer})
	}
	c.JSON(http.StatusOK, gin.H{"faqs": faqs})
}

// writeUploadError 把服务层错误映射为 HTTP 响应。
func (h *UploadHandler) writeUploadError(c *gin.Context, err error) {
	var schemaErr *corpus.SchemaValidationError
	switch {
	case errors.Is(err, service.ErrVendorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
	case errors.Is(err, service.ErrUploadNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "upload not found"})
	case errors.Is(err, service.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "ingestion job not found"})
	case errors.As(err, &schemaErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": schemaErr.Error()})
	default:
		log.Error("UploadHandler: request failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
