// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"net/http"
	"strconv"

	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// parseUintParam 解析路径中的数字 ID，非法时返回 false 并已写出 400。
func parseUintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return uint(id), true
}

// VendorHandler 负责处理租户管理相关的 API 请求。
type VendorHandler struct {
	vendorService service.VendorService
}

// NewVendorHandler 创建一个新的 VendorHandler 实例。
func NewVendorHandler(vendorService service.VendorService) *VendorHandler {
	return &VendorHandler{vendorService: vendorService}
}

// CreateVendorRequest 定义了创建租户 API 的请求体结构。
type CreateVendorRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateVendor 处理创建租户的请求。
func (h *VendorHandler) CreateVendor(c *gin.Context) {
	var req CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vendor name is required"})
		return
	}

	vendor, err := h.vendorService.CreateVendor(req.Name)
	if err != nil {
		log.Error("CreateVendor: failed to create vendor", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create vendor"})
		return
	}

	c.JSON(http.StatusCreated, vendor)
}

// ListVendors 处理列出全部租户的请求。
func (h *VendorHandler) ListVendors(c *gin.Context) {
	vendors, err := h.vendorService.ListVendors()
	if err != nil {
		log.Error("ListVendors: failed to list vendors", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list vendors"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

// GetVendor 处理查询单个租户的请求。
func (h *VendorHandler) GetVendor(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}

	vendor, err := h.vendorService.GetVendor(vendorID)
	if err == service.ErrVendorNotFound {
		c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
		return
	}
	if err != nil {
		log.Error("GetVendor: failed to get vendor", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get vendor"})
		return
	}

	c.JSON(http.StatusOK, vendor)
}
