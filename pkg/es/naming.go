// Package es 提供了基于 Elasticsearch 的租户向量集合适配层。
package es

import (
	"fmt"
	"strings"
)

// collectionPrefix 是租户集合名的固定前缀。集合名一旦生成即永久有效，
// 租户改名不会回溯重命名既有集合。
const collectionPrefix = "faqs_vendor_"

// CollectionName 根据租户标识确定性地生成集合名：
// 固定前缀拼接标识，空格替换为下划线以保证底层存储安全。
func CollectionName(vendorID string) string {
	safe := strings.ReplaceAll(vendorID, " ", "_")
	return collectionPrefix + safe
}

// RecordID 生成一条问答记录的全局唯一标识，
// 形如 {vendor_id}_upload{upload_id}_id_{row}，行号从 0 开始。
func RecordID(vendorID string, uploadID uint, row int) string {
	return fmt.Sprintf("%s_upload%d_id_%d", vendorID, uploadID, row)
}
