package es

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectionName(t *testing.T) {
	assert.Equal(t, "faqs_vendor_1", CollectionName("1"))
	assert.Equal(t, "faqs_vendor_42", CollectionName("42"))
	// 空格替换为下划线
	assert.Equal(t, "faqs_vendor_acme_corp", CollectionName("acme corp"))
}

func TestCollectionNameDeterministic(t *testing.T) {
	// 同一输入多次调用必须产生同一个集合名
	assert.Equal(t, CollectionName("7"), CollectionName("7"))
	// 不同租户不得映射到同一集合
	assert.NotEqual(t, CollectionName("1"), CollectionName("2"))
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "1_upload3_id_0", RecordID("1", 3, 0))
	assert.Equal(t, "1_upload3_id_9", RecordID("1", 3, 9))
	assert.Equal(t, "acme_upload12_id_2", RecordID("acme", 12, 2))
}
