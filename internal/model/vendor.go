// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// Vendor 对应于数据库中的 'vendors' 表，代表一个租户。
// 每个租户的问答语料与其他租户完全隔离。
type Vendor struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Slug      string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"slug"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Vendor) TableName() string {
	return "vendors"
}
