package database

import (
	"time"

	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接并迁移核心表结构。
func InitMySQL(dsn string) {
	var err error
	DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect database", err)
	}

	// 配置连接池
	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatal("failed to get sql.DB", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 迁移租户、上传与摄取任务三张核心表
	if err := DB.AutoMigrate(&model.Vendor{}, &model.CorpusUpload{}, &model.IngestionJob{}); err != nil {
		log.Fatal("failed to auto-migrate tables", err)
	}

	log.Info("MySQL database connected successfully")
}
