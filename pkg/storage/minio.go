// Package storage 提供了与对象存储服务（MinIO）交互的功能。
package storage

import (
	"context"
	"io"

	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/pkg/log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// InitMinIO 初始化 MinIO 客户端并确保指定的存储桶存在。
func InitMinIO(cfg config.MinIOConfig) {
	var err error

	MinioClient, err = minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		log.Fatal("初始化 MinIO 客户端失败", err)
	}

	// 检查存储桶是否存在，不存在则创建
	ctx := context.Background()
	exists, err := MinioClient.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		log.Fatal("检查 MinIO 存储桶失败", err)
	}
	if !exists {
		if err := MinioClient.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			log.Fatal("创建 MinIO 存储桶失败", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}

	log.Info("MinIO 客户端初始化成功")
}

// ObjectStore 将语料文件以不透明对象名的形式存取。
// 摄取管道只通过该接口解析文件引用，便于测试替换。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64) error
	Fetch(ctx context.Context, objectName string) (io.ReadCloser, error)
}

type minioObjectStore struct {
	client *minio.Client
	bucket string
}

// NewObjectStore 基于全局 MinIO 客户端创建一个 ObjectStore。
func NewObjectStore(cfg config.MinIOConfig) ObjectStore {
	return &minioObjectStore{client: MinioClient, bucket: cfg.BucketName}
}

// Put 将内容写入指定对象。
func (s *minioObjectStore) Put(ctx context.Context, objectName string, r io.Reader, size int64) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{ContentType: "text/csv"})
	return err
}

// Fetch 打开指定对象的可读流，由调用方负责关闭。
func (s *minioObjectStore) Fetch(ctx context.Context, objectName string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	return obj, nil
}
