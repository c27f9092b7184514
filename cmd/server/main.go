// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/internal/handler"
	"rag-chatbot-go/internal/middleware"
	"rag-chatbot-go/internal/pipeline"
	"rag-chatbot-go/internal/repository"
	"rag-chatbot-go/internal/router"
	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/database"
	"rag-chatbot-go/pkg/embedding"
	"rag-chatbot-go/pkg/es"
	"rag-chatbot-go/pkg/kafka"
	"rag-chatbot-go/pkg/llm"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 与对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)

	// 4. 初始化外部客户端
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	vectorStore, err := es.NewStore(cfg.Elasticsearch, cfg.Embedding, embeddingClient)
	if err != nil {
		log.Fatalf("Elasticsearch 初始化失败: %v", err)
	}
	producer := kafka.NewProducer(cfg.Kafka)
	defer producer.Close()

	// 5. 初始化 Repository
	vendorRepo := repository.NewVendorRepository(database.DB)
	uploadRepo := repository.NewUploadRepository(database.DB)
	jobRepo := repository.NewIngestionJobRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	// 6. 初始化 Service (依赖注入)
	objectStore := storage.NewObjectStore(cfg.MinIO)
	queryRouter := router.New(embeddingClient, router.DefaultRoutes(), cfg.Router.Threshold)
	vendorService := service.NewVendorService(vendorRepo)
	uploadService := service.NewUploadService(vendorRepo, uploadRepo, jobRepo, objectStore, producer)
	chatService := service.NewChatService(queryRouter, vectorStore, llmClient, conversationRepo, cfg.Router.NoResultText)

	// 7. 初始化摄取管道并启动后台 Kafka 消费者
	ingestor := pipeline.NewIngestor(vectorStore, objectStore, uploadRepo, jobRepo, cfg.Ingest)
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	go kafka.StartConsumer(consumerCtx, cfg.Kafka, ingestor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
	vendorHandler := handler.NewVendorHandler(vendorService)
	uploadHandler := handler.NewUploadHandler(uploadService)
	chatHandler := handler.NewChatHandler(chatService, vendorService)

	apiV1 := r.Group("/api/v1")
	{
		vendors := apiV1.Group("/vendors")
		{
			vendors.POST("", vendorHandler.CreateVendor)
			vendors.GET("", vendorHandler.ListVendors)
			vendors.GET("/:vendorId", vendorHandler.GetVendor)

			vendors.POST("/:vendorId/csv-uploads", uploadHandler.UploadCSV)
			vendors.GET("/:vendorId/csv-uploads", uploadHandler.ListUploads)
			vendors.GET("/:vendorId/csv-uploads/:uploadId/status", uploadHandler.GetUploadStatus)
			vendors.POST("/:vendorId/faqs/ingest", uploadHandler.TriggerIngest)
			vendors.GET("/:vendorId/ingestion-jobs/:jobId", uploadHandler.GetJob)
			vendors.GET("/:vendorId/faqs", uploadHandler.ListFaqs)

			vendors.POST("/:vendorId/ask", chatHandler.Ask)
		}
	}
	// Chat 路由 (WebSocket)
	r.GET("/chat/:vendorId", chatHandler.HandleWebsocket)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 先停消费者，避免停机窗口内领取新任务
	stopConsumer()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
