// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rag-chatbot-go/internal/config"
	"rag-chatbot-go/pkg/database"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/tasks"

	kafkago "github.com/segmentio/kafka-go"
)

// TaskProcessor 是消费者对摄取管道的最小依赖面，
// 使消费循环与具体的管道实现解耦。
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.IngestionTask) error
}

// maxAttempts 是单条摄取任务的最大消费尝试次数，超过后提交 offset 放弃。
const maxAttempts = 3

// Producer 把摄取任务写入 Kafka 主题。
type Producer struct {
	writer *kafkago.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	writer := &kafkago.Writer{
		Addr:     kafkago.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafkago.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
	return &Producer{writer: writer}
}

// Produce 发送一个摄取任务到 Kafka，key 为任务记录的队列消息句柄。
func (p *Producer) Produce(ctx context.Context, key string, task tasks.IngestionTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: taskBytes,
	})
}

// Close 关闭生产者连接。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// StartConsumer 启动一个 Kafka 消费者来处理摄取任务，阻塞直到 ctx 取消。
func StartConsumer(ctx context.Context, cfg config.KafkaConfig, processor TaskProcessor) {
	r := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  []string{cfg.Brokers},
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 10e3, // 10KB
		MaxBytes: 10e6, // 10MB
	})

	log.Infof("Kafka 消费者已启动，正在监听主题 '%s'", cfg.Topic)

	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("从 Kafka 读取消息失败", err)
			break
		}

		log.Infof("收到 Kafka 消息: offset %d, key %s", m.Offset, string(m.Key))

		var task tasks.IngestionTask
		if err := json.Unmarshal(m.Value, &task); err != nil {
			log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
			// 消息格式错误，直接提交，避免阻塞队列
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交错误消息失败: %v", err)
			}
			continue
		}

		log.Infof("开始处理摄取任务: job=%d, upload=%d, vendor=%d", task.JobID, task.UploadID, task.VendorID)
		if err := processor.Process(ctx, task); err != nil {
			log.Errorf("处理摄取任务失败: job=%d, error: %v", task.JobID, err)
			// 用 Redis 计数失败次数，达到阈值后提交 offset 终止重试
			attemptsKey := fmt.Sprintf("kafka:attempts:job:%d", task.JobID)
			attempts, incErr := database.RDB.Incr(context.Background(), attemptsKey).Result()
			if incErr != nil {
				// Redis 异常时保守处理：不提交 offset，让 Kafka 重试
				continue
			}
			_ = database.RDB.Expire(context.Background(), attemptsKey, 24*time.Hour).Err()
			if attempts >= maxAttempts {
				log.Errorf("摄取任务多次失败(>=%d)，提交 offset 终止重试: job=%d", maxAttempts, task.JobID)
				if err := r.CommitMessages(context.Background(), m); err != nil {
					log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
				}
			}
			// attempts 未达阈值时不提交 offset，让 Kafka 自动重投
		} else {
			log.Infof("摄取任务处理成功: job=%d", task.JobID)
			_ = database.RDB.Del(context.Background(), fmt.Sprintf("kafka:attempts:job:%d", task.JobID)).Err()
			if err := r.CommitMessages(context.Background(), m); err != nil {
				log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
			}
		}
	}

	if err := r.Close(); err != nil {
		log.Errorf("关闭 Kafka 消费者失败: %v", err)
	}
}
