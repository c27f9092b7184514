// Package repository 提供了数据访问层的实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rag-chatbot-go/internal/model"

	"github.com/go-redis/redis/v8"
)

const (
	conversationTTL  = 7 * 24 * time.Hour
	conversationKeep = 20 // 每个会话只保留最近 20 条消息
)

// ConversationRepository 定义了按（租户, 会话）维度存取聊天历史的接口。
type ConversationRepository interface {
	GetHistory(ctx context.Context, vendorID uint, sessionID string) ([]model.ChatMessage, error)
	AppendTurn(ctx context.Context, vendorID uint, sessionID, question, answer string) error
}

type redisConversationRepository struct {
	redisClient *redis.Client
}

// NewConversationRepository 创建一个新的 ConversationRepository 实例。
func NewConversationRepository(redisClient *redis.Client) ConversationRepository {
	return &redisConversationRepository{redisClient: redisClient}
}

func conversationKey(vendorID uint, sessionID string) string {
	return fmt.Sprintf("vendor:%d:conversation:%s", vendorID, sessionID)
}

// GetHistory 从 Redis 获取会话历史记录，不存在时返回空序列。
func (r *redisConversationRepository) GetHistory(ctx context.Context, vendorID uint, sessionID string) ([]model.ChatMessage, error) {
	jsonData, err := r.redisClient.Get(ctx, conversationKey(vendorID, sessionID)).Result()
	if err == redis.Nil {
		return []model.ChatMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation history: %w", err)
	}

	var messages []model.ChatMessage
	if err := json.Unmarshal([]byte(jsonData), &messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal conversation history: %w", err)
	}
	return messages, nil
}

// AppendTurn 将一问一答追加到会话历史并裁剪到最近 N 条。
func (r *redisConversationRepository) AppendTurn(ctx context.Context, vendorID uint, sessionID, question, answer string) error {
	messages, err := r.GetHistory(ctx, vendorID, sessionID)
	if err != nil {
		return err
	}

	now := time.Now()
	messages = append(messages,
		model.ChatMessage{Role: "user", Content: question, Timestamp: now},
		model.ChatMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	if len(messages) > conversationKeep {
		messages = messages[len(messages)-conversationKeep:]
	}

	jsonData, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to marshal conversation history: %w", err)
	}
	if err := r.redisClient.Set(ctx, conversationKey(vendorID, sessionID), jsonData, conversationTTL).Err(); err != nil {
		return fmt.Errorf("failed to set conversation history: %w", err)
	}
	return nil
}
