// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/repository"
	"rag-chatbot-go/internal/router"
	"rag-chatbot-go/pkg/es"
	"rag-chatbot-go/pkg/llm"
	"rag-chatbot-go/pkg/log"

	"github.com/gorilla/websocket"
)

const (
	// noInfoResponse 是 FAQ 路由在租户集合没有数据时的固定回答。
	noInfoResponse = "Sorry, I don't have an answer for that yet. Please contact the vendor directly."
	// degradedResponse 是生成式回答超时或失败时的降级文案，
	// 聊天回合本身不会因此失败。
	degradedResponse = "The assistant is temporarily unavailable. Please try again in a moment."
)

// QueryRouter 是分发层对路由器的最小依赖面。
type QueryRouter interface {
	Route(ctx context.Context, query string) router.RouteName
}

// FaqSearcher 是分发层对向量集合检索的最小依赖面。
type FaqSearcher interface {
	Query(ctx context.Context, collection, text string, topK int) ([]model.FaqHit, error)
}

// ChatService 定义了问答分发的接口。
type ChatService interface {
	// Ask 路由并回答一个问题。它是全函数：任何路由结果都产生文本回答，
	// 响应器内部的失败降级为固定文案而非错误。
	Ask(ctx context.Context, vendorID uint, sessionID, query string) string
	// StreamAsk 与 Ask 语义一致，但生成式回答以分块流式下发。
	StreamAsk(ctx context.Context, vendorID uint, sessionID, query string, writer llm.MessageWriter) error
}

type chatService struct {
	queryRouter      QueryRouter
	searcher         FaqSearcher
	llmClient        llm.Client
	conversationRepo repository.ConversationRepository
	noResultText     string
}

// NewChatService 创建一个新的 ChatService 实例。
// 路由器与两个响应器都由调用方显式注入，便于测试替换。
func NewChatService(
	queryRouter QueryRouter,
	searcher FaqSearcher,
	llmClient llm.Client,
	conversationRepo repository.ConversationRepository,
	noResultText string,
) ChatService {
	if noResultText == "" {
		noResultText = noInfoResponse
	}
	return &chatService{
		queryRouter:      queryRouter,
		searcher:         searcher,
		llmClient:        llmClient,
		conversationRepo: conversationRepo,
		noResultText:     noResultText,
	}
}

// Ask 路由并回答一个问题。
func (s *chatService) Ask(ctx context.Context, vendorID uint, sessionID, query string) string {
	route := s.queryRouter.Route(ctx, query)
	log.Infof("[ChatService] 查询已路由, vendor: %d, route: %s", vendorID, route)

	var answer string
	switch route {
	case router.RouteFAQ:
		answer = s.answerFromFaq(ctx, vendorID, query)
	case router.RouteGenericResponse:
		answer = s.answerGeneric(ctx, vendorID, sessionID, query)
	default:
		// 未识别的路由按设计不是错误，返回占位文案
		answer = fmt.Sprintf("Route %s not implemented yet", route)
	}

	s.saveTurn(vendorID, sessionID, query, answer)
	return answer
}

// answerFromFaq 在租户集合中检索最相近的问答对并返回其存储的答案。
func (s *chatService) answerFromFaq(ctx context.Context, vendorID uint, query string) string {
	collection := es.CollectionName(strconv.FormatUint(uint64(vendorID), 10))
	hits, err := s.searcher.Query(ctx, collection, query, 1)
	if err != nil {
		log.Errorf("[ChatService] FAQ 检索失败, vendor: %d, error: %v", vendorID, err)
		return degradedResponse
	}
	if len(hits) == 0 {
		// 集合为空不是错误，返回固定的"无信息"文案
		return s.noResultText
	}
	return hits[0].Answer
}

// answerGeneric 忽略租户索引，调用生成式能力回答。
func (s *chatService) answerGeneric(ctx context.Context, vendorID uint, sessionID, query string) string {
	answer, err := s.llmClient.Chat(ctx, s.composeMessages(ctx, vendorID, sessionID, query))
	if err != nil {
		log.Errorf("[ChatService] 生成式回答失败, vendor: %d, error: %v", vendorID, err)
		return degradedResponse
	}
	return answer
}

// StreamAsk 与 Ask 语义一致；FAQ 命中作为单块下发，生成式回答逐块流式下发。
func (s *chatService) StreamAsk(ctx context.Context, vendorID uint, sessionID, query string, writer llm.MessageWriter) error {
	route := s.queryRouter.Route(ctx, query)
	log.Infof("[ChatService] 流式查询已路由, vendor: %d, route: %s", vendorID, route)

	if route != router.RouteGenericResponse {
		var answer string
		switch route {
		case router.RouteFAQ:
			answer = s.answerFromFaq(ctx, vendorID, query)
		default:
			answer = fmt.Sprintf("Route %s not implemented yet", route)
		}
		s.saveTurn(vendorID, sessionID, query, answer)
		return writer.WriteMessage(websocket.TextMessage, []byte(answer))
	}

	// 拦截 writer 以捕获完整回答用于会话历史
	builder := &strings.Builder{}
	interceptor := &capturingWriter{next: writer, buf: builder}
	if err := s.llmClient.StreamChat(ctx, s.composeMessages(ctx, vendorID, sessionID, query), interceptor); err != nil {
		log.Errorf("[ChatService] 流式生成失败, vendor: %d, error: %v", vendorID, err)
		return writer.WriteMessage(websocket.TextMessage, []byte(degradedResponse))
	}

	s.saveTurn(vendorID, sessionID, query, builder.String())
	return nil
}

// composeMessages 拼装 system 消息、会话历史与本轮提问。
func (s *chatService) composeMessages(ctx context.Context, vendorID uint, sessionID, query string) []llm.Message {
	system := fmt.Sprintf("You are a helpful customer support assistant for vendor %d. Answer concisely.", vendorID)

	history, err := s.conversationRepo.GetHistory(ctx, vendorID, sessionID)
	if err != nil {
		log.Errorf("[ChatService] 加载会话历史失败: %v", err)
		history = nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: system})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: query})
	return messages
}

// saveTurn 把一问一答写入会话历史，失败只记录不影响本轮回答。
func (s *chatService) saveTurn(vendorID uint, sessionID, question, answer string) {
	if answer == "" || answer == degradedResponse {
		// 降级文案不计入历史，避免污染后续生成式回答的上下文
		return
	}
	// 即使原始请求已取消也要保存成功生成的回答
	if err := s.conversationRepo.AppendTurn(context.Background(), vendorID, sessionID, question, answer); err != nil {
		log.Errorf("[ChatService] 保存会话历史失败: %v", err)
	}
}

// capturingWriter 在转发分块的同时累积完整文本。
type capturingWriter struct {
	next llm.MessageWriter
	buf  *strings.Builder
}

func (w *capturingWriter) WriteMessage(messageType int, data []byte) error {
	w.buf.Write(data)
	return w.next.WriteMessage(messageType, data)
}
