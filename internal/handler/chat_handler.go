package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // 允许所有来源
	},
}

// ChatHandler 负责处理问答请求与 WebSocket 聊天连接。
type ChatHandler struct {
	chatService   service.ChatService
	vendorService service.VendorService
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, vendorService service.VendorService) *ChatHandler {
	return &ChatHandler{chatService: chatService, vendorService: vendorService}
}

// AskRequest 定义了问答 API 的请求体结构。
type AskRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"sessionId"`
}

// Ask 处理一次同步问答请求。
func (h *ChatHandler) Ask(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	if _, err := h.vendorService.GetVendor(vendorID); err != nil {
		if err == service.ErrVendorNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
			return
		}
		log.Error("Ask: failed to verify vendor", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	answer := h.chatService.Ask(c.Request.Context(), vendorID, sessionID, req.Query)
	c.JSON(http.StatusOK, gin.H{
		"response":  answer,
		"sessionId": sessionID,
	})
}

// wsQuestion 是 WebSocket 连接上一条提问消息的结构。
// 纯文本消息同样被接受，视作不带会话 ID 的提问。
type wsQuestion struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

// HandleWebsocket 处理一个传入的 WebSocket 聊天连接。
// 每条消息是一次提问，回答以分块下发并以 done 消息收尾。
func (h *ChatHandler) HandleWebsocket(c *gin.Context) {
	vendorID, ok := parseUintParam(c, "vendorId")
	if !ok {
		return
	}

	if _, err := h.vendorService.GetVendor(vendorID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "vendor not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	// 同一连接上的多轮提问共享一个会话
	sessionID := uuid.New().String()
	log.Infof("WebSocket 连接已建立, vendor: %d, session: %s", vendorID, sessionID)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warnf("从 WebSocket 读取消息失败: %v", err)
			break
		}

		question := string(message)
		if len(message) > 0 && message[0] == '{' {
			var q wsQuestion
			if err := json.Unmarshal(message, &q); err == nil && q.Query != "" {
				question = q.Query
				if q.SessionID != "" {
					sessionID = q.SessionID
				}
			}
		}
		if question == "" {
			continue
		}

		if err := h.chatService.StreamAsk(c.Request.Context(), vendorID, sessionID, question, conn); err != nil {
			log.Errorf("处理流式回答失败: %v", err)
			break
		}

		done, _ := json.Marshal(gin.H{
			"type":      "done",
			"sessionId": sessionID,
			"timestamp": time.Now().UnixMilli(),
		})
		if err := conn.WriteMessage(websocket.TextMessage, done); err != nil {
			log.Warnf("写入 WebSocket 收尾消息失败: %v", err)
			break
		}
	}
}
