package notifications

import (
	"net/http"
	"time"

	"backend/internal/common"
	"backend/internal/middleware"
	"backend/internal/notification"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WebSocketHandler 管理审批通知的 WebSocket 连接
type WebSocketHandler struct {
	hub      *notification.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建处理器
func NewWebSocketHandler(hub *notification.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 5 * time.Second,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Connect 升级连接并注册客户端。操作人取 X-Actor-ID 头，
// 浏览器 WebSocket 无法带自定义头时用 actor 查询参数兜底。
func (h *WebSocketHandler) Connect(c *gin.Context) {
	if h == nil || h.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "WebSocket 服务未就绪"})
		return
	}
	userID := middleware.ActorID(c)
	if userID == "" {
		userID = c.Query("actor")
	}
	if userID == "" {
		common.ResponseError(c, common.CodeUnauthorized, "缺少操作人标识")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn.SetReadLimit(1024)
	conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * time.Minute))
	})

	h.hub.Register(userID, conn)
	_ = conn.WriteJSON(gin.H{
		"type":    "connected",
		"message": "WebSocket 已连接",
	})

	go h.readLoop(userID, conn)
}

func (h *WebSocketHandler) readLoop(userID string, conn *websocket.Conn) {
	defer func() {
		h.hub.Unregister(userID, conn)
		_ = conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
