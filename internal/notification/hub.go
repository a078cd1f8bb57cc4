package notification

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"backend/internal/logger"
	"backend/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type clientConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Hub 管理用户的 WebSocket 连接，用于向审批人实时推送待办事件
type Hub struct {
	mu                sync.RWMutex
	clients           map[string]map[*websocket.Conn]*clientConn
	offline           OfflineStore
	keepAliveInterval time.Duration
	logger            *zap.Logger
}

// HubOption 配置 hub
type HubOption func(*Hub)

// WithOfflineStore 指定离线存储
func WithOfflineStore(store OfflineStore) HubOption {
	return func(h *Hub) { h.offline = store }
}

// WithKeepAliveInterval 设置心跳间隔
func WithKeepAliveInterval(interval time.Duration) HubOption {
	return func(h *Hub) { h.keepAliveInterval = interval }
}

// WithHubLogger 设置日志器
func WithHubLogger(l *zap.Logger) HubOption {
	return func(h *Hub) { h.logger = l }
}

// NewHub 创建 Hub
func NewHub(opts ...HubOption) *Hub {
	hub := &Hub{
		clients:           make(map[string]map[*websocket.Conn]*clientConn),
		offline:           NewMemoryOfflineStore(50),
		keepAliveInterval: 30 * time.Second,
		logger:            logger.Get(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(hub)
		}
	}
	return hub
}

// Register 注册连接，并重放该用户的离线消息
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[userID]; !ok {
		h.clients[userID] = make(map[*websocket.Conn]*clientConn)
	}
	client := &clientConn{conn: conn}
	h.clients[userID][conn] = client
	h.mu.Unlock()

	metrics.WebSocketConnectionsGauge.Inc()
	h.replayOffline(context.Background(), userID, client)
	h.startKeepAlive(userID, client)
}

// Unregister 移除连接
func (h *Hub) Unregister(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.clients[userID]; ok {
		if _, ok := conns[conn]; ok {
			delete(conns, conn)
			metrics.WebSocketConnectionsGauge.Dec()
		}
		if len(conns) == 0 {
			delete(h.clients, userID)
		}
	}
}

// SendToUser 将消息发送给指定用户的所有连接，离线时暂存
func (h *Hub) SendToUser(userID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// 持锁期间拷贝连接快照。Register 可能并发写同一个 map，
	// 解锁后绝不能再迭代它
	h.mu.RLock()
	targets := make([]*clientConn, 0, len(h.clients[userID]))
	for _, client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return h.storeOffline(context.Background(), userID, data)
	}

	var firstErr error
	for _, client := range targets {
		client.mu.Lock()
		client.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := client.conn.WriteMessage(websocket.TextMessage, data)
		client.mu.Unlock()
		if err != nil {
			h.Unregister(userID, client.conn)
			_ = client.conn.Close()
			_ = h.storeOffline(context.Background(), userID, data)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// SendToUsers 向多个用户发送同一条消息
func (h *Hub) SendToUsers(userIDs []string, payload any) error {
	var firstErr error
	for _, userID := range userIDs {
		if err := h.SendToUser(userID, payload); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// ConnectedCount 返回指定用户的连接数（用于调试/指标）
func (h *Hub) ConnectedCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) replayOffline(ctx context.Context, userID string, client *clientConn) {
	if h.offline == nil {
		return
	}
	messages, err := h.offline.Drain(ctx, userID)
	if err != nil {
		if h.logger != nil {
			h.logger.Warn("离线消息重放失败", zap.String("userId", userID), zap.Error(err))
		}
		return
	}
	for _, msg := range messages {
		client.mu.Lock()
		client.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil && h.logger != nil {
			h.logger.Debug("推送离线消息失败", zap.Error(err))
		}
		client.mu.Unlock()
	}
}

func (h *Hub) storeOffline(ctx context.Context, userID string, payload []byte) error {
	if h.offline == nil {
		return nil
	}
	return h.offline.Append(ctx, userID, payload)
}

func (h *Hub) startKeepAlive(userID string, client *clientConn) {
	if h.keepAliveInterval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(h.keepAliveInterval)
		defer ticker.Stop()
		for range ticker.C {
			client.mu.Lock()
			err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			client.mu.Unlock()
			if err != nil {
				h.Unregister(userID, client.conn)
				_ = client.conn.Close()
				return
			}
		}
	}()
}
