package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/qs3c/audiosep_server/internal/pkg/metrics"
	"github.com/qs3c/audiosep_server/internal/pkg/pubsub"
)

type Hub struct {
	// 同一身份可以有多个连接（多标签页、重连等场景）
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Subject string
	Conn    *websocket.Conn
	mu      sync.Mutex // 写锁，防止并发写入
}

type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// UserSubject 登录用户的连接标识
func UserSubject(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// GuestSubject 访客的连接标识
func GuestSubject(guestID int64) string {
	return fmt.Sprintf("guest:%d", guestID)
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.Subject] == nil {
		h.clients[client.Subject] = make(map[*Client]struct{})
	}
	h.clients[client.Subject][client] = struct{}{}
	metrics.WebSocketConnections.Inc()

	slog.Debug("websocket connected", "subject", client.Subject, "subject_conns", len(h.clients[client.Subject]))
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns, ok := h.clients[client.Subject]
	if !ok {
		return
	}
	if _, ok := conns[client]; !ok {
		return
	}
	delete(conns, client)
	if len(conns) == 0 {
		delete(h.clients, client.Subject)
	}
	metrics.WebSocketConnections.Dec()

	slog.Debug("websocket disconnected", "subject", client.Subject)
}

// Send 向指定身份的所有连接发送消息
func (h *Hub) Send(subject string, msg *Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	h.mu.RLock()
	conns, ok := h.clients[subject]
	if !ok {
		h.mu.RUnlock()
		return nil
	}
	// 复制一份引用，避免长时间持锁
	clients := make([]*Client, 0, len(conns))
	for c := range conns {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.mu.Lock()
		err := c.Conn.WriteMessage(websocket.TextMessage, data)
		c.mu.Unlock()
		if err != nil {
			slog.Warn("websocket write failed", "subject", subject, "error", err)
		}
	}
	return nil
}

// IsOnline 检查是否有连接
func (h *Hub) IsOnline(subject string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[subject]
	return ok && len(conns) > 0
}

// ConnectionCount 获取在线连接数
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// DeliverJob 把任务消息推送给任务所属身份的连接
func (h *Hub) DeliverJob(msg *pubsub.JobMessage) {
	var subject string
	switch {
	case msg.UserID > 0:
		subject = UserSubject(msg.UserID)
	case msg.GuestID > 0:
		subject = GuestSubject(msg.GuestID)
	default:
		return
	}

	if err := h.Send(subject, &Message{Type: pubsub.TypeJobUpdate, Data: msg}); err != nil {
		slog.Warn("failed to deliver job update", "job_id", msg.JobID, "error", err)
	}
}

// Publish 未启用 Redis 时在本进程内直接推送
func (h *Hub) Publish(ctx context.Context, msg *pubsub.JobMessage) error {
	msg.Type = pubsub.TypeJobUpdate
	h.DeliverJob(msg)
	return nil
}
