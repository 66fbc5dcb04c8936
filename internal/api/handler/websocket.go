package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/qs3c/audiosep_server/internal/pkg/jwt"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/pkg/ws"
	"github.com/qs3c/audiosep_server/internal/service"
)

type WebSocketHandler struct {
	hub          *ws.Hub
	guestService *service.GuestService
	jwtSecret    string
	upgrader     websocket.Upgrader
}

// NewWebSocketHandler allowedOrigins 为空时不校验 Origin
func NewWebSocketHandler(hub *ws.Hub, guestService *service.GuestService, jwtSecret string, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return &WebSocketHandler{
		hub:          hub,
		guestService: guestService,
		jwtSecret:    jwtSecret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if len(allowed) == 0 || origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Handle WebSocket 连接处理
// GET /api/v1/ws?token=xxx 或 ?guest_token=xxx
func (h *WebSocketHandler) Handle(c *gin.Context) {
	subject, ok := h.subject(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("failed to upgrade websocket", "error", err)
		return
	}

	client := &ws.Client{
		Subject: subject,
		Conn:    conn,
	}

	h.hub.Register(client)

	// 只读不处理，用来发现断开
	go func() {
		defer conn.Close()
		defer h.hub.Unregister(client)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *WebSocketHandler) subject(c *gin.Context) (string, bool) {
	if token := c.Query("token"); token != "" {
		claims, err := jwt.ParseToken(token, h.jwtSecret)
		if err != nil {
			return "", false
		}
		return ws.UserSubject(claims.UserID), true
	}

	if token := c.Query("guest_token"); token != "" {
		guest, err := h.guestService.Lookup(token)
		if err != nil {
			return "", false
		}
		return ws.GuestSubject(guest.ID), true
	}

	return "", false
}
