package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/pkg/response"
)

// RequestLogger 每个请求一行日志，带上业务码
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		}
		if code, ok := c.Get(response.CodeKey); ok {
			attrs = append(attrs, "code", code)
		}
		if userID, ok := GetUserID(c); ok {
			attrs = append(attrs, "user_id", userID)
		}

		level := slog.LevelInfo
		if c.Writer.Status() >= 500 || c.GetInt(response.CodeKey) == response.CodeServerError {
			level = slog.LevelError
		}
		slog.Log(c.Request.Context(), level, "request", attrs...)
	}
}
