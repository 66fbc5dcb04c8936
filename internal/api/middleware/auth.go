package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/pkg/jwt"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

const (
	UserIDKey     = "userID"
	GuestTokenKey = "guestToken"

	GuestTokenHeader = "X-Guest-Token"
	GuestTokenQuery  = "guest_token"
)

// Auth JWT 认证中间件
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "请提供认证信息")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "认证格式错误")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "认证失败或已过期")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// OptionalAuth 可选认证中间件（不强制要求登录）
func OptionalAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			c.Next()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err == nil {
			c.Set(UserIDKey, claims.UserID)
		}

		c.Next()
	}
}

// GuestToken 读取访客令牌，header 优先于 query
func GuestToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(GuestTokenHeader))
		if token == "" {
			token = strings.TrimSpace(c.Query(GuestTokenQuery))
		}
		if token != "" {
			c.Set(GuestTokenKey, token)
		}
		c.Next()
	}
}

// RequireGuest 必须携带访客令牌
func RequireGuest() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetGuestToken(c); !ok {
			response.AuthError(c, "请提供访客令牌")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin 管理员权限，角色以数据库为准
func RequireAdmin(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		user, err := authService.GetUserByID(userID)
		if err != nil {
			response.AuthError(c, "")
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			response.PermissionError(c, "需要管理员权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// GetGuestToken 从上下文获取访客令牌
func GetGuestToken(c *gin.Context) (string, bool) {
	token := c.GetString(GuestTokenKey)
	return token, token != ""
}

// GetIdentity 当前请求的上传者身份
func GetIdentity(c *gin.Context) service.Identity {
	var id service.Identity
	if token, ok := GetGuestToken(c); ok {
		id.GuestToken = token
	}
	if userID, ok := GetUserID(c); ok {
		id.UserID = userID
	}
	return id
}
