package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

// QuotaCheck 上传前的只读配额预检，真正的扣减在上传时原子完成
func QuotaCheck(jobService *service.JobService) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := jobService.CheckAdmission(GetIdentity(c))
		if err == nil {
			c.Next()
			return
		}

		switch {
		case errors.Is(err, service.ErrIdentityRequired),
			errors.Is(err, service.ErrGuestTokenInvalid),
			errors.Is(err, service.ErrGuestTokenExpired),
			errors.Is(err, service.ErrUserNotFound):
			response.AuthError(c, err.Error())
		case errors.Is(err, service.ErrQuotaExceeded):
			response.QuotaError(c, err.Error())
		case errors.Is(err, service.ErrNoActivePlan):
			response.NoPlanError(c, err.Error())
		default:
			response.ServerError(c, "配额检查失败")
		}
		c.Abort()
	}
}
