package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/pkg/oauth"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

// respondError 业务错误映射到响应码，未知错误统一为 ServerError
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrMissingFile),
		errors.Is(err, service.ErrEmptyFile),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrUnsupportedFormat),
		errors.Is(err, service.ErrEmptyPassword),
		errors.Is(err, service.ErrWrongPassword),
		errors.Is(err, service.ErrQueryNotAllowed),
		errors.Is(err, service.ErrCannotDeleteSelf),
		errors.Is(err, service.ErrPlanInUse),
		errors.Is(err, oauth.ErrInvalidState):
		response.ParamError(c, err.Error())

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrIdentityRequired),
		errors.Is(err, service.ErrGuestTokenInvalid),
		errors.Is(err, service.ErrGuestTokenExpired):
		response.AuthError(c, err.Error())

	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrPlanNotFound),
		errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, service.ErrGuestNotFound):
		response.NotFoundError(c, err.Error())

	case errors.Is(err, service.ErrEmailExists),
		errors.Is(err, service.ErrPlanNameExists):
		response.DuplicateError(c, err.Error())

	case errors.Is(err, service.ErrQuotaExceeded):
		response.QuotaError(c, err.Error())

	case errors.Is(err, service.ErrNoActivePlan):
		response.NoPlanError(c, err.Error())

	case errors.Is(err, service.ErrNoDefaultPlan),
		errors.Is(err, oauth.ErrNotConfigured):
		slog.Error("configuration error", "path", c.FullPath(), "error", err)
		response.ServerError(c, err.Error())

	default:
		slog.Error("request failed", "path", c.FullPath(), "error", err)
		response.ServerError(c, "")
	}
}
