package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/api/middleware"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
	quotaService   *service.QuotaService
	authService    *service.AuthService
	billingService *service.BillingService
}

func NewAccountHandler(
	accountService *service.AccountService,
	quotaService *service.QuotaService,
	authService *service.AuthService,
	billingService *service.BillingService,
) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		quotaService:   quotaService,
		authService:    authService,
		billingService: billingService,
	}
}

// Summary 账户概览
// GET /api/v1/account/summary
func (h *AccountHandler) Summary(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	summary, err := h.accountService.Summary(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, summary)
}

// Quota 今日配额
// GET /api/v1/account/quota
func (h *AccountHandler) Quota(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	info, err := h.quotaService.GetQuotaInfo(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, info)
}

// ChangePassword 修改密码
// POST /api/v1/account/password
func (h *AccountHandler) ChangePassword(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	if err := h.authService.ChangePassword(userID, &req); err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "密码已修改", nil)
}

// Downgrade 退回默认套餐
// POST /api/v1/account/downgrade
func (h *AccountHandler) Downgrade(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	resp, err := h.billingService.Downgrade(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "已切换到默认套餐", resp)
}
