package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/api/middleware"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

type BillingHandler struct {
	billingService *service.BillingService
}

func NewBillingHandler(billingService *service.BillingService) *BillingHandler {
	return &BillingHandler{
		billingService: billingService,
	}
}

// Checkout 模拟支付并切换套餐
// POST /api/v1/billing/checkout
func (h *BillingHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	var req dto.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.billingService.Checkout(userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "支付成功", resp)
}

// Payments 支付记录
// GET /api/v1/billing/payments?limit=10
func (h *BillingHandler) Payments(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit < 0 || limit > maxPageSize {
		limit = 0
	}

	payments, err := h.billingService.ListPayments(userID, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, payments)
}
