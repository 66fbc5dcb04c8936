package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

type PlanHandler struct {
	planService *service.PlanService
}

func NewPlanHandler(planService *service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
	}
}

// List 套餐目录
// GET /api/v1/plans
func (h *PlanHandler) List(c *gin.Context) {
	plans, err := h.planService.List()
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, plans)
}

// Get 套餐详情
// GET /api/v1/plans/:id
func (h *PlanHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.ParamError(c, "无效的套餐ID")
		return
	}

	plan, err := h.planService.GetInfo(id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, plan)
}
