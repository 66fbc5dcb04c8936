package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/api/middleware"
	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

type AdminHandler struct {
	adminService *service.AdminService
	guestService *service.GuestService
	jobService   *service.JobService
	planService  *service.PlanService
}

func NewAdminHandler(
	adminService *service.AdminService,
	guestService *service.GuestService,
	jobService *service.JobService,
	planService *service.PlanService,
) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		guestService: guestService,
		jobService:   jobService,
		planService:  planService,
	}
}

// ListUsers GET /api/v1/admin/users
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, pageSize := parsePage(c)

	items, total, err := h.adminService.ListUsers(page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// CreateUser POST /api/v1/admin/users
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req dto.AdminCreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	user, err := h.adminService.CreateUser(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, user)
}

// UpdateUser PUT /api/v1/admin/users/:id
func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.ParamError(c, "无效的用户ID")
		return
	}

	var req dto.AdminUpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	user, err := h.adminService.UpdateUser(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, user)
}

// DeleteUser DELETE /api/v1/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	operatorID, _ := middleware.GetUserID(c)

	id, ok := parseID(c)
	if !ok {
		response.ParamError(c, "无效的用户ID")
		return
	}

	if err := h.adminService.DeleteUser(operatorID, id); err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// ListGuests GET /api/v1/admin/guests
func (h *AdminHandler) ListGuests(c *gin.Context) {
	page, pageSize := parsePage(c)

	items, total, err := h.guestService.List(page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// DeleteGuest DELETE /api/v1/admin/guests/:id
func (h *AdminHandler) DeleteGuest(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.ParamError(c, "无效的访客ID")
		return
	}

	if err := h.guestService.Delete(id); err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// ListJobs GET /api/v1/admin/jobs
func (h *AdminHandler) ListJobs(c *gin.Context) {
	page, pageSize := parsePage(c)

	items, total, err := h.jobService.List(page, pageSize)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessPage(c, total, page, pageSize, items)
}

// DeleteJob DELETE /api/v1/admin/jobs/:id
func (h *AdminHandler) DeleteJob(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.ParamError(c, "无效的任务ID")
		return
	}

	if err := h.jobService.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// ListPlans GET /api/v1/admin/plans
func (h *AdminHandler) ListPlans(c *gin.Context) {
	plans, err := h.planService.List()
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, plans)
}

// CreatePlan POST /api/v1/admin/plans
func (h *AdminHandler) CreatePlan(c *gin.Context) {
	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	plan, err := h.planService.Create(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, plan)
}

// UpdatePlan PUT /api/v1/admin/plans/:id
func (h *AdminHandler) UpdatePlan(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.ParamError(c, "无效的套餐ID")
		return
	}

	var req dto.PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	plan, err := h.planService.Update(id, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, plan)
}

// DeletePlan DELETE /api/v1/admin/plans/:id
func (h *AdminHandler) DeletePlan(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		response.ParamError(c, "无效的套餐ID")
		return
	}

	if err := h.planService.Delete(id); err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "删除成功", nil)
}

// Query 只读 SQL 控制台
// POST /api/v1/admin/sql
func (h *AdminHandler) Query(c *gin.Context) {
	var req dto.SQLQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	result, err := h.adminService.Query(req.Query)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, result)
}

// ExportPayments 导出支付记录
// GET /api/v1/admin/payments/export
func (h *AdminHandler) ExportPayments(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.adminService.ExportPayments(&buf); err != nil {
		respondError(c, err)
		return
	}

	filename := fmt.Sprintf("payments_%s.xlsx", time.Now().UTC().Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, service.XLSXContentType, buf.Bytes())
}
