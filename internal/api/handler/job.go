package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/api/middleware"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

type JobHandler struct {
	jobService *service.JobService
}

func NewJobHandler(jobService *service.JobService) *JobHandler {
	return &JobHandler{
		jobService: jobService,
	}
}

// Upload 上传音频并分离
// POST /api/v1/jobs/upload (multipart, 字段 file)
func (h *JobHandler) Upload(c *gin.Context) {
	// 字段缺失由 service 返回 ErrMissingFile
	file, err := c.FormFile("file")
	if errors.Is(err, http.ErrNotMultipart) {
		response.ParamError(c, "请使用 multipart/form-data 上传")
		return
	}

	job, err := h.jobService.Upload(c.Request.Context(), middleware.GetIdentity(c), file)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "处理完成", job)
}

// List 当前用户最近的任务
// GET /api/v1/jobs
func (h *JobHandler) List(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.AuthError(c, "")
		return
	}

	jobs, err := h.jobService.ListForUser(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, jobs)
}

// Get 任务详情，登录用户和访客都只能查看自己的任务
// GET /api/v1/jobs/:id
func (h *JobHandler) Get(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if identity.UserID == 0 && !identity.IsGuest() {
		response.AuthError(c, "")
		return
	}

	id, ok := parseID(c)
	if !ok {
		response.ParamError(c, "无效的任务ID")
		return
	}

	job, err := h.jobService.Get(identity, id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, job)
}

// GuestList 访客最近的任务
// GET /api/v1/guest/jobs
func (h *JobHandler) GuestList(c *gin.Context) {
	token, ok := middleware.GetGuestToken(c)
	if !ok {
		response.AuthError(c, "请提供访客令牌")
		return
	}

	jobs, err := h.jobService.ListForGuest(token)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, jobs)
}
