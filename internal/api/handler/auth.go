package handler

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/qs3c/audiosep_server/internal/model/dto"
	"github.com/qs3c/audiosep_server/internal/pkg/oauth"
	"github.com/qs3c/audiosep_server/internal/pkg/response"
	"github.com/qs3c/audiosep_server/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	states      *oauth.StateStore
}

// NewAuthHandler states 为 nil 时 GitHub 登录不可用
func NewAuthHandler(authService *service.AuthService, states *oauth.StateStore) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		states:      states,
	}
}

// Register 用户注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Register(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "注册成功", resp)
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, err.Error())
		return
	}

	resp, err := h.authService.Login(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}

// Guest 创建访客会话
// POST /api/v1/auth/guest
func (h *AuthHandler) Guest(c *gin.Context) {
	resp, err := h.authService.CreateGuestSession()
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, resp)
}

// GithubAuth 获取 GitHub 授权地址
// GET /api/v1/auth/github?redirect_uri=xxx
func (h *AuthHandler) GithubAuth(c *gin.Context) {
	if h.states == nil || !h.authService.GithubEnabled() {
		respondError(c, oauth.ErrNotConfigured)
		return
	}

	state, err := h.states.GenerateState(c.Request.Context(), c.Query("redirect_uri"))
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{"url": h.authService.GetGithubAuthURL(state)})
}

// GithubCallback GitHub 授权回调
// GET /api/v1/auth/github/callback?code=xxx&state=xxx
//
// 发起授权时带了 redirect_uri 的，登录成功后带着 token 跳回前端。
func (h *AuthHandler) GithubCallback(c *gin.Context) {
	if h.states == nil {
		respondError(c, oauth.ErrNotConfigured)
		return
	}

	code := c.Query("code")
	if code == "" {
		response.ParamError(c, "缺少授权码")
		return
	}

	redirectURI, err := h.states.ValidateState(c.Request.Context(), c.Query("state"))
	if err != nil {
		respondError(c, err)
		return
	}

	resp, err := h.authService.GithubCallback(c.Request.Context(), code)
	if err != nil {
		respondError(c, err)
		return
	}

	if redirectURI != "" {
		if target, err := url.Parse(redirectURI); err == nil {
			q := target.Query()
			q.Set("token", resp.Token)
			target.RawQuery = q.Encode()
			c.Redirect(http.StatusFound, target.String())
			return
		}
	}

	response.SuccessWithMessage(c, "登录成功", resp)
}
