package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/api/handler"
	"github.com/qs3c/audiosep_server/internal/api/middleware"
	"github.com/qs3c/audiosep_server/internal/service"
)

type Router struct {
	authHandler      *handler.AuthHandler
	accountHandler   *handler.AccountHandler
	billingHandler   *handler.BillingHandler
	planHandler      *handler.PlanHandler
	jobHandler       *handler.JobHandler
	adminHandler     *handler.AdminHandler
	websocketHandler *handler.WebSocketHandler
	healthHandler    *handler.HealthHandler
	authService      *service.AuthService
	jobService       *service.JobService
	cfg              *config.Config
}

func NewRouter(
	authHandler *handler.AuthHandler,
	accountHandler *handler.AccountHandler,
	billingHandler *handler.BillingHandler,
	planHandler *handler.PlanHandler,
	jobHandler *handler.JobHandler,
	adminHandler *handler.AdminHandler,
	websocketHandler *handler.WebSocketHandler,
	healthHandler *handler.HealthHandler,
	authService *service.AuthService,
	jobService *service.JobService,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      authHandler,
		accountHandler:   accountHandler,
		billingHandler:   billingHandler,
		planHandler:      planHandler,
		jobHandler:       jobHandler,
		adminHandler:     adminHandler,
		websocketHandler: websocketHandler,
		healthHandler:    healthHandler,
		authService:      authService,
		jobService:       jobService,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger())
	engine.Use(middleware.Metrics())
	engine.Use(middleware.CORS(r.cfg.CORS))

	// 上传体积由 service 校验，这里只限制 multipart 的内存占用
	engine.MaxMultipartMemory = 32 << 20

	engine.GET("/healthz", r.healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := engine.Group("/api/v1")
	{
		// WebSocket
		api.GET("/ws", r.websocketHandler.Handle)

		// 公开接口 - 套餐
		api.GET("/plans", r.planHandler.List)
		api.GET("/plans/:id", r.planHandler.Get)

		// 公开接口 - 认证
		auth := api.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/guest", r.authHandler.Guest)
			auth.GET("/github", r.authHandler.GithubAuth)
			auth.GET("/github/callback", r.authHandler.GithubCallback)
		}

		// 上传和任务详情：登录用户或访客
		jobsOpen := api.Group("/jobs")
		jobsOpen.Use(middleware.OptionalAuth(r.cfg.JWT.Secret), middleware.GuestToken())
		{
			jobsOpen.POST("/upload", middleware.QuotaCheck(r.jobService), r.jobHandler.Upload)
			jobsOpen.GET("/:id", r.jobHandler.Get)
		}

		// 访客
		guest := api.Group("/guest")
		guest.Use(middleware.GuestToken(), middleware.RequireGuest())
		{
			guest.GET("/jobs", r.jobHandler.GuestList)
		}

		// 需要认证的接口
		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.cfg.JWT.Secret))
		{
			account := authenticated.Group("/account")
			{
				account.GET("/summary", r.accountHandler.Summary)
				account.GET("/quota", r.accountHandler.Quota)
				account.POST("/password", r.accountHandler.ChangePassword)
				account.POST("/downgrade", r.accountHandler.Downgrade)
			}

			billing := authenticated.Group("/billing")
			{
				billing.POST("/checkout", r.billingHandler.Checkout)
				billing.GET("/payments", r.billingHandler.Payments)
			}

			authenticated.GET("/jobs", r.jobHandler.List)
		}

		// 管理后台
		admin := api.Group("/admin")
		admin.Use(middleware.Auth(r.cfg.JWT.Secret), middleware.RequireAdmin(r.authService))
		{
			admin.GET("/users", r.adminHandler.ListUsers)
			admin.POST("/users", r.adminHandler.CreateUser)
			admin.PUT("/users/:id", r.adminHandler.UpdateUser)
			admin.DELETE("/users/:id", r.adminHandler.DeleteUser)

			admin.GET("/guests", r.adminHandler.ListGuests)
			admin.DELETE("/guests/:id", r.adminHandler.DeleteGuest)

			admin.GET("/jobs", r.adminHandler.ListJobs)
			admin.DELETE("/jobs/:id", r.adminHandler.DeleteJob)

			admin.GET("/plans", r.adminHandler.ListPlans)
			admin.POST("/plans", r.adminHandler.CreatePlan)
			admin.PUT("/plans/:id", r.adminHandler.UpdatePlan)
			admin.DELETE("/plans/:id", r.adminHandler.DeletePlan)

			admin.POST("/sql", r.adminHandler.Query)
			admin.GET("/payments/export", r.adminHandler.ExportPayments)
		}
	}

	return engine
}
