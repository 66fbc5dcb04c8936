package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/qs3c/audiosep_server/config"
	"github.com/qs3c/audiosep_server/internal/api"
	"github.com/qs3c/audiosep_server/internal/api/handler"
	"github.com/qs3c/audiosep_server/internal/database"
	"github.com/qs3c/audiosep_server/internal/pkg/email"
	"github.com/qs3c/audiosep_server/internal/pkg/logger"
	"github.com/qs3c/audiosep_server/internal/pkg/oauth"
	"github.com/qs3c/audiosep_server/internal/pkg/pubsub"
	"github.com/qs3c/audiosep_server/internal/pkg/storage"
	"github.com/qs3c/audiosep_server/internal/pkg/ws"
	"github.com/qs3c/audiosep_server/internal/repository"
	"github.com/qs3c/audiosep_server/internal/service"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log)

	// 初始化数据库
	db, err := database.Open(&cfg.Database)
	if err != nil {
		slog.Error("failed to connect database", "error", err)
		os.Exit(1)
	}
	if err := database.AutoMigrate(db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connected", "driver", cfg.Database.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// WebSocket Hub
	wsHub := ws.NewHub()

	// Redis 可选：OAuth state 和多实例之间的任务事件依赖它
	var (
		rdb      *redis.Client
		states   *oauth.StateStore
		notifier service.JobNotifier = wsHub
	)
	if cfg.Redis.Host != "" {
		rdb, err = database.NewRedis(&cfg.Redis)
		if err != nil {
			slog.Error("failed to connect redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		states = oauth.NewStateStore(rdb)
		notifier = pubsub.NewPublisher(rdb)

		subscriber := pubsub.NewSubscriber(rdb)
		go func() {
			if err := subscriber.Subscribe(ctx, wsHub.DeliverJob); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("job update subscriber stopped", "error", err)
			}
		}()
		slog.Info("redis connected", "addr", fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
	} else {
		slog.Warn("redis not configured, github login disabled and job events stay in-process")
	}

	// 上传存储
	store, err := storage.New(&cfg.Upload, &cfg.OSS)
	if err != nil {
		slog.Error("failed to init upload storage", "error", err)
		os.Exit(1)
	}

	// 初始化 Repository
	userRepo := repository.NewUserRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subRepo := repository.NewSubscriptionRepository(db)
	usageRepo := repository.NewUsageRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	jobRepo := repository.NewJobRepository(db)
	guestRepo := repository.NewGuestRepository(db)

	// 初始化 Service
	planService := service.NewPlanService(planRepo, cfg)
	if _, err := planService.Seed(); err != nil {
		slog.Error("failed to seed plans", "error", err)
		os.Exit(1)
	}
	subService := service.NewSubscriptionService(subRepo, planRepo, planService)
	quotaService := service.NewQuotaService(usageRepo, userRepo, subService)
	guestService := service.NewGuestService(guestRepo, jobRepo, cfg)
	authService := service.NewAuthService(userRepo, subService, guestService, oauth.NewGithubOAuth(cfg.OAuth.Github), cfg)
	billingService := service.NewBillingService(db, userRepo, planRepo, subRepo, paymentRepo, subService, email.NewService(&cfg.Email), cfg)
	accountService := service.NewAccountService(userRepo, paymentRepo, subService, quotaService)
	jobService := service.NewJobService(jobRepo, userRepo, subService, quotaService, guestService, store, notifier, cfg)
	adminService := service.NewAdminService(db, userRepo, subRepo, usageRepo, paymentRepo, planService, subService, cfg)

	if err := adminService.BootstrapAdmin(); err != nil {
		slog.Error("failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService, states)
	accountHandler := handler.NewAccountHandler(accountService, quotaService, authService, billingService)
	billingHandler := handler.NewBillingHandler(billingService)
	planHandler := handler.NewPlanHandler(planService)
	jobHandler := handler.NewJobHandler(jobService)
	adminHandler := handler.NewAdminHandler(adminService, guestService, jobService, planService)
	websocketHandler := handler.NewWebSocketHandler(wsHub, guestService, cfg.JWT.Secret, cfg.CORS.AllowedOrigins)
	healthHandler := handler.NewHealthHandler(db, rdb)

	// 初始化 Router
	router := api.NewRouter(
		authHandler,
		accountHandler,
		billingHandler,
		planHandler,
		jobHandler,
		adminHandler,
		websocketHandler,
		healthHandler,
		authService,
		jobService,
		cfg,
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.Setup(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
