package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/verichain/verichain-api/api/swagger"
	"github.com/verichain/verichain-api/internal/handler"
	"github.com/verichain/verichain-api/internal/middleware"
	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/repository"
	"github.com/verichain/verichain-api/internal/service"
	"github.com/verichain/verichain-api/pkg/analysis"
	"github.com/verichain/verichain-api/pkg/cache"
	"github.com/verichain/verichain-api/pkg/config"
	"github.com/verichain/verichain-api/pkg/database"
	"github.com/verichain/verichain-api/pkg/ledger"
	"github.com/verichain/verichain-api/pkg/logger"
	corsmiddleware "github.com/verichain/verichain-api/pkg/middleware/cors"
	reqidmiddleware "github.com/verichain/verichain-api/pkg/middleware/requestid"
	"github.com/verichain/verichain-api/pkg/storage"
)

// @title VeriChain API
// @version 1.0.0
// @description Credential application consensus and lifecycle engine
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, response cache disabled", zap.Error(err))
		redisClient = nil
	}

	validate := validator.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Repositories.
	appRepo := repository.NewApplicationRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	validatorRepo := repository.NewValidatorRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	rejectionRepo := repository.NewRejectionRepository(db)
	certRepo := repository.NewCertificateRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)
	eventRepo := repository.NewEventRepository(db)
	userRepo := repository.NewUserRepository(db)

	// Collaborator clients.
	ledgerClient := ledger.NewClient(ledger.Config{
		BaseURL: cfg.Ledger.BaseURL,
		APIKey:  cfg.Ledger.APIKey,
		Timeout: cfg.Ledger.Timeout,
	})
	analysisClient := analysis.NewClient(analysis.Config{
		BaseURL:       cfg.Analysis.BaseURL,
		WebhookSecret: cfg.Analysis.WebhookSecret,
		Timeout:       cfg.Analysis.Timeout,
	})

	// Services.
	metricsService := service.NewMetricsService()
	notificationService := service.NewNotificationService(notificationRepo, cfg.Notifications, logr)
	notificationService.Start(ctx)
	defer notificationService.Stop()

	issuanceService := service.NewIssuanceService(certRepo, appRepo, ledgerClient, eventRepo,
		notificationService, metricsService, cfg.Ledger, logr)
	rejectionService := service.NewRejectionService()
	cacheInvalidator := middleware.NewCacheInvalidator(redisClient)
	lifecycleService := service.NewLifecycleService(appRepo, rejectionRepo, certRepo, eventRepo,
		rejectionService, issuanceService, notificationService, metricsService, cacheInvalidator, logr)
	registryService := service.NewRegistryService(validatorRepo, voteRepo, validate, logr)
	prescreenService := service.NewPreScreenService(cfg.PreScreen, logr)
	voteService := service.NewVoteService(appRepo, voteRepo, registryService, lifecycleService,
		analysisRepo, eventRepo, cfg.Consensus, validate, metricsService, logr)
	applicationService := service.NewApplicationService(appRepo, analysisRepo, rejectionRepo,
		certRepo, eventRepo, lifecycleService, prescreenService, analysisClient,
		notificationService, cfg.PublicBaseURL, validate, logr)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "verichain-api",
	})

	if err := issuanceService.Start(ctx); err != nil {
		logr.Error("failed to requeue pending issuance requests", zap.Error(err))
	}
	defer issuanceService.Stop()

	sweeper := service.NewSweeperService(appRepo, voteService, cfg.Consensus, logr)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	var exportService *service.ExportService
	if cfg.Exports.Enabled {
		store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Fatal("failed to prepare export storage", zap.Error(err))
		}
		signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		exportService = service.NewExportService(appRepo, voteRepo, rejectionRepo, eventRepo,
			cfg.Consensus, store, signer, logr)
		go exportCleanupLoop(ctx, exportService, cfg.Exports.CleanupInterval, cfg.Exports.SignedURLTTL)
	}

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	applicationHandler := handler.NewApplicationHandler(applicationService, cfg.Analysis.WebhookSecret)
	voteHandler := handler.NewVoteHandler(voteService)
	validatorHandler := handler.NewValidatorHandler(registryService)
	adminHandler := handler.NewAdminHandler(applicationService, exportService, metricsService)
	notificationHandler := handler.NewNotificationHandler(notificationService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
	}

	apps := api.Group("/applications")
	{
		// Webhook authenticates by HMAC signature, not a user token.
		apps.POST("/:id/analysis", applicationHandler.RecordAnalysis)

		apps.Use(middleware.JWT(authService))
		apps.POST("", middleware.RequireRoles(models.RoleApplicant, models.RoleAdmin), applicationHandler.Submit)
		apps.GET("", middleware.Cache(redisClient, cfg.Cache, metricsService), applicationHandler.List)
		apps.GET("/:id", applicationHandler.Get)
		apps.POST("/:id/withdraw", applicationHandler.Withdraw)
		apps.POST("/:id/resubmit", middleware.RequireRoles(models.RoleApplicant), applicationHandler.Resubmit)
		apps.POST("/:id/appeal", middleware.RequireRoles(models.RoleApplicant), applicationHandler.Appeal)
		apps.GET("/:id/analysis", middleware.RequireRoles(models.RoleValidator, models.RoleAdmin), applicationHandler.GetAnalysis)
		apps.GET("/:id/rejection", applicationHandler.GetRejection)
		apps.GET("/:id/certificate", applicationHandler.GetCertificate)
		apps.GET("/:id/votes", middleware.RequireRoles(models.RoleValidator, models.RoleAdmin), voteHandler.List)
		apps.GET("/:id/tally", middleware.RequireRoles(models.RoleValidator, models.RoleAdmin), voteHandler.Tally)
		apps.POST("/:id/votes",
			middleware.RequireRoles(models.RoleValidator),
			middleware.RequireWallet(),
			middleware.Audit(eventRepo, models.EventTypeVoteCast),
			voteHandler.Submit)
	}

	validators := api.Group("/validators", middleware.JWT(authService))
	{
		validators.GET("", validatorHandler.List)
		validators.GET("/:address", validatorHandler.Get)
		validators.POST("", middleware.RequireRoles(models.RoleAdmin), validatorHandler.Register)
	}

	notifications := api.Group("/notifications", middleware.JWT(authService))
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/:id/read", notificationHandler.MarkRead)
	}

	admin := api.Group("/admin", middleware.JWT(authService), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.POST("/applications/:id/unflag", adminHandler.Unflag)
		admin.POST("/validators/:address/stake", validatorHandler.SetStake)
		admin.POST("/validators/:address/suspend", validatorHandler.Suspend)
		admin.POST("/validators/:address/reinstate", validatorHandler.Reinstate)
		admin.GET("/analytics", adminHandler.Analytics)
		if exportService != nil {
			admin.GET("/applications/:id/export", adminHandler.Export)
		}
	}
	if exportService != nil {
		api.GET("/exports/download", adminHandler.Download)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
		os.Exit(1)
	}
}

func exportCleanupLoop(ctx context.Context, exports *service.ExportService, interval, ttl time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exports.CleanupExpired(ttl)
		}
	}
}
