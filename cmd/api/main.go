package main

import (
	"context"
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

	_ "github.com/orquesta-sinfonica/rotativos-api/api/swagger"
	"github.com/orquesta-sinfonica/rotativos-api/internal/handler"
	"github.com/orquesta-sinfonica/rotativos-api/internal/middleware"
	"github.com/orquesta-sinfonica/rotativos-api/internal/models"
	"github.com/orquesta-sinfonica/rotativos-api/internal/notify"
	"github.com/orquesta-sinfonica/rotativos-api/internal/repository"
	"github.com/orquesta-sinfonica/rotativos-api/internal/service"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/cache"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/config"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/database"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/jobs"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/logger"
	corsmiddleware "github.com/orquesta-sinfonica/rotativos-api/pkg/middleware/cors"
	reqidmiddleware "github.com/orquesta-sinfonica/rotativos-api/pkg/middleware/requestid"
	"github.com/orquesta-sinfonica/rotativos-api/pkg/storage"
)

// @title Rotativos API
// @version 1.0.0
// @description Rest-day rotation eligibility and fair-allocation engine
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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to redis", "error", err)
	}
	defer redisClient.Close() //nolint:errcheck
	promotionMutex := cache.NewMutex(redisClient, 30*time.Second)

	reportStorage, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	seasonRepo := repository.NewSeasonRepository(db)
	tituloRepo := repository.NewTituloRepository(db)
	eventRepo := repository.NewEventRepository(db)
	rotationRepo := repository.NewRotationRepository(db)
	blockRepo := repository.NewBlockRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	licenseRepo := repository.NewLicenseRepository(db)
	ruleRepo := repository.NewRuleRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	// Rotation lifecycle notifications ride an in-memory queue so broker
	// outages never block request handling.
	publisher := notify.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.Queue, logr)
	notifier := notify.NewNotifier(publisher, jobs.QueueConfig{
		Workers:    cfg.Notifications.Workers,
		MaxRetries: cfg.Notifications.MaxRetries,
		RetryDelay: cfg.Notifications.RetryDelay,
	}, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Notifications.Enabled {
		notifier.Start(ctx)
		defer notifier.Stop()
		defer publisher.Close()
	}

	// Services.
	metricsService := service.NewMetricsService()
	authService := service.NewAuthService(struct {
		*repository.UserRepository
		*repository.AuditRepository
	}{userRepo, auditRepo}, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	ruleService := service.NewRuleService(ruleRepo, auditRepo, validate, logr)
	capacityService := service.NewCapacityService(eventRepo, userRepo, balanceRepo, ruleService, logr)
	balanceService := service.NewBalanceService(balanceRepo, userRepo, capacityService, auditRepo, validate, logr)
	eligibilityService := service.NewEligibilityService(userRepo, eventRepo, rotationRepo, balanceService, ruleService, metricsService, logr)
	waitlistService := service.NewWaitlistService(waitlistRepo, rotationRepo, eventRepo, balanceService, ruleService, promotionMutex, notifier, auditRepo, metricsService, logr)
	rotationService := service.NewRotationService(rotationRepo, eventRepo, eligibilityService, balanceService, waitlistService, ruleService, notifier, auditRepo, metricsService, validate, logr)
	blockService := service.NewBlockService(blockRepo, tituloRepo, eventRepo, rotationRepo, balanceService, ruleService, waitlistService, notifier, auditRepo, metricsService, validate, logr)
	licenseService := service.NewLicenseService(licenseRepo, userRepo, eventRepo, balanceService, ruleService, auditRepo, validate, logr)
	exportService := service.NewExportService(balanceService, reportStorage, reportSigner, logr)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	rotationHandler := handler.NewRotationHandler(rotationService, eligibilityService)
	blockHandler := handler.NewBlockHandler(blockService, seasonRepo)
	balanceHandler := handler.NewBalanceHandler(balanceService, capacityService, seasonRepo)
	ruleHandler := handler.NewRuleHandler(ruleService)
	licenseHandler := handler.NewLicenseHandler(licenseService, seasonRepo)
	waitlistHandler := handler.NewWaitlistHandler(waitlistService)
	reportHandler := handler.NewReportHandler(exportService, seasonRepo)
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
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := string(models.RoleAdmin)
	musico := string(models.RoleMusico)

	api := r.Group(cfg.APIPrefix)
	api.POST("/auth/login", authHandler.Login)
	api.GET("/reports/download", reportHandler.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(authService))

	secured.GET("/rotations/eligibility", rotationHandler.Eligibility)
	secured.POST("/rotations", middleware.RBAC(admin, musico), rotationHandler.Create)
	secured.POST("/rotations/:id/approve", middleware.RBAC(admin), rotationHandler.Approve)
	secured.POST("/rotations/:id/reject", middleware.RBAC(admin), rotationHandler.Reject)
	secured.DELETE("/rotations/:id", rotationHandler.Cancel)
	secured.POST("/rotations/mandatory", middleware.RBAC(admin), rotationHandler.AssignMandatory)

	secured.POST("/blocks", middleware.RBAC(admin, musico), blockHandler.Request)
	secured.POST("/blocks/:id/approve", middleware.RBAC(admin), blockHandler.Approve)
	secured.DELETE("/blocks/:id", blockHandler.Cancel)
	secured.POST("/blocks/sweep", middleware.RBAC(admin), blockHandler.Sweep)

	secured.GET("/balances/:userId", middleware.RBAC(admin, "SELF"), balanceHandler.Get)
	secured.PUT("/balances/:userId/override", middleware.RBAC(admin), balanceHandler.Override)
	secured.POST("/balances/recalculate", middleware.RBAC(admin), balanceHandler.Recalculate)

	secured.GET("/rules", ruleHandler.List)
	secured.GET("/rules/:key", ruleHandler.Get)
	secured.PUT("/rules/:key", middleware.RBAC(admin), ruleHandler.Update)

	secured.POST("/licenses", middleware.RBAC(admin), licenseHandler.Create)
	secured.DELETE("/licenses/:id", middleware.RBAC(admin), licenseHandler.Delete)

	secured.GET("/events/:id/waitlist", middleware.RBAC(admin), waitlistHandler.ListByEvent)
	secured.POST("/seasons/:id/waitlist/purge", middleware.RBAC(admin), waitlistHandler.Purge)

	secured.GET("/reports/balances",
		middleware.RBAC(admin),
		middleware.Audit(auditRepo, "REPORT_EXPORT", "reports"),
		reportHandler.Balances)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
