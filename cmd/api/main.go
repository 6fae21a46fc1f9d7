package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/campuskit/sms-api/api/swagger"
	"github.com/campuskit/sms-api/internal/handler"
	"github.com/campuskit/sms-api/internal/middleware"
	"github.com/campuskit/sms-api/internal/repository"
	"github.com/campuskit/sms-api/internal/service"
	"github.com/campuskit/sms-api/pkg/cache"
	"github.com/campuskit/sms-api/pkg/config"
	"github.com/campuskit/sms-api/pkg/database"
	"github.com/campuskit/sms-api/pkg/jobs"
	"github.com/campuskit/sms-api/pkg/logger"
	corsmiddleware "github.com/campuskit/sms-api/pkg/middleware/cors"
	reqidmiddleware "github.com/campuskit/sms-api/pkg/middleware/requestid"
	"github.com/campuskit/sms-api/pkg/storage"
)

// @title CampusKit SMS API
// @version 1.0.0
// @description Student management, billing and certificate API
// @BasePath /
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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// Verification caching degrades gracefully without Redis.
		logr.Sugar().Warnw("redis unavailable, continuing without cache", "error", err)
		redisClient = nil
	}

	store, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	customInvoiceRepo := repository.NewCustomInvoiceRepository(db)
	certificateRepo := repository.NewCertificateRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Services.
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	courseSvc := service.NewCourseService(courseRepo, validate, logr)
	batchSvc := service.NewBatchService(batchRepo, courseRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, courseRepo, batchRepo, validate, logr)
	metricsSvc := service.NewMetricsService()
	documentSvc := service.NewDocumentService(certificateRepo, invoiceRepo, customInvoiceRepo, store, jobs.QueueConfig{
		Workers:    cfg.Documents.WorkerConcurrency,
		MaxRetries: cfg.Documents.WorkerRetries,
		Logger:     logr,
	}, metricsSvc, logr)
	invoiceSvc := service.NewInvoiceService(invoiceRepo, studentRepo, courseRepo, batchRepo, documentSvc, validate, logr)
	customInvoiceSvc := service.NewCustomInvoiceService(customInvoiceRepo, documentSvc, validate, logr)
	certificateSvc := service.NewCertificateService(certificateRepo, studentRepo, courseRepo, batchRepo, documentSvc, cacheRepo, validate, logr)
	verificationSvc := service.NewVerificationService(certificateRepo, cacheRepo, cfg.Verification.CacheTTL, metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	documentSvc.Start(ctx)
	defer documentSvc.Stop()

	// Handlers.
	authHandler := handler.NewAuthHandler(authSvc)
	courseHandler := handler.NewCourseHandler(courseSvc)
	batchHandler := handler.NewBatchHandler(batchSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc, documentSvc)
	customInvoiceHandler := handler.NewCustomInvoiceHandler(customInvoiceSvc, documentSvc)
	certificateHandler := handler.NewCertificateHandler(certificateSvc, verificationSvc, documentSvc, signer, metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "document_queue_depth": documentSvc.QueueDepth()})
	})
	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Public certificate verification. No auth on purpose: anyone holding
	// a certificate ID may check it. Valid results carry a signed download
	// link served by the companion route below.
	r.GET("/verify/:certificate_id", certificateHandler.Verify)
	r.GET("/certificates/download", certificateHandler.DownloadVerified)

	auth := r.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	api := r.Group("", middleware.JWT(authSvc))

	// Downloads are owner-or-admin: the handlers reject students asking
	// for another student's documents.
	api.GET("/invoices/:id/download", invoiceHandler.Download)
	api.GET("/certificates/:id/download", certificateHandler.Download)

	admin := api.Group("", middleware.RequireAdmin())
	{
		admin.GET("/courses", courseHandler.List)
		admin.POST("/courses", middleware.Audit(userRepo, "create", "course"), courseHandler.Create)
		admin.GET("/courses/:id", courseHandler.Get)
		admin.PUT("/courses/:id", middleware.Audit(userRepo, "update", "course"), courseHandler.Update)
		admin.DELETE("/courses/:id", middleware.Audit(userRepo, "delete", "course"), courseHandler.Delete)

		admin.GET("/batches", batchHandler.List)
		admin.POST("/batches", middleware.Audit(userRepo, "create", "batch"), batchHandler.Create)
		admin.GET("/batches/:id", batchHandler.Get)
		admin.PUT("/batches/:id", middleware.Audit(userRepo, "update", "batch"), batchHandler.Update)
		admin.DELETE("/batches/:id", middleware.Audit(userRepo, "delete", "batch"), batchHandler.Delete)

		admin.GET("/students", studentHandler.List)
		admin.POST("/students", middleware.Audit(userRepo, "create", "student"), studentHandler.Create)
		admin.GET("/students/:id", studentHandler.Get)
		admin.PUT("/students/:id", middleware.Audit(userRepo, "update", "student"), studentHandler.Update)
		admin.DELETE("/students/:id", middleware.Audit(userRepo, "delete", "student"), studentHandler.Delete)
		admin.POST("/students/:id/enrollments", middleware.Audit(userRepo, "enroll", "student"), studentHandler.Enroll)
		admin.GET("/students/:id/invoices", invoiceHandler.ListByStudent)

		admin.GET("/invoices", invoiceHandler.List)
		admin.POST("/invoices", middleware.Audit(userRepo, "create", "invoice"), invoiceHandler.Create)
		admin.GET("/invoices/:id", invoiceHandler.Get)

		admin.GET("/custom-invoices", customInvoiceHandler.List)
		admin.POST("/custom-invoices", middleware.Audit(userRepo, "create", "custom_invoice"), customInvoiceHandler.Create)
		admin.GET("/custom-invoices/:id", customInvoiceHandler.Get)
		admin.PUT("/custom-invoices/:id", middleware.Audit(userRepo, "update", "custom_invoice"), customInvoiceHandler.Update)
		admin.DELETE("/custom-invoices/:id", middleware.Audit(userRepo, "delete", "custom_invoice"), customInvoiceHandler.Delete)
		admin.GET("/custom-invoices/:id/download", customInvoiceHandler.Download)

		admin.GET("/certificates", certificateHandler.List)
		admin.POST("/certificates", middleware.Audit(userRepo, "issue", "certificate"), certificateHandler.Issue)
		admin.GET("/certificates/:id", certificateHandler.Get)
		admin.DELETE("/certificates/:id", middleware.Audit(userRepo, "delete", "certificate"), certificateHandler.Delete)
	}

	// Student self-service. Admins pass the role check as well.
	me := api.Group("", middleware.RequireStudent())
	{
		me.GET("/students/me", studentHandler.Me)
		me.GET("/students/me/invoices", invoiceHandler.ListMine)
		me.GET("/students/me/certificates", certificateHandler.ListMine)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}

	if err := cacheRepo.Close(); err != nil {
		logr.Sugar().Warnw("failed to close redis", "error", err)
	}
}
