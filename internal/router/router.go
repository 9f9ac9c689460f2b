package router

import (
	"time"

	"coursely/config"
	"coursely/internal/domain"
	"coursely/internal/handler"
	"coursely/internal/middleware"
	"coursely/internal/repository"
	"coursely/internal/service"
	"coursely/pkg/gateway"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func Setup(cfg *config.Config, db *gorm.DB, gw gateway.Client) (*gin.Engine, *service.PaymentService) {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	ipLimiter := middleware.NewTokenBucketLimiter(100, time.Minute)
	userLimiter := middleware.NewTokenBucketLimiter(60, time.Minute)
	r.Use(middleware.RateLimitByIP(ipLimiter))

	// Repositories
	userRepo := repository.NewUserRepository(db)
	courseRepo := repository.NewCourseRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	receiptRepo := repository.NewWebhookReceiptRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)

	// Services
	paymentSvc := service.NewPaymentService(paymentRepo, courseRepo, receiptRepo, auditRepo, gw, &cfg.Payment)
	enrollSvc := service.NewEnrollmentService(enrollmentRepo, courseRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(cfg, userRepo)
	courseHandler := handler.NewCourseHandler(courseRepo)
	paymentHandler := handler.NewPaymentHandler(paymentSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollSvc)
	webhookHandler := handler.NewPaymobWebhookHandler(paymentSvc, gw)
	adminHandler := handler.NewAdminHandler(paymentSvc, paymentRepo, receiptRepo)

	authMw := middleware.AuthRequired(&cfg.JWT)

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", authHandler.Login)

		api.GET("/courses", courseHandler.List)
		api.GET("/courses/:id", courseHandler.Get)
		api.POST("/courses/:id/enroll", authMw, middleware.RequireRole(domain.RoleStudent, domain.RoleAdmin), enrollmentHandler.EnrollFree)

		payments := api.Group("/payments")
		payments.Use(authMw, middleware.RateLimitByUser(userLimiter))
		{
			purchase := payments.Group("")
			purchase.Use(middleware.RequireRole(domain.RoleStudent, domain.RoleAdmin))
			{
				purchase.POST("/initiate", paymentHandler.Initiate)
				purchase.POST("/:id/retry", paymentHandler.Retry)
				purchase.POST("/:id/cancel", paymentHandler.Cancel)
			}
			payments.GET("/:id", paymentHandler.Get)
		}

		me := api.Group("/me")
		me.Use(authMw, middleware.RateLimitByUser(userLimiter))
		{
			me.GET("/payments", paymentHandler.ListMine)
			me.GET("/enrollments", enrollmentHandler.ListMine)
			me.POST("/enrollments/:course_id/progress", enrollmentHandler.Progress)
		}

		admin := api.Group("/admin")
		admin.Use(authMw, middleware.RequireRole(domain.RoleAdmin))
		{
			admin.GET("/payments", adminHandler.ListPayments)
			admin.GET("/payments/:id/receipts", adminHandler.Receipts)
			admin.POST("/payments/:id/override", adminHandler.Override)
			admin.POST("/sweep", adminHandler.Sweep)
		}

		api.POST("/webhooks/paymob", webhookHandler.Handle)
	}

	return r, paymentSvc
}
