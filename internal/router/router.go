// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/marketbridge/wholesale-backend/internal/config"
	"github.com/marketbridge/wholesale-backend/internal/handlers"
	"github.com/marketbridge/wholesale-backend/internal/middleware"
	"github.com/marketbridge/wholesale-backend/internal/sequence"
	"github.com/marketbridge/wholesale-backend/internal/services"
	"github.com/marketbridge/wholesale-backend/internal/utils"
)

// Initialize wires services and handlers onto a gin engine. The sequence
// generator and notification sink are created by the caller because their
// lifecycles (redis connection, kafka drain goroutine) outlive request
// handling.
func Initialize(db *gorm.DB, cfg *config.Config, seq *sequence.Generator, notificationService *services.NotificationService) *gin.Engine {
	// Initialize services
	storageService, err := services.NewStorageService(cfg)
	if err != nil {
		logrus.WithError(err).Warn("Storage unavailable, attachment uploads disabled")
	}

	authService := services.NewAuthService(db, cfg)
	productService := services.NewProductService(db)
	orderService := services.NewOrderService(db, cfg, seq, notificationService)
	rfqService := services.NewRFQService(db, cfg, seq, orderService, notificationService)
	paymentService := services.NewPaymentService(cfg, orderService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	rfqHandler := handlers.NewRFQHandler(rfqService, storageService)
	orderHandler := handlers.NewOrderHandler(orderService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, cfg)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS())
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Product catalog (read-only collaborator for RFQ and checkout)
		products := v1.Group("/products")
		{
			products.GET("", middleware.OptionalAuth(), productHandler.List)
			products.GET("/:id", middleware.OptionalAuth(), productHandler.Get)
		}

		// RFQ routes
		rfqs := v1.Group("/rfqs")
		rfqs.Use(middleware.AuthRequired())
		{
			rfqs.GET("", rfqHandler.List)
			rfqs.GET("/:id", rfqHandler.Get)
			rfqs.POST("/attachments", middleware.UploadRateLimit(), rfqHandler.UploadAttachment)

			// Buyer side of the quote round
			buyer := rfqs.Group("")
			buyer.Use(middleware.BuyerRequired())
			{
				buyer.POST("", rfqHandler.Create)
				buyer.POST("/:id/cancel", rfqHandler.Cancel)
				buyer.POST("/:id/reject", rfqHandler.RejectQuotes)
				buyer.POST("/:id/review", rfqHandler.StartReview)
				buyer.POST("/:id/request-revisions", rfqHandler.RequestRevisions)
				buyer.POST("/:id/ready-for-review", rfqHandler.MarkReadyForReview)
				buyer.GET("/:id/comparison", rfqHandler.CompareQuotes)
				buyer.POST("/:id/quotes/:quote_id/accept", rfqHandler.AcceptQuote)
			}

			// Seller side
			seller := rfqs.Group("")
			seller.Use(middleware.SellerRequired())
			{
				seller.POST("/:id/quotes", rfqHandler.SubmitQuote)
			}
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.GET("", orderHandler.List)
			orders.GET("/:id", orderHandler.Get)
			orders.POST("", middleware.BuyerRequired(), orderHandler.Create)
			orders.PUT("/:id/status", orderHandler.AdvanceStatus)
			orders.PUT("/:id/shipping", middleware.SellerRequired(), orderHandler.UpdateShipping)
			orders.POST("/:id/cancel", orderHandler.Cancel)
			orders.POST("/:id/payment-intent", middleware.BuyerRequired(), paymentHandler.CreatePaymentIntent)
			orders.POST("/:id/refund", paymentHandler.Refund)
		}

		// Gateway callbacks (signature-verified, no session auth)
		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/stripe", paymentHandler.StripeWebhook)
		}
	}

	return r
}
