package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/bspcp/membership-backend/internal/config"
	"github.com/bspcp/membership-backend/internal/database"
	"github.com/bspcp/membership-backend/internal/handlers"
	"github.com/bspcp/membership-backend/internal/middleware"
	"github.com/bspcp/membership-backend/internal/services"
	"github.com/bspcp/membership-backend/pkg/jwt"
	"github.com/bspcp/membership-backend/pkg/validator"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting BSPCP Membership Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Transaction-capable repositories need the raw sqlx handle
	pg, ok := db.(*database.PostgresDB)
	if !ok {
		logger.Fatal("Failed to cast database connection to PostgresDB")
	}
	sqlxDB := pg.Sqlx()

	// Initialize repositories
	memberRepo := database.NewMemberRepository(sqlxDB)
	credentialRepo := database.NewCredentialRepository(sqlxDB)
	tokenRepo := database.NewTokenRepository(sqlxDB)
	paymentRepo := database.NewPaymentRepository(sqlxDB)
	auditLogRepo := database.NewAuditLogRepository(sqlxDB)
	bookingRepo := database.NewBookingRepository(db)
	cpdRepo := database.NewCPDRepository(db)
	contentRepo := database.NewContentRepository(db)
	testimonialRepo := database.NewTestimonialRepository(db)
	adminRepo := database.NewAdminUserRepository(db)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.SetupTokenExpiry,
		cfg.JWT.UploadTokenExpiry,
	)
	passwordValidator := validator.NewPasswordValidator()

	auditService := services.NewAuditService(auditLogRepo)

	emailService, err := services.NewEmailService(cfg.SMTP, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize email service: %v", err)
	}

	uploadService, err := services.NewUploadService(cfg.Upload.Dir, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize upload service: %v", err)
	}

	membershipService := services.NewMembershipService(
		memberRepo,
		credentialRepo,
		tokenRepo,
		auditService,
		emailService,
		jwtService,
		logger,
		cfg.Server.BaseURL,
		cfg.Security.BcryptCost,
	)

	paymentService := services.NewPaymentService(
		memberRepo,
		paymentRepo,
		tokenRepo,
		auditService,
		emailService,
		uploadService,
		jwtService,
		logger,
		cfg.Server.BaseURL,
		cfg.Upload.MaxProofSize,
	)

	backupService, err := services.NewBackupService(
		cfg.Database.URL,
		cfg.Backup.Dir,
		cfg.Upload.Dir,
		cfg.Backup.RetentionDays,
		logger,
	)
	if err != nil {
		logger.Fatalf("Failed to initialize backup service: %v", err)
	}

	cronService := services.NewCronService(backupService, cfg.Backup.Schedule, logger)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	logger.Info("Cron service started - nightly backups enabled")

	// Initialize handlers
	applicationHandler := handlers.NewApplicationHandler(
		memberRepo, membershipService, uploadService, emailService, auditService,
		logger, cfg.Upload.MaxDocumentSize,
	)
	authHandler := handlers.NewAuthHandler(
		credentialRepo, memberRepo, adminRepo, membershipService,
		jwtService, passwordValidator, logger,
	)
	memberHandler := handlers.NewMemberHandler(memberRepo, auditService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingRepo, memberRepo, emailService, auditService, logger)
	cpdHandler := handlers.NewCPDHandler(cpdRepo, uploadService, logger, cfg.Upload.MaxDocumentSize)
	contentHandler := handlers.NewContentHandler(contentRepo, testimonialRepo, auditService, logger)
	backupHandler := handlers.NewBackupHandler(backupService, cronService, auditService, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// Static mounts for uploaded files and backup archives
	router.Static("/uploads", cfg.Upload.Dir)

	memberAuth := middleware.MemberAuth(jwtService, logger)
	adminAuth := middleware.AdminAuth(jwtService, logger)

	// Backup downloads are admin-only despite being static files
	router.GET("/backups/:name", adminAuth, func(c *gin.Context) {
		c.FileAttachment(cfg.Backup.Dir+"/"+c.Param("name"), c.Param("name"))
	})

	// API routes
	api := router.Group("/api")
	{
		// Public routes
		api.POST("/applications", applicationHandler.Submit)
		api.GET("/counsellors", memberHandler.ListCounsellors)
		api.POST("/bookings", bookingHandler.Create)
		api.GET("/content", contentHandler.ListPages(true))
		api.GET("/content/:slug", contentHandler.GetPage(true))
		api.POST("/testimonials", contentHandler.SubmitTestimonial)
		api.GET("/testimonials", contentHandler.ListTestimonials(true))

		// Authentication
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/admin/login", authHandler.AdminLogin)
			auth.POST("/setup-password", authHandler.SetupPassword)
		}

		// One-time payment upload link (token carries identity)
		api.POST("/payments/proof/token", paymentHandler.UploadWithToken)

		// Member self-service routes
		members := api.Group("", memberAuth)
		{
			members.GET("/members/me", memberHandler.GetProfile)
			members.PUT("/members/me", memberHandler.UpdateProfile)
			members.POST("/payments/proof", paymentHandler.Upload)
			members.GET("/bookings/me", bookingHandler.ListMine)
			members.POST("/bookings/:id/confirm", bookingHandler.Confirm)
			members.POST("/bookings/:id/cancel", bookingHandler.Cancel)
			members.POST("/bookings/:id/reschedule", bookingHandler.Reschedule)
			members.POST("/cpd", cpdHandler.Create)
			members.GET("/cpd", cpdHandler.List)
			members.GET("/cpd/summary", cpdHandler.Summary)
			members.DELETE("/cpd/:id", cpdHandler.Delete)
		}

		// Admin routes
		admin := api.Group("/admin", adminAuth)
		{
			admin.GET("/applications", applicationHandler.List)
			admin.GET("/applications/:id", applicationHandler.Get)
			admin.POST("/applications/:id/approve", applicationHandler.Approve)
			admin.POST("/applications/:id/reject", applicationHandler.Reject)
			admin.DELETE("/applications/:id", applicationHandler.Delete)
			admin.POST("/applications/:id/resend-setup-link", applicationHandler.ResendSetupLink)
			admin.GET("/applications/:id/audit", applicationHandler.AuditTrail)

			admin.PUT("/members/:id/status", memberHandler.SetStatus)

			admin.POST("/members/:id/payment/request", paymentHandler.Request)
			admin.POST("/members/:id/payment/verify", paymentHandler.Verify)
			admin.POST("/members/:id/payment/reject", paymentHandler.Reject)
			admin.GET("/members/:id/payment/history", paymentHandler.History)

			admin.GET("/content", contentHandler.ListPages(false))
			admin.GET("/content/:slug", contentHandler.GetPage(false))
			admin.POST("/content", contentHandler.CreatePage)
			admin.PUT("/content/:slug", contentHandler.UpdatePage)
			admin.DELETE("/content/:slug", contentHandler.DeletePage)

			admin.GET("/testimonials", contentHandler.ListTestimonials(false))
			admin.PUT("/testimonials/:id/approve", contentHandler.ApproveTestimonial)
			admin.DELETE("/testimonials/:id", contentHandler.DeleteTestimonial)

			admin.POST("/backups", backupHandler.Create)
			admin.GET("/backups", backupHandler.List)
			admin.GET("/backups/schedule", backupHandler.JobStatus)
			admin.DELETE("/backups/:name", backupHandler.Delete)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	cronService.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      query,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		})

		status := c.Writer.Status()
		switch {
		case len(c.Errors) > 0:
			entry.Error(c.Errors.String())
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
				"error":    err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
