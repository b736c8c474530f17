package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/propertyhub/backoffice/internal/config"
	"github.com/propertyhub/backoffice/internal/database"
	"github.com/propertyhub/backoffice/internal/handlers"
	"github.com/propertyhub/backoffice/internal/middleware"
	"github.com/propertyhub/backoffice/internal/services"
	"github.com/propertyhub/backoffice/pkg/jwt"
	"github.com/propertyhub/backoffice/pkg/notify"
	"github.com/propertyhub/backoffice/pkg/storage"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting PropertyHub booking backoffice")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	ctx := context.Background()

	logger.Info("Connecting to database...")
	db, err := database.NewConnection(ctx, cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	if err := database.Migrate(ctx, db.DB.DB, logger); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}

	logger.Info("Initializing services...")
	store := database.NewPostgresStore(db.DB)

	documents, err := storage.NewDiskStore(cfg.Storage.DocumentDir, cfg.Storage.MaxUploadBytes)
	if err != nil {
		logger.Fatalf("Failed to initialize document storage: %v", err)
	}

	var notifier notify.Notifier
	if cfg.Redis.URL != "" {
		redisNotifier, err := notify.NewRedisNotifier(ctx, cfg.Redis.URL, cfg.Redis.NotificationChannel)
		if err != nil {
			logger.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
		logger.WithField("channel", cfg.Redis.NotificationChannel).Info("Booking notifications published to Redis")
	} else {
		notifier = notify.NewLogNotifier(logger)
		logger.Info("Notifications in development mode (logged, not published)")
	}

	bookingNotifier := services.NewBookingNotifier(notifier, store, services.NotifierConfig{
		Currency: cfg.Booking.Currency,
		Timeout:  cfg.Booking.NotifyTimeout,
		Async:    true,
	}, logger)

	reservationService := services.NewReservationService(store, services.NewManualPaymentGateway(documents), bookingNotifier, logger)
	lifecycleService := services.NewLifecycleService(store, bookingNotifier, logger)
	featuredService := services.NewFeaturedService(store, services.FeaturedLimits{
		Global:      cfg.Booking.GlobalFeaturedCap,
		PerCategory: cfg.Booking.CategoryFeaturedCap,
	}, logger)
	availabilityService := services.NewAvailabilityService(store)
	reconciliationService := services.NewReconciliationService(store, logger)

	bookingLimiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		MaxRequests: cfg.Booking.RateLimitRequests,
		Window:      cfg.Booking.RateLimitWindow,
	})

	cronService := services.NewCronService(reconciliationService, cfg.Jobs.RefundReconcileSpec, logger)
	if err := cronService.Schedule("*/10 * * * *", "rate limit cleanup", func() {
		logger.WithField("removed", bookingLimiter.Cleanup()).Debug("[CRON] Rate limit cleanup finished")
	}); err != nil {
		logger.Fatalf("Failed to schedule rate limit cleanup: %v", err)
	}
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	logger.Info("Services initialized")

	bookingHandler := handlers.NewBookingHandler(reservationService, lifecycleService, reconciliationService, documents, logger)
	propertyHandler := handlers.NewPropertyHandler(lifecycleService, featuredService, availabilityService, logger)

	router := gin.New()
	router.MaxMultipartMemory = cfg.Storage.MaxUploadBytes
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", handlers.HealthCheck(store, version))
	handlers.RegisterRoutes(router, bookingHandler, propertyHandler, jwtService, bookingLimiter, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cronService.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	// in-flight notifications were dispatched after their requests returned
	bookingNotifier.Wait()

	logger.Info("Server exited successfully")
}
