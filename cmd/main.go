package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"pim-service/internal/config"
	"pim-service/internal/events"
	"pim-service/internal/handlers"
	"pim-service/internal/importer"
	"pim-service/internal/middleware"
	"pim-service/internal/repository"
	"pim-service/internal/syncengine"
)

// @title PIM Import/Export API
// @version 1.0.0
// @description Product information management service with template-driven spreadsheet import and bulk editing

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8093
// @BasePath /api/v1

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	// Initialize configuration
	cfg := config.Load()

	// Initialize database
	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if cfg.Environment == "production" {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	// Initialize Redis client
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Printf("WARNING: Failed to parse Redis URL: %v (continuing without Redis)", err)
		redisOpts = &redis.Options{
			Addr: "localhost:6379",
		}
	}
	redisClient := redis.NewClient(redisOpts)

	// Test Redis connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Printf("WARNING: Failed to connect to Redis: %v (caching will be disabled)", err)
	} else {
		log.Println("✓ Redis connected successfully")
	}
	cancel()

	// Initialize repository
	repo := repository.NewPimRepository(db, redisClient)

	// Initialize event publisher for the audit trail; nil when NATS_URL unset
	eventsPublisher, err := events.NewPublisher(logger)
	if err != nil {
		log.Printf("WARNING: Failed to initialize events publisher: %v (continuing without event publishing)", err)
	} else if eventsPublisher != nil {
		log.Println("✓ Events publisher initialized (NATS connected)")
	}
	defer eventsPublisher.Close()

	// Initialize sync engine and importer
	engine := syncengine.New(repo, logger).
		WithCallTimeout(time.Duration(cfg.ImportCallTimeoutSeconds) * time.Second)
	imp := importer.New(engine, logger)

	// Initialize handlers
	fieldsHandler := handlers.NewFieldsHandler()
	templatesHandler := handlers.NewTemplatesHandler(repo)
	importHandler := handlers.NewImportHandler(repo, imp, eventsPublisher)
	productsHandler := handlers.NewProductsHandler(repo, engine, eventsPublisher, cfg, logger)

	// Initialize Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.MaxMultipartMemory = int64(cfg.MaxUploadSizeMB) << 20

	// Health check endpoints
	router.GET("/health", handlers.HealthCheck)
	router.GET("/ready", handlers.HealthCheck)

	// API routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/fields", fieldsHandler.GetFields)

		templates := v1.Group("/templates")
		{
			templates.GET("", templatesHandler.GetTemplates)
			templates.POST("", templatesHandler.CreateTemplate)
			templates.GET("/:id", templatesHandler.GetTemplate)
			templates.PUT("/:id", templatesHandler.UpdateTemplate)
			templates.DELETE("/:id", templatesHandler.DeleteTemplate)
			templates.GET("/:id/file", templatesHandler.DownloadTemplateFile)
		}

		products := v1.Group("/products")
		{
			products.GET("", productsHandler.GetProducts)
			products.POST("", productsHandler.CreateProduct)
			products.GET("/:id", productsHandler.GetProduct)
			products.PUT("/:id", productsHandler.UpdateProduct)
			products.DELETE("/:id", productsHandler.DeleteProduct)

			products.POST("/import", importHandler.ImportProducts)
			products.POST("/bulk-save", productsHandler.BulkSave)
		}
	}

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("PIM service starting on port %s", cfg.Port)
		if err := router.Run(":" + cfg.Port); err != nil {
			log.Fatal("Failed to start server:", err)
		}
	}()

	<-quit
	log.Println("Shutting down pim-service...")
	log.Println("PIM service stopped")
}
