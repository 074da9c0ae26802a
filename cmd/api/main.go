package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	_ "github.com/inventio/inventory-api/docs" // Swagger docs (generated)
	"github.com/inventio/inventory-api/internal/auth"
	"github.com/inventio/inventory-api/internal/config"
	"github.com/inventio/inventory-api/internal/contact"
	"github.com/inventio/inventory-api/internal/database"
	"github.com/inventio/inventory-api/internal/email"
	httpServer "github.com/inventio/inventory-api/internal/http"
	"github.com/inventio/inventory-api/internal/logging"
	"github.com/inventio/inventory-api/internal/product"
	"github.com/inventio/inventory-api/internal/ratelimit"
	"github.com/inventio/inventory-api/internal/storage"
	"github.com/inventio/inventory-api/internal/user"
)

// @title           Inventory API
// @version         1.0
// @description     Inventory management REST API with cookie-based authentication, product image uploads, and password reset by email.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:5000
// @BasePath  /api

// @securityDefinitions.apikey CookieAuth
// @in cookie
// @name token
// @description Session token issued at login, sent back as an HTTP-only cookie.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
	)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// Initialize MongoDB connection
	mongoClient, db, err := initMongo(startupCtx, cfg.Mongo)
	if err != nil {
		return fmt.Errorf("failed to initialize mongo: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	}()

	// Initialize Redis connection
	redisClient, err := initRedis(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Initialize object storage
	objectStore, err := storage.NewS3Store(startupCtx, cfg.Storage.Region, cfg.Storage.Bucket, cfg.Storage.PublicRead)
	if err != nil {
		return fmt.Errorf("failed to initialize object storage: %w", err)
	}

	// Initialize repositories
	userRepo := user.NewRepository(db.Collection(database.UsersCollection))
	resetTokenRepo := auth.NewResetTokenRepository(db.Collection(database.ResetTokensCollection))
	productRepo := product.NewRepository(db.Collection(database.ProductsCollection))

	// Initialize rate limiter
	rateLimiter := ratelimit.NewLimiter(redisClient)

	// Initialize token service
	tokenService, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.TokenDuration)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	// Initialize email service
	emailService := email.NewService(
		cfg.Email.SMTPHost,
		cfg.Email.SMTPPort,
		cfg.Email.SMTPUser,
		cfg.Email.SMTPPassword,
		cfg.Email.SupportEmail,
		cfg.Email.FrontendURL,
	)

	// Initialize services
	authService := auth.NewService(userRepo, resetTokenRepo, tokenService, emailService, logger)
	productService := product.NewService(productRepo, objectStore, logger)

	isProduction := !cfg.Server.IsDevelopment()

	// Initialize HTTP handlers
	handlers := httpServer.Handlers{
		Auth:    auth.NewHandler(authService, rateLimiter, logger, isProduction, cfg.Auth.TokenDuration),
		User:    user.NewHandler(userRepo, logger),
		Product: product.NewHandler(productService, logger),
		Contact: contact.NewHandler(emailService, logger),
	}
	authMiddleware := auth.NewMiddleware(tokenService, userRepo)

	// Initialize router
	router := httpServer.NewRouter(cfg, handlers, authMiddleware, logger)

	// Initialize HTTP server
	serverAddr := ":" + cfg.Server.Port
	server := httpServer.NewServer(
		serverAddr,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initMongo connects to MongoDB and ensures the application indexes
func initMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	client, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	db := client.Database(cfg.Database)
	if err := database.EnsureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}

	return client, db, nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
