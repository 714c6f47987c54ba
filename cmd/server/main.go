package main

import (
	"context" // Redis ping and worker lifecycle
	"log"     // Startup logging

	"wallet_service/internal/api"        // API handlers
	"wallet_service/internal/config"     // Configuration
	"wallet_service/internal/engine"     // Transfer engine
	"wallet_service/internal/middleware" // Auth middleware
	"wallet_service/internal/notify"     // Receipt dispatcher

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Connect to the ledger store
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err)
	}

	// Setup Redis client (read cache + receipt queue)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Receipt dispatcher: consumes completion events off the Redis queue and
	// renders PDF receipts. Runs for the life of the process.
	dispatcher := notify.NewDispatcher(db, redisClient, cfg.ReceiptDir, cfg.ReceiptWorkers, cfg.ReceiptMaxAttempts)
	dispatcher.Start(context.Background())

	// Transfer engine over the store, cache, and dispatcher
	eng := engine.New(db, redisClient, dispatcher, cfg.LockWaitSeconds)

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default() // Gin router instance

	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Auth routes
	r.POST("/user", api.RegisterHandler(db))            // Registration endpoint
	r.GET("/user", api.LoginHandler(db, cfg.JWTSecret)) // Login endpoint

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet")
	walletGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
	walletGroup.POST("", api.CreateWalletHandler(eng))                       // Create wallet endpoint
	walletGroup.GET("", api.GetWalletHandler(eng))                           // Balance endpoint
	walletGroup.POST("/deposit", api.DepositHandler(eng))                    // Deposit endpoint
	walletGroup.POST("/transfer", api.TransferHandler(eng))                  // Transfer endpoint
	walletGroup.GET("/transactions", api.GetTransactionHistoryHandler(eng))  // Transaction history endpoint
	walletGroup.GET("/users", api.ListUsersHandler(eng))                     // Counterparty listing endpoint

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret), middleware.AdminOnlyMiddleware(db))
	adminGroup.GET("/users", api.ListUsersAdminHandler(db, redisClient))               // List users endpoint
	adminGroup.GET("/transactions", api.ListTransactionsAdminHandler(db, redisClient)) // List transactions endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
