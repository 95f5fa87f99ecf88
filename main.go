// Package main provides the main entry point for the Machidori broadcast platform
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/harukisato/machidori/app/handlers"
	"github.com/harukisato/machidori/app/middleware"
	"github.com/harukisato/machidori/app/router"
	"github.com/harukisato/machidori/app/scheduler"
	"github.com/harukisato/machidori/app/services"
	businessflow "github.com/harukisato/machidori/business_flow"
	"github.com/harukisato/machidori/config"
	"github.com/harukisato/machidori/repository"
	"github.com/harukisato/machidori/utils"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.Config
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Machidori application...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers
	for _, fn := range app.stopFuncs {
		fn()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// The cache is optional; webhook deduplication degrades to processing
// every delivery when it is absent.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.Config) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		cancel := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.PingInterval)
		stopFuncs = append(stopFuncs, cancel)
	}

	// All scheduling decisions share one civil time authority
	clock, err := utils.NewClock(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize clock: %w", err)
	}

	// Initialize repositories
	shopRepo := repository.NewShopRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	eventRepo := repository.NewDeliveryEventRepository(db)

	// Initialize services
	cryptoService, err := services.NewCryptoService(&cfg.Encryption, &cfg.Deployment)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize crypto service: %w", err)
	}
	if err := cryptoService.ValidateKey(); err != nil {
		return nil, fmt.Errorf("encryption key validation failed: %w", err)
	}

	signatureService := services.NewSignatureService()
	lineService := services.NewLineService(&cfg.Line)

	tokenService, err := services.NewTokenService(&cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	shopFlow := businessflow.NewShopFlow(shopRepo, cryptoService, db)
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, shopRepo, clock, db)
	webhookFlow := businessflow.NewWebhookFlow(
		shopRepo,
		eventRepo,
		cryptoService,
		signatureService,
		lineService,
		clock,
		rc,
		&cfg.Cache,
	)

	// Initialize dispatch scheduler
	dispatcher := scheduler.NewDispatchScheduler(
		shopRepo,
		campaignRepo,
		cryptoService,
		lineService,
		clock,
		cfg.Scheduler,
		cfg.Logging,
	)
	if cfg.Scheduler.Enabled {
		stop := dispatcher.Start(context.Background())
		stopFuncs = append(stopFuncs, stop)
		log.Printf("Dispatch scheduler started with interval %s", cfg.Scheduler.Interval)
	}

	// Initialize handlers
	shopHandler := handlers.NewShopHandler(shopFlow)
	campaignHandler := handlers.NewCampaignHandler(campaignFlow)
	webhookHandler := handlers.NewWebhookHandler(webhookFlow)
	dispatchHandler := handlers.NewDispatchHandler(dispatcher, cfg.Scheduler.CronSecret)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	webhookLimiter := middleware.NewSlidingWindowLimiter(
		cfg.Security.WebhookRateLimit,
		cfg.Security.RateLimitWindow,
		nil,
	)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		shopHandler,
		campaignHandler,
		webhookHandler,
		dispatchHandler,
		authMiddleware,
		webhookLimiter,
	)

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
