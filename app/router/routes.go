// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/harukisato/machidori/app/dto"
	"github.com/harukisato/machidori/app/handlers"
	"github.com/harukisato/machidori/app/middleware"
	"github.com/harukisato/machidori/config"
	"github.com/harukisato/machidori/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app             *fiber.App
	cfg             *config.Config
	shopHandler     handlers.ShopHandlerInterface
	campaignHandler handlers.CampaignHandlerInterface
	webhookHandler  handlers.WebhookHandlerInterface
	dispatchHandler handlers.DispatchHandlerInterface
	authMiddleware  *middleware.AuthMiddleware
	webhookLimiter  *middleware.SlidingWindowLimiter
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(
	cfg *config.Config,
	shopHandler handlers.ShopHandlerInterface,
	campaignHandler handlers.CampaignHandlerInterface,
	webhookHandler handlers.WebhookHandlerInterface,
	dispatchHandler handlers.DispatchHandlerInterface,
	authMiddleware *middleware.AuthMiddleware,
	webhookLimiter *middleware.SlidingWindowLimiter,
) Router {
	bodyLimit := cfg.Server.BodyLimit
	if bodyLimit <= 0 {
		bodyLimit = 1 * 1024 * 1024 // 1MB
	}

	// Configure Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Machidori API",
		ServerHeader: "Machidori",
		ErrorHandler: errorHandler,
		BodyLimit:    bodyLimit,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:             app,
		cfg:             cfg,
		shopHandler:     shopHandler,
		campaignHandler: campaignHandler,
		webhookHandler:  webhookHandler,
		dispatchHandler: dispatchHandler,
		authMiddleware:  authMiddleware,
		webhookLimiter:  webhookLimiter,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	// Global middleware
	r.setupMiddleware()

	// Metrics endpoint is registered outside the API group so scrapers
	// bypass the general rate limit
	if r.cfg.Metrics.Enabled {
		path := r.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.app.Get(path, r.metricsEndpoint)
	}

	// API routes
	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// Apply general rate limiting to all API routes
	api.Use(limiter.New(limiter.Config{
		Max:        r.cfg.Security.GlobalRateLimit,
		Expiration: r.cfg.Security.RateLimitWindow,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP() // Rate limit by IP
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(dto.APIResponse{
				Success: false,
				Message: "Too many requests. Please try again later.",
				Error: dto.ErrorDetail{
					Code: "RATE_LIMIT_EXCEEDED",
				},
			})
		},
		Next: func(c fiber.Ctx) bool {
			// Skip rate limiting for health checks
			return c.Path() == "/api/v1/health"
		},
	}))

	// Webhook endpoint with a per-shop sliding window on top of the
	// general IP limit. Signature verification happens in the flow, so
	// this route carries no auth middleware.
	webhook := api.Group("/webhook")
	webhook.Post("/:shop_uuid", r.webhookHandler.HandleWebhook, middleware.RateLimit(r.webhookLimiter))

	// External cron trigger for the dispatch scan, authenticated by a
	// shared secret rather than an owner token
	cron := api.Group("/cron")
	cron.Get("/dispatch", r.dispatchHandler.TriggerDispatch)
	if r.cfg.Deployment.IsDevelopment() {
		cron.Post("/dispatch", r.dispatchHandler.TriggerDispatch)
	}

	// Shop endpoints require an authenticated owner
	shops := api.Group("/shops")
	shops.Use(r.authMiddleware.Authenticate())
	shops.Post("/", r.shopHandler.RegisterShop)
	shops.Get("/me", r.shopHandler.GetShop)
	shops.Patch("/me", r.shopHandler.UpdateShopConfig)
	shops.Put("/me/channel", r.shopHandler.RotateChannel)

	// Campaign endpoints require an authenticated owner
	campaigns := api.Group("/campaigns")
	campaigns.Use(r.authMiddleware.Authenticate())
	campaigns.Post("/", r.campaignHandler.CreateCampaign)
	campaigns.Post("/:uuid/schedule", r.campaignHandler.ScheduleCampaign)
	campaigns.Get("/", r.campaignHandler.ListCampaigns)
	campaigns.Get("/export", r.campaignHandler.ExportCampaigns)

	// Not found handler
	r.app.Use(r.notFoundHandler)

	log.Println("Routes configured successfully")
}

// setupMiddleware configures global middleware
func (r *FiberRouter) setupMiddleware() {
	// Request ID middleware - must be first
	r.app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return generateRequestID()
		},
	}))

	// Security headers middleware
	r.app.Use(helmet.New(helmet.Config{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000, // 1 year
		HSTSExcludeSubdomains: false,
		ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none';",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))

	// CORS middleware
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: r.cfg.Security.AllowedOrigins,
		AllowMethods: r.cfg.Security.AllowedMethods,
		AllowHeaders: r.cfg.Security.AllowedHeaders,
		ExposeHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: r.cfg.Security.AllowCredentials,
		MaxAge:           utils.CORSMaxAge,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			// Workbook downloads are already deflate-compressed
			contentType := c.Get("Content-Type")
			return strings.Contains(contentType, "spreadsheetml")
		},
	}))

	// Cache middleware for static content
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			// Only cache GET requests to the health endpoint
			return c.Method() != "GET" || !strings.Contains(c.Path(), "/health")
		},
		Expiration:          30 * time.Second,
		DisableCacheControl: false,
	}))

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent}}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			// Skip logging for health checks and metrics scrapes
			return c.Path() == "/api/v1/health" || c.Path() == r.cfg.Metrics.Path
		},
	}))

	// Prometheus request metrics
	if r.cfg.Metrics.Enabled {
		r.app.Use(middleware.Metrics())
	}

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			// Log panic with request context
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				time.Now().UTC().Format(time.RFC3339),
				c.Locals("requestid"),
				e,
				c.Path(),
				c.Method(),
				c.IP(),
			)
		},
	}))
}

// Start starts the HTTP server
func (r *FiberRouter) Start(address string) error {
	log.Printf("Starting server on %s", address)
	return r.app.Listen(address)
}

// GetApp returns the Fiber app instance
func (r *FiberRouter) GetApp() *fiber.App {
	return r.app
}

// Health check endpoint
func (r *FiberRouter) healthCheck(c fiber.Ctx) error {
	return c.JSON(dto.APIResponse{
		Success: true,
		Message: "Service is healthy",
		Data: fiber.Map{
			"status":    "ok",
			"timestamp": time.Now().UTC().Unix(),
			"version":   r.cfg.Deployment.Version,
			"service":   "machidori-api",
		},
	})
}

// metricsEndpoint renders the default Prometheus registry in text format
func (r *FiberRouter) metricsEndpoint(c fiber.Ctx) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
			Success: false,
			Message: "Failed to gather metrics",
			Error: dto.ErrorDetail{
				Code: "METRICS_GATHER_ERROR",
			},
		})
	}

	var buf bytes.Buffer
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	enc := expfmt.NewEncoder(&buf, format)
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(dto.APIResponse{
				Success: false,
				Message: "Failed to encode metrics",
				Error: dto.ErrorDetail{
					Code: "METRICS_ENCODE_ERROR",
				},
			})
		}
	}

	c.Set("Content-Type", string(format))
	return c.Send(buf.Bytes())
}

// Not found handler
func (r *FiberRouter) notFoundHandler(c fiber.Ctx) error {
	requestID := c.Locals("requestid")

	return c.Status(fiber.StatusNotFound).JSON(dto.APIResponse{
		Success: false,
		Message: "The requested resource was not found",
		Error: dto.ErrorDetail{
			Code: "NOT_FOUND",
			Details: fiber.Map{
				"path":       c.Path(),
				"method":     c.Method(),
				"request_id": requestID,
			},
		},
	})
}

// Global error handler
func errorHandler(c fiber.Ctx, err error) error {
	// Default error code
	code := fiber.StatusInternalServerError

	// Retrieve the custom status code if it's a fiber.*Error
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	// Log the error
	log.Printf("Error %d: %v", code, err)

	// Get RequestID for tracing
	requestID := c.Locals("requestid")

	// Return JSON error response
	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  time.Now().UTC().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// Helper functions

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
