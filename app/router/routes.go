// Package router provides HTTP routing, middleware configuration, and server setup for the web application
package router

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/gofiber/fiber/v3/middleware/cache"
	"github.com/gofiber/fiber/v3/middleware/compress"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kingsmedia/herald/app/dto"
	"github.com/kingsmedia/herald/app/handlers"
	"github.com/kingsmedia/herald/app/middleware"
	"github.com/kingsmedia/herald/config"
	"github.com/kingsmedia/herald/utils"
)

// Router interface for HTTP routing
type Router interface {
	SetupRoutes()
	Start(address string) error
	GetApp() *fiber.App
}

// Handlers bundles the handler set the router exposes
type Handlers struct {
	Auth       handlers.AuthHandlerInterface
	Email      handlers.EmailDispatchHandlerInterface
	Chat       handlers.ChatDispatchHandlerInterface
	Contact    handlers.ContactHandlerInterface
	Credential handlers.CredentialHandlerInterface
	Webhook    handlers.WebhookHandlerInterface
}

// FiberRouter implements Router using Fiber v3
type FiberRouter struct {
	app      *fiber.App
	handlers Handlers
	auth     *middleware.AuthMiddleware
	cfg      *config.ProductionConfig
}

// NewFiberRouter creates a new Fiber router
func NewFiberRouter(h Handlers, auth *middleware.AuthMiddleware, cfg *config.ProductionConfig) Router {
	app := fiber.New(fiber.Config{
		AppName:      "Herald API",
		ServerHeader: "Herald",
		ErrorHandler: errorHandler,
		BodyLimit:    8 * 1024 * 1024, // attachments ride along in dispatch uploads
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})

	return &FiberRouter{
		app:      app,
		handlers: h,
		auth:     auth,
		cfg:      cfg,
	}
}

// SetupRoutes configures all application routes
func (r *FiberRouter) SetupRoutes() {
	log.Println("Setting up routes...")

	r.setupMiddleware()

	api := r.app.Group("/api/v1")

	// Health check route (no rate limiting)
	api.Get("/health", r.healthCheck)

	// Prometheus scrape endpoint
	if r.cfg == nil || r.cfg.Metrics.Enabled {
		r.app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	}

	// General rate limiting for all API routes
	api.Use(limiter.New(limiter.Config{
		Max:        2000,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
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
			return c.Path() == "/api/v1/health"
		},
	}))

	// Auth routes with stricter rate limiting
	auth := api.Group("/auth")
	auth.Use(limiter.New(limiter.Config{
		Max:        20,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c fiber.Ctx) string {
			return c.IP()
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
	}))

	auth.Post("/login", r.handlers.Auth.Login)

	// Delivery provider webhook and the unsubscribe link are public
	api.Post("/webhooks/brevo", r.handlers.Webhook.BrevoEvent)
	r.app.Get("/unsubscribe/:token", r.handlers.Contact.Unsubscribe)
	r.app.Get("/unsubscribe", r.handlers.Contact.Unsubscribe)

	// Everything below requires an operator token
	protected := api.Group("", r.auth.Authenticate())

	contacts := protected.Group("/contacts")
	contacts.Get("/", r.handlers.Contact.List)
	contacts.Get("/filter-options", r.handlers.Contact.FilterOptions)

	email := protected.Group("/dispatches/email")
	email.Post("/", r.handlers.Email.Create)
	email.Get("/", r.handlers.Email.List)
	email.Get("/:id", r.handlers.Email.Get)
	email.Get("/:id/recipients", r.handlers.Email.Recipients)
	email.Get("/:id/report", r.handlers.Email.Report)

	chat := protected.Group("/dispatches/kingschat")
	chat.Post("/", r.handlers.Chat.Create)
	chat.Get("/", r.handlers.Chat.List)
	chat.Get("/:id", r.handlers.Chat.Get)
	chat.Get("/:id/recipients", r.handlers.Chat.Recipients)
	chat.Get("/:id/report", r.handlers.Chat.Report)

	credentials := protected.Group("/credentials/kingschat")
	credentials.Post("/", r.handlers.Credential.Store)
	credentials.Get("/", r.handlers.Credential.Get)

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
		XSSProtection:             "1; mode=block",
		ContentTypeNosniff:        "nosniff",
		XFrameOptions:             "DENY",
		HSTSMaxAge:                31536000,
		HSTSExcludeSubdomains:     false,
		ContentSecurityPolicy:     "default-src 'self'; img-src 'self' data: https:; frame-ancestors 'none';",
		ReferrerPolicy:            "strict-origin-when-cross-origin",
		CrossOriginEmbedderPolicy: "require-corp",
		CrossOriginOpenerPolicy:   "same-origin",
		CrossOriginResourcePolicy: "cross-origin",
		OriginAgentCluster:        "?1",
		XDNSPrefetchControl:       "off",
		XDownloadOptions:          "noopen",
		XPermittedCrossDomain:     "none",
	}))

	// CORS middleware
	allowOrigins := []string{"https://admin.kingsmedia.org"}
	if r.cfg != nil && len(r.cfg.Security.AllowedOrigins) > 0 {
		allowOrigins = r.cfg.Security.AllowedOrigins
	}
	r.app.Use(cors.New(cors.Config{
		AllowOrigins: allowOrigins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"Authorization",
			"X-Requested-With",
			"X-Request-ID",
			"Cache-Control",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"X-Response-Time",
			"Content-Disposition",
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Compression middleware for performance
	r.app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
		Next: func(c fiber.Ctx) bool {
			contentType := c.Get("Content-Type")
			return contains(contentType, "image/") ||
				contains(contentType, "video/") ||
				contains(contentType, "audio/")
		},
	}))

	// Cache middleware for static content
	r.app.Use(cache.New(cache.Config{
		Next: func(c fiber.Ctx) bool {
			return c.Method() != "GET" || !contains(c.Path(), "/health")
		},
		Expiration:          30 * time.Minute,
		DisableCacheControl: false,
	}))

	// Structured request logging
	r.app.Use(logger.New(logger.Config{
		Format:     `{"time":"${time}","pid":"${pid}","request_id":"${locals:requestid}","level":"info","method":"${method}","path":"${path}","protocol":"${protocol}","ip":"${ip}","user_agent":"${ua}","status":${status},"latency":"${latency}","bytes_in":${bytesReceived},"bytes_out":${bytesSent},"referer":"${referer}"}` + "\n",
		TimeFormat: time.RFC3339,
		TimeZone:   "UTC",
		Next: func(c fiber.Ctx) bool {
			return c.Path() == "/api/v1/health" || c.Path() == "/metrics"
		},
	}))

	// Prometheus HTTP metrics
	r.app.Use(middleware.Metrics())

	// Recovery middleware with custom error handling
	r.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c fiber.Ctx, e interface{}) {
			log.Printf(`{"time":"%s","level":"error","request_id":"%s","event":"panic","error":"%v","path":"%s","method":"%s","ip":"%s"}`,
				utils.UTCNow().Format(time.RFC3339),
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
			"timestamp": utils.UTCNow().Unix(),
			"version":   "1.0.0",
			"service":   "herald-api",
		},
	})
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
	code := fiber.StatusInternalServerError

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
	}

	log.Printf("Error %d: %v", code, err)

	requestID := c.Locals("requestid")

	return c.Status(code).JSON(dto.APIResponse{
		Success: false,
		Message: "An internal server error occurred",
		Error: dto.ErrorDetail{
			Code: "INTERNAL_ERROR",
			Details: fiber.Map{
				"timestamp":  utils.UTCNow().Unix(),
				"request_id": requestID,
			},
		},
	})
}

// generateRequestID creates a unique request ID
func generateRequestID() string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

func contains(str, substr string) bool {
	return strings.Contains(str, substr)
}
