// Package main provides the main entry point for the Herald broadcast messaging system
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
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/kingsmedia/herald/app/handlers"
	"github.com/kingsmedia/herald/app/middleware"
	"github.com/kingsmedia/herald/app/router"
	"github.com/kingsmedia/herald/app/scheduler"
	"github.com/kingsmedia/herald/app/services"
	businessflow "github.com/kingsmedia/herald/business_flow"
	"github.com/kingsmedia/herald/config"
	"github.com/kingsmedia/herald/models"
	"github.com/kingsmedia/herald/repository"
	"github.com/kingsmedia/herald/utils"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Herald application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
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

	// Graceful shutdown
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

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
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
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
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
		cancel := startCacheHealthMonitor(context.Background(), rc, 30*time.Second)
		stopFuncs = append(stopFuncs, cancel)
	}

	// Initialize repositories
	operatorRepo := repository.NewOperatorRepository(db)
	contactRepo := repository.NewContactRepository(db)
	emailDispatchRepo := repository.NewEmailDispatchRepository(db)
	emailRecipientRepo := repository.NewEmailRecipientRepository(db)
	chatDispatchRepo := repository.NewChatDispatchRepository(db)
	chatRecipientRepo := repository.NewChatRecipientRepository(db)
	credentialRepo := repository.NewChatCredentialRepository(db)

	// Seed the first operator if configured
	if err := ensureBootstrapOperator(db, operatorRepo, cfg); err != nil {
		return nil, err
	}

	// Initialize gateways
	emailGateway := services.NewEmailGateway(&cfg.Email)
	chatGateway := services.NewChatGateway(&cfg.KingsChat)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Initialize flows
	authFlow := businessflow.NewAuthFlow(
		operatorRepo,
		tokenService,
		int(cfg.JWT.AccessTokenTTL.Seconds()),
	)

	emailDispatchFlow := businessflow.NewEmailDispatchFlow(
		emailDispatchRepo,
		emailRecipientRepo,
		contactRepo,
		db,
	)

	chatDispatchFlow := businessflow.NewChatDispatchFlow(
		chatDispatchRepo,
		chatRecipientRepo,
		contactRepo,
		db,
	)

	statusFlow := businessflow.NewStatusFlow(emailRecipientRepo, log.Default())

	contactFlow := businessflow.NewContactFlow(
		contactRepo,
		emailRecipientRepo,
		rc,
		cfg.Cache.RedisPrefix,
		cfg.Cache.DefaultTTL,
	)

	credentialFlow := businessflow.NewCredentialFlow(credentialRepo)

	reportFlow := businessflow.NewReportFlow(
		emailDispatchRepo,
		emailRecipientRepo,
		chatDispatchRepo,
		chatRecipientRepo,
	)

	// Initialize handlers
	h := router.Handlers{
		Auth:       handlers.NewAuthHandler(authFlow),
		Email:      handlers.NewEmailDispatchHandler(emailDispatchFlow, reportFlow),
		Chat:       handlers.NewChatDispatchHandler(chatDispatchFlow, reportFlow),
		Contact:    handlers.NewContactHandler(contactFlow),
		Credential: handlers.NewCredentialHandler(credentialFlow),
		Webhook:    handlers.NewWebhookHandler(statusFlow, cfg.Email.WebhookToken),
	}

	// Initialize auth middleware and router
	authMiddleware := middleware.NewAuthMiddleware(tokenService)
	appRouter := router.NewFiberRouter(h, authMiddleware, cfg)

	// Dispatch runners, one per channel
	emailStore := scheduler.NewEmailChannelStore(
		emailDispatchRepo,
		emailRecipientRepo,
		contactRepo,
		emailGateway,
		cfg.Dispatch.UnsubscribeBaseURL,
	)
	emailExecutor := scheduler.NewExecutor(
		emailStore,
		log.Default(),
		cfg.Dispatch.MaxAttempts,
		cfg.Dispatch.RetryDelay,
		cfg.Dispatch.ConcurrencyCeiling,
	)
	emailRunner := scheduler.NewDispatchRunner(emailStore, emailExecutor, db, rc, cfg.Dispatch, cfg.Logging, cfg.Cache.RedisPrefix)
	stopFuncs = append(stopFuncs, emailRunner.Start(context.Background()))

	chatStore := scheduler.NewChatChannelStore(
		chatDispatchRepo,
		chatRecipientRepo,
		contactRepo,
		credentialRepo,
		chatGateway,
	)
	chatExecutor := scheduler.NewExecutor(
		chatStore,
		log.Default(),
		cfg.Dispatch.MaxAttempts,
		cfg.Dispatch.RetryDelay,
		cfg.Dispatch.ConcurrencyCeiling,
	)
	chatRunner := scheduler.NewDispatchRunner(chatStore, chatExecutor, db, rc, cfg.Dispatch, cfg.Logging, cfg.Cache.RedisPrefix)
	stopFuncs = append(stopFuncs, chatRunner.Start(context.Background()))

	// KingsChat token refresher
	refresher := scheduler.NewTokenRefresher(credentialRepo, chatGateway, log.Default(), cfg.KingsChat.RefreshInterval)
	stopFuncs = append(stopFuncs, refresher.Start(context.Background()))

	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}

// ensureBootstrapOperator creates the configured operator account if it does
// not exist yet.
func ensureBootstrapOperator(db *gorm.DB, operatorRepo repository.OperatorRepository, cfg *config.ProductionConfig) error {
	username := cfg.Bootstrap.OperatorUsername
	password := cfg.Bootstrap.OperatorPassword
	if username == "" || password == "" {
		return nil
	}

	existing, err := operatorRepo.ByUsername(context.Background(), username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	cost := cfg.Security.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return err
	}

	operator := models.Operator{
		UUID:         uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		IsActive:     utils.ToPtr(true),
		CreatedAt:    utils.UTCNow(),
		UpdatedAt:    utils.UTCNow(),
	}
	if err := operatorRepo.Save(context.Background(), &operator); err != nil {
		return err
	}
	log.Printf("Bootstrap operator %q created", username)
	return nil
}
