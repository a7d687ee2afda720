// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Email      EmailConfig      `json:"email"`
	KingsChat  KingsChatConfig  `json:"kingschat"`
	Dispatch   DispatchConfig   `json:"dispatch"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Bootstrap  BootstrapConfig  `json:"bootstrap"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host              string        `json:"host"`
	Port              int           `json:"port"`
	ReadTimeout       time.Duration `json:"read_timeout"`
	WriteTimeout      time.Duration `json:"write_timeout"`
	IdleTimeout       time.Duration `json:"idle_timeout"`
	ShutdownTimeout   time.Duration `json:"shutdown_timeout"`
	BodyLimit         int           `json:"body_limit"`
	EnableMetrics     bool          `json:"enable_metrics"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	ProxyHeader       string        `json:"proxy_header"`
	EnableCompression bool          `json:"enable_compression"`
	CompressionLevel  int           `json:"compression_level"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	AuthRateLimit   int           `json:"auth_rate_limit"`   // requests per minute
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per minute
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// Content Security
	CSPPolicy           string `json:"csp_policy"`
	XFrameOptions       string `json:"x_frame_options"`
	XContentTypeOptions string `json:"x_content_type_options"`
	ReferrerPolicy      string `json:"referrer_policy"`

	// Password & Auth
	PasswordMinLength int `json:"password_min_length"`
	BcryptCost        int `json:"bcrypt_cost"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
	Algorithm      string        `json:"algorithm"`
}

// EmailConfig configures the Brevo transactional email API
type EmailConfig struct {
	ProviderDomain string        `json:"provider_domain"`
	APIKey         string        `json:"api_key"`
	FromEmail      string        `json:"from_email"`
	FromName       string        `json:"from_name"`
	Timeout        time.Duration `json:"timeout"`
	// WebhookToken guards POST /webhooks/brevo; empty disables the check
	WebhookToken string `json:"webhook_token"`
}

// KingsChatConfig configures the KingsChat messaging API
type KingsChatConfig struct {
	APIDomain       string        `json:"api_domain"`
	AuthDomain      string        `json:"auth_domain"`
	Timeout         time.Duration `json:"timeout"`
	RefreshInterval time.Duration `json:"refresh_interval"`
}

// DispatchConfig configures the dispatch runners and recipient executor
type DispatchConfig struct {
	TickInterval       time.Duration `json:"tick_interval"`
	ConcurrencyCeiling int           `json:"concurrency_ceiling"`
	MaxAttempts        int           `json:"max_attempts"`
	RetryDelay         time.Duration `json:"retry_delay"`
	LeaseTTL           time.Duration `json:"lease_ttl"`
	UnsubscribeBaseURL string        `json:"unsubscribe_base_url"`
	ReportDir          string        `json:"report_dir"`
	UploadDir          string        `json:"upload_dir"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	// Dispatch runner logs
	SchedulerLogPath string `json:"scheduler_log_path"`
}

type MetricsConfig struct {
	Enabled          bool   `json:"enabled"`
	Path             string `json:"path"`
	EnablePrometheus bool   `json:"enable_prometheus"`
}

type CacheConfig struct {
	Enabled     bool          `json:"enabled"`
	RedisURL    string        `json:"redis_url"`
	RedisDB     int           `json:"redis_db"`
	RedisPrefix string        `json:"redis_prefix"`
	DefaultTTL  time.Duration `json:"default_ttl"`
}

// BootstrapConfig seeds the first operator account on startup. Empty values
// skip seeding.
type BootstrapConfig struct {
	OperatorUsername string `json:"operator_username"`
	OperatorPassword string `json:"operator_password"`
}

type DeploymentConfig struct {
	Domain      string `json:"domain"`
	APIDomain   string `json:"api_domain"`
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "herald"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:              getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:              getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:       getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:      getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:       getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout:   getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:         getEnvInt("SERVER_BODY_LIMIT", 16*1024*1024), // attachments
			EnableMetrics:     getEnvBool("SERVER_ENABLE_METRICS", true),
			TrustedProxies:    getEnvStringSlice("SERVER_TRUSTED_PROXIES", []string{"127.0.0.1"}),
			ProxyHeader:       getEnvString("SERVER_PROXY_HEADER", "X-Real-IP"),
			EnableCompression: getEnvBool("SERVER_ENABLE_COMPRESSION", true),
			CompressionLevel:  getEnvInt("SERVER_COMPRESSION_LEVEL", 6),
		},
		Security: SecurityConfig{
			AllowedOrigins:      getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://admin.herald.kingsmedia.org"}),
			AllowedMethods:      getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:      getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"}),
			AllowCredentials:    getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			CORSMaxAge:          getEnvInt("CORS_MAX_AGE", 86400),
			AuthRateLimit:       getEnvInt("AUTH_RATE_LIMIT", 20),
			GlobalRateLimit:     getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:     getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			CSPPolicy:           getEnvString("CSP_POLICY", "default-src 'self'"),
			XFrameOptions:       getEnvString("X_FRAME_OPTIONS", "DENY"),
			XContentTypeOptions: getEnvString("X_CONTENT_TYPE_OPTIONS", "nosniff"),
			ReferrerPolicy:      getEnvString("REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PasswordMinLength:   getEnvInt("PASSWORD_MIN_LENGTH", 8),
			BcryptCost:          getEnvInt("BCRYPT_COST", 12),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "herald"),
			Audience:       getEnvString("JWT_AUDIENCE", "herald-admin"),
			Algorithm:      getEnvString("JWT_ALGORITHM", "HS256"),
		},
		Email: EmailConfig{
			ProviderDomain: getEnvString("EMAIL_PROVIDER_DOMAIN", "api.brevo.com"),
			APIKey:         getEnvString("EMAIL_API_KEY", ""),
			FromEmail:      getEnvString("EMAIL_FROM_EMAIL", "noreply@kingsmedia.org"),
			FromName:       getEnvString("EMAIL_FROM_NAME", "Kings Media"),
			Timeout:        getEnvDuration("EMAIL_TIMEOUT", 30*time.Second),
			WebhookToken:   getEnvString("EMAIL_WEBHOOK_TOKEN", ""),
		},
		KingsChat: KingsChatConfig{
			APIDomain:       getEnvString("KINGSCHAT_API_DOMAIN", "connect.kingsch.at"),
			AuthDomain:      getEnvString("KINGSCHAT_AUTH_DOMAIN", "accounts.kingsch.at"),
			Timeout:         getEnvDuration("KINGSCHAT_TIMEOUT", 30*time.Second),
			RefreshInterval: getEnvDuration("KINGSCHAT_REFRESH_INTERVAL", 30*time.Minute),
		},
		Dispatch: DispatchConfig{
			TickInterval:       getEnvDuration("DISPATCH_TICK_INTERVAL", 1*time.Minute),
			ConcurrencyCeiling: getEnvInt("DISPATCH_CONCURRENCY_CEILING", 100),
			MaxAttempts:        getEnvInt("DISPATCH_MAX_ATTEMPTS", 3),
			RetryDelay:         getEnvDuration("DISPATCH_RETRY_DELAY", 60*time.Second),
			LeaseTTL:           getEnvDuration("DISPATCH_LEASE_TTL", 5*time.Minute),
			UnsubscribeBaseURL: getEnvString("DISPATCH_UNSUBSCRIBE_BASE_URL", "https://herald.kingsmedia.org/unsubscribe"),
			ReportDir:          getEnvString("DISPATCH_REPORT_DIR", "/var/lib/herald/reports"),
			UploadDir:          getEnvString("DISPATCH_UPLOAD_DIR", "/var/lib/herald/uploads"),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Output:           getEnvString("LOG_OUTPUT", "both"),
			FilePath:         getEnvString("LOG_FILE_PATH", "/var/log/herald/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			SchedulerLogPath: getEnvString("LOG_SCHEDULER_PATH", "/var/log/herald/dispatch.log"),
		},
		Metrics: MetricsConfig{
			Enabled:          getEnvBool("METRICS_ENABLED", true),
			Path:             getEnvString("METRICS_PATH", "/metrics"),
			EnablePrometheus: getEnvBool("METRICS_ENABLE_PROMETHEUS", true),
		},
		Cache: CacheConfig{
			Enabled:     getEnvBool("CACHE_ENABLED", true),
			RedisURL:    getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:     getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix: getEnvString("CACHE_REDIS_PREFIX", "herald:"),
			DefaultTTL:  getEnvDuration("CACHE_DEFAULT_TTL", 1*time.Hour),
		},
		Bootstrap: BootstrapConfig{
			OperatorUsername: getEnvString("BOOTSTRAP_OPERATOR_USERNAME", ""),
			OperatorPassword: getEnvString("BOOTSTRAP_OPERATOR_PASSWORD", ""),
		},
		Deployment: DeploymentConfig{
			Domain:      getEnvString("DOMAIN", "herald.kingsmedia.org"),
			APIDomain:   getEnvString("API_DOMAIN", "api.herald.kingsmedia.org"),
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		// .env file doesn't exist, continue with environment variables
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key=value pairs
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				// Remove quotes if present
				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				// Set environment variable if not already set
				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	// Validate JWT configuration
	if cfg.JWT.SecretKey == "" {
		errors = append(errors, "JWT_SECRET_KEY is required")
	}
	if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate security configuration
	if cfg.Security.PasswordMinLength < 6 {
		errors = append(errors, "PASSWORD_MIN_LENGTH must be at least 6")
	}
	if cfg.Security.BcryptCost < 10 || cfg.Security.BcryptCost > 14 {
		errors = append(errors, "BCRYPT_COST must be between 10 and 14")
	}

	// Validate email configuration if enabled
	if cfg.Email.ProviderDomain != "mock" {
		if cfg.Email.APIKey == "" {
			errors = append(errors, "EMAIL_API_KEY is required for email provider")
		}
		if cfg.Email.FromEmail == "" {
			errors = append(errors, "EMAIL_FROM_EMAIL is required for email provider")
		}
	}

	// Validate dispatch configuration
	if cfg.Dispatch.TickInterval <= 0 {
		errors = append(errors, "DISPATCH_TICK_INTERVAL must be positive")
	}
	if cfg.Dispatch.ConcurrencyCeiling <= 0 {
		errors = append(errors, "DISPATCH_CONCURRENCY_CEILING must be positive")
	}
	if cfg.Dispatch.MaxAttempts <= 0 {
		errors = append(errors, "DISPATCH_MAX_ATTEMPTS must be positive")
	}
	if cfg.Dispatch.RetryDelay < 0 {
		errors = append(errors, "DISPATCH_RETRY_DELAY must not be negative")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
