// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Encryption EncryptionConfig `json:"encryption"`
	Line       LineConfig       `json:"line"`
	Scheduler  SchedulerConfig  `json:"scheduler"`
	Cache      CacheConfig      `json:"cache"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
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
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`

	// Rate Limiting
	GlobalRateLimit  int           `json:"global_rate_limit"`  // requests per window
	WebhookRateLimit int           `json:"webhook_rate_limit"` // requests per window per shop
	RateLimitWindow  time.Duration `json:"rate_limit_window"`
}

// JWTConfig carries only what is needed to validate tokens issued by the
// external auth service. Issuance lives outside this application.
type JWTConfig struct {
	SecretKey string `json:"secret_key"`
	Issuer    string `json:"issuer"`
	Audience  string `json:"audience"`
}

type EncryptionConfig struct {
	// Key is the base64-encoded 32-byte symmetric key for credential
	// encryption at rest
	Key string `json:"key"`
	// Cipher selects the AEAD: "aes-gcm" (default) or "chacha20poly1305"
	Cipher string `json:"cipher"`
}

type LineConfig struct {
	APIBase string        `json:"api_base"`
	Timeout time.Duration `json:"timeout"`
}

type SchedulerConfig struct {
	Enabled      bool          `json:"enabled"`
	Interval     time.Duration `json:"interval"`
	DueTolerance time.Duration `json:"due_tolerance"`
	Timezone     string        `json:"timezone"`
	// CronSecret authenticates the external trigger of the dispatch scan
	CronSecret  string        `json:"cron_secret"`
	SendTimeout time.Duration `json:"send_timeout"`
	PageSize    int           `json:"page_size"`
}

type CacheConfig struct {
	Enabled      bool          `json:"enabled"`
	RedisURL     string        `json:"redis_url"`
	RedisDB      int           `json:"redis_db"`
	RedisPrefix  string        `json:"redis_prefix"`
	EventTTL     time.Duration `json:"event_ttl"`
	PingInterval time.Duration `json:"ping_interval"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// IsDevelopment reports whether the app runs in a dev or test profile.
func (d DeploymentConfig) IsDevelopment() bool {
	return d.Environment == "development" || d.Environment == "test" || d.Environment == "local"
}

// Load loads and validates configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "machidori"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1*1024*1024), // 1MB
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"https://app.machidori.jp"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", true),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 1000),
			WebhookRateLimit: getEnvInt("WEBHOOK_RATE_LIMIT", 60),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		JWT: JWTConfig{
			SecretKey: getEnvString("JWT_SECRET_KEY", ""),
			Issuer:    getEnvString("JWT_ISSUER", "machidori-auth"),
			Audience:  getEnvString("JWT_AUDIENCE", "machidori-api"),
		},
		Encryption: EncryptionConfig{
			Key:    getEnvString("DATA_ENCRYPTION_KEY", ""),
			Cipher: getEnvString("ENCRYPTION_CIPHER", "aes-gcm"),
		},
		Line: LineConfig{
			APIBase: getEnvString("LINE_API_BASE", "https://api.line.me"),
			Timeout: getEnvDuration("LINE_TIMEOUT", 10*time.Second),
		},
		Scheduler: SchedulerConfig{
			Enabled:      getEnvBool("SCHEDULER_ENABLED", true),
			Interval:     getEnvDuration("SCHEDULER_INTERVAL", 1*time.Minute),
			DueTolerance: getEnvDuration("SCHEDULER_DUE_TOLERANCE", 60*time.Second),
			Timezone:     getEnvString("APP_TIMEZONE", "Asia/Tokyo"),
			CronSecret:   getEnvString("CRON_SECRET", ""),
			SendTimeout:  getEnvDuration("SCHEDULER_SEND_TIMEOUT", 10*time.Second),
			PageSize:     getEnvInt("SCHEDULER_PAGE_SIZE", 100),
		},
		Cache: CacheConfig{
			Enabled:      getEnvBool("CACHE_ENABLED", true),
			RedisURL:     getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:      getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:  getEnvString("CACHE_REDIS_PREFIX", "machidori:"),
			EventTTL:     getEnvDuration("CACHE_EVENT_TTL", 1*time.Hour),
			PingInterval: getEnvDuration("CACHE_PING_INTERVAL", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			Output:     getEnvString("LOG_OUTPUT", "both"),
			FilePath:   getEnvString("LOG_FILE_PATH", "/var/log/machidori/app.log"),
			MaxSize:    getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:     getEnvInt("LOG_MAX_AGE", 30),
			Compress:   getEnvBool("LOG_COMPRESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
		},
	}

	// Validate the loaded configuration
	if err := Validate(cfg); err != nil {
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

// Validate validates the loaded configuration
func Validate(cfg *Config) error {
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
	if cfg.Database.Password == "" && !cfg.Deployment.IsDevelopment() {
		errors = append(errors, "DB_PASSWORD is required")
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

	// Validate JWT configuration
	if cfg.JWT.SecretKey == "" && !cfg.Deployment.IsDevelopment() {
		errors = append(errors, "JWT_SECRET_KEY is required")
	}

	// Validate encryption configuration. The key itself is absent in
	// dev/test profiles where the crypto service substitutes a fixed key.
	if cfg.Encryption.Key == "" && !cfg.Deployment.IsDevelopment() {
		errors = append(errors, "DATA_ENCRYPTION_KEY is required")
	}
	if cfg.Encryption.Key != "" {
		decoded, err := base64.StdEncoding.DecodeString(cfg.Encryption.Key)
		if err != nil {
			errors = append(errors, "DATA_ENCRYPTION_KEY must be valid base64")
		} else if len(decoded) != 32 {
			errors = append(errors, "DATA_ENCRYPTION_KEY must decode to exactly 32 bytes")
		}
	}
	switch cfg.Encryption.Cipher {
	case "aes-gcm", "chacha20poly1305":
	default:
		errors = append(errors, "ENCRYPTION_CIPHER must be aes-gcm or chacha20poly1305")
	}

	// Validate scheduler configuration
	if cfg.Scheduler.CronSecret == "" && !cfg.Deployment.IsDevelopment() {
		errors = append(errors, "CRON_SECRET is required")
	}
	if cfg.Scheduler.Interval <= 0 {
		errors = append(errors, "SCHEDULER_INTERVAL must be positive")
	}
	if cfg.Scheduler.DueTolerance <= 0 {
		errors = append(errors, "SCHEDULER_DUE_TOLERANCE must be positive")
	}
	if cfg.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(cfg.Scheduler.Timezone); err != nil {
			errors = append(errors, fmt.Sprintf("APP_TIMEZONE is not a valid IANA zone: %v", err))
		}
	}

	// Validate rate limiting
	if cfg.Security.GlobalRateLimit <= 0 {
		errors = append(errors, "GLOBAL_RATE_LIMIT must be positive")
	}
	if cfg.Security.WebhookRateLimit <= 0 {
		errors = append(errors, "WEBHOOK_RATE_LIMIT must be positive")
	}
	if cfg.Security.RateLimitWindow <= 0 {
		errors = append(errors, "RATE_LIMIT_WINDOW must be positive")
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
