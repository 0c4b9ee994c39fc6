package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	JWT          JWTConfig
	Email        EmailConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	App          AppConfig
	Log          LogConfig
	Scheduler    SchedulerConfig
	Vault        VaultConfig
	Redis        RedisConfig
	Quota        QuotaConfig
	Distribution DistributionConfig
	Payment      PaymentConfig
	Captcha      CaptchaConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Host         string
	Port         string
	TimeoutRead  time.Duration
	TimeoutWrite time.Duration
	TimeoutIdle  time.Duration
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// JWTConfig holds JWT-related configuration
type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

// EmailConfig holds email-related configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	Enabled      bool
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled  bool
	Requests int
	Duration time.Duration
}

// AppConfig holds general application configuration
type AppConfig struct {
	Env       string
	Name      string
	Version   string
	PublicURL string
	StaticDir string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // json or text
}

// SchedulerConfig holds scheduler configuration
type SchedulerConfig struct {
	ReviewReminderCron    string        // e.g., "0 8 * * *" (Daily 8 AM)
	ReminderWindow        time.Duration // assignments due within this window get a reminder
	EnableReviewReminders bool
}

// VaultConfig holds Vault-related configuration
type VaultConfig struct {
	Address      string
	Token        string
	TransitMount string
	Enabled      bool
}

// RedisConfig holds Redis configuration. An empty URL disables Redis.
type RedisConfig struct {
	URL       string
	DedupeTTL time.Duration
	KeyPrefix string
}

// QuotaConfig holds the defaults written into a tenant's configuration row
// the first time it is created.
type QuotaConfig struct {
	MaxEvents      int
	MaxRegistrants int
	MaxForms       int
	MaxReviewers   int
}

// DistributionConfig holds reviewer distribution defaults
type DistributionConfig struct {
	MaxPerReviewer int
	MinReviewers   int
	MaxReviewers   int
	DeadlineDays   int
}

// PaymentConfig holds payment gateway configuration
type PaymentConfig struct {
	BaseURL         string
	AccessToken     string
	NotificationURL string
	Timeout         time.Duration
}

// CaptchaConfig holds reCAPTCHA configuration
type CaptchaConfig struct {
	Enabled   bool
	Secret    string
	VerifyURL string
	MinScore  float64
	Timeout   time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// godotenv doesn't override already-set variables, so order matters
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "localhost"),
			Port:         getEnv("SERVER_PORT", "8080"),
			TimeoutRead:  getDurationEnv("SERVER_TIMEOUT_READ", 15*time.Second),
			TimeoutWrite: getDurationEnv("SERVER_TIMEOUT_WRITE", 60*time.Second),
			TimeoutIdle:  getDurationEnv("SERVER_TIMEOUT_IDLE", 60*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "evento"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "evento_db"),
			SSLMode:         getEnv("DB_SSLMODE", "prefer"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		JWT: JWTConfig{
			Secret:     strings.ReplaceAll(getEnv("JWT_SECRET", ""), `\n`, "\n"),
			Expiration: getDurationEnv("JWT_EXPIRATION", 24*time.Hour),
		},
		Email: EmailConfig{
			SMTPHost:     getEnv("SMTP_HOST", ""),
			SMTPPort:     getEnv("SMTP_PORT", "587"),
			SMTPUsername: getEnv("SMTP_USERNAME", ""),
			SMTPPassword: getEnv("SMTP_PASSWORD", ""),
			SMTPFrom:     getEnv("SMTP_FROM", "noreply@example.com"),
			Enabled:      getBoolEnv("EMAIL_ENABLED", true),
		},
		CORS: CORSConfig{
			AllowedOrigins:   getSliceEnv("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowedMethods:   getSliceEnv("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			AllowedHeaders:   getSliceEnv("CORS_ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"}),
			ExposedHeaders:   getSliceEnv("CORS_EXPOSED_HEADERS", []string{"Link", "Content-Disposition"}),
			AllowCredentials: getBoolEnv("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           getIntEnv("CORS_MAX_AGE", 300),
		},
		RateLimit: RateLimitConfig{
			Enabled:  getBoolEnv("RATE_LIMIT_ENABLED", true),
			Requests: getIntEnv("RATE_LIMIT_REQUESTS", 100),
			Duration: getDurationEnv("RATE_LIMIT_DURATION", 1*time.Minute),
		},
		App: AppConfig{
			Env:       getEnv("APP_ENV", "development"),
			Name:      getEnv("APP_NAME", "Evento"),
			Version:   getEnv("APP_VERSION", "1.0.0"),
			PublicURL: getEnv("APP_PUBLIC_URL", "http://localhost:8080"),
			StaticDir: getEnv("STATIC_DIR", "static"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Scheduler: SchedulerConfig{
			ReviewReminderCron:    getEnv("SCHEDULER_REVIEW_REMINDER_CRON", "0 8 * * *"),
			ReminderWindow:        getDurationEnv("SCHEDULER_REMINDER_WINDOW", 48*time.Hour),
			EnableReviewReminders: getBoolEnv("SCHEDULER_ENABLE_REVIEW_REMINDERS", true),
		},
		Vault: VaultConfig{
			Address:      getEnv("VAULT_ADDR", "http://localhost:8200"),
			Token:        getEnv("VAULT_TOKEN", ""),
			TransitMount: getEnv("VAULT_TRANSIT_MOUNT", "transit"),
			Enabled:      getBoolEnv("VAULT_ENABLED", false),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			DedupeTTL: getDurationEnv("REDIS_DEDUPE_TTL", 24*time.Hour),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "evento:"),
		},
		Quota: QuotaConfig{
			MaxEvents:      getIntEnv("QUOTA_DEFAULT_EVENTS", 5),
			MaxRegistrants: getIntEnv("QUOTA_DEFAULT_REGISTRANTS", 1000),
			MaxForms:       getIntEnv("QUOTA_DEFAULT_FORMS", 3),
			MaxReviewers:   getIntEnv("QUOTA_DEFAULT_REVIEWERS", 2),
		},
		Distribution: DistributionConfig{
			MaxPerReviewer: getIntEnv("DISTRIBUTION_MAX_PER_REVIEWER", 5),
			MinReviewers:   getIntEnv("DISTRIBUTION_MIN_REVIEWERS", 1),
			MaxReviewers:   getIntEnv("DISTRIBUTION_MAX_REVIEWERS", 2),
			DeadlineDays:   getIntEnv("DISTRIBUTION_DEADLINE_DAYS", 14),
		},
		Payment: PaymentConfig{
			BaseURL:         getEnv("PAYMENT_BASE_URL", "https://api.mercadopago.com"),
			AccessToken:     getEnv("PAYMENT_ACCESS_TOKEN", ""),
			NotificationURL: getEnv("PAYMENT_NOTIFICATION_URL", ""),
			Timeout:         getDurationEnv("PAYMENT_TIMEOUT", 10*time.Second),
		},
		Captcha: CaptchaConfig{
			Enabled:   getBoolEnv("RECAPTCHA_ENABLED", false),
			Secret:    getEnv("RECAPTCHA_SECRET", ""),
			VerifyURL: getEnv("RECAPTCHA_VERIFY_URL", "https://www.google.com/recaptcha/api/siteverify"),
			MinScore:  getFloatEnv("RECAPTCHA_MIN_SCORE", 0.5),
			Timeout:   getDurationEnv("RECAPTCHA_TIMEOUT", 5*time.Second),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Database.Password == "" && c.App.Env == "production" {
		return fmt.Errorf("DB_PASSWORD is required in production")
	}
	if c.Captcha.Enabled && c.Captcha.Secret == "" {
		return fmt.Errorf("RECAPTCHA_SECRET is required when RECAPTCHA_ENABLED is set")
	}
	if c.Payment.NotificationURL != "" && c.Payment.AccessToken == "" && c.App.Env == "production" {
		return fmt.Errorf("PAYMENT_ACCESS_TOKEN is required when payment notifications are configured")
	}
	d := c.Distribution
	if d.MinReviewers < 0 || d.MaxReviewers < 0 || d.MaxPerReviewer < 0 || d.DeadlineDays < 0 {
		return fmt.Errorf("distribution defaults must not be negative")
	}
	if d.MinReviewers > d.MaxReviewers {
		return fmt.Errorf("DISTRIBUTION_MIN_REVIEWERS (%d) exceeds DISTRIBUTION_MAX_REVIEWERS (%d)", d.MinReviewers, d.MaxReviewers)
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, v := range parts {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
