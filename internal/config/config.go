package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database     DatabaseConfig
	JWT          JWTConfig
	App          AppConfig
	OAuth2Google OAuth2GoogleConfig
	Redis        RedisConfig
	Paystack     PaystackConfig
	Stripe       StripeConfig
	Xendit       XenditConfig
	SMTP         SMTPConfig
	Storage      StorageConfig
	PDF          PDFConfig
	Cron         CronConfig
	Invitation   InvitationConfig
	Security     SecurityConfig
}

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	Name        string
	SSLMode     string
	AutoMigrate bool
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret            string
	RefreshExpiration string
	AccessExpiration  string
}

// AppConfig holds application configuration
type AppConfig struct {
	Name        string
	Port        int
	Env         string
	LogLevel    string
	BaseURL     string
	FrontendURL string
	CORSOrigins []string
}

type OAuth2GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

// RedisConfig holds the cache / idempotency store connection
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port for go-redis
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type PaystackConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type XenditConfig struct {
	SecretKey     string
	CallbackToken string
	SuccessURL    string
	FailureURL    string
}

// SMTPConfig holds outgoing mail settings. An empty Host disables sending.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// StorageConfig selects the file storage driver ("local" or "s3")
type StorageConfig struct {
	Type     string
	BasePath string
	BaseURL  string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3UsePathStyle    bool
	S3PresignExpiry   time.Duration
}

type PDFConfig struct {
	Enabled    bool
	ChromePath string
	Timeout    time.Duration
}

type CronConfig struct {
	Enabled bool
}

type InvitationConfig struct {
	ExpiryDays int
	BaseURL    string
}

// SecurityConfig holds limits for login and inbound webhooks
type SecurityConfig struct {
	MaxLoginAttempts    int
	LockoutDuration     time.Duration
	WebhookRateLimit    int
	WebhookRateWindow   time.Duration
	ReportCacheTTL      time.Duration
	SharedReportExpiry  time.Duration
	PaymentIdempotency  time.Duration
	WebhookEventTTL     time.Duration
	OutboundWebhookWait time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	} else if err != nil {
		slog.Debug("No .env file found, using environment")
	}

	config := &Config{}

	// Database configuration
	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	config.Database = DatabaseConfig{
		Host:        getEnv("DB_HOST", "localhost"),
		Port:        dbPort,
		User:        getEnv("DB_USER", "postgres"),
		Password:    getEnv("DB_PASSWORD", ""),
		Name:        getEnv("DB_NAME", "invoiceflow"),
		SSLMode:     getEnv("DB_SSL_MODE", "disable"),
		AutoMigrate: getEnvBool("DB_AUTO_MIGRATE", false),
	}

	// Redis configuration
	redisPort, err := strconv.Atoi(getEnv("REDIS_PORT", "6379"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	config.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     redisPort,
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       redisDB,
	}

	// Application configuration
	appPort, err := strconv.Atoi(getEnv("APP_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_PORT: %w", err)
	}

	config.App = AppConfig{
		Name:        getEnv("APP_NAME", "InvoiceFlow"),
		Port:        appPort,
		Env:         getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		BaseURL:     getEnv("APP_BASE_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),
		CORSOrigins: getEnvSlice("CORS_ORIGINS"),
	}
	if len(config.App.CORSOrigins) == 0 {
		config.App.CORSOrigins = []string{config.App.FrontendURL}
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:            getEnv("JWT_SECRET_KEY", ""),
		RefreshExpiration: getEnv("JWT_REFRESH_EXPIRATION_TIME", "168h"),
		AccessExpiration:  getEnv("JWT_ACCESS_EXPIRATION_TIME", "15m"),
	}

	// OAuth2 Google Configuration
	config.OAuth2Google = OAuth2GoogleConfig{
		ClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		ClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		RedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		Scopes:       getEnvSlice("GOOGLE_SCOPES"),
	}

	// Payment gateways
	config.Paystack = PaystackConfig{
		SecretKey:   getEnv("PAYSTACK_SECRET_KEY", ""),
		BaseURL:     getEnv("PAYSTACK_BASE_URL", "https://api.paystack.co"),
		CallbackURL: getEnv("PAYSTACK_CALLBACK_URL", ""),
	}
	config.Stripe = StripeConfig{
		SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		SuccessURL:    getEnv("STRIPE_SUCCESS_URL", ""),
		CancelURL:     getEnv("STRIPE_CANCEL_URL", ""),
	}
	config.Xendit = XenditConfig{
		SecretKey:     getEnv("XENDIT_SECRET_KEY", ""),
		CallbackToken: getEnv("XENDIT_CALLBACK_TOKEN", ""),
		SuccessURL:    getEnv("XENDIT_SUCCESS_URL", ""),
		FailureURL:    getEnv("XENDIT_FAILURE_URL", ""),
	}

	// SMTP
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_PORT: %w", err)
	}
	config.SMTP = SMTPConfig{
		Host:      getEnv("SMTP_HOST", ""),
		Port:      smtpPort,
		Username:  getEnv("SMTP_USERNAME", ""),
		Password:  getEnv("SMTP_PASSWORD", ""),
		FromEmail: getEnv("SMTP_FROM_EMAIL", "no-reply@invoiceflow.local"),
		FromName:  getEnv("SMTP_FROM_NAME", "InvoiceFlow"),
	}

	// Storage
	presignExpiry, err := time.ParseDuration(getEnv("S3_PRESIGN_EXPIRY", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid S3_PRESIGN_EXPIRY: %w", err)
	}
	config.Storage = StorageConfig{
		Type:              getEnv("STORAGE_TYPE", "local"),
		BasePath:          getEnv("STORAGE_BASE_PATH", "./uploads"),
		BaseURL:           getEnv("STORAGE_BASE_URL", "/uploads"),
		S3Bucket:          getEnv("S3_BUCKET", ""),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        getEnv("S3_ENDPOINT", ""),
		S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		S3UsePathStyle:    getEnvBool("S3_USE_PATH_STYLE", false),
		S3PresignExpiry:   presignExpiry,
	}

	// PDF rendering
	pdfTimeout, err := time.ParseDuration(getEnv("PDF_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PDF_TIMEOUT: %w", err)
	}
	config.PDF = PDFConfig{
		Enabled:    getEnvBool("PDF_ENABLED", false),
		ChromePath: getEnv("PDF_CHROME_PATH", ""),
		Timeout:    pdfTimeout,
	}

	config.Cron = CronConfig{
		Enabled: getEnvBool("CRON_ENABLED", true),
	}

	config.Invitation = InvitationConfig{
		ExpiryDays: getEnvInt("INVITATION_EXPIRY_DAYS", 7),
		BaseURL:    getEnv("INVITATION_BASE_URL", config.App.FrontendURL+"/invitations"),
	}

	lockout, err := time.ParseDuration(getEnv("LOGIN_LOCKOUT_DURATION", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOGIN_LOCKOUT_DURATION: %w", err)
	}
	config.Security = SecurityConfig{
		MaxLoginAttempts:    getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LockoutDuration:     lockout,
		WebhookRateLimit:    getEnvInt("WEBHOOK_RATE_LIMIT", 120),
		WebhookRateWindow:   time.Duration(getEnvInt("WEBHOOK_RATE_WINDOW_SECONDS", 60)) * time.Second,
		ReportCacheTTL:      time.Duration(getEnvInt("REPORT_CACHE_TTL_SECONDS", 300)) * time.Second,
		SharedReportExpiry:  time.Duration(getEnvInt("SHARED_REPORT_EXPIRY_DAYS", 7)) * 24 * time.Hour,
		PaymentIdempotency:  24 * time.Hour,
		WebhookEventTTL:     72 * time.Hour,
		OutboundWebhookWait: 10 * time.Second,
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := time.ParseDuration(c.JWT.AccessExpiration); err != nil {
		return fmt.Errorf("JWT_ACCESS_EXPIRATION_TIME is invalid: %w", err)
	}
	if _, err := time.ParseDuration(c.JWT.RefreshExpiration); err != nil {
		return fmt.Errorf("JWT_REFRESH_EXPIRATION_TIME is invalid: %w", err)
	}
	switch c.Storage.Type {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_TYPE=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_TYPE %q", c.Storage.Type)
	}
	if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}
	if c.Paystack.SecretKey == "" && c.Stripe.SecretKey == "" && c.Xendit.SecretKey == "" {
		slog.Warn("No payment gateway configured, online payments are disabled")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// MigrationURL returns the connection string in the form golang-migrate's pgx5 driver expects
func (c *Config) MigrationURL() string {
	return "pgx5" + strings.TrimPrefix(c.DatabaseURL(), "postgres")
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			result = append(result, part)
		}
	}
	return result
}
