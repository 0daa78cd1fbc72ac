package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environments
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Encryption key sources
const (
	KeySourceEnv   = "env"
	KeySourceFile  = "file"
	KeySourceVault = "vault"
	KeySourceAWS   = "aws"
	KeySourceGCP   = "gcp"
)

// Config holds all application configuration
type Config struct {
	Environment string

	Server     ServerConfig
	Database   DatabaseConfig
	Gateway    GatewayConfig
	Encryption EncryptionConfig
	Vault      VaultConfig
	AWS        AWSConfig
	GCP        GCPConfig
	Notifier   NotifierConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Cron       CronConfig
	RateLimit  RateLimitConfig
	Logger     LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int

	// PublicBaseURL is where the gateway redirects browsers back to
	PublicBaseURL string
	// FrontendURL receives the post-payment redirect
	FrontendURL string
	// TrustProxy honours X-Forwarded-For / X-Real-IP
	TrustProxy bool

	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	// URL wins over the individual fields when set
	URL string

	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32

	// LockTimeout bounds row lock waits inside transactions
	LockTimeout time.Duration
}

// GatewayConfig holds eSewa configuration
type GatewayConfig struct {
	SuccessURL string
	FailureURL string
	Timeout    time.Duration

	// AutoApproveSandbox approves sandbox payments without calling the gateway
	AutoApproveSandbox bool

	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// EncryptionConfig names where the credential vault's master keys come from
type EncryptionConfig struct {
	Source        string
	PrimaryPath   string
	PreviousPaths []string
	// FileDir is the base directory of the file source
	FileDir string
}

// VaultConfig holds HashiCorp Vault configuration
type VaultConfig struct {
	Address    string
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string
	Namespace  string
	MountPath  string
	KVVersion  string
	CacheTTL   time.Duration
}

// AWSConfig holds AWS Secrets Manager configuration
type AWSConfig struct {
	Region   string
	Profile  string
	Endpoint string
	CacheTTL time.Duration
}

// GCPConfig holds GCP Secret Manager configuration
type GCPConfig struct {
	ProjectID string
	CacheTTL  time.Duration
}

// NotifierConfig holds notification broker configuration. An empty URL logs notifications instead.
type NotifierConfig struct {
	RabbitMQURL  string
	Exchange     string
	MaxAttempts  int
	OpsRecipient string
	Timeout      time.Duration
}

// RedisConfig holds reminder dedup configuration. An empty URL uses an in-process store.
type RedisConfig struct {
	URL       string
	KeyPrefix string
}

// AuthConfig holds admin bearer token configuration
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// CronConfig holds sweep trigger configuration
type CronConfig struct {
	Secret       string
	SweepTimeout time.Duration
}

// RateLimitConfig bounds the public gateway callbacks per client
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadDotEnv loads variables from the given .env files (default ".env") without
// overriding the process environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	env := strings.ToLower(getEnv("ENVIRONMENT", EnvDevelopment))
	port := getEnvAsInt("PORT", 8080)
	publicBase := strings.TrimRight(getEnv("PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")

	cfg := &Config{
		Environment: env,
		Server: ServerConfig{
			Port:            port,
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort:     getEnvAsInt("METRICS_PORT", 9090),
			PublicBaseURL:   publicBase,
			FrontendURL:     strings.TrimRight(getEnv("FRONTEND_URL", "http://localhost:3000"), "/"),
			TrustProxy:      getEnvAsBool("TRUST_PROXY", false),
			ShutdownTimeout: getEnvAsSeconds("SHUTDOWN_TIMEOUT_SECONDS", 30),
		},
		Database: DatabaseConfig{
			URL:         getEnv("DATABASE_URL", ""),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnvAsInt("DB_PORT", 5432),
			User:        getEnv("DB_USER", "postgres"),
			Password:    getEnv("DB_PASSWORD", ""),
			Database:    getEnv("DB_NAME", "qrmenu_billing"),
			SSLMode:     getEnv("DB_SSL_MODE", "disable"),
			MaxConns:    int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:    int32(getEnvAsInt("DB_MIN_CONNS", 2)),
			LockTimeout: time.Duration(getEnvAsInt("DB_LOCK_TIMEOUT_MS", 5000)) * time.Millisecond,
		},
		Gateway: GatewayConfig{
			SuccessURL:         getEnv("ESEWA_SUCCESS_URL", publicBase+"/api/billing/payment/success"),
			FailureURL:         getEnv("ESEWA_FAILURE_URL", publicBase+"/api/billing/payment/failure"),
			Timeout:            getEnvAsSeconds("ESEWA_VERIFY_TIMEOUT_SECONDS", 10),
			AutoApproveSandbox: getEnvAsBool("GATEWAY_AUTO_APPROVE_SANDBOX", false),
			BreakerFailures:    uint32(getEnvAsInt("ESEWA_BREAKER_FAILURES", 5)),
			BreakerOpenTimeout: getEnvAsSeconds("ESEWA_BREAKER_OPEN_SECONDS", 30),
		},
		Encryption: EncryptionConfig{
			Source:        strings.ToLower(getEnv("ENCRYPTION_KEY_SOURCE", KeySourceEnv)),
			PrimaryPath:   getEnv("ENCRYPTION_KEY_PATH", "BILLING_ENCRYPTION_KEY"),
			PreviousPaths: getEnvAsList("ENCRYPTION_PREVIOUS_KEY_PATHS"),
			FileDir:       getEnv("ENCRYPTION_KEY_DIR", "./secrets"),
		},
		Vault: VaultConfig{
			Address:    getEnv("VAULT_ADDR", "http://127.0.0.1:8200"),
			AuthMethod: getEnv("VAULT_AUTH_METHOD", "token"),
			Token:      getEnv("VAULT_TOKEN", ""),
			RoleID:     getEnv("VAULT_ROLE_ID", ""),
			SecretID:   getEnv("VAULT_SECRET_ID", ""),
			Namespace:  getEnv("VAULT_NAMESPACE", ""),
			MountPath:  getEnv("VAULT_MOUNT_PATH", "secret"),
			KVVersion:  getEnv("VAULT_KV_VERSION", "v2"),
			CacheTTL:   getEnvAsMinutes("SECRET_CACHE_TTL_MINUTES", 5),
		},
		AWS: AWSConfig{
			Region:   getEnv("AWS_REGION", "us-east-1"),
			Profile:  getEnv("AWS_PROFILE", ""),
			Endpoint: getEnv("AWS_SECRETS_ENDPOINT", ""),
			CacheTTL: getEnvAsMinutes("SECRET_CACHE_TTL_MINUTES", 5),
		},
		GCP: GCPConfig{
			ProjectID: getEnv("GCP_PROJECT_ID", ""),
			CacheTTL:  getEnvAsMinutes("SECRET_CACHE_TTL_MINUTES", 5),
		},
		Notifier: NotifierConfig{
			RabbitMQURL:  getEnv("RABBITMQ_URL", ""),
			Exchange:     getEnv("NOTIFY_EXCHANGE", "qrmenu.billing.notifications"),
			MaxAttempts:  getEnvAsInt("NOTIFY_MAX_ATTEMPTS", 3),
			OpsRecipient: getEnv("OPS_NOTIFY_EMAIL", ""),
			Timeout:      getEnvAsSeconds("NOTIFY_TIMEOUT_SECONDS", 10),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			KeyPrefix: getEnv("REDIS_KEY_PREFIX", "qrmenu:billing:reminder:"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			Issuer:    getEnv("JWT_ISSUER", ""),
			TokenTTL:  getEnvAsMinutes("JWT_EXPIRY_MINUTES", 60),
		},
		Cron: CronConfig{
			Secret:       getEnv("CRON_SECRET", ""),
			SweepTimeout: getEnvAsSeconds("CRON_SWEEP_TIMEOUT_SECONDS", 300),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("CALLBACK_RATE_LIMIT_RPS", 10),
			Burst:             getEnvAsInt("CALLBACK_RATE_LIMIT_BURST", 20),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", env == EnvDevelopment),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsProduction reports whether the service runs against real money
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Validate checks required fields and refuses unsafe settings in production
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("ENVIRONMENT must be one of development, staging, production (got %q)", c.Environment)
	}

	if c.Database.URL == "" && c.Database.Password == "" && c.IsProduction() {
		return fmt.Errorf("DATABASE_URL or DB_PASSWORD is required")
	}

	switch c.Encryption.Source {
	case KeySourceEnv, KeySourceFile:
	case KeySourceVault:
		if c.Vault.Address == "" {
			return fmt.Errorf("VAULT_ADDR is required when ENCRYPTION_KEY_SOURCE=vault")
		}
	case KeySourceAWS:
		if c.AWS.Region == "" {
			return fmt.Errorf("AWS_REGION is required when ENCRYPTION_KEY_SOURCE=aws")
		}
	case KeySourceGCP:
		if c.GCP.ProjectID == "" {
			return fmt.Errorf("GCP_PROJECT_ID is required when ENCRYPTION_KEY_SOURCE=gcp")
		}
	default:
		return fmt.Errorf("unknown ENCRYPTION_KEY_SOURCE %q", c.Encryption.Source)
	}

	if _, err := url.ParseRequestURI(c.Server.FrontendURL); err != nil {
		return fmt.Errorf("FRONTEND_URL is invalid: %w", err)
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("ESEWA_VERIFY_TIMEOUT_SECONDS must be positive")
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("callback rate limit must be positive")
	}

	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.Cron.Secret == "" {
			return fmt.Errorf("CRON_SECRET is required in production")
		}
		if c.Encryption.PrimaryPath == "" {
			return fmt.Errorf("ENCRYPTION_KEY_PATH is required in production")
		}
		if c.Gateway.AutoApproveSandbox {
			return fmt.Errorf("GATEWAY_AUTO_APPROVE_SANDBOX cannot be enabled in production")
		}
	}
	return nil
}

// ConnectionString returns the PostgreSQL connection URL
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultSeconds)) * time.Second
}

func getEnvAsMinutes(key string, defaultMinutes int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultMinutes)) * time.Minute
}

// getEnvAsList splits a comma-separated value, dropping empty entries
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
