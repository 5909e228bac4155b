package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultProvider is the backend selected when AI_PROVIDER is unset
	DefaultProvider = "gemini"

	// DefaultModel is the model requested when AI_MODEL is unset
	DefaultModel = "gemini-1.5-flash"

	// DefaultDeliveryLimit is the largest response, in characters, delivered inline
	DefaultDeliveryLimit = 4096

	// DefaultResponseFileName names the attachment used for oversized responses
	DefaultResponseFileName = "ai_response.txt"

	// DefaultBackendTimeout bounds one provider exchange when AI_HTTP_TIMEOUT is unset
	DefaultBackendTimeout = 90 * time.Second

	// DefaultRequestTimeout is the handler deadline when SERVER_WRITE_TIMEOUT is unset
	DefaultRequestTimeout = 60 * time.Second

	// RequestTimeoutMargin is kept between the handler deadline and the
	// server write deadline so the response can still be written
	RequestTimeoutMargin = 5 * time.Second
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	AI            AIConfig
	Dispatch      DispatchConfig
	Database      *DatabaseConfig // Optional: nil disables the dispatch record store
	Auth          AuthConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

// AIConfig holds the provider selection and credentials.
// Provider and APIKey are not validated at load; the dispatcher reports
// them per query.
type AIConfig struct {
	Provider     string
	APIKey       string
	Model        string
	SystemPrompt string
	BaseURL      string // Optional override of the backend endpoint
	HTTPTimeout  time.Duration
}

// DispatchConfig holds the query dispatch policy
type DispatchConfig struct {
	DeliveryLimit     int
	ResponseFileName  string
	GenerationTimeout time.Duration // 0 disables the per-call deadline
	ProcessingNotice  string        // Empty disables the interim notice
	Workers           int
	QueueSize         int
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// AuthConfig holds admin API authentication configuration
type AuthConfig struct {
	AdminJWTSecret string
	Issuer         string
	AdminRole      string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://*"}),
		},
		AI: AIConfig{
			Provider:     getEnv("AI_PROVIDER", DefaultProvider),
			APIKey:       os.Getenv("AI_API_KEY"),
			Model:        getEnv("AI_MODEL", DefaultModel),
			SystemPrompt: os.Getenv("AI_SYSTEM_PROMPT"),
			BaseURL:      os.Getenv("AI_BASE_URL"),
			HTTPTimeout:  getEnvAsDuration("AI_HTTP_TIMEOUT", DefaultBackendTimeout),
		},
		Dispatch: DispatchConfig{
			DeliveryLimit:     getEnvAsInt("AI_DELIVERY_LIMIT", DefaultDeliveryLimit),
			ResponseFileName:  getEnv("AI_RESPONSE_FILE_NAME", DefaultResponseFileName),
			GenerationTimeout: getEnvAsDuration("AI_GENERATION_TIMEOUT", 0),
			ProcessingNotice:  os.Getenv("AI_PROCESSING_NOTICE"),
			Workers:           getEnvAsInt("AI_WORKERS", 4),
			QueueSize:         getEnvAsInt("AI_QUEUE_SIZE", 64),
		},
		Database: loadDatabaseConfig(),
		Auth: AuthConfig{
			AdminJWTSecret: os.Getenv("ADMIN_JWT_SECRET"),
			Issuer:         getEnv("ADMIN_JWT_ISSUER", "ai-dispatcher"),
			AdminRole:      getEnv("ADMIN_ROLE", "admin"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Dispatch.DeliveryLimit <= 0 {
		return fmt.Errorf("delivery limit must be positive")
	}
	if c.Dispatch.ResponseFileName == "" {
		return fmt.Errorf("response file name is required")
	}
	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("worker count must be positive")
	}
	if c.Dispatch.QueueSize < 0 {
		return fmt.Errorf("queue size cannot be negative")
	}
	if c.Dispatch.GenerationTimeout < 0 {
		return fmt.Errorf("generation timeout cannot be negative")
	}

	// Backend deadlines must expire first so the error line reaches the caller
	requestTimeout := c.Server.RequestTimeout()
	if c.AI.HTTPTimeout >= requestTimeout {
		return fmt.Errorf("AI HTTP timeout %s must be shorter than the request timeout %s", c.AI.HTTPTimeout, requestTimeout)
	}
	if c.Dispatch.GenerationTimeout >= requestTimeout {
		return fmt.Errorf("generation timeout %s must be shorter than the request timeout %s", c.Dispatch.GenerationTimeout, requestTimeout)
	}

	if c.Database != nil && c.Database.ConnectionString == "" {
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
	}

	// The admin API must not be left open in production
	if c.IsProduction() && c.Auth.AdminJWTSecret == "" {
		return fmt.Errorf("admin JWT secret is required in production")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password).
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, db)
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// RequestTimeout is the deadline applied to each HTTP handler. It ends
// RequestTimeoutMargin before the server write deadline.
func (c *ServerConfig) RequestTimeout() time.Duration {
	if c.WriteTimeout <= 0 {
		return DefaultRequestTimeout
	}
	if c.WriteTimeout <= 2*RequestTimeoutMargin {
		return c.WriteTimeout / 2
	}
	return c.WriteTimeout - RequestTimeoutMargin
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// loadDatabaseConfig returns nil unless DATABASE_URL or DB_HOST is set
func loadDatabaseConfig() *DatabaseConfig {
	pool := DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool.ConnectionString = dbURL
		return &pool
	}

	host := os.Getenv("DB_HOST")
	if host == "" {
		return nil
	}

	pool.Host = host
	pool.Port = getEnvAsInt("DB_PORT", 5432)
	pool.User = getEnv("DB_USER", "dispatcher")
	pool.Password = os.Getenv("DB_PASSWORD")
	pool.Database = getEnv("DB_NAME", "dispatcher")
	pool.SSLMode = getEnv("DB_SSLMODE", "disable")
	return &pool
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			values = append(values, item)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
