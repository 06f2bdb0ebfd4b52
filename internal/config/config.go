// Package config provides configuration management for the rescan service.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Supported storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported vision providers
const (
	VisionGemini = "gemini"
	VisionStatic = "static"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Ledger    LedgerConfig
	Vision    VisionConfig
	RateLimit RateLimitConfig
	Upload    UploadConfig
	Logging   LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         string
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	AllowOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string
	SQLite   SQLiteConfig
	Postgres PostgresConfig
	Redis    RedisConfig
}

// SQLiteConfig holds SQLite configuration
type SQLiteConfig struct {
	Path string
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	SSLMode        string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	TTL time.Duration
}

// LedgerConfig holds points ledger configuration
type LedgerConfig struct {
	MaxAddressLength    int
	ScanTimeout         time.Duration
	PointsRecyclable    int64
	PointsNonRecyclable int64
	PointsPolicyFile    string
}

// VisionConfig holds material identification provider configuration
type VisionConfig struct {
	Provider     string
	GeminiAPIKey string
	GeminiModel  string
	Timeout      time.Duration
	MaxRetries   int
}

// RateLimitConfig holds per-client rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	// TrustedProxies may identify callers with X-Client-ID; everyone else
	// is limited by remote IP
	TrustedProxies []string
	IdleTTL        time.Duration
}

// UploadConfig holds image upload limits
type UploadConfig struct {
	MaxBytes int64
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowOrigins: getEnvAsList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DB_DRIVER", DriverSQLite)),
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "rescan.db"),
			},
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "rescan"),
				User:           getEnv("POSTGRES_USER", "rescan"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				SSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 25),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 20),
			},
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", 30*time.Second),
		},
		Ledger: LedgerConfig{
			MaxAddressLength:    getEnvAsInt("LEDGER_MAX_ADDRESS_LENGTH", 200),
			ScanTimeout:         getEnvAsDuration("LEDGER_SCAN_TIMEOUT", 5*time.Second),
			PointsRecyclable:    getEnvAsInt64("POINTS_RECYCLABLE", 100),
			PointsNonRecyclable: getEnvAsInt64("POINTS_NON_RECYCLABLE", 10),
			PointsPolicyFile:    getEnv("POINTS_POLICY_FILE", ""),
		},
		Vision: VisionConfig{
			Provider:     strings.ToLower(getEnv("VISION_PROVIDER", VisionStatic)),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			GeminiModel:  getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			Timeout:      getEnvAsDuration("VISION_TIMEOUT", 20*time.Second),
			MaxRetries:   getEnvAsInt("VISION_MAX_RETRIES", 2),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 5),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 20),
			TrustedProxies:    getEnvAsList("RATE_LIMIT_TRUSTED_PROXIES", nil),
			IdleTTL:           getEnvAsDuration("RATE_LIMIT_IDLE_TTL", 10*time.Minute),
		},
		Upload: UploadConfig{
			MaxBytes: getEnvAsInt64("UPLOAD_MAX_BYTES", 10<<20),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// Validate rejects configurations the service cannot run with
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("SQLITE_PATH must be set when DB_DRIVER=sqlite")
		}
	case DriverPostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("POSTGRES_HOST and POSTGRES_DB must be set when DB_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}

	if c.Ledger.MaxAddressLength <= 0 {
		return fmt.Errorf("LEDGER_MAX_ADDRESS_LENGTH must be positive, got %d", c.Ledger.MaxAddressLength)
	}
	if c.Ledger.ScanTimeout <= 0 {
		return fmt.Errorf("LEDGER_SCAN_TIMEOUT must be positive, got %s", c.Ledger.ScanTimeout)
	}
	if c.Ledger.PointsRecyclable < 0 || c.Ledger.PointsNonRecyclable < 0 {
		return fmt.Errorf("point awards must not be negative")
	}

	switch c.Vision.Provider {
	case VisionStatic:
	case VisionGemini:
		if c.Vision.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set when VISION_PROVIDER=gemini")
		}
	default:
		return fmt.Errorf("unsupported VISION_PROVIDER %q", c.Vision.Provider)
	}

	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateLimit.IdleTTL <= 0 {
		return fmt.Errorf("RATE_LIMIT_IDLE_TTL must be positive")
	}
	for _, proxy := range c.RateLimit.TrustedProxies {
		if net.ParseIP(proxy) == nil {
			return fmt.Errorf("RATE_LIMIT_TRUSTED_PROXIES: %q is not an IP address", proxy)
		}
	}
	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}

	return nil
}

// PostgresDSN returns a URL-style connection string for the configured Postgres database
func (p PostgresConfig) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// RedisAddr returns host:port for the configured Redis server
func (r RedisConfig) RedisAddr() string {
	return r.Host + ":" + r.Port
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 gets an environment variable as an int64 with a default value
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float64 with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a bool with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList gets a comma separated environment variable as a list
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
