package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Storage drivers accepted by STORAGE_DRIVER.
const (
	StorageDriverFile     = "file"
	StorageDriverMemory   = "memory"
	StorageDriverRedis    = "redis"
	StorageDriverPostgres = "postgres"
)

// Config aggregates runtime configuration for the client and the sandbox.
type Config struct {
	App      AppConfig
	API      APIConfig
	Breaker  BreakerConfig
	Storage  StorageConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Sandbox  SandboxConfig
	Notify   NotificationConfig
}

// AppConfig identifies the running binary.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// APIConfig points the client at the remote CRM API.
type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

// BreakerConfig tunes the client circuit breaker.
type BreakerConfig struct {
	Enabled      bool
	MinRequests  uint32
	FailureRatio float64
	OpenSeconds  int
}

// StorageConfig selects where the token and cached user are persisted.
type StorageConfig struct {
	Driver    string
	Path      string
	KeyPrefix string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level    string
	Encoding string
}

// SandboxConfig drives the reference API server.
type SandboxConfig struct {
	Host                  string
	Port                  string
	JWTSecret             string
	TokenTTLMinutes       int
	BcryptCost            int
	RequestTimeoutSeconds int
	SeedAdminEmail        string
	SeedAdminPassword     string
	RevocationDriver      string
	PublicURL             string
	GoogleClientID        string
	GoogleAuthURL         string
}

// NotificationConfig holds outbound notification endpoints for lead events.
type NotificationConfig struct {
	EmailFrom  string
	WebhookURL string
	QueueSize  int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	revocation := getEnv("SANDBOX_REVOCATION_DRIVER", StorageDriverMemory)
	if revocation != StorageDriverMemory && revocation != StorageDriverRedis {
		return nil, fmt.Errorf("invalid SANDBOX_REVOCATION_DRIVER %q", revocation)
	}

	driver := getEnv("STORAGE_DRIVER", StorageDriverFile)
	switch driver {
	case StorageDriverFile, StorageDriverMemory, StorageDriverRedis, StorageDriverPostgres:
	default:
		return nil, fmt.Errorf("invalid STORAGE_DRIVER %q", driver)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "leadcrm"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		API: APIConfig{
			BaseURL:        getEnv("API_BASE_URL", "http://127.0.0.1:8080/api"),
			TimeoutSeconds: getEnvAsInt("API_TIMEOUT_SECONDS", 30),
		},
		Breaker: BreakerConfig{
			Enabled:      getEnvAsBool("API_BREAKER_ENABLED", true),
			MinRequests:  uint32(getEnvAsInt("API_BREAKER_MIN_REQUESTS", 5)),
			FailureRatio: getEnvAsFloat("API_BREAKER_FAILURE_RATIO", 0.6),
			OpenSeconds:  getEnvAsInt("API_BREAKER_OPEN_SECONDS", 10),
		},
		Storage: StorageConfig{
			Driver:    driver,
			Path:      getEnv("STORAGE_PATH", defaultStoragePath()),
			KeyPrefix: getEnv("STORAGE_KEY_PREFIX", "leadcrm:"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 1)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", "info"),
			Encoding: getEnv("LOG_ENCODING", "json"),
		},
		Sandbox: SandboxConfig{
			Host:                  getEnv("SANDBOX_HOST", "0.0.0.0"),
			Port:                  getEnv("SANDBOX_PORT", "8080"),
			JWTSecret:             getEnv("SANDBOX_JWT_SECRET", "dev-secret"),
			TokenTTLMinutes:       getEnvAsInt("SANDBOX_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("SANDBOX_BCRYPT_COST", 10),
			RequestTimeoutSeconds: getEnvAsInt("SANDBOX_REQUEST_TIMEOUT_SECONDS", 30),
			SeedAdminEmail:        os.Getenv("SANDBOX_SEED_ADMIN_EMAIL"),
			SeedAdminPassword:     os.Getenv("SANDBOX_SEED_ADMIN_PASSWORD"),
			RevocationDriver:      revocation,
			PublicURL:             getEnv("SANDBOX_PUBLIC_URL", "http://127.0.0.1:8080"),
			GoogleClientID:        getEnv("SANDBOX_GOOGLE_CLIENT_ID", "sandbox-client"),
			GoogleAuthURL:         getEnv("SANDBOX_GOOGLE_AUTH_URL", "https://accounts.google.com/o/oauth2/v2/auth"),
		},
		Notify: NotificationConfig{
			EmailFrom:  os.Getenv("NOTIFY_EMAIL_FROM"),
			WebhookURL: os.Getenv("NOTIFY_WEBHOOK_URL"),
			QueueSize:  getEnvAsInt("NOTIFY_QUEUE_SIZE", 64),
		},
	}

	return cfg, nil
}

// Timeout returns the per-request timeout for API calls.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// OpenTimeout is how long the breaker stays open before probing again.
func (b BreakerConfig) OpenTimeout() time.Duration {
	if b.OpenSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(b.OpenSeconds) * time.Second
}

// Addr returns the HTTP bind address.
func (s SandboxConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (s SandboxConfig) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

func defaultStoragePath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".leadcrm", "session.json")
	}
	return filepath.Join(home, ".leadcrm", "session.json")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsFloat(key string, fallback float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
