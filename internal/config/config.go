package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Lock      LockConfig
	Authority AuthorityConfig
	Webhook   WebhookConfig
	Signing   SigningConfig
	Auth      AuthConfig
	Storage   StorageConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type QueueConfig struct {
	Name        string
	Concurrency int
	MaxAttempts int
	BaseBackoff time.Duration
}

type LockConfig struct {
	TTL time.Duration
}

type AuthorityConfig struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
}

type WebhookConfig struct {
	URL     string
	Timeout time.Duration
}

type SigningConfig struct {
	UploadsDir       string
	EncryptionSecret string
}

type AuthConfig struct {
	JWTSecret     string
	TokenTTL      time.Duration
	SeedDemoUser  bool
	DemoUserEmail string
	DemoUserPass  string
}

type StorageConfig struct {
	Driver     string // "sqlite" or "memory"
	SQLitePath string
}

type LoggingConfig struct {
	Level string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default values")
	}

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Queue: QueueConfig{
			Name:        getEnv("QUEUE_NAME", "sales"),
			Concurrency: getIntEnv("QUEUE_CONCURRENCY", 5),
			MaxAttempts: getIntEnv("QUEUE_MAX_ATTEMPTS", 3),
			BaseBackoff: getDurationEnv("QUEUE_BASE_BACKOFF", 1*time.Second),
		},
		Lock: LockConfig{
			TTL: getDurationEnv("LOCK_TTL", 60*time.Second),
		},
		Authority: AuthorityConfig{
			BaseURL:     getEnv("PREFEITURA_URL", "http://localhost:3001"),
			Timeout:     getDurationEnv("PREFEITURA_TIMEOUT", 10*time.Second),
			MaxAttempts: getIntEnv("PREFEITURA_MAX_ATTEMPTS", 3),
		},
		Webhook: WebhookConfig{
			URL:     getEnv("WEBHOOK_URL", ""),
			Timeout: getDurationEnv("WEBHOOK_TIMEOUT", 5*time.Second),
		},
		Signing: SigningConfig{
			UploadsDir:       getEnv("UPLOADS_DIR", "/app/uploads"),
			EncryptionSecret: getEnv("ENCRYPTION_SECRET", ""),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", ""),
			TokenTTL:      getDurationEnv("JWT_TTL", 24*time.Hour),
			SeedDemoUser:  getBoolEnv("SEED_DEMO_USER", false),
			DemoUserEmail: getEnv("DEMO_USER_EMAIL", "demo@example.com"),
			DemoUserPass:  getEnv("DEMO_USER_PASSWORD", "demo123"),
		},
		Storage: StorageConfig{
			Driver:     getEnv("STORAGE_DRIVER", "sqlite"),
			SQLitePath: getEnv("SQLITE_PATH", "nfse.db"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getBoolEnv(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		log.Printf("Invalid value for %s: %s, using default: %t", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Invalid duration for %s: %s, using default: %s", key, valueStr, defaultValue)
		return defaultValue
	}

	return value
}
