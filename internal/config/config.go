package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Conflict  ConflictConfig
	Retry     RetryConfig
	CORS      CORSConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Port string
	Host string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type WebSocketConfig struct {
	WriteWait        time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	MaxConnPerDevice int
}

type ConflictConfig struct {
	// AutoResolveThreshold is the minimum timestamp gap for an edit to count
	// as unambiguously newer when auto-resolving edit-edit conflicts.
	AutoResolveThreshold time.Duration
	// UndoGraceWindow bounds how long a resolution stays undoable.
	UndoGraceWindow time.Duration
	ScanInterval    time.Duration
	ScanEnabled     bool
}

type RetryConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsedTime  time.Duration
}

type CORSConfig struct {
	AllowedOrigins string
	AllowedMethods string
	AllowedHeaders string
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	godotenv.Load()

	jwtExp, err := time.ParseDuration(getEnv("JWT_EXPIRATION", "24h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION: %w", err)
	}

	autoThreshold, err := time.ParseDuration(getEnv("CONFLICT_AUTO_RESOLVE_THRESHOLD", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONFLICT_AUTO_RESOLVE_THRESHOLD: %w", err)
	}

	undoWindow, err := time.ParseDuration(getEnv("CONFLICT_UNDO_GRACE_WINDOW", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONFLICT_UNDO_GRACE_WINDOW: %w", err)
	}

	scanInterval, err := time.ParseDuration(getEnv("CONFLICT_SCAN_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid CONFLICT_SCAN_INTERVAL: %w", err)
	}

	return &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
			Host: getEnv("HOST", "0.0.0.0"),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5984"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "taskforge"),
		},
		JWT: JWTConfig{
			Secret:     getEnv("JWT_SECRET", "dev-secret-change-in-production"),
			Expiration: jwtExp,
		},
		WebSocket: WebSocketConfig{
			WriteWait:        10 * time.Second,
			PongWait:         60 * time.Second,
			PingPeriod:       54 * time.Second,
			MaxConnPerDevice: getEnvAsInt("WS_MAX_CONN_PER_DEVICE", 3),
		},
		Conflict: ConflictConfig{
			AutoResolveThreshold: autoThreshold,
			UndoGraceWindow:      undoWindow,
			ScanInterval:         scanInterval,
			ScanEnabled:          getEnvAsBool("CONFLICT_SCAN_ENABLED", true),
		},
		Retry: RetryConfig{
			InitialInterval: getEnvAsDuration("RETRY_INITIAL_INTERVAL", 500*time.Millisecond),
			MaxInterval:     getEnvAsDuration("RETRY_MAX_INTERVAL", 30*time.Second),
			MaxElapsedTime:  getEnvAsDuration("RETRY_MAX_ELAPSED_TIME", 2*time.Minute),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			AllowedMethods: getEnv("CORS_ALLOWED_METHODS", "GET,POST,DELETE,OPTIONS"),
			AllowedHeaders: getEnv("CORS_ALLOWED_HEADERS", "Content-Type,Authorization"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
