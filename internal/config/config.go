// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
)

type Config struct {
	Port         string
	StoreBackend string
	DatabaseURL  string

	RedisAddr string
	RedisDB   int

	QueueName         string
	BatchSize         int
	FlushInterval     time.Duration
	InactivityTimeout time.Duration

	ThinkDelay time.Duration
	// TokenTTL is zero when tokens never expire.
	TokenTTL time.Duration
	// Raw ed25519 key files; a fresh pair is generated when either is empty.
	PrivateKeyPath string
	PublicKeyPath  string
	LogLevel logrus.Level
}

// Load reads an optional .env file, then the environment.
func Load(logger logrus.FieldLogger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Debug(".env file not found, using environment variables or defaults")
	}

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		StoreBackend:      strings.ToLower(getEnv("STORE_BACKEND", BackendMemory)),
		DatabaseURL:       databaseURL(),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		QueueName:         getEnv("HISTORIAN_QUEUE_NAME", "uno_moves"),
		BatchSize:         getEnvInt("HISTORIAN_BATCH_SIZE", 20),
		FlushInterval:     time.Duration(getEnvInt("HISTORIAN_FLUSH_MS", 500)) * time.Millisecond,
		InactivityTimeout: time.Duration(getEnvInt("GAME_INACTIVITY_TIMEOUT_SEC", 600)) * time.Second,
		ThinkDelay:        time.Duration(getEnvInt("AI_THINK_DELAY_MS", 0)) * time.Millisecond,
		PrivateKeyPath:    getEnv("PRIVATE_KEY_PATH", ""),
		PublicKeyPath:     getEnv("PUBLIC_KEY_PATH", ""),
	}

	switch cfg.StoreBackend {
	case BackendMemory, BackendPostgres:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	if cfg.BatchSize < 1 {
		return nil, fmt.Errorf("HISTORIAN_BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}

	ttl, err := getEnvDuration("TOKEN_EXPIRE_TIME", 0)
	if err != nil {
		return nil, err
	}
	cfg.TokenTTL = ttl

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	cfg.LogLevel = level

	logger.WithFields(logrus.Fields{
		"port":      cfg.Port,
		"store":     cfg.StoreBackend,
		"redis":     cfg.RedisAddr,
		"queue":     cfg.QueueName,
		"log_level": cfg.LogLevel,
	}).Info("configuration loaded")
	return cfg, nil
}

// databaseURL prefers DATABASE_URL and otherwise assembles one from the
// POSTGRES_* and PG_* variables.
func databaseURL() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		getEnv("POSTGRES_USER", "postgres"),
		os.Getenv("POSTGRES_PASSWORD"),
		getEnv("PG_HOST", "localhost"),
		getEnv("PG_PORT", "5432"),
		getEnv("PG_DATABASE", "uno"),
	)
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// getEnvDuration parses a Go duration. "never" and an unset variable yield def.
func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" || strings.EqualFold(s, "never") {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
