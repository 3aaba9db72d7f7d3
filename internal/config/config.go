package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config keeps runtime settings shared by the bot and the admin CLI.
type Config struct {
	AppName  string
	Env      string
	LogLevel string

	StoreDriver   string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL   string
	RabbitMQQueue string

	SessionSecret string
	SessionTTL    time.Duration
	SessionUserID string

	TelegramToken   string
	TelegramOwnerID int64

	RefreshInterval  time.Duration
	DigestTime       string
	RecentTasksLimit int
	OperationTimeout time.Duration
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		AppName:       getenv("APP_NAME", "daily-driver"),
		Env:           getenv("APP_ENV", "development"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		StoreDriver:   strings.ToLower(getenv("STORE_DRIVER", DriverSQLite)),
		DatabaseURL:   getenv("DATABASE_URL", "daily_driver.db"),
		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RabbitMQURL:   getenv("RABBITMQ_URL", ""),
		RabbitMQQueue: getenv("RABBITMQ_QUEUE", "daily-driver.events"),
		SessionSecret: getenv("SESSION_SECRET", ""),
		SessionUserID: getenv("SESSION_USER_ID", ""),
		TelegramToken: getenv("TELEGRAM_TOKEN", ""),
		DigestTime:    getenv("DIGEST_TIME", ""),
	}

	var err error
	if cfg.RedisDB, err = getint("REDIS_DB", 0); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = getdur("SESSION_TTL", 720*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.TelegramOwnerID, err = getint64("TELEGRAM_OWNER_ID", 0); err != nil {
		return cfg, err
	}
	if cfg.RefreshInterval, err = getdur("REFRESH_INTERVAL", 0); err != nil {
		return cfg, err
	}
	if cfg.RecentTasksLimit, err = getint("RECENT_TASKS_LIMIT", 5); err != nil {
		return cfg, err
	}
	if cfg.OperationTimeout, err = getdur("OPERATION_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}

	switch cfg.StoreDriver {
	case DriverSQLite, DriverRedis:
	default:
		return cfg, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverRedis, cfg.StoreDriver)
	}
	if cfg.RecentTasksLimit <= 0 {
		return cfg, fmt.Errorf("RECENT_TASKS_LIMIT must be positive, got %d", cfg.RecentTasksLimit)
	}
	if cfg.RefreshInterval < 0 {
		return cfg, fmt.Errorf("REFRESH_INTERVAL must not be negative")
	}
	if cfg.SessionTTL <= 0 {
		return cfg, fmt.Errorf("SESSION_TTL must be positive")
	}
	if cfg.OperationTimeout <= 0 {
		return cfg, fmt.Errorf("OPERATION_TIMEOUT must be positive")
	}

	return cfg, nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) (int, error) {
	raw := getenv(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def, fmt.Errorf("invalid int for %s: %q", key, raw)
	}
	return n, nil
}

func getint64(key string, def int64) (int64, error) {
	raw := getenv(key, "")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def, fmt.Errorf("invalid int for %s: %q", key, raw)
	}
	return n, nil
}

func getdur(key string, def time.Duration) (time.Duration, error) {
	raw := getenv(key, "")
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def, fmt.Errorf("invalid duration for %s: %q", key, raw)
	}
	return d, nil
}
