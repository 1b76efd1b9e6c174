package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	BackendMock       = "mock"
	BackendClickHouse = "clickhouse"
	BackendPostgres   = "postgres"
	BackendSQLite     = "sqlite"
)

// Config holds the application configuration
type Config struct {
	// Telegram bot; the bot is disabled when the token is empty
	TelegramToken  string
	AllowedUserIDs []int64

	// Bot mode configuration
	WebhookMode bool   // If true, use webhook mode; if false, use polling mode
	WebhookURL  string // URL for webhook (required if WebhookMode is true)

	StorageBackend string

	// ClickHouse configuration
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	ClickHouseUseTLS   bool

	PostgresDSN string
	SQLitePath  string

	// Recommender limits
	MaxCandidates  int
	PageSize       int
	FetchWorkers   int
	NeighbourLimit int
	TrendingWindow time.Duration

	AchievementWorkers int
	CleanupInterval    time.Duration

	HTTPPort  string
	LogLevel  string
	LogFormat string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	config := &Config{}

	// Telegram Bot Token (optional, enables the bot)
	config.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	if config.TelegramToken != "" {
		allowedIDsStr := os.Getenv("ALLOWED_USER_IDS")
		if allowedIDsStr == "" {
			return nil, fmt.Errorf("ALLOWED_USER_IDS is required when TELEGRAM_BOT_TOKEN is set (comma-separated list of Telegram user IDs)")
		}

		idStrs := strings.Split(allowedIDsStr, ",")
		for _, idStr := range idStrs {
			id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID in ALLOWED_USER_IDS: %s", idStr)
			}
			config.AllowedUserIDs = append(config.AllowedUserIDs, id)
		}

		// Bot mode configuration
		config.WebhookMode = os.Getenv("WEBHOOK_MODE") == "true"
		if config.WebhookMode {
			config.WebhookURL = os.Getenv("WEBHOOK_URL")
			if config.WebhookURL == "" {
				return nil, fmt.Errorf("WEBHOOK_URL is required when WEBHOOK_MODE is true")
			}
		}
	}

	// Storage backend, USE_MOCK_DB=true is kept as a shortcut for "mock"
	config.StorageBackend = strings.ToLower(getEnv("STORAGE_BACKEND", BackendClickHouse))
	if os.Getenv("USE_MOCK_DB") == "true" {
		config.StorageBackend = BackendMock
	}

	switch config.StorageBackend {
	case BackendMock:
	case BackendClickHouse:
		config.ClickHouseHost = os.Getenv("CLICKHOUSE_HOST")
		if config.ClickHouseHost == "" {
			return nil, fmt.Errorf("CLICKHOUSE_HOST is required for the clickhouse backend")
		}

		port, err := intEnv("CLICKHOUSE_PORT", 9000) // Default ClickHouse native port
		if err != nil {
			return nil, err
		}
		config.ClickHousePort = port

		config.ClickHouseDatabase = getEnv("CLICKHOUSE_DATABASE", "default")
		config.ClickHouseUser = getEnv("CLICKHOUSE_USER", "default")
		config.ClickHousePassword = os.Getenv("CLICKHOUSE_PASSWORD")
		// Password is optional, can be empty

		config.ClickHouseUseTLS = os.Getenv("CLICKHOUSE_USE_TLS") == "true"
	case BackendPostgres:
		config.PostgresDSN = os.Getenv("POSTGRES_DSN")
		if config.PostgresDSN == "" {
			return nil, fmt.Errorf("POSTGRES_DSN is required for the postgres backend")
		}
	case BackendSQLite:
		config.SQLitePath = getEnv("SQLITE_PATH", "bookrec.db")
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (expected mock, clickhouse, postgres or sqlite)", config.StorageBackend)
	}

	// Recommender limits; zero means use the recommender default
	var err error
	if config.MaxCandidates, err = intEnv("RECOMMEND_MAX_CANDIDATES", 0); err != nil {
		return nil, err
	}
	if config.PageSize, err = intEnv("RECOMMEND_PAGE_SIZE", 0); err != nil {
		return nil, err
	}
	if config.FetchWorkers, err = intEnv("RECOMMEND_FETCH_WORKERS", 0); err != nil {
		return nil, err
	}
	if config.NeighbourLimit, err = intEnv("RECOMMEND_NEIGHBOUR_LIMIT", 0); err != nil {
		return nil, err
	}
	if config.TrendingWindow, err = durationEnv("RECOMMEND_TRENDING_WINDOW", 0); err != nil {
		return nil, err
	}

	if config.AchievementWorkers, err = intEnv("ACHIEVEMENT_WORKERS", 4); err != nil {
		return nil, err
	}
	if config.CleanupInterval, err = durationEnv("CLEANUP_INTERVAL", 24*time.Hour); err != nil {
		return nil, err
	}

	config.HTTPPort = getEnv("PORT", "8080")
	config.LogLevel = getEnv("LOG_LEVEL", "info")
	config.LogFormat = getEnv("LOG_FORMAT", "json")

	return config, nil
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return n, nil
}

func durationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, value)
	}
	return d, nil
}
