package main

import (
	"database/sql"
	"os"
	"strconv"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/joho/godotenv"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"

	"bookrec/internal/storage/ch"
	"bookrec/migrations"
)

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using existing environment variables")
	}

	// Get command from arguments (default to "up")
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	// create writes into the source tree and needs no connection
	if command == "create" {
		if len(os.Args) < 3 {
			logger.Fatal("Usage: migrate create <migration_name>")
		}
		if err := goose.Create(nil, "./migrations", os.Args[2], "sql"); err != nil {
			logger.Fatal("Failed to create migration", zap.Error(err))
		}
		return
	}

	port, err := strconv.Atoi(getEnv("CLICKHOUSE_PORT", "9000"))
	if err != nil {
		logger.Fatal("Invalid CLICKHOUSE_PORT", zap.Error(err))
	}
	dsn := ch.DSN(
		getEnv("CLICKHOUSE_HOST", "localhost"),
		port,
		getEnv("CLICKHOUSE_DATABASE", "default"),
		getEnv("CLICKHOUSE_USER", "default"),
		os.Getenv("CLICKHOUSE_PASSWORD"),
		os.Getenv("CLICKHOUSE_USE_TLS") == "true",
	)

	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}
	logger.Info("Connected to ClickHouse")

	logger.Info("Running migrations", zap.String("command", command))
	switch command {
	case "up":
		if err := migrations.Up(db); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
		logger.Info("Migrations completed")
	case "down":
		if err := migrations.Down(db); err != nil {
			logger.Fatal("Failed to rollback migration", zap.Error(err))
		}
		logger.Info("Rollback completed")
	case "status":
		if err := migrations.Status(db); err != nil {
			logger.Fatal("Failed to get migration status", zap.Error(err))
		}
	case "version":
		version, err := migrations.Version(db)
		if err != nil {
			logger.Fatal("Failed to get version", zap.Error(err))
		}
		logger.Info("Current migration version", zap.Int64("version", version))
	default:
		logger.Fatal("Unknown command. Available commands: up, down, status, version, create", zap.String("command", command))
	}
}

// getEnv retrieves environment variable or returns default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
