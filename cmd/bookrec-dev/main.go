package main

import (
	"context"
	"database/sql"
	"os"
	"strconv"

	_ "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"go.uber.org/zap"

	"bookrec/internal/app"
	"bookrec/internal/storage/ch"
	"bookrec/migrations"
)

const devPassword = "devpassword"

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	ctx := context.Background()

	logger.Info("Starting ClickHouse testcontainer")
	clickhouseContainer, err := clickhouse.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(devPassword),
		clickhouse.WithDatabase("default"),
	)
	if err != nil {
		logger.Fatal("Failed to start ClickHouse container", zap.Error(err))
	}

	// Ensure container cleanup on exit
	defer func() {
		logger.Info("Stopping ClickHouse container")
		if err := clickhouseContainer.Terminate(ctx); err != nil {
			logger.Warn("Failed to terminate container", zap.Error(err))
		}
	}()

	host, err := clickhouseContainer.Host(ctx)
	if err != nil {
		logger.Fatal("Failed to get container host", zap.Error(err))
	}
	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	if err != nil {
		logger.Fatal("Failed to get container port", zap.Error(err))
	}
	logger.Info("ClickHouse started", zap.String("host", host), zap.String("port", port.Port()))

	if err := migrate(host, port.Int()); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Point the application at the container
	os.Setenv("STORAGE_BACKEND", "clickhouse")
	os.Setenv("USE_MOCK_DB", "false")
	os.Setenv("CLICKHOUSE_HOST", host)
	os.Setenv("CLICKHOUSE_PORT", strconv.Itoa(port.Int()))
	os.Setenv("CLICKHOUSE_DATABASE", "default")
	os.Setenv("CLICKHOUSE_USER", "default")
	os.Setenv("CLICKHOUSE_PASSWORD", devPassword)
	os.Setenv("CLICKHOUSE_USE_TLS", "false")
	os.Setenv("WEBHOOK_MODE", "false")
	if os.Getenv("LOG_FORMAT") == "" {
		os.Setenv("LOG_FORMAT", "console")
	}

	if os.Getenv("TELEGRAM_BOT_TOKEN") == "" {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, running the HTTP API only")
	}

	application, err := app.New()
	if err != nil {
		logger.Fatal("Failed to create application", zap.Error(err))
	}

	// Run blocks until SIGINT or SIGTERM
	if err := application.Run(); err != nil {
		logger.Error("Application error", zap.Error(err))
	}
}

func migrate(host string, port int) error {
	db, err := sql.Open("clickhouse", ch.DSN(host, port, "default", "default", devPassword, false))
	if err != nil {
		return err
	}
	defer db.Close()
	return migrations.Up(db)
}
