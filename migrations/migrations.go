// Package migrations embeds the ClickHouse schema and applies it with goose.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed *.sql
var FS embed.FS

func setup() error {
	goose.SetBaseFS(FS)
	return goose.SetDialect("clickhouse")
}

// Up applies every pending migration
func Up(db *sql.DB) error {
	if err := setup(); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.Up(db, ".")
}

// Down rolls back the latest migration
func Down(db *sql.DB) error {
	if err := setup(); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.Down(db, ".")
}

// Status prints the state of every migration
func Status(db *sql.DB) error {
	if err := setup(); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.Status(db, ".")
}

// Version returns the current schema version
func Version(db *sql.DB) (int64, error) {
	if err := setup(); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersion(db)
}
