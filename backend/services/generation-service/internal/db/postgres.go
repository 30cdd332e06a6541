package db

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	libdb "gridpulse/backend/libs/db"
)

//go:embed schema.sql
var schema string

// NewPostgres reuses shared DB initializer.
func NewPostgres(dsn string, opts libdb.PoolOptions) (*sql.DB, error) {
	return libdb.NewPostgresDB(dsn, opts)
}

// ApplySchema creates missing tables and indexes in one transaction.
// Every statement is idempotent.
func ApplySchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("schema: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range statements() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("schema: commit: %w", err)
	}
	return nil
}

func statements() []string {
	var result []string
	for _, part := range strings.Split(schema, ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			result = append(result, stmt)
		}
	}
	return result
}
