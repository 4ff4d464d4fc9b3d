package db

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed db_init.sql
var sqlFS embed.FS

// Open connects to Postgres and applies the embedded schema. The schema is
// idempotent, so this runs on every startup.
func Open(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	sqlFile, err := sqlFS.ReadFile("db_init.sql")
	if err != nil {
		return nil, fmt.Errorf("read embedded db_init.sql: %w", err)
	}

	if _, err := pool.Exec(ctx, string(sqlFile)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("execute embedded db_init.sql: %w", err)
	}

	return pool, nil
}
