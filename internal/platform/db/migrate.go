package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/quoteflow/quoteflow/internal/platform/db/migrations"
)

// Migration commands accepted by Migrate.
const (
	MigrateUp      = "up"
	MigrateDown    = "down"
	MigrateStatus  = "status"
	MigrateVersion = "version"
	MigrateTo      = "to"
)

// OpenSQL exposes the pool as a database/sql handle for goose.
func OpenSQL(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// Migrate runs a goose command against the embedded migrations.
func Migrate(ctx context.Context, sqlDB *sql.DB, command string, args ...string) error {
	if sqlDB == nil {
		return fmt.Errorf("platform/db: migrate: db is required")
	}
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("platform/db: set goose dialect: %w", err)
	}

	switch command {
	case MigrateTo:
		if len(args) != 1 {
			return fmt.Errorf("platform/db: migrate to: expected one version argument")
		}
		target, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("platform/db: invalid version %q: %w", args[0], err)
		}
		return migrateTo(ctx, sqlDB, target)
	case MigrateUp, MigrateDown, MigrateStatus, MigrateVersion:
		if err := goose.RunContext(ctx, command, sqlDB, ".", args...); err != nil {
			return fmt.Errorf("platform/db: goose %s: %w", command, err)
		}
		return nil
	default:
		return fmt.Errorf("platform/db: unknown migrate command %q", command)
	}
}

func migrateTo(ctx context.Context, sqlDB *sql.DB, target int64) error {
	current, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		return fmt.Errorf("platform/db: get db version: %w", err)
	}
	switch {
	case current == target:
		return nil
	case current < target:
		return goose.UpToContext(ctx, sqlDB, ".", target)
	default:
		return goose.DownToContext(ctx, sqlDB, ".", target)
	}
}
