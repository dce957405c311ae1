package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	discoverymigrations "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories/migrations"
	leaderboardmigrations "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories/migrations"
	playermigrations "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories/migrations"
	shardmigrations "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories/migrations"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// OpenDB connects bun to Postgres and checks the connection.
func OpenDB(ctx context.Context, dsn string) (*bun.DB, error) {
	pgdb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(pgdb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrators returns one bun migrator per module that owns tables.
func Migrators(db *bun.DB) map[string]*migrate.Migrator {
	return map[string]*migrate.Migrator{
		"discovery":   migrate.NewMigrator(db, discoverymigrations.Migrations),
		"shard":       migrate.NewMigrator(db, shardmigrations.Migrations),
		"leaderboard": migrate.NewMigrator(db, leaderboardmigrations.Migrations),
		"player":      migrate.NewMigrator(db, playermigrations.Migrations),
	}
}

// MigrateAll brings the River queue tables and every module schema up to
// date.
func MigrateAll(ctx context.Context, db *bun.DB, dsn string, logger *slog.Logger) error {
	if err := RiverMigrate(ctx, dsn); err != nil {
		return err
	}
	for name, migrator := range Migrators(db) {
		if err := migrator.Init(ctx); err != nil {
			return fmt.Errorf("failed to init %s migrations: %w", name, err)
		}
		group, err := migrator.Migrate(ctx)
		if err != nil {
			return fmt.Errorf("failed to run %s migrations: %w", name, err)
		}
		if group.IsZero() {
			logger.InfoContext(ctx, "No migrations to run", attr.String("module", name))
			continue
		}
		logger.InfoContext(ctx, "Migrations applied",
			attr.String("module", name),
			attr.Int64("group_id", group.ID),
		)
	}
	return nil
}

// RiverMigrate creates or upgrades the River job tables.
func RiverMigrate(ctx context.Context, dsn string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("failed to create pgx pool for River migrations: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("failed to create River migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("failed to run River migrations: %w", err)
	}
	return nil
}
