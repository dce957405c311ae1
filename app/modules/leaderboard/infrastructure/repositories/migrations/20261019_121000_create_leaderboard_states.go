package leaderboardmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating leaderboard_states table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS leaderboard_states (
					tournament_id TEXT PRIMARY KEY,
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					host TEXT NOT NULL DEFAULT '',
					window_start BIGINT NOT NULL DEFAULT 0,
					window_end BIGINT NOT NULL DEFAULT 0,
					pinned BOOLEAN NOT NULL DEFAULT FALSE,
					ended BOOLEAN NOT NULL DEFAULT FALSE,
					standings JSONB NOT NULL DEFAULT '{}',
					shard_registry JSONB NOT NULL DEFAULT '[]',
					triggerer_pool JSONB NOT NULL DEFAULT '{}',
					last_trigger_by TEXT NOT NULL DEFAULT '',
					trigger_count BIGINT NOT NULL DEFAULT 0,
					flushes_applied BIGINT NOT NULL DEFAULT 0,
					descriptor_cursor BIGINT NOT NULL DEFAULT 0,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_leaderboard_states_pinned ON leaderboard_states(pinned, created_at DESC);
			`); err != nil {
				return fmt.Errorf("failed to create leaderboard_states table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping leaderboard_states table...")
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS leaderboard_states;`); err != nil {
			return fmt.Errorf("failed to drop leaderboard_states table: %w", err)
		}
		return nil
	})
}
