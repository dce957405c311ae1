package shardmigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating shard_states table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS shard_states (
					shard_id TEXT PRIMARY KEY,
					tournament_id TEXT NOT NULL,
					window_start BIGINT NOT NULL DEFAULT 0,
					window_end BIGINT NOT NULL DEFAULT 0,
					pending_scores JSONB NOT NULL DEFAULT '{}',
					pending_boards JSONB NOT NULL DEFAULT '{}',
					flush_counter INTEGER NOT NULL DEFAULT 0,
					flush_seq BIGINT NOT NULL DEFAULT 0,
					players JSONB NOT NULL DEFAULT '{}',
					boards_seen BIGINT NOT NULL DEFAULT 0,
					recent_players JSONB NOT NULL DEFAULT '{}',
					reports_since_sample INTEGER NOT NULL DEFAULT 0,
					workload_cursor BIGINT NOT NULL DEFAULT 0,
					retired BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_shard_states_tournament ON shard_states(tournament_id);
			`); err != nil {
				return fmt.Errorf("failed to create shard_states table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping shard_states table...")
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS shard_states;`); err != nil {
			return fmt.Errorf("failed to drop shard_states table: %w", err)
		}
		return nil
	})
}
