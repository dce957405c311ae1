package playermigrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Creating player_states table...")

		return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				CREATE TABLE IF NOT EXISTS player_states (
					player_id TEXT PRIMARY KEY,
					games JSONB NOT NULL DEFAULT '{}',
					active_games INTEGER NOT NULL DEFAULT 0,
					descriptors JSONB NOT NULL DEFAULT '{}',
					workloads JSONB NOT NULL DEFAULT '{}',
					triggers JSONB NOT NULL DEFAULT '{}',
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
					updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);
				CREATE INDEX IF NOT EXISTS idx_player_states_active ON player_states(active_games) WHERE active_games > 0;
			`); err != nil {
				return fmt.Errorf("failed to create player_states table: %w", err)
			}
			return nil
		})
	}, func(ctx context.Context, db *bun.DB) error {
		fmt.Println("Dropping player_states table...")
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS player_states;`); err != nil {
			return fmt.Errorf("failed to drop player_states table: %w", err)
		}
		return nil
	})
}
