package playerdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// Impl implements the Repository interface using Bun ORM.
type Impl struct {
	db bun.IDB
}

// NewRepository creates a new player repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

// resolveDB returns the provided db handle, falling back to the repository's
// default connection if db is nil.
func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// Get retrieves a player by id, locking the row inside a transaction.
func (r *Impl) Get(ctx context.Context, db bun.IDB, id sharedtypes.PlayerID) (*PlayerState, error) {
	db = r.resolveDB(db)
	state := new(PlayerState)
	q := db.NewSelect().
		Model(state).
		Where("player_id = ?", id)
	if _, ok := db.(bun.Tx); ok {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get player state: %w", err)
	}
	state.Ensure()
	return state, nil
}

// Save upserts the full player state.
func (r *Impl) Save(ctx context.Context, db bun.IDB, state *PlayerState) error {
	db = r.resolveDB(db)
	state.Ensure()
	state.CountActive()
	state.UpdatedAt = time.Now().UTC()
	_, err := db.NewInsert().
		Model(state).
		On("CONFLICT (player_id) DO UPDATE").
		Set("games = EXCLUDED.games").
		Set("active_games = EXCLUDED.active_games").
		Set("descriptors = EXCLUDED.descriptors").
		Set("workloads = EXCLUDED.workloads").
		Set("triggers = EXCLUDED.triggers").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save player state: %w", err)
	}
	return nil
}

// ListActive returns players with unfinished games.
func (r *Impl) ListActive(ctx context.Context, db bun.IDB) ([]sharedtypes.PlayerID, error) {
	db = r.resolveDB(db)
	var ids []sharedtypes.PlayerID
	err := db.NewSelect().
		Model((*PlayerState)(nil)).
		Column("player_id").
		Where("active_games > 0").
		Order("player_id ASC").
		Scan(ctx, &ids)
	if err != nil {
		return nil, fmt.Errorf("failed to list active players: %w", err)
	}
	return ids, nil
}
