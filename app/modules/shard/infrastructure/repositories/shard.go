package sharddb

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

// NewRepository creates a new shard repository.
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

// Get retrieves a shard by id, locking the row inside a transaction.
func (r *Impl) Get(ctx context.Context, db bun.IDB, shardID sharedtypes.ShardID) (*ShardState, error) {
	db = r.resolveDB(db)
	state := new(ShardState)
	q := db.NewSelect().
		Model(state).
		Where("shard_id = ?", shardID)
	if _, ok := db.(bun.Tx); ok {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get shard state: %w", err)
	}
	return state, nil
}

// Save upserts the full shard state.
func (r *Impl) Save(ctx context.Context, db bun.IDB, state *ShardState) error {
	db = r.resolveDB(db)
	state.UpdatedAt = time.Now().UTC()
	_, err := db.NewInsert().
		Model(state).
		On("CONFLICT (shard_id) DO UPDATE").
		Set("pending_scores = EXCLUDED.pending_scores").
		Set("pending_boards = EXCLUDED.pending_boards").
		Set("flush_counter = EXCLUDED.flush_counter").
		Set("flush_seq = EXCLUDED.flush_seq").
		Set("players = EXCLUDED.players").
		Set("boards_seen = EXCLUDED.boards_seen").
		Set("recent_players = EXCLUDED.recent_players").
		Set("reports_since_sample = EXCLUDED.reports_since_sample").
		Set("workload_cursor = EXCLUDED.workload_cursor").
		Set("retired = EXCLUDED.retired").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save shard state: %w", err)
	}
	return nil
}

// Delete removes a shard row.
func (r *Impl) Delete(ctx context.Context, db bun.IDB, shardID sharedtypes.ShardID) error {
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*ShardState)(nil)).
		Where("shard_id = ?", shardID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete shard state: %w", err)
	}
	return nil
}

// ListByTournament returns all shards of a tournament ordered by creation.
func (r *Impl) ListByTournament(ctx context.Context, db bun.IDB, tournamentID sharedtypes.TournamentID) ([]*ShardState, error) {
	db = r.resolveDB(db)
	var states []*ShardState
	err := db.NewSelect().
		Model(&states).
		Where("tournament_id = ?", tournamentID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list shards: %w", err)
	}
	return states, nil
}
