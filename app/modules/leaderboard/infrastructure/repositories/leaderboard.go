package leaderboarddb

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

// NewRepository creates a new leaderboard repository.
func NewRepository(db bun.IDB) Repository {
	return &Impl{db: db}
}

func (r *Impl) resolveDB(db bun.IDB) bun.IDB {
	if db == nil {
		return r.db
	}
	return db
}

// Get retrieves a tournament, locking the row inside a transaction.
func (r *Impl) Get(ctx context.Context, db bun.IDB, id sharedtypes.TournamentID) (*LeaderboardState, error) {
	db = r.resolveDB(db)
	state := new(LeaderboardState)
	q := db.NewSelect().
		Model(state).
		Where("tournament_id = ?", id)
	if _, ok := db.(bun.Tx); ok {
		q = q.For("UPDATE")
	}
	if err := q.Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get leaderboard state: %w", err)
	}
	return state, nil
}

// Create inserts state unless the tournament id is taken.
func (r *Impl) Create(ctx context.Context, db bun.IDB, state *LeaderboardState) error {
	db = r.resolveDB(db)
	res, err := db.NewInsert().
		Model(state).
		On("CONFLICT (tournament_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create leaderboard state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Save updates every mutable column of an existing tournament.
func (r *Impl) Save(ctx context.Context, db bun.IDB, state *LeaderboardState) error {
	db = r.resolveDB(db)
	state.UpdatedAt = time.Now().UTC()
	res, err := db.NewUpdate().
		Model(state).
		ExcludeColumn("tournament_id", "created_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save leaderboard state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a tournament row.
func (r *Impl) Delete(ctx context.Context, db bun.IDB, id sharedtypes.TournamentID) error {
	db = r.resolveDB(db)
	_, err := db.NewDelete().
		Model((*LeaderboardState)(nil)).
		Where("tournament_id = ?", id).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete leaderboard state: %w", err)
	}
	return nil
}

// List returns every tournament, pinned first, then newest first.
func (r *Impl) List(ctx context.Context, db bun.IDB) ([]*LeaderboardState, error) {
	db = r.resolveDB(db)
	var states []*LeaderboardState
	err := db.NewSelect().
		Model(&states).
		Order("pinned DESC", "created_at DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list leaderboard states: %w", err)
	}
	return states, nil
}
