package leaderboarddb

import (
	"context"
	"errors"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

var (
	// ErrNotFound is returned when a tournament does not exist.
	ErrNotFound = errors.New("tournament not found")
	// ErrAlreadyExists is returned by Create for a taken tournament id.
	ErrAlreadyExists = errors.New("tournament already exists")
)

// Repository defines the contract for leaderboard state persistence.
type Repository interface {
	// Get loads a tournament's state. The caller owns the returned value.
	Get(ctx context.Context, db bun.IDB, id sharedtypes.TournamentID) (*LeaderboardState, error)

	// Create inserts a new tournament.
	Create(ctx context.Context, db bun.IDB, state *LeaderboardState) error

	// Save replaces an existing tournament's state.
	Save(ctx context.Context, db bun.IDB, state *LeaderboardState) error

	// Delete removes a tournament. Deleting a missing tournament is not an
	// error.
	Delete(ctx context.Context, db bun.IDB, id sharedtypes.TournamentID) error

	// List returns every tournament, pinned first, then newest first.
	List(ctx context.Context, db bun.IDB) ([]*LeaderboardState, error)
}
