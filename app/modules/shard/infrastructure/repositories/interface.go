package sharddb

import (
	"context"
	"errors"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a shard does not exist.
var ErrNotFound = errors.New("shard not found")

// Repository defines the contract for shard state persistence.
type Repository interface {
	// Get loads a shard's state. The caller owns the returned value.
	Get(ctx context.Context, db bun.IDB, shardID sharedtypes.ShardID) (*ShardState, error)

	// Save creates or replaces a shard's state.
	Save(ctx context.Context, db bun.IDB, state *ShardState) error

	// Delete removes a shard. Deleting a missing shard is not an error.
	Delete(ctx context.Context, db bun.IDB, shardID sharedtypes.ShardID) error

	// ListByTournament returns the shards provisioned for a tournament.
	ListByTournament(ctx context.Context, db bun.IDB, tournamentID sharedtypes.TournamentID) ([]*ShardState, error)
}
