package playerdb

import (
	"context"
	"errors"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// ErrNotFound is returned when a player has no state yet.
var ErrNotFound = errors.New("player not found")

// Repository defines the contract for player state persistence.
type Repository interface {
	// Get loads a player's state. The caller owns the returned value.
	Get(ctx context.Context, db bun.IDB, id sharedtypes.PlayerID) (*PlayerState, error)

	// Save upserts a player's state.
	Save(ctx context.Context, db bun.IDB, state *PlayerState) error

	// ListActive returns the players with at least one unfinished game.
	ListActive(ctx context.Context, db bun.IDB) ([]sharedtypes.PlayerID, error)
}
