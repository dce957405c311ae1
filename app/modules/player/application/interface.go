package playerservice

import (
	"context"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Service is the player partition's application layer.
type Service interface {
	// CreateGame starts a board in a tournament on the least loaded shard.
	// Nothing is saved unless the shard and the leaderboard were both told.
	CreateGame(ctx context.Context, player sharedtypes.PlayerID, tournamentID sharedtypes.TournamentID, now sharedtypes.Timestamp) (results.OperationResult[GameResult, error], error)

	// ReportScore sends a score for one of the player's boards to its shard.
	ReportScore(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, score uint64, isFinal bool, now sharedtypes.Timestamp) (results.OperationResult[*playerdb.Game, error], error)

	// ApplyMove plays a move through the engine and reports the new score.
	ApplyMove(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, dir playerdomain.Direction, now sharedtypes.Timestamp) (results.OperationResult[*playerdb.Game, error], error)

	// Route handles one inbound message for a player.
	Route(ctx context.Context, player sharedtypes.PlayerID, msg events.PlayerMessage) error
}

// ShardProvisioner creates the shard a player falls back to when the
// tournament has none yet. Provisioning an existing shard of the same
// tournament is a no-op.
type ShardProvisioner interface {
	ProvisionShard(ctx context.Context, shardID sharedtypes.ShardID, tournamentID sharedtypes.TournamentID, now sharedtypes.Timestamp) error
}

// Config tunes the triggerer client.
type Config struct {
	// TriggerInterval must match the leaderboard's cooldown.
	TriggerInterval time.Duration
}

// GameResult is what CreateGame hands back.
type GameResult struct {
	BoardID  sharedtypes.BoardID
	ShardID  sharedtypes.ShardID
	Strategy Strategy
}

// TickOutcome reports what one TriggerTick did.
type TickOutcome struct {
	Checked int
	Sent    []sharedtypes.TournamentID
}
