package leaderboardservice

import (
	"context"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	leaderboarddomain "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/domain"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Service is the leaderboard partition's application layer.
type Service interface {
	// CreateTournament persists a new tournament, schedules its lifecycle
	// and publishes its first descriptor.
	CreateTournament(ctx context.Context, spec TournamentSpec) (results.OperationResult[*leaderboarddb.LeaderboardState, error], error)

	// UpdateTournament renames or re-describes a tournament. An empty name
	// keeps the current one.
	UpdateTournament(ctx context.Context, id sharedtypes.TournamentID, name, description string, now sharedtypes.Timestamp) (results.OperationResult[*leaderboarddb.LeaderboardState, error], error)

	// TogglePin flips the pinned flag.
	TogglePin(ctx context.Context, id sharedtypes.TournamentID, now sharedtypes.Timestamp) (results.OperationResult[*leaderboarddb.LeaderboardState, error], error)

	// EndTournament ends a tournament and retires its shards.
	EndTournament(ctx context.Context, id sharedtypes.TournamentID, now sharedtypes.Timestamp) (results.OperationResult[*leaderboarddb.LeaderboardState, error], error)

	// PublishDescriptor republishes the tournament's descriptor.
	PublishDescriptor(ctx context.Context, id sharedtypes.TournamentID, now sharedtypes.Timestamp) (results.OperationResult[events.TournamentDescriptor, error], error)

	// Route handles one inbound message for a tournament. A trigger request
	// yields the response to send back to its requester.
	Route(ctx context.Context, tournamentID sharedtypes.TournamentID, msg events.LeaderboardMessage) (*events.TriggerAggregationResponse, error)
}

// TournamentSpec describes a tournament to create.
type TournamentSpec struct {
	ID          sharedtypes.TournamentID
	Name        string
	Description string
	Host        string
	Window      sharedtypes.Window
	Now         sharedtypes.Timestamp
}

// Config tunes the triggerer pool.
type Config struct {
	// TriggerInterval is the cooldown started by an accepted trigger.
	TriggerInterval time.Duration
	// PromoteAfter is how long the primary may stay silent before a backup
	// that triggers takes over. Negative disables promotion.
	PromoteAfter time.Duration
	// PoolCapacity caps the triggerer pool, primary included.
	PoolCapacity int
}

// Outcome reports the side effects of handling one message.
type Outcome struct {
	Merge      leaderboarddomain.MergeOutcome
	Registered bool
	Enrolled   bool
	Published  bool
	Retired    int
	Decision   *leaderboarddomain.Decision
	Response   *events.TriggerAggregationResponse
}
