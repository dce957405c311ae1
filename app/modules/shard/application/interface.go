package shardservice

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Service is the shard partition's application layer.
type Service interface {
	// CreateShard provisions a shard for a tournament and announces it to
	// the tournament's leaderboard.
	CreateShard(ctx context.Context, spec ShardSpec) (results.OperationResult[*sharddb.ShardState, error], error)

	// Route handles one inbound message for shardID.
	Route(ctx context.Context, shardID sharedtypes.ShardID, msg events.ShardMessage) error
}

// ShardSpec describes a shard to provision. The shard takes its window from
// the tournament's published descriptor.
type ShardSpec struct {
	ShardID      sharedtypes.ShardID
	TournamentID sharedtypes.TournamentID
	Now          sharedtypes.Timestamp
}

// Config tunes flush and sampling cadence.
type Config struct {
	// FlushFactor multiplied by the distinct player count gives the number of
	// buffered reports that forces a flush.
	FlushFactor uint32
	// WorkloadSampleEvery is the number of reports between workload samples.
	WorkloadSampleEvery uint32
}

// Outcome reports the side effects of handling one message.
type Outcome struct {
	Flushed       bool
	FlushedScores int
	Sampled       bool
	Registered    bool
}
