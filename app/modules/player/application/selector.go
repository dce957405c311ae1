package playerservice

import (
	"github.com/Black-And-White-Club/shardboard/app/events"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Strategy names how a shard was chosen.
type Strategy string

const (
	StrategyLeastLoaded Strategy = "least_loaded"
	StrategyColdStart   Strategy = "cold_start"
	StrategySelf        Strategy = "self"
)

// SelectShard picks the least loaded shard of a registry.
//
// A shard without a sample counts as load 0. Ties go to the shard registered
// first. With no samples at all the first shard is used, and an empty
// registry falls back to the requester's own partition.
func SelectShard(
	shardIDs []sharedtypes.ShardID,
	samples map[sharedtypes.ShardID]*events.ShardWorkloadFact,
	requester sharedtypes.PlayerID,
) (sharedtypes.ShardID, Strategy) {
	if len(shardIDs) == 0 {
		return sharedtypes.ShardID(requester), StrategySelf
	}

	anySample := false
	best, bestLoad := shardIDs[0], ^uint64(0)
	for _, id := range shardIDs {
		var load uint64
		if s := samples[id]; s != nil {
			anySample = true
			load = s.LoadScore()
		}
		if load < bestLoad {
			best, bestLoad = id, load
		}
	}

	if !anySample {
		return shardIDs[0], StrategyColdStart
	}
	return best, StrategyLeastLoaded
}
