package playerservice

import (
	"testing"

	"github.com/Black-And-White-Club/shardboard/app/events"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/stretchr/testify/assert"
)

func sample(active, total uint32) *events.ShardWorkloadFact {
	return &events.ShardWorkloadFact{ActivePlayersRecent: active, TotalPlayers: total}
}

func TestSelectShard(t *testing.T) {
	tests := []struct {
		name         string
		shards       []sharedtypes.ShardID
		samples      map[sharedtypes.ShardID]*events.ShardWorkloadFact
		wantShard    sharedtypes.ShardID
		wantStrategy Strategy
	}{
		{
			name:         "lower load wins",
			shards:       []sharedtypes.ShardID{"a", "b"},
			samples:      map[sharedtypes.ShardID]*events.ShardWorkloadFact{"a": sample(5, 20), "b": sample(10, 15)},
			wantShard:    "a",
			wantStrategy: StrategyLeastLoaded,
		},
		{
			name:         "tie goes to first registered",
			shards:       []sharedtypes.ShardID{"b", "a"},
			samples:      map[sharedtypes.ShardID]*events.ShardWorkloadFact{"a": sample(4, 0), "b": sample(3, 5)},
			wantShard:    "b",
			wantStrategy: StrategyLeastLoaded,
		},
		{
			name:         "missing sample counts as zero",
			shards:       []sharedtypes.ShardID{"a", "b"},
			samples:      map[sharedtypes.ShardID]*events.ShardWorkloadFact{"a": sample(1, 0)},
			wantShard:    "b",
			wantStrategy: StrategyLeastLoaded,
		},
		{
			name:         "integer division of total",
			shards:       []sharedtypes.ShardID{"a", "b"},
			samples:      map[sharedtypes.ShardID]*events.ShardWorkloadFact{"a": sample(1, 4), "b": sample(0, 9)},
			wantShard:    "a",
			wantStrategy: StrategyLeastLoaded,
		},
		{
			name:         "cold start",
			shards:       []sharedtypes.ShardID{"c", "a", "b"},
			wantShard:    "c",
			wantStrategy: StrategyColdStart,
		},
		{
			name:         "empty registry",
			wantShard:    "alice",
			wantStrategy: StrategySelf,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shard, strategy := SelectShard(tt.shards, tt.samples, "alice")
			assert.Equal(t, tt.wantShard, shard)
			assert.Equal(t, tt.wantStrategy, strategy)
		})
	}
}

func TestLoadScore(t *testing.T) {
	assert.Equal(t, uint64(9), sample(5, 20).LoadScore())
	assert.Equal(t, uint64(13), sample(10, 15).LoadScore())
}
