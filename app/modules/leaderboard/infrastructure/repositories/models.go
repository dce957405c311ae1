package leaderboarddb

import (
	"slices"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	leaderboarddomain "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/domain"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// LeaderboardState is everything a tournament's leaderboard partition owns.
type LeaderboardState struct {
	bun.BaseModel `bun:"table:leaderboard_states,alias:ls"`

	TournamentID sharedtypes.TournamentID `bun:"tournament_id,pk"`
	Name         string                   `bun:"name,notnull"`
	Description  string                   `bun:"description,notnull,default:''"`
	Host         string                   `bun:"host,notnull,default:''"`
	WindowStart  sharedtypes.Timestamp    `bun:"window_start,notnull,default:0"`
	WindowEnd    sharedtypes.Timestamp    `bun:"window_end,notnull,default:0"`
	Pinned       bool                     `bun:"pinned,notnull,default:false"`
	Ended        bool                     `bun:"ended,notnull,default:false"`

	Standings     leaderboarddomain.Standings `bun:"standings,type:jsonb,notnull"`
	ShardRegistry []sharedtypes.ShardID       `bun:"shard_registry,type:jsonb,notnull"`

	Pool          leaderboarddomain.Pool `bun:"triggerer_pool,type:jsonb,notnull"`
	LastTriggerBy sharedtypes.PlayerID   `bun:"last_trigger_by,notnull,default:''"`
	TriggerCount  uint64                 `bun:"trigger_count,notnull,default:0"`

	FlushesApplied   uint64 `bun:"flushes_applied,notnull,default:0"`
	DescriptorCursor uint64 `bun:"descriptor_cursor,notnull,default:0"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// NewLeaderboardState returns the initial state of a tournament.
func NewLeaderboardState(id sharedtypes.TournamentID, name string, window sharedtypes.Window, poolCapacity int) *LeaderboardState {
	now := time.Now().UTC()
	return &LeaderboardState{
		TournamentID:  id,
		Name:          name,
		WindowStart:   window.Start,
		WindowEnd:     window.End,
		Standings:     leaderboarddomain.NewStandings(),
		ShardRegistry: []sharedtypes.ShardID{},
		Pool: leaderboarddomain.Pool{
			Phase:    leaderboarddomain.PhaseUnset,
			Capacity: poolCapacity,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Window returns the tournament window.
func (s *LeaderboardState) Window() sharedtypes.Window {
	return sharedtypes.Window{Start: s.WindowStart, End: s.WindowEnd}
}

// Status derives the tournament status at now.
func (s *LeaderboardState) Status(now sharedtypes.Timestamp) sharedtypes.TournamentStatus {
	return sharedtypes.StatusAt(s.Window(), now, s.Ended)
}

// HasShard reports whether shardID is registered.
func (s *LeaderboardState) HasShard(shardID sharedtypes.ShardID) bool {
	return slices.Contains(s.ShardRegistry, shardID)
}

// Descriptor is the discovery view of the tournament at now.
func (s *LeaderboardState) Descriptor(now sharedtypes.Timestamp) events.TournamentDescriptor {
	return events.TournamentDescriptor{
		TournamentID:    s.TournamentID,
		Name:            s.Name,
		Status:          s.Status(now),
		ShardIDs:        slices.Clone(s.ShardRegistry),
		Window:          s.Window(),
		Pinned:          s.Pinned,
		Triggerers:      s.Pool.Members(),
		CooldownUntil:   s.Pool.CooldownUntil,
		LastTriggerTime: s.Pool.LastTriggerTime,
	}
}

// Clone returns a deep copy.
func (s *LeaderboardState) Clone() *LeaderboardState {
	out := *s
	out.Standings = s.Standings.Clone()
	out.ShardRegistry = slices.Clone(s.ShardRegistry)
	if out.ShardRegistry == nil {
		out.ShardRegistry = []sharedtypes.ShardID{}
	}
	out.Pool = s.Pool.Clone()
	return &out
}
