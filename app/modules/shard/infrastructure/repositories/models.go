package sharddb

import (
	"maps"
	"time"

	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// ShardState is everything a shard partition owns.
type ShardState struct {
	bun.BaseModel `bun:"table:shard_states,alias:ss"`

	ShardID      sharedtypes.ShardID      `bun:"shard_id,pk"`
	TournamentID sharedtypes.TournamentID `bun:"tournament_id,notnull"`
	WindowStart  sharedtypes.Timestamp    `bun:"window_start,notnull,default:0"`
	WindowEnd    sharedtypes.Timestamp    `bun:"window_end,notnull,default:0"`

	// Best score per player since the last flush, and the board it came from.
	PendingScores map[sharedtypes.PlayerID]uint64              `bun:"pending_scores,type:jsonb,notnull"`
	PendingBoards map[sharedtypes.PlayerID]sharedtypes.BoardID `bun:"pending_boards,type:jsonb,notnull"`
	FlushCounter  uint32                                       `bun:"flush_counter,notnull,default:0"`
	FlushSeq      uint64                                       `bun:"flush_seq,notnull,default:0"`

	Players    map[sharedtypes.PlayerID]bool `bun:"players,type:jsonb,notnull"`
	BoardsSeen uint64                        `bun:"boards_seen,notnull,default:0"`

	RecentPlayers      map[sharedtypes.PlayerID]bool `bun:"recent_players,type:jsonb,notnull"`
	ReportsSinceSample uint32                        `bun:"reports_since_sample,notnull,default:0"`
	WorkloadCursor     uint64                        `bun:"workload_cursor,notnull,default:0"`

	Retired   bool      `bun:"retired,notnull,default:false"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// NewShardState returns an empty state for a freshly provisioned shard.
func NewShardState(shardID sharedtypes.ShardID, tournamentID sharedtypes.TournamentID, window sharedtypes.Window) *ShardState {
	now := time.Now().UTC()
	return &ShardState{
		ShardID:       shardID,
		TournamentID:  tournamentID,
		WindowStart:   window.Start,
		WindowEnd:     window.End,
		PendingScores: map[sharedtypes.PlayerID]uint64{},
		PendingBoards: map[sharedtypes.PlayerID]sharedtypes.BoardID{},
		Players:       map[sharedtypes.PlayerID]bool{},
		RecentPlayers: map[sharedtypes.PlayerID]bool{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Window returns the tournament window the shard validates against.
func (s *ShardState) Window() sharedtypes.Window {
	return sharedtypes.Window{Start: s.WindowStart, End: s.WindowEnd}
}

// DistinctPlayers is the number of players registered on the shard.
func (s *ShardState) DistinctPlayers() uint32 {
	return uint32(len(s.Players))
}

// Clone returns a deep copy, so handlers can mutate freely and discard the
// copy on failure.
func (s *ShardState) Clone() *ShardState {
	out := *s
	out.PendingScores = cloneMap(s.PendingScores)
	out.PendingBoards = cloneMap(s.PendingBoards)
	out.Players = cloneMap(s.Players)
	out.RecentPlayers = cloneMap(s.RecentPlayers)
	return &out
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	maps.Copy(out, m)
	return out
}
