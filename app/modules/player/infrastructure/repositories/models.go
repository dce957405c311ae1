package playerdb

import (
	"maps"
	"slices"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// Game is one board a player started in a tournament.
type Game struct {
	BoardID      sharedtypes.BoardID      `json:"board_id"`
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	ShardID      sharedtypes.ShardID      `json:"shard_id"`
	Board        playerdomain.Board       `json:"board"`
	Score        uint64                   `json:"score"`
	Moves        uint64                   `json:"moves"`
	Finished     bool                     `json:"finished"`
	CreatedAt    sharedtypes.Timestamp    `json:"created_at"`
	UpdatedAt    sharedtypes.Timestamp    `json:"updated_at"`
}

// CachedDescriptor is the last tournament descriptor a player read and the
// discovery cursor to continue from.
type CachedDescriptor struct {
	Cursor     uint64                       `json:"cursor"`
	Descriptor *events.TournamentDescriptor `json:"descriptor,omitempty"`
}

// CachedWorkload is the last workload sample a player read for a shard.
type CachedWorkload struct {
	Cursor uint64                    `json:"cursor"`
	Sample *events.ShardWorkloadFact `json:"sample,omitempty"`
}

// TriggerState is what the player knows about a tournament's trigger
// cooldown.
type TriggerState struct {
	LastSent      sharedtypes.Timestamp `json:"last_sent"`
	CooldownUntil sharedtypes.Timestamp `json:"cooldown_until"`
	LastAccepted  bool                  `json:"last_accepted"`
}

// PlayerState is everything a player partition owns.
type PlayerState struct {
	bun.BaseModel `bun:"table:player_states,alias:ps"`

	PlayerID    sharedtypes.PlayerID                           `bun:"player_id,pk"`
	Games       map[sharedtypes.BoardID]*Game                  `bun:"games,type:jsonb,notnull"`
	ActiveGames int                                            `bun:"active_games,notnull,default:0"`
	Descriptors map[sharedtypes.TournamentID]*CachedDescriptor `bun:"descriptors,type:jsonb,notnull"`
	Workloads   map[sharedtypes.ShardID]*CachedWorkload        `bun:"workloads,type:jsonb,notnull"`
	Triggers    map[sharedtypes.TournamentID]*TriggerState     `bun:"triggers,type:jsonb,notnull"`

	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

// NewPlayerState returns the state of a player seen for the first time.
func NewPlayerState(id sharedtypes.PlayerID) *PlayerState {
	now := time.Now().UTC()
	s := &PlayerState{PlayerID: id, CreatedAt: now, UpdatedAt: now}
	s.Ensure()
	return s
}

// Ensure allocates nil maps.
func (s *PlayerState) Ensure() {
	if s.Games == nil {
		s.Games = map[sharedtypes.BoardID]*Game{}
	}
	if s.Descriptors == nil {
		s.Descriptors = map[sharedtypes.TournamentID]*CachedDescriptor{}
	}
	if s.Workloads == nil {
		s.Workloads = map[sharedtypes.ShardID]*CachedWorkload{}
	}
	if s.Triggers == nil {
		s.Triggers = map[sharedtypes.TournamentID]*TriggerState{}
	}
}

// Tournaments lists the tournaments the player has games in, sorted.
func (s *PlayerState) Tournaments() []sharedtypes.TournamentID {
	seen := map[sharedtypes.TournamentID]bool{}
	for _, g := range s.Games {
		seen[g.TournamentID] = true
	}
	return slices.Sorted(maps.Keys(seen))
}

// CountActive refreshes ActiveGames.
func (s *PlayerState) CountActive() {
	n := 0
	for _, g := range s.Games {
		if !g.Finished {
			n++
		}
	}
	s.ActiveGames = n
}

// Trigger returns the trigger state for a tournament, creating it.
func (s *PlayerState) Trigger(id sharedtypes.TournamentID) *TriggerState {
	s.Ensure()
	ts, ok := s.Triggers[id]
	if !ok {
		ts = &TriggerState{}
		s.Triggers[id] = ts
	}
	return ts
}

// Clone returns a deep copy.
func (s *PlayerState) Clone() *PlayerState {
	out := *s
	out.Games = make(map[sharedtypes.BoardID]*Game, len(s.Games))
	for k, g := range s.Games {
		c := *g
		out.Games[k] = &c
	}
	out.Descriptors = make(map[sharedtypes.TournamentID]*CachedDescriptor, len(s.Descriptors))
	for k, d := range s.Descriptors {
		c := *d
		if d.Descriptor != nil {
			desc := *d.Descriptor
			desc.ShardIDs = slices.Clone(d.Descriptor.ShardIDs)
			desc.Triggerers = slices.Clone(d.Descriptor.Triggerers)
			c.Descriptor = &desc
		}
		out.Descriptors[k] = &c
	}
	out.Workloads = make(map[sharedtypes.ShardID]*CachedWorkload, len(s.Workloads))
	for k, w := range s.Workloads {
		c := *w
		if w.Sample != nil {
			sample := *w.Sample
			c.Sample = &sample
		}
		out.Workloads[k] = &c
	}
	out.Triggers = make(map[sharedtypes.TournamentID]*TriggerState, len(s.Triggers))
	for k, t := range s.Triggers {
		c := *t
		out.Triggers[k] = &c
	}
	return &out
}
