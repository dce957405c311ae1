package events

import (
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// ShardWorkloadFact is a shard's self-reported load.
type ShardWorkloadFact struct {
	ShardID             sharedtypes.ShardID   `json:"shard_id"`
	ActivePlayersRecent uint32                `json:"active_players_recent"`
	TotalPlayers        uint32                `json:"total_players"`
	SampledAt           sharedtypes.Timestamp `json:"sampled_at"`
}

// LoadScore weighs recent activity fully and idle registrants at one fifth.
func (f ShardWorkloadFact) LoadScore() uint64 {
	return uint64(f.ActivePlayersRecent) + uint64(f.TotalPlayers)/5
}

// TournamentDescriptor is what the leaderboard tells the world about its
// tournament.
type TournamentDescriptor struct {
	TournamentID    sharedtypes.TournamentID     `json:"tournament_id"`
	Name            string                       `json:"name,omitempty"`
	Status          sharedtypes.TournamentStatus `json:"status"`
	ShardIDs        []sharedtypes.ShardID        `json:"shard_ids"`
	Window          sharedtypes.Window           `json:"window"`
	Pinned          bool                         `json:"pinned"`
	Triggerers      []sharedtypes.PlayerID       `json:"triggerers,omitempty"`
	CooldownUntil   sharedtypes.Timestamp        `json:"cooldown_until"`
	LastTriggerTime sharedtypes.Timestamp        `json:"last_trigger_time"`
}

// ActiveTournamentsFact lists tournament descriptors at a point in time.
type ActiveTournamentsFact struct {
	Tournaments []TournamentDescriptor `json:"tournaments"`
	Timestamp   sharedtypes.Timestamp  `json:"timestamp"`
}

// Find returns the descriptor for id, if listed.
func (f ActiveTournamentsFact) Find(id sharedtypes.TournamentID) (TournamentDescriptor, bool) {
	for _, d := range f.Tournaments {
		if d.TournamentID == id {
			return d, true
		}
	}
	return TournamentDescriptor{}, false
}
