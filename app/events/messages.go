// Package events defines the message contracts exchanged between partitions
// and the facts published on discovery channels.
//
// Each partition kind accepts a closed set of messages, expressed as a sealed
// interface (ShardMessage, LeaderboardMessage, PlayerMessage). Exactly one
// Route function per kind switches over that set.
package events

import (
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// ShardMessage is any message a shard partition accepts.
type ShardMessage interface{ shardMessage() }

// LeaderboardMessage is any message a leaderboard partition accepts.
type LeaderboardMessage interface{ leaderboardMessage() }

// PlayerMessage is any message a player partition accepts.
type PlayerMessage interface{ playerMessage() }

// ScoreUpdate is a player's latest score on one board.
type ScoreUpdate struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	Player       sharedtypes.PlayerID     `json:"player"`
	BoardID      sharedtypes.BoardID      `json:"board_id"`
	Score        uint64                   `json:"score"`
	IsFinal      bool                     `json:"is_final"`
	Timestamp    sharedtypes.Timestamp    `json:"timestamp"`
}

// NewGameNotice announces a freshly created board. Sent to both the chosen
// shard and the leaderboard.
type NewGameNotice struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	Player       sharedtypes.PlayerID     `json:"player"`
	BoardID      sharedtypes.BoardID      `json:"board_id"`
	ShardID      sharedtypes.ShardID      `json:"shard_id"`
	Timestamp    sharedtypes.Timestamp    `json:"timestamp"`
}

// TriggerShardAggregation asks a shard to flush whatever it holds.
type TriggerShardAggregation struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	Timestamp    sharedtypes.Timestamp    `json:"timestamp"`
}

// RetireShard tells a shard its tournament has ended.
type RetireShard struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	Timestamp    sharedtypes.Timestamp    `json:"timestamp"`
}

// FlushReport is a shard's buffered best scores for one flush.
type FlushReport struct {
	TournamentID sharedtypes.TournamentID                     `json:"tournament_id"`
	ShardID      sharedtypes.ShardID                          `json:"shard_id"`
	FlushSeq     uint64                                       `json:"flush_seq"`
	Scores       map[sharedtypes.PlayerID]uint64              `json:"scores"`
	BoardIDs     map[sharedtypes.PlayerID]sharedtypes.BoardID `json:"board_ids"`
	Timestamp    sharedtypes.Timestamp                        `json:"timestamp"`
}

// ShardAnnouncement registers a newly provisioned shard with its leaderboard.
type ShardAnnouncement struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	ShardID      sharedtypes.ShardID      `json:"shard_id"`
	Timestamp    sharedtypes.Timestamp    `json:"timestamp"`
}

// TriggererCandidate nominates the first registered player of a shard for
// the triggerer pool.
type TriggererCandidate struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	ShardID      sharedtypes.ShardID      `json:"shard_id"`
	Player       sharedtypes.PlayerID     `json:"player"`
	Timestamp    sharedtypes.Timestamp    `json:"timestamp"`
}

// TriggerAggregationRequest is a pool member asking for an aggregation round.
type TriggerAggregationRequest struct {
	TournamentID sharedtypes.TournamentID `json:"tournament_id"`
	RequesterID  sharedtypes.PlayerID     `json:"requester_id"`
	Timestamp    sharedtypes.Timestamp    `json:"timestamp"`
}

// TournamentLifecycle moves a tournament between statuses. Produced by the
// lifecycle scheduler at window boundaries.
type TournamentLifecycle struct {
	TournamentID sharedtypes.TournamentID     `json:"tournament_id"`
	Status       sharedtypes.TournamentStatus `json:"status"`
	Timestamp    sharedtypes.Timestamp        `json:"timestamp"`
}

// TriggerAggregationResponse answers a TriggerAggregationRequest. It is an
// independent one-way message, never awaited by the requester.
type TriggerAggregationResponse struct {
	TournamentID  sharedtypes.TournamentID `json:"tournament_id"`
	RequesterID   sharedtypes.PlayerID     `json:"requester_id"`
	Accepted      bool                     `json:"accepted"`
	Reason        string                   `json:"reason,omitempty"`
	CooldownUntil sharedtypes.Timestamp    `json:"cooldown_until"`
	Timestamp     sharedtypes.Timestamp    `json:"timestamp"`
}

// TriggerTick is the local timer signal that lets a pool member decide
// whether to request aggregation. It never crosses the transport.
type TriggerTick struct {
	Now sharedtypes.Timestamp `json:"now"`
}

func (ScoreUpdate) shardMessage()             {}
func (NewGameNotice) shardMessage()           {}
func (TriggerShardAggregation) shardMessage() {}
func (RetireShard) shardMessage()             {}

func (FlushReport) leaderboardMessage()               {}
func (NewGameNotice) leaderboardMessage()             {}
func (ShardAnnouncement) leaderboardMessage()         {}
func (TriggererCandidate) leaderboardMessage()        {}
func (TriggerAggregationRequest) leaderboardMessage() {}
func (TournamentLifecycle) leaderboardMessage()       {}

func (TriggerTick) playerMessage()                {}
func (TriggerAggregationResponse) playerMessage() {}
