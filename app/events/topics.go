package events

// Partition inbox topics. Each topic carries exactly one payload type; the
// addressed partition id travels in the PartitionIDMetadataKey metadata.
const (
	// ShardScoreUpdateV1 carries ScoreUpdate from a player to a shard.
	ShardScoreUpdateV1 = "shard.score.updated.v1"
	// ShardNewGameNoticeV1 carries NewGameNotice from a player to a shard.
	ShardNewGameNoticeV1 = "shard.game.created.v1"
	// ShardTriggerAggregationV1 carries TriggerShardAggregation from the leaderboard.
	ShardTriggerAggregationV1 = "shard.aggregation.triggered.v1"
	// ShardRetireRequestedV1 carries RetireShard from the leaderboard.
	ShardRetireRequestedV1 = "shard.retire.requested.v1"

	// LeaderboardFlushReportedV1 carries FlushReport from a shard.
	LeaderboardFlushReportedV1 = "leaderboard.flush.reported.v1"
	// LeaderboardNewGameNoticeV1 carries NewGameNotice from a player.
	LeaderboardNewGameNoticeV1 = "leaderboard.game.created.v1"
	// LeaderboardShardAnnouncedV1 carries ShardAnnouncement from a new shard.
	LeaderboardShardAnnouncedV1 = "leaderboard.shard.announced.v1"
	// LeaderboardTriggererCandidateV1 carries TriggererCandidate from a shard.
	LeaderboardTriggererCandidateV1 = "leaderboard.triggerer.candidate.v1"
	// LeaderboardTriggerRequestedV1 carries TriggerAggregationRequest from a pool member.
	LeaderboardTriggerRequestedV1 = "leaderboard.aggregation.requested.v1"
	// LeaderboardLifecycleV1 carries TournamentLifecycle from the scheduler.
	LeaderboardLifecycleV1 = "leaderboard.tournament.lifecycle.v1"

	// PlayerTriggerRespondedV1 carries TriggerAggregationResponse back to the requester.
	PlayerTriggerRespondedV1 = "player.aggregation.responded.v1"
)

// Metadata keys set on every partition message.
const (
	PartitionIDMetadataKey = "partition_id"
	TopicMetadataKey       = "topic"
)

// Discovery channel topics.
const (
	DiscoveryTopicWorkload          = "workload"
	DiscoveryTopicActiveTournaments = "active_tournaments"
)
