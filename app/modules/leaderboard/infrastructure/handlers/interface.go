package leaderboardhandlers

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
)

// Handlers defines the interface for leaderboard inbox handlers.
type Handlers interface {
	HandleFlushReport(ctx context.Context, payload *events.FlushReport) ([]handlerwrapper.Result, error)
	HandleNewGameNotice(ctx context.Context, payload *events.NewGameNotice) ([]handlerwrapper.Result, error)
	HandleShardAnnouncement(ctx context.Context, payload *events.ShardAnnouncement) ([]handlerwrapper.Result, error)
	HandleTriggererCandidate(ctx context.Context, payload *events.TriggererCandidate) ([]handlerwrapper.Result, error)
	HandleTriggerAggregationRequest(ctx context.Context, payload *events.TriggerAggregationRequest) ([]handlerwrapper.Result, error)
	HandleTournamentLifecycle(ctx context.Context, payload *events.TournamentLifecycle) ([]handlerwrapper.Result, error)
}

// Deliverer hands a message to the tournament's mailbox and waits for it.
// A trigger request yields the response for its requester.
type Deliverer interface {
	Deliver(ctx context.Context, id string, msg events.LeaderboardMessage) (*events.TriggerAggregationResponse, error)
}
