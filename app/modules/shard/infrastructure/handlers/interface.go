package shardhandlers

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
)

// Handlers defines the interface for shard inbox handlers.
type Handlers interface {
	HandleScoreUpdate(ctx context.Context, payload *events.ScoreUpdate) ([]handlerwrapper.Result, error)
	HandleNewGameNotice(ctx context.Context, payload *events.NewGameNotice) ([]handlerwrapper.Result, error)
	HandleTriggerShardAggregation(ctx context.Context, payload *events.TriggerShardAggregation) ([]handlerwrapper.Result, error)
	HandleRetireShard(ctx context.Context, payload *events.RetireShard) ([]handlerwrapper.Result, error)
}

// Deliverer hands a message to the shard's mailbox and waits for it.
type Deliverer interface {
	Deliver(ctx context.Context, id string, msg events.ShardMessage) error
}
