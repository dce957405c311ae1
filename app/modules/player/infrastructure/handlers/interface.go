package playerhandlers

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
)

// Handlers defines the interface for player inbox handlers.
type Handlers interface {
	HandleTriggerAggregationResponse(ctx context.Context, payload *events.TriggerAggregationResponse) ([]handlerwrapper.Result, error)
}

// Deliverer hands a message to the player's mailbox and waits for it.
type Deliverer interface {
	Deliver(ctx context.Context, id string, msg events.PlayerMessage) error
}
