package playerservice

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Route dispatches a player message to its handler. It must only be called
// from the player's mailbox.
func (s *PlayerService) Route(ctx context.Context, player sharedtypes.PlayerID, msg events.PlayerMessage) error {
	var err error
	switch m := msg.(type) {
	case events.TriggerTick:
		_, err = unwrap(s.HandleTriggerTick(ctx, player, m))
	case events.TriggerAggregationResponse:
		_, err = unwrap(s.HandleTriggerAggregationResponse(ctx, player, m))
	default:
		err = apperrors.Validation("player %s: unsupported message %T", player, msg)
	}
	return err
}

var _ Service = (*PlayerService)(nil)
