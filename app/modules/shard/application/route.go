package shardservice

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Route dispatches a shard message to its handler. It must only be called
// from the shard's mailbox.
func (s *ShardService) Route(ctx context.Context, shardID sharedtypes.ShardID, msg events.ShardMessage) error {
	var err error
	switch m := msg.(type) {
	case events.ScoreUpdate:
		_, err = unwrap(s.HandleScoreUpdate(ctx, shardID, m))
	case events.NewGameNotice:
		_, err = unwrap(s.HandleNewGameNotice(ctx, shardID, m))
	case events.TriggerShardAggregation:
		_, err = unwrap(s.HandleTriggerShardAggregation(ctx, shardID, m))
	case events.RetireShard:
		_, err = unwrap(s.HandleRetireShard(ctx, shardID, m))
	default:
		err = apperrors.Validation("shard %s: unsupported message %T", shardID, msg)
	}
	return err
}
