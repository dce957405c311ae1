package shardhandlers

import (
	"context"
	"log/slog"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
	"go.opentelemetry.io/otel/trace"
)

// ShardHandlers implements the Handlers interface. Every handler forwards to
// the addressed shard's mailbox; none of them replies.
type ShardHandlers struct {
	mailbox Deliverer
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewShardHandlers creates a new ShardHandlers instance.
func NewShardHandlers(mailbox Deliverer, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &ShardHandlers{
		mailbox: mailbox,
		logger:  logger,
		tracer:  tracer,
	}
}

func (h *ShardHandlers) HandleScoreUpdate(ctx context.Context, payload *events.ScoreUpdate) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "ShardHandlers.HandleScoreUpdate")
	defer span.End()

	return nil, h.deliver(ctx, *payload)
}

func (h *ShardHandlers) HandleNewGameNotice(ctx context.Context, payload *events.NewGameNotice) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "ShardHandlers.HandleNewGameNotice")
	defer span.End()

	return nil, h.deliver(ctx, *payload)
}

func (h *ShardHandlers) HandleTriggerShardAggregation(ctx context.Context, payload *events.TriggerShardAggregation) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "ShardHandlers.HandleTriggerShardAggregation")
	defer span.End()

	return nil, h.deliver(ctx, *payload)
}

func (h *ShardHandlers) HandleRetireShard(ctx context.Context, payload *events.RetireShard) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "ShardHandlers.HandleRetireShard")
	defer span.End()

	h.logger.InfoContext(ctx, "Retire requested",
		slog.String("shard_id", handlerwrapper.PartitionID(ctx)),
		slog.String("tournament_id", payload.TournamentID.String()),
	)
	return nil, h.deliver(ctx, *payload)
}

func (h *ShardHandlers) deliver(ctx context.Context, msg events.ShardMessage) error {
	shardID := handlerwrapper.PartitionID(ctx)
	if shardID == "" {
		return apperrors.Validation("shard message without partition id")
	}
	return h.mailbox.Deliver(ctx, shardID, msg)
}
