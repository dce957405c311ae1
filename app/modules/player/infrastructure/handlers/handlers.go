package playerhandlers

import (
	"context"
	"log/slog"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
	"go.opentelemetry.io/otel/trace"
)

// PlayerHandlers implements the Handlers interface.
type PlayerHandlers struct {
	mailbox Deliverer
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewPlayerHandlers creates a new PlayerHandlers instance.
func NewPlayerHandlers(mailbox Deliverer, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &PlayerHandlers{
		mailbox: mailbox,
		logger:  logger,
		tracer:  tracer,
	}
}

// HandleTriggerAggregationResponse passes the leaderboard's answer to the
// requester's mailbox.
func (h *PlayerHandlers) HandleTriggerAggregationResponse(ctx context.Context, payload *events.TriggerAggregationResponse) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "PlayerHandlers.HandleTriggerAggregationResponse")
	defer span.End()

	playerID := handlerwrapper.PartitionID(ctx)
	if playerID == "" {
		return nil, apperrors.Validation("player message without partition id")
	}

	h.logger.DebugContext(ctx, "Trigger response received",
		attr.String("player_id", playerID),
		attr.TournamentID("tournament_id", payload.TournamentID),
		attr.Bool("accepted", payload.Accepted),
	)

	if err := h.mailbox.Deliver(ctx, playerID, *payload); err != nil {
		return nil, err
	}
	return nil, nil
}
