package leaderboardhandlers

import (
	"context"
	"log/slog"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
	"go.opentelemetry.io/otel/trace"
)

// LeaderboardHandlers implements the Handlers interface.
type LeaderboardHandlers struct {
	mailbox Deliverer
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewLeaderboardHandlers creates a new LeaderboardHandlers instance.
func NewLeaderboardHandlers(mailbox Deliverer, logger *slog.Logger, tracer trace.Tracer) Handlers {
	return &LeaderboardHandlers{
		mailbox: mailbox,
		logger:  logger,
		tracer:  tracer,
	}
}

func (h *LeaderboardHandlers) HandleFlushReport(ctx context.Context, payload *events.FlushReport) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "LeaderboardHandlers.HandleFlushReport")
	defer span.End()

	return h.deliver(ctx, *payload)
}

func (h *LeaderboardHandlers) HandleNewGameNotice(ctx context.Context, payload *events.NewGameNotice) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "LeaderboardHandlers.HandleNewGameNotice")
	defer span.End()

	return h.deliver(ctx, *payload)
}

func (h *LeaderboardHandlers) HandleShardAnnouncement(ctx context.Context, payload *events.ShardAnnouncement) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "LeaderboardHandlers.HandleShardAnnouncement")
	defer span.End()

	return h.deliver(ctx, *payload)
}

func (h *LeaderboardHandlers) HandleTriggererCandidate(ctx context.Context, payload *events.TriggererCandidate) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "LeaderboardHandlers.HandleTriggererCandidate")
	defer span.End()

	return h.deliver(ctx, *payload)
}

// HandleTriggerAggregationRequest answers the requester with the decision,
// accepted or not.
func (h *LeaderboardHandlers) HandleTriggerAggregationRequest(ctx context.Context, payload *events.TriggerAggregationRequest) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "LeaderboardHandlers.HandleTriggerAggregationRequest")
	defer span.End()

	return h.deliver(ctx, *payload)
}

func (h *LeaderboardHandlers) HandleTournamentLifecycle(ctx context.Context, payload *events.TournamentLifecycle) ([]handlerwrapper.Result, error) {
	ctx, span := h.tracer.Start(ctx, "LeaderboardHandlers.HandleTournamentLifecycle")
	defer span.End()

	h.logger.InfoContext(ctx, "Lifecycle transition received",
		attr.TournamentID("tournament_id", payload.TournamentID),
		attr.String("status", string(payload.Status)),
	)
	return h.deliver(ctx, *payload)
}

func (h *LeaderboardHandlers) deliver(ctx context.Context, msg events.LeaderboardMessage) ([]handlerwrapper.Result, error) {
	tournamentID := handlerwrapper.PartitionID(ctx)
	if tournamentID == "" {
		return nil, apperrors.Validation("leaderboard message without partition id")
	}

	resp, err := h.mailbox.Deliver(ctx, tournamentID, msg)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return []handlerwrapper.Result{{
		Topic:       events.PlayerTriggerRespondedV1,
		PartitionID: resp.RequesterID.String(),
		Payload:     *resp,
	}}, nil
}
