package leaderboardrouter

import (
	"context"
	"log/slog"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/events"
	leaderboardhandlers "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/handlers"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// LeaderboardRouter handles Watermill handler registration for leaderboard inbox topics.
type LeaderboardRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	tracer     trace.Tracer
	metrics    handlerwrapper.RejectionRecorder
}

// NewLeaderboardRouter creates a new LeaderboardRouter.
func NewLeaderboardRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	tracer trace.Tracer,
	metrics handlerwrapper.RejectionRecorder,
) *LeaderboardRouter {
	return &LeaderboardRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		tracer:     tracer,
		metrics:    metrics,
	}
}

// Configure sets up the router with handlers. Trigger responses are
// published through the same event bus.
func (r *LeaderboardRouter) Configure(_ context.Context, handlers leaderboardhandlers.Handlers) error {
	r.registerHandlers(handlers)
	return nil
}

// handlerDeps bundles dependencies for handler registration.
type handlerDeps struct {
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    handlerwrapper.RejectionRecorder
}

func (r *LeaderboardRouter) registerHandlers(handlers leaderboardhandlers.Handlers) {
	deps := handlerDeps{
		router:     r.router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
		metrics:    r.metrics,
	}

	registerHandler(deps, events.LeaderboardFlushReportedV1, handlers.HandleFlushReport)
	registerHandler(deps, events.LeaderboardNewGameNoticeV1, handlers.HandleNewGameNotice)
	registerHandler(deps, events.LeaderboardShardAnnouncedV1, handlers.HandleShardAnnouncement)
	registerHandler(deps, events.LeaderboardTriggererCandidateV1, handlers.HandleTriggererCandidate)
	registerHandler(deps, events.LeaderboardTriggerRequestedV1, handlers.HandleTriggerAggregationRequest)
	registerHandler(deps, events.LeaderboardLifecycleV1, handlers.HandleTournamentLifecycle)

	r.logger.Info("Leaderboard module handlers registered successfully")
}

// registerHandler is a generic function for type-safe Watermill handler registration.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "leaderboard." + topic

	deps.router.AddHandler(
		handlerName,
		topic,
		deps.subscriber,
		"",
		deps.publisher,
		handlerwrapper.WrapTransformingTyped(
			handlerName,
			deps.logger,
			deps.tracer,
			deps.metrics,
			handler,
		),
	)
}
