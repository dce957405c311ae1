package shardrouter

import (
	"context"
	"log/slog"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/events"
	shardhandlers "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/handlers"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.opentelemetry.io/otel/trace"
)

// ShardRouter handles Watermill handler registration for shard inbox topics.
type ShardRouter struct {
	logger     *slog.Logger
	router     *message.Router
	subscriber eventbus.EventBus
	publisher  eventbus.EventBus
	tracer     trace.Tracer
	metrics    handlerwrapper.RejectionRecorder
}

// NewShardRouter creates a new ShardRouter.
func NewShardRouter(
	logger *slog.Logger,
	router *message.Router,
	subscriber eventbus.EventBus,
	publisher eventbus.EventBus,
	tracer trace.Tracer,
	metrics handlerwrapper.RejectionRecorder,
) *ShardRouter {
	return &ShardRouter{
		logger:     logger,
		router:     router,
		subscriber: subscriber,
		publisher:  publisher,
		tracer:     tracer,
		metrics:    metrics,
	}
}

// Configure sets up the router with handlers.
func (r *ShardRouter) Configure(_ context.Context, handlers shardhandlers.Handlers) error {
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

func (r *ShardRouter) registerHandlers(handlers shardhandlers.Handlers) {
	deps := handlerDeps{
		router:     r.router,
		subscriber: r.subscriber,
		publisher:  r.publisher,
		logger:     r.logger,
		tracer:     r.tracer,
		metrics:    r.metrics,
	}

	registerHandler(deps, events.ShardScoreUpdateV1, handlers.HandleScoreUpdate)
	registerHandler(deps, events.ShardNewGameNoticeV1, handlers.HandleNewGameNotice)
	registerHandler(deps, events.ShardTriggerAggregationV1, handlers.HandleTriggerShardAggregation)
	registerHandler(deps, events.ShardRetireRequestedV1, handlers.HandleRetireShard)

	r.logger.Info("Shard module handlers registered successfully")
}

// registerHandler is a generic function for type-safe Watermill handler registration.
func registerHandler[T any](
	deps handlerDeps,
	topic string,
	handler func(context.Context, *T) ([]handlerwrapper.Result, error),
) {
	handlerName := "shard." + topic

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
