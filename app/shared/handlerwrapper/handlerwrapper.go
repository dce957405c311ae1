// Package handlerwrapper adapts typed partition handlers to watermill.
package handlerwrapper

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Result is an outbound message produced by a handler. It is published to
// Topic and addressed to PartitionID.
type Result struct {
	Topic       string
	PartitionID string
	Payload     any
}

type partitionKey struct{}

// WithPartitionID stores the addressed partition id on ctx.
func WithPartitionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, partitionKey{}, id)
}

// PartitionID returns the partition id the current message is addressed to.
func PartitionID(ctx context.Context) string {
	id, _ := ctx.Value(partitionKey{}).(string)
	return id
}

// RejectionRecorder counts messages a handler refused.
type RejectionRecorder interface {
	RecordRejectedMessage(ctx context.Context, kind string)
}

// WrapTransformingTyped decodes the message payload into T, runs handler and
// turns its results into outbound messages.
//
// Validation, authorization and not-found errors are logged and acked: the
// message can never succeed. Anything else is returned so the router retries.
func WrapTransformingTyped[T any](
	handlerName string,
	logger *slog.Logger,
	tracer trace.Tracer,
	metrics RejectionRecorder,
	handler func(context.Context, *T) ([]Result, error),
) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		ctx := msg.Context()
		ctx = attr.WithCorrelationID(ctx, middleware.MessageCorrelationID(msg))
		partitionID := msg.Metadata.Get(events.PartitionIDMetadataKey)
		ctx = WithPartitionID(ctx, partitionID)

		ctx, span := tracer.Start(ctx, handlerName, trace.WithAttributes(
			attribute.String("message.uuid", msg.UUID),
			attribute.String("partition.id", partitionID),
		))
		defer span.End()

		payload := new(T)
		if err := json.Unmarshal(msg.Payload, payload); err != nil {
			logger.ErrorContext(ctx, "Dropping malformed payload",
				attr.String("handler", handlerName),
				attr.String("message_id", msg.UUID),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			span.RecordError(err)
			if metrics != nil {
				metrics.RecordRejectedMessage(ctx, "malformed")
			}
			return nil, nil
		}

		results, err := handler(ctx, payload)
		if err != nil {
			if isTerminal(err) {
				logger.WarnContext(ctx, "Message rejected",
					attr.String("handler", handlerName),
					attr.String("partition_id", partitionID),
					attr.String("kind", apperrors.Kind(err)),
					attr.ExtractCorrelationID(ctx),
					attr.Error(err),
				)
				if metrics != nil {
					metrics.RecordRejectedMessage(ctx, apperrors.Kind(err))
				}
				return nil, nil
			}

			logger.ErrorContext(ctx, "Handler failed",
				attr.String("handler", handlerName),
				attr.String("partition_id", partitionID),
				attr.ExtractCorrelationID(ctx),
				attr.Error(err),
			)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		out := make([]*message.Message, 0, len(results))
		for _, r := range results {
			m, err := eventbus.NewMessage(ctx, r.Topic, r.PartitionID, r.Payload)
			if err != nil {
				logger.ErrorContext(ctx, "Failed to build outbound message",
					attr.String("handler", handlerName),
					attr.String("topic", r.Topic),
					attr.Error(err),
				)
				span.RecordError(err)
				return nil, err
			}
			out = append(out, m)
		}
		return out, nil
	}
}

func isTerminal(err error) bool {
	return errors.Is(err, apperrors.ErrValidation) ||
		errors.Is(err, apperrors.ErrAuthorization) ||
		errors.Is(err, apperrors.ErrNotFound)
}

// AckAfterRetries acks a message whose handler still fails after the retry
// middleware gave up, so one poisoned message cannot stall its topic.
func AckAfterRetries(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			out, err := h(msg)
			if err != nil {
				logger.Error("Giving up on message after retries",
					attr.String("message_id", msg.UUID),
					attr.String("partition_id", msg.Metadata.Get(events.PartitionIDMetadataKey)),
					attr.CorrelationIDFromMsg(msg),
					attr.Error(err),
				)
				return nil, nil
			}
			return out, nil
		}
	}
}
