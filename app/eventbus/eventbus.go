package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	nc "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// EventBus is the transport every partition publishes to and consumes from.
type EventBus interface {
	message.Publisher
	message.Subscriber
	// JetStream returns the JetStream context, or nil for in-process buses.
	JetStream() jetstream.JetStream
}

// Sender addresses a payload to one partition on a topic.
type Sender interface {
	Send(ctx context.Context, topic string, partitionID string, payload any) error
}

// eventBus wraps a watermill publisher/subscriber pair. Publishing with an
// empty topic routes each message by its topic metadata, which is how
// handler results reach their destination.
type eventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	natsConn   *nc.Conn
	js         jetstream.JetStream
	logger     *slog.Logger
}

var _ EventBus = (*eventBus)(nil)

// NewGoChannel builds an in-process bus.
func NewGoChannel(logger *slog.Logger) EventBus {
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 1024},
		watermill.NewSlogLogger(logger),
	)
	return &eventBus{
		publisher:  pubSub,
		subscriber: pubSub,
		logger:     logger,
	}
}

// NewJetStream connects to NATS, makes sure the partition streams exist and
// returns a bus backed by watermill's JetStream publisher and subscriber.
func NewJetStream(ctx context.Context, natsURL string, logger *slog.Logger) (EventBus, error) {
	wmLogger := watermill.NewSlogLogger(logger)

	options := []nc.Option{
		nc.RetryOnFailedConnect(true),
		nc.Timeout(30 * time.Second),
		nc.ReconnectWait(1 * time.Second),
		nc.ErrorHandler(func(_ *nc.Conn, s *nc.Subscription, err error) {
			if s != nil {
				logger.Error("Error in subscription",
					attr.String("subject", s.Subject),
					attr.String("queue", s.Queue),
					attr.Error(err),
				)
				return
			}
			logger.Error("Error in connection", attr.Error(err))
		}),
	}

	natsConn, err := nc.Connect(natsURL, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(natsConn)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to initialize JetStream: %w", err)
	}

	if err := InitializeStreams(ctx, js, logger); err != nil {
		natsConn.Close()
		return nil, err
	}

	publisher, err := nats.NewPublisher(
		nats.PublisherConfig{
			URL:         natsURL,
			NatsOptions: options,
			Marshaler:   &nats.NATSMarshaler{},
			JetStream: nats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: false,
			},
		},
		wmLogger,
	)
	if err != nil {
		natsConn.Close()
		return nil, fmt.Errorf("failed to create Watermill NATS publisher: %w", err)
	}

	subscriber, err := nats.NewSubscriber(
		nats.SubscriberConfig{
			URL:         natsURL,
			NatsOptions: options,
			Unmarshaler: &nats.NATSMarshaler{},
			JetStream: nats.JetStreamConfig{
				Disabled:      false,
				AutoProvision: false,
			},
		},
		wmLogger,
	)
	if err != nil {
		publisher.Close()
		natsConn.Close()
		return nil, fmt.Errorf("failed to create Watermill NATS subscriber: %w", err)
	}

	return &eventBus{
		publisher:  publisher,
		subscriber: subscriber,
		natsConn:   natsConn,
		js:         js,
		logger:     logger,
	}, nil
}

// Publish sends msgs to topic. With an empty topic every message must carry
// its destination in the topic metadata.
func (eb *eventBus) Publish(topic string, msgs ...*message.Message) error {
	if topic != "" {
		return eb.publisher.Publish(topic, msgs...)
	}

	for _, msg := range msgs {
		dest := msg.Metadata.Get(events.TopicMetadataKey)
		if dest == "" {
			return fmt.Errorf("message %s has no destination topic", msg.UUID)
		}
		if err := eb.publisher.Publish(dest, msg); err != nil {
			return err
		}
	}
	return nil
}

func (eb *eventBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return eb.subscriber.Subscribe(ctx, topic)
}

func (eb *eventBus) JetStream() jetstream.JetStream {
	return eb.js
}

func (eb *eventBus) Close() error {
	var errs []error
	if err := eb.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	// gochannel uses one object for both sides.
	if any(eb.subscriber) != any(eb.publisher) {
		if err := eb.subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if eb.natsConn != nil {
		eb.natsConn.Close()
	}
	return errors.Join(errs...)
}

// NewMessage builds a partition-addressed message carrying payload as JSON.
// The correlation id on ctx is propagated, or a fresh one is minted.
func NewMessage(ctx context.Context, topic, partitionID string, payload any) (*message.Message, error) {
	if payload == nil {
		return nil, errors.New("payload is nil")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload for %s: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	msg.Metadata.Set(events.TopicMetadataKey, topic)
	msg.Metadata.Set(events.PartitionIDMetadataKey, partitionID)

	correlationID := attr.CorrelationID(ctx)
	if correlationID == "" {
		correlationID = watermill.NewUUID()
	}
	middleware.SetCorrelationID(correlationID, msg)
	msg.SetContext(ctx)

	return msg, nil
}

// PartitionSender implements Sender on top of a publisher.
type PartitionSender struct {
	publisher message.Publisher
	logger    *slog.Logger
}

// NewPartitionSender wraps publisher as a Sender.
func NewPartitionSender(publisher message.Publisher, logger *slog.Logger) *PartitionSender {
	return &PartitionSender{publisher: publisher, logger: logger}
}

// Send publishes payload to the partition on topic. The call returns once
// the transport accepted the message.
func (s *PartitionSender) Send(ctx context.Context, topic string, partitionID string, payload any) error {
	if partitionID == "" {
		return fmt.Errorf("send %s: empty partition id", topic)
	}
	msg, err := NewMessage(ctx, topic, partitionID, payload)
	if err != nil {
		return err
	}
	if err := s.publisher.Publish(topic, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish partition message",
			attr.String("topic", topic),
			attr.String("partition_id", partitionID),
			attr.ExtractCorrelationID(ctx),
			attr.Error(err),
		)
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	return nil
}
