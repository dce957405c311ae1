package eventbus

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan *message.Message) *message.Message {
	t.Helper()
	select {
	case msg := <-ch:
		msg.Ack()
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestPartitionSender_Send(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := NewGoChannel(logger)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, events.ShardScoreUpdateV1)
	require.NoError(t, err)

	sender := NewPartitionSender(bus, logger)
	payload := events.ScoreUpdate{TournamentID: "t-1", Player: "alice", BoardID: "b-1", Score: 42}

	ctx = attr.WithCorrelationID(ctx, "corr-9")
	require.NoError(t, sender.Send(ctx, events.ShardScoreUpdateV1, "s-1", payload))

	msg := receive(t, ch)
	assert.Equal(t, "s-1", msg.Metadata.Get(events.PartitionIDMetadataKey))
	assert.Equal(t, "corr-9", middleware.MessageCorrelationID(msg))

	var got events.ScoreUpdate
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	assert.Equal(t, payload, got)
}

func TestPartitionSender_EmptyPartition(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := NewGoChannel(logger)
	defer bus.Close()

	err := NewPartitionSender(bus, logger).Send(context.Background(), "x", "", struct{}{})
	assert.Error(t, err)
}

func TestEventBus_PublishResolvesTopicFromMetadata(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := NewGoChannel(logger)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, events.PlayerTriggerRespondedV1)
	require.NoError(t, err)

	msg, err := NewMessage(ctx, events.PlayerTriggerRespondedV1, "alice", events.TriggerAggregationResponse{Accepted: true})
	require.NoError(t, err)
	require.NoError(t, bus.Publish("", msg))

	got := receive(t, ch)
	assert.Equal(t, "alice", got.Metadata.Get(events.PartitionIDMetadataKey))
	assert.NotEmpty(t, middleware.MessageCorrelationID(got))

	orphan, err := NewMessage(ctx, "", "alice", struct{}{})
	require.NoError(t, err)
	assert.Error(t, bus.Publish("", orphan))
}
