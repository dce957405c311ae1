package playerhandlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/handlerwrapper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

func newHandlers(mb *FakeMailbox) Handlers {
	return NewPlayerHandlers(mb, slog.New(slog.NewTextHandler(io.Discard, nil)), noop.NewTracerProvider().Tracer("test"))
}

func TestPlayerHandlers_DeliversResponse(t *testing.T) {
	mb := NewFakeMailbox()
	ctx := handlerwrapper.WithPartitionID(context.Background(), "bob")
	resp := events.TriggerAggregationResponse{TournamentID: "t-1", RequesterID: "bob", Accepted: true, CooldownUntil: 9}

	results, err := newHandlers(mb).HandleTriggerAggregationResponse(ctx, &resp)
	require.NoError(t, err)
	assert.Empty(t, results)

	got := mb.Deliveries()
	require.Len(t, got, 1)
	assert.Equal(t, "bob", got[0].ID)
	assert.Equal(t, resp, got[0].Msg)
}

func TestPlayerHandlers_MissingPartition(t *testing.T) {
	mb := NewFakeMailbox()
	_, err := newHandlers(mb).HandleTriggerAggregationResponse(context.Background(), &events.TriggerAggregationResponse{})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Empty(t, mb.Deliveries())
}

func TestPlayerHandlers_PropagatesMailboxError(t *testing.T) {
	mb := NewFakeMailbox()
	mb.DeliverFunc = func(context.Context, string, events.PlayerMessage) error {
		return apperrors.State("save player", errors.New("db down"))
	}
	ctx := handlerwrapper.WithPartitionID(context.Background(), "bob")

	_, err := newHandlers(mb).HandleTriggerAggregationResponse(ctx, &events.TriggerAggregationResponse{RequesterID: "bob"})
	assert.True(t, apperrors.IsRetryable(err))
}
