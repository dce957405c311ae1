package shardservice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Black-And-White-Club/shardboard/app/events"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	testShard      sharedtypes.ShardID      = "shard-1"
	testTournament sharedtypes.TournamentID = "t-1"
)

var testWindow = sharedtypes.Window{}

type harness struct {
	svc     *ShardService
	repo    *FakeShardRepo
	sender  *FakeSender
	writer  *FakeWriter
	channel *discoveryservice.Channel
	cursors map[sharedtypes.TournamentID]uint64
}

// newHarness starts with testTournament published as active.
func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracer := noop.NewTracerProvider().Tracer("test")
	h := &harness{
		repo:    NewFakeShardRepo(),
		sender:  NewFakeSender(),
		writer:  NewFakeWriter(),
		channel: discoveryservice.NewChannel(discoverydb.NewMemoryStore(), logger, observability.NewNoop(), tracer, 0),
		cursors: map[sharedtypes.TournamentID]uint64{},
	}
	h.svc = NewShardService(
		h.repo,
		h.sender,
		h.writer,
		h.channel,
		logger,
		observability.NewNoop(),
		tracer,
		nil,
		cfg,
	)
	h.publish(t, events.TournamentDescriptor{
		TournamentID: testTournament,
		Name:         "Weekend Cup",
		Status:       sharedtypes.TournamentStatusActive,
		Window:       testWindow,
	})
	return h
}

// publish stands in for the tournament's leaderboard.
func (h *harness) publish(t *testing.T, d events.TournamentDescriptor) {
	t.Helper()
	key := discoverydb.Key{Publisher: sharedtypes.PartitionID(d.TournamentID), Topic: events.DiscoveryTopicActiveTournaments}
	next, err := h.channel.Publish(context.Background(), key, h.cursors[d.TournamentID], events.ActiveTournamentsFact{
		Tournaments: []events.TournamentDescriptor{d},
	})
	require.NoError(t, err)
	h.cursors[d.TournamentID] = next
}

func (h *harness) provision(t *testing.T) {
	t.Helper()
	_, err := unwrap(h.svc.CreateShard(context.Background(), ShardSpec{ShardID: testShard, TournamentID: testTournament}))
	require.NoError(t, err)
}

func (h *harness) state(t *testing.T) *sharddb.ShardState {
	t.Helper()
	state, err := h.repo.inner.Get(context.Background(), nil, testShard)
	require.NoError(t, err)
	return state
}

func score(player string, value uint64, final bool) events.ScoreUpdate {
	return events.ScoreUpdate{
		TournamentID: testTournament,
		Player:       sharedtypes.PlayerID(player),
		BoardID:      sharedtypes.BoardID("board-" + player),
		Score:        value,
		IsFinal:      final,
		Timestamp:    1_000,
	}
}

func flushes(h *harness) []events.FlushReport {
	var out []events.FlushReport
	for _, m := range h.sender.Sent(events.LeaderboardFlushReportedV1) {
		out = append(out, m.Payload.(events.FlushReport))
	}
	return out
}

func TestCreateShard(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(h *harness)
		spec      ShardSpec
		wantKind  string
		wantSaved bool
	}{
		{
			name:      "provisions and announces",
			spec:      ShardSpec{ShardID: testShard, TournamentID: testTournament},
			wantKind:  "none",
			wantSaved: true,
		},
		{
			name: "same tournament is idempotent",
			setup: func(h *harness) {
				require.NoError(t, h.repo.inner.Save(context.Background(), nil, sharddb.NewShardState(testShard, testTournament, sharedtypes.Window{})))
			},
			spec:      ShardSpec{ShardID: testShard, TournamentID: testTournament},
			wantKind:  "none",
			wantSaved: true,
		},
		{
			name: "other tournament is rejected",
			setup: func(h *harness) {
				require.NoError(t, h.repo.inner.Save(context.Background(), nil, sharddb.NewShardState(testShard, "t-other", sharedtypes.Window{})))
			},
			spec:     ShardSpec{ShardID: testShard, TournamentID: testTournament},
			wantKind: "validation",
		},
		{
			name:     "missing ids",
			spec:     ShardSpec{ShardID: testShard},
			wantKind: "validation",
		},
		{
			name:     "unknown tournament",
			spec:     ShardSpec{ShardID: testShard, TournamentID: "cup"},
			wantKind: "not_found",
		},
		{
			name: "ended tournament",
			setup: func(h *harness) {
				h.publish(t, events.TournamentDescriptor{TournamentID: testTournament, Status: sharedtypes.TournamentStatusEnded, Window: testWindow})
			},
			spec:     ShardSpec{ShardID: testShard, TournamentID: testTournament, Now: 2_000},
			wantKind: "validation",
		},
		{
			name: "window already over",
			setup: func(h *harness) {
				h.publish(t, events.TournamentDescriptor{TournamentID: testTournament, Status: sharedtypes.TournamentStatusActive, Window: sharedtypes.Window{Start: 500, End: 2_000}})
			},
			spec:     ShardSpec{ShardID: testShard, TournamentID: testTournament, Now: 5_000},
			wantKind: "validation",
		},
		{
			name: "announcement failure persists nothing",
			setup: func(h *harness) {
				h.sender.SendFunc = func(context.Context, string, string, any) error { return errors.New("nats down") }
			},
			spec:     ShardSpec{ShardID: testShard, TournamentID: testTournament},
			wantKind: "state",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			if tt.setup != nil {
				tt.setup(h)
			}

			_, err := unwrap(h.svc.CreateShard(context.Background(), tt.spec))
			assert.Equal(t, tt.wantKind, apperrors.Kind(err))

			if tt.wantSaved {
				announcements := h.sender.Sent(events.LeaderboardShardAnnouncedV1)
				require.Len(t, announcements, 1)
				assert.Equal(t, testTournament.String(), announcements[0].PartitionID)
				assert.Equal(t, testTournament, h.state(t).TournamentID)
			}
			if tt.wantKind != "none" {
				assert.Empty(t, h.sender.Sent(events.LeaderboardShardAnnouncedV1))
			}
			if tt.name == "announcement failure persists nothing" {
				_, err := h.repo.inner.Get(context.Background(), nil, testShard)
				assert.ErrorIs(t, err, sharddb.ErrNotFound)
			}
		})
	}
}

func TestCreateShard_WindowFromDescriptor(t *testing.T) {
	h := newHarness(t, Config{})
	window := sharedtypes.Window{Start: 500, End: 2_000}
	h.publish(t, events.TournamentDescriptor{TournamentID: testTournament, Status: sharedtypes.TournamentStatusActive, Window: window})

	_, err := unwrap(h.svc.CreateShard(context.Background(), ShardSpec{ShardID: testShard, TournamentID: testTournament, Now: 1_000}))
	require.NoError(t, err)
	assert.Equal(t, window, h.state(t).Window())

	err = h.svc.Route(context.Background(), testShard, score("a", 10, false))
	require.NoError(t, err)
	late := score("a", 20, false)
	late.Timestamp = 3_000
	assert.ErrorIs(t, h.svc.Route(context.Background(), testShard, late), apperrors.ErrValidation)
}

func TestCreateShard_AnnouncementFailureKeepsExistingShard(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)
	h.sender.SendFunc = func(context.Context, string, string, any) error { return errors.New("nats down") }

	_, err := unwrap(h.svc.CreateShard(context.Background(), ShardSpec{ShardID: testShard, TournamentID: testTournament}))
	assert.ErrorIs(t, err, apperrors.ErrState)
	assert.Equal(t, testTournament, h.state(t).TournamentID)
	assert.NotContains(t, h.repo.Trace(), "Delete")
}

func TestHandleScoreUpdate_FlushThreshold(t *testing.T) {
	h := newHarness(t, Config{FlushFactor: 10})
	h.provision(t)
	ctx := context.Background()

	players := []string{"a", "b", "c"}
	for i := 0; i < 29; i++ {
		require.NoError(t, h.svc.Route(ctx, testShard, score(players[i%3], uint64(i), false)))
	}
	assert.Empty(t, flushes(h), "no flush before distinct*10 reports")
	assert.Equal(t, uint32(29), h.state(t).FlushCounter)

	require.NoError(t, h.svc.Route(ctx, testShard, score("a", 100, false)))
	got := flushes(h)
	require.Len(t, got, 1)
	assert.Equal(t, map[sharedtypes.PlayerID]uint64{"a": 100, "b": 28, "c": 26}, got[0].Scores)

	state := h.state(t)
	assert.Zero(t, state.FlushCounter)
	assert.Empty(t, state.PendingScores)
	assert.Empty(t, state.PendingBoards)
	assert.Equal(t, uint64(1), state.FlushSeq)
}

func TestHandleScoreUpdate_EndOfGameFlush(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Route(ctx, testShard, score("A", 50, false)))
	require.NoError(t, h.svc.Route(ctx, testShard, score("B", 80, false)))
	assert.Empty(t, flushes(h))

	require.NoError(t, h.svc.Route(ctx, testShard, score("A", 120, true)))

	got := flushes(h)
	require.Len(t, got, 1)
	assert.Equal(t, map[sharedtypes.PlayerID]uint64{"A": 120, "B": 80}, got[0].Scores)
	assert.Equal(t, map[sharedtypes.PlayerID]sharedtypes.BoardID{"A": "board-A", "B": "board-B"}, got[0].BoardIDs)
	assert.Equal(t, testShard, got[0].ShardID)
}

func TestHandleScoreUpdate_KeepsMaxAndLatestBoard(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Route(ctx, testShard, score("A", 90, false)))
	lower := score("A", 40, false)
	lower.BoardID = "board-A2"
	require.NoError(t, h.svc.Route(ctx, testShard, lower))

	state := h.state(t)
	assert.Equal(t, uint64(90), state.PendingScores["A"])
	assert.Equal(t, sharedtypes.BoardID("board-A2"), state.PendingBoards["A"])
}

func TestHandleScoreUpdate_RejectsWithoutMutation(t *testing.T) {
	tests := []struct {
		name   string
		shard  sharedtypes.ShardID
		mutate func(*events.ScoreUpdate)
		setup  func(h *harness)
	}{
		{name: "tournament mismatch", shard: testShard, mutate: func(m *events.ScoreUpdate) { m.TournamentID = "t-2" }},
		{name: "unknown shard", shard: "shard-404"},
		{name: "empty player", shard: testShard, mutate: func(m *events.ScoreUpdate) { m.Player = "" }},
		{name: "empty board", shard: testShard, mutate: func(m *events.ScoreUpdate) { m.BoardID = "" }},
		{
			name:   "outside window",
			shard:  testShard,
			mutate: func(m *events.ScoreUpdate) { m.Timestamp = 99_999 },
			setup: func(h *harness) {
				state := sharddb.NewShardState(testShard, testTournament, sharedtypes.Window{Start: 500, End: 2_000})
				require.NoError(t, h.repo.inner.Save(context.Background(), nil, state))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			h.provision(t)
			if tt.setup != nil {
				tt.setup(h)
			}
			require.NoError(t, h.svc.Route(context.Background(), testShard, score("seed", 5, false)))
			before := h.state(t)
			sentBefore := len(h.sender.Trace())

			msg := score("x", 10, true)
			if tt.mutate != nil {
				tt.mutate(&msg)
			}
			err := h.svc.Route(context.Background(), tt.shard, msg)
			assert.ErrorIs(t, err, apperrors.ErrValidation)

			if diff := cmp.Diff(before, h.state(t)); diff != "" {
				t.Errorf("state mutated (-before +after):\n%s", diff)
			}
			assert.Len(t, h.sender.Trace(), sentBefore)
		})
	}
}

func TestHandleScoreUpdate_SendFailureRetainsPending(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Route(ctx, testShard, score("A", 50, false)))
	before := h.state(t)

	h.sender.SendFunc = func(_ context.Context, topic, _ string, _ any) error {
		if topic == events.LeaderboardFlushReportedV1 {
			return errors.New("transport unavailable")
		}
		return nil
	}
	err := h.svc.Route(ctx, testShard, score("A", 70, true))
	require.Error(t, err)
	assert.True(t, apperrors.IsRetryable(err))

	if diff := cmp.Diff(before, h.state(t)); diff != "" {
		t.Errorf("pending state changed after failed flush (-before +after):\n%s", diff)
	}

	h.sender.SendFunc = nil
	require.NoError(t, h.svc.Route(ctx, testShard, score("A", 70, true)))
	got := flushes(h)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(70), got[0].Scores["A"])
	assert.Equal(t, uint64(0), got[0].FlushSeq)
}

func TestHandleScoreUpdate_SaveFailureIsStateError(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)

	h.repo.SaveFunc = func(context.Context, bun.IDB, *sharddb.ShardState) error {
		return errors.New("disk full")
	}
	err := h.svc.Route(context.Background(), testShard, score("A", 1, false))
	assert.ErrorIs(t, err, apperrors.ErrState)
}

func TestTriggererCandidate_FirstPlayerOnly(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Route(ctx, testShard, events.NewGameNotice{
		TournamentID: testTournament, Player: "first", BoardID: "b-1", ShardID: testShard, Timestamp: 1,
	}))
	require.NoError(t, h.svc.Route(ctx, testShard, score("second", 1, false)))
	require.NoError(t, h.svc.Route(ctx, testShard, score("first", 3, false)))

	candidates := h.sender.Sent(events.LeaderboardTriggererCandidateV1)
	require.Len(t, candidates, 1)
	c := candidates[0].Payload.(events.TriggererCandidate)
	assert.Equal(t, sharedtypes.PlayerID("first"), c.Player)
	assert.Equal(t, testShard, c.ShardID)

	state := h.state(t)
	assert.Equal(t, uint32(2), state.DistinctPlayers())
	assert.Equal(t, uint64(1), state.BoardsSeen)
}

func TestNewGameNotice_WrongShard(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)

	err := h.svc.Route(context.Background(), testShard, events.NewGameNotice{
		TournamentID: testTournament, Player: "p", BoardID: "b", ShardID: "shard-9",
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestWorkloadSampling(t *testing.T) {
	h := newHarness(t, Config{FlushFactor: 1000, WorkloadSampleEvery: 5})
	h.provision(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Route(ctx, testShard, score("a", 1, false)))
	require.Len(t, h.writer.Published(), 1, "first report samples")

	for i := 0; i < 4; i++ {
		require.NoError(t, h.svc.Route(ctx, testShard, score("b", uint64(i), false)))
	}
	assert.Len(t, h.writer.Published(), 1)

	require.NoError(t, h.svc.Route(ctx, testShard, score("c", 1, false)))
	samples := h.writer.Published()
	require.Len(t, samples, 2)

	last := samples[1]
	assert.Equal(t, uint64(1), last.Cursor)
	assert.Equal(t, events.DiscoveryTopicWorkload, last.Key.Topic)
	assert.Equal(t, sharedtypes.PartitionID(testShard), last.Key.Publisher)

	fact := last.Value.(events.ShardWorkloadFact)
	assert.Equal(t, uint32(2), fact.ActivePlayersRecent)
	assert.Equal(t, uint32(3), fact.TotalPlayers)
	assert.Equal(t, uint64(2), h.state(t).WorkloadCursor)
}

func TestHandleTriggerShardAggregation(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Route(ctx, testShard, events.TriggerShardAggregation{TournamentID: testTournament, Timestamp: 5}))
	assert.Empty(t, flushes(h), "nothing pending, nothing flushed")
	assert.Len(t, h.writer.Published(), 1)

	require.NoError(t, h.svc.Route(ctx, testShard, score("a", 7, false)))
	require.NoError(t, h.svc.Route(ctx, testShard, events.TriggerShardAggregation{TournamentID: testTournament, Timestamp: 6}))

	got := flushes(h)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7), got[0].Scores["a"])
	assert.Len(t, h.writer.Published(), 2)
}

func TestHandleRetireShard(t *testing.T) {
	h := newHarness(t, Config{})
	h.provision(t)
	ctx := context.Background()

	require.NoError(t, h.svc.Route(ctx, testShard, score("a", 7, false)))
	require.NoError(t, h.svc.Route(ctx, testShard, events.RetireShard{TournamentID: testTournament}))

	require.Len(t, flushes(h), 1)
	assert.True(t, h.state(t).Retired)

	err := h.svc.Route(ctx, testShard, score("a", 9, false))
	assert.ErrorIs(t, err, apperrors.ErrValidation)

	// Retiring twice is harmless.
	require.NoError(t, h.svc.Route(ctx, testShard, events.RetireShard{TournamentID: testTournament}))
	assert.Len(t, flushes(h), 1)
}

func TestRoute_UnknownMessage(t *testing.T) {
	h := newHarness(t, Config{})
	err := h.svc.Route(context.Background(), testShard, nil)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
}
