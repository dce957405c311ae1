//go:build integration

package repositories_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	leaderboarddomain "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/domain"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/Black-And-White-Club/shardboard/integration_tests/testutils"
	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var window = sharedtypes.Window{
	Start: sharedtypes.TimestampFrom(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)),
	End:   sharedtypes.TimestampFrom(time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)),
}

func TestShardRepository_RoundTrip(t *testing.T) {
	env := testutils.GetOrCreateTestEnv(t)
	env.ResetDatabase(t)
	ctx := context.Background()
	repo := sharddb.NewRepository(env.DB)

	_, err := repo.Get(ctx, nil, "missing")
	require.ErrorIs(t, err, sharddb.ErrNotFound)

	tid := sharedtypes.TournamentID(gofakeit.UUID())
	st := sharddb.NewShardState("s-1", tid, window)
	st.PendingScores["alice"] = 120
	st.PendingBoards["alice"] = "b-7"
	st.Players["alice"] = true
	st.FlushCounter = 3
	st.BoardsSeen = 2
	require.NoError(t, repo.Save(ctx, nil, st))

	// Save replaces.
	st.FlushSeq = 1
	st.PendingScores = map[sharedtypes.PlayerID]uint64{}
	st.PendingBoards = map[sharedtypes.PlayerID]sharedtypes.BoardID{}
	require.NoError(t, repo.Save(ctx, nil, st))

	got, err := repo.Get(ctx, nil, "s-1")
	require.NoError(t, err)
	if diff := cmp.Diff(st, got,
		cmpopts.IgnoreFields(sharddb.ShardState{}, "CreatedAt", "UpdatedAt"),
		cmpopts.EquateEmpty(),
	); diff != "" {
		t.Errorf("shard state mismatch (-want +got):\n%s", diff)
	}

	require.NoError(t, repo.Save(ctx, nil, sharddb.NewShardState("s-2", tid, window)))
	require.NoError(t, repo.Save(ctx, nil, sharddb.NewShardState("s-3", "other", window)))

	list, err := repo.ListByTournament(ctx, nil, tid)
	require.NoError(t, err)
	ids := make([]sharedtypes.ShardID, 0, len(list))
	for _, s := range list {
		ids = append(ids, s.ShardID)
	}
	assert.ElementsMatch(t, []sharedtypes.ShardID{"s-1", "s-2"}, ids)

	require.NoError(t, repo.Delete(ctx, nil, "s-2"))
	_, err = repo.Get(ctx, nil, "s-2")
	assert.ErrorIs(t, err, sharddb.ErrNotFound)
	require.NoError(t, repo.Delete(ctx, nil, "s-2"), "deleting a missing shard")
}

func TestLeaderboardRepository_RoundTrip(t *testing.T) {
	env := testutils.GetOrCreateTestEnv(t)
	env.ResetDatabase(t)
	ctx := context.Background()
	repo := leaderboarddb.NewRepository(env.DB)

	_, err := repo.Get(ctx, nil, "missing")
	require.ErrorIs(t, err, leaderboarddb.ErrNotFound)

	st := leaderboarddb.NewLeaderboardState("cup", "Cup", window, leaderboarddomain.DefaultPoolCapacity)
	require.NoError(t, repo.Create(ctx, nil, st))
	assert.ErrorIs(t, repo.Create(ctx, nil, st), leaderboarddb.ErrAlreadyExists)

	leaderboarddomain.MergeFlush(&st.Standings, events.FlushReport{
		TournamentID: "cup",
		ShardID:      "s-1",
		FlushSeq:     1,
		Scores:       map[sharedtypes.PlayerID]uint64{"alice": 120, "bob": 80},
		BoardIDs:     map[sharedtypes.PlayerID]sharedtypes.BoardID{"alice": "b-1", "bob": "b-2"},
	})
	st.ShardRegistry = append(st.ShardRegistry, "s-1")
	st.Pool.AddCandidate("alice", window.Start)
	st.Pinned = true
	require.NoError(t, repo.Save(ctx, nil, st))

	got, err := repo.Get(ctx, nil, "cup")
	require.NoError(t, err)
	assert.Equal(t, uint64(120), got.Standings.BestScore["alice"])
	assert.Equal(t, sharedtypes.BoardID("b-2"), got.Standings.BestBoard["bob"])
	assert.Equal(t, []sharedtypes.ShardID{"s-1"}, got.ShardRegistry)
	assert.Equal(t, sharedtypes.PlayerID("alice"), got.Pool.Primary)
	assert.True(t, got.Pinned)

	missing := leaderboarddb.NewLeaderboardState("ghost", "Ghost", window, 0)
	assert.ErrorIs(t, repo.Save(ctx, nil, missing), leaderboarddb.ErrNotFound)

	require.NoError(t, repo.Create(ctx, nil, leaderboarddb.NewLeaderboardState("later", "Later", window, 0)))
	list, err := repo.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, sharedtypes.TournamentID("cup"), list[0].TournamentID, "pinned first")

	require.NoError(t, repo.Delete(ctx, nil, "later"))
	_, err = repo.Get(ctx, nil, "later")
	assert.ErrorIs(t, err, leaderboarddb.ErrNotFound)
}

func TestPlayerRepository_RoundTrip(t *testing.T) {
	env := testutils.GetOrCreateTestEnv(t)
	env.ResetDatabase(t)
	ctx := context.Background()
	repo := playerdb.NewRepository(env.DB)

	_, err := repo.Get(ctx, nil, "nobody")
	require.ErrorIs(t, err, playerdb.ErrNotFound)

	st := playerdb.NewPlayerState("alice")
	st.Games["b-1"] = &playerdb.Game{
		BoardID:      "b-1",
		TournamentID: "cup",
		ShardID:      "s-1",
		Score:        64,
	}
	st.Triggers["cup"] = &playerdb.TriggerState{CooldownUntil: window.End, LastAccepted: true}
	st.CountActive()
	require.NoError(t, repo.Save(ctx, nil, st))
	require.NoError(t, repo.Save(ctx, nil, playerdb.NewPlayerState("idle")))

	got, err := repo.Get(ctx, nil, "alice")
	require.NoError(t, err)
	if diff := cmp.Diff(st, got,
		cmpopts.IgnoreFields(playerdb.PlayerState{}, "CreatedAt", "UpdatedAt"),
		cmpopts.EquateEmpty(),
	); diff != "" {
		t.Errorf("player state mismatch (-want +got):\n%s", diff)
	}

	active, err := repo.ListActive(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []sharedtypes.PlayerID{"alice"}, active)
}

func testStore(t *testing.T, store discoverydb.Store) {
	t.Helper()
	ctx := context.Background()
	key := discoverydb.Key{Publisher: sharedtypes.PartitionID("shard/" + gofakeit.UUID()), Topic: "workload"}

	_, err := store.Get(ctx, key, 0)
	require.ErrorIs(t, err, discoverydb.ErrNotPresent)

	require.NoError(t, store.Put(ctx, key, 0, []byte(`{"n":1}`)))
	require.NoError(t, store.Put(ctx, key, 1, []byte(`{"n":2}`)))

	err = store.Put(ctx, key, 1, []byte(`{"n":3}`))
	require.True(t, errors.Is(err, discoverydb.ErrIndexTaken), "got %v", err)

	got, err := store.Get(ctx, key, 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2}`, string(got))

	_, err = store.Get(ctx, discoverydb.Key{Publisher: key.Publisher, Topic: "other"}, 0)
	assert.ErrorIs(t, err, discoverydb.ErrNotPresent)
}

func TestDiscoveryStore_Postgres(t *testing.T) {
	env := testutils.GetOrCreateTestEnv(t)
	env.ResetDatabase(t)
	testStore(t, discoverydb.NewRepository(env.DB))
}

func TestDiscoveryStore_JetStreamKV(t *testing.T) {
	env := testutils.GetOrCreateTestEnv(t)
	env.ResetJetStream(t)

	store, err := discoverydb.OpenKVStore(context.Background(), env.JetStream, "discovery_it")
	require.NoError(t, err)
	testStore(t, store)
}
