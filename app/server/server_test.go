package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	leaderboardservice "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/application"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	playerservice "github.com/Black-And-White-Club/shardboard/app/modules/player/application"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	shardservice "github.com/Black-And-White-Club/shardboard/app/modules/shard/application"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/partition"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	tournaments *FakeTournaments
	shards      *FakeShards
	players     *FakePlayers
	server      *Server
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		tournaments: &FakeTournaments{},
		shards:      &FakeShards{},
		players:     &FakePlayers{},
	}
	opts.Now = func() time.Time { return fixedNow }
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h.server = New(logger, prometheus.NewRegistry(), h.tournaments, h.shards, h.players, opts)
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "203.0.113.7:4242"
	rr := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func TestServer_Health(t *testing.T) {
	h := newHarness(t, Options{})
	rr := h.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	rr = h.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestServer_CreateTournament(t *testing.T) {
	h := newHarness(t, Options{})
	var got leaderboardservice.TournamentSpec
	h.tournaments.CreateFunc = func(_ context.Context, spec leaderboardservice.TournamentSpec) (*leaderboarddb.LeaderboardState, error) {
		got = spec
		return leaderboarddb.NewLeaderboardState(spec.ID, spec.Name, spec.Window, 0), nil
	}

	rr := h.do(http.MethodPost, "/v1/tournaments", `{"id":"spring","name":"Spring Open","end":"in 2 hours"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	assert.Equal(t, sharedtypes.TournamentID("spring"), got.ID)
	assert.Equal(t, sharedtypes.TimestampFrom(fixedNow), got.Now)
	assert.Equal(t, sharedtypes.TimestampFrom(fixedNow.Add(2*time.Hour)), got.Window.End)

	view := decodeBody[tournamentView](t, rr)
	assert.Equal(t, sharedtypes.TournamentStatusActive, view.Status)
	assert.Equal(t, "Spring Open", view.Name)
}

func TestServer_CreateTournamentGeneratesID(t *testing.T) {
	h := newHarness(t, Options{})
	rr := h.do(http.MethodPost, "/v1/tournaments", `{"name":"Anonymous"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotEmpty(t, decodeBody[tournamentView](t, rr).ID)
}

func TestServer_TournamentAdmin(t *testing.T) {
	h := newHarness(t, Options{})

	rr := h.do(http.MethodPatch, "/v1/tournaments/spring", `{"name":"Renamed","description":"d"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Renamed", decodeBody[tournamentView](t, rr).Name)

	rr = h.do(http.MethodPost, "/v1/tournaments/spring/pin", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[tournamentView](t, rr).Pinned)

	rr = h.do(http.MethodPost, "/v1/tournaments/spring/end", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, sharedtypes.TournamentStatusEnded, decodeBody[tournamentView](t, rr).Status)

	assert.Equal(t, []string{"UpdateTournament", "TogglePin", "EndTournament"}, h.tournaments.Trace())
}

func TestServer_CreateShard(t *testing.T) {
	h := newHarness(t, Options{})

	rr := h.do(http.MethodPost, "/v1/tournaments/spring/shards", `{"shard_id":"s-1"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	require.Len(t, h.shards.Specs, 1)
	spec := h.shards.Specs[0]
	assert.Equal(t, sharedtypes.ShardID("s-1"), spec.ShardID)
	assert.Equal(t, sharedtypes.TournamentID("spring"), spec.TournamentID)

	rr = h.do(http.MethodPost, "/v1/tournaments/spring/shards", "")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.NotEmpty(t, decodeBody[shardView](t, rr).ShardID)

	h.shards.CreateFunc = func(_ context.Context, spec shardservice.ShardSpec) (*sharddb.ShardState, error) {
		return nil, apperrors.NotFound("tournament %s", spec.TournamentID)
	}
	rr = h.do(http.MethodPost, "/v1/tournaments/cup/shards", `{"shard_id":"s-2"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code, rr.Body.String())
}

func TestServer_PlayerFlow(t *testing.T) {
	h := newHarness(t, Options{})
	var final bool
	var dir playerdomain.Direction
	h.players.ReportScoreFunc = func(_ context.Context, _ sharedtypes.PlayerID, board sharedtypes.BoardID, score uint64, isFinal bool) (*playerdb.Game, error) {
		final = isFinal
		return &playerdb.Game{BoardID: board, Score: score, Finished: isFinal}, nil
	}
	h.players.ApplyMoveFunc = func(_ context.Context, _ sharedtypes.PlayerID, board sharedtypes.BoardID, d playerdomain.Direction) (*playerdb.Game, error) {
		dir = d
		return &playerdb.Game{BoardID: board, Moves: 1}, nil
	}

	rr := h.do(http.MethodPost, "/v1/players/alice/games", `{"tournament_id":"spring"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	game := decodeBody[gameView](t, rr)
	assert.Equal(t, sharedtypes.BoardID("b-1"), game.BoardID)
	assert.Equal(t, string(playerservice.StrategyLeastLoaded), game.Strategy)

	rr = h.do(http.MethodPost, "/v1/players/alice/games/b-1/moves", `{"direction":"LEFT"}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, playerdomain.DirectionLeft, dir)

	rr = h.do(http.MethodPost, "/v1/players/alice/games/b-1/scores", `{"score":120,"final":true}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, final)
	assert.Equal(t, uint64(120), decodeBody[gameView](t, rr).Score)

	assert.Equal(t, []string{"CreateGame", "ApplyMove", "ReportScore"}, h.players.Trace())
}

func TestServer_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: apperrors.Validation("bad"), want: http.StatusBadRequest},
		{name: "authorization", err: apperrors.Authorization("cooldown"), want: http.StatusForbidden},
		{name: "not found", err: apperrors.NotFound("tournament"), want: http.StatusNotFound},
		{name: "state", err: apperrors.State("save", io.ErrUnexpectedEOF), want: http.StatusServiceUnavailable},
		{name: "closed", err: partition.ErrClosed, want: http.StatusServiceUnavailable},
		{name: "unknown", err: io.EOF, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Options{})
			h.tournaments.PinFunc = func(context.Context, sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error) {
				return nil, tt.err
			}
			rr := h.do(http.MethodPost, "/v1/tournaments/spring/pin", "")
			assert.Equal(t, tt.want, rr.Code)
			body := decodeBody[map[string]string](t, rr)
			assert.Equal(t, apperrors.Kind(tt.err), body["kind"])
		})
	}
}

func TestServer_RejectsBadInput(t *testing.T) {
	h := newHarness(t, Options{})

	tests := []struct {
		name, method, path, body string
	}{
		{name: "unknown field", method: http.MethodPost, path: "/v1/tournaments", body: `{"nmae":"x"}`},
		{name: "malformed json", method: http.MethodPost, path: "/v1/tournaments", body: `{`},
		{name: "unparseable window", method: http.MethodPost, path: "/v1/tournaments", body: `{"name":"x","start":"qwxz"}`},
		{name: "shard window from caller", method: http.MethodPost, path: "/v1/tournaments/spring/shards", body: `{"start":"in 3 hours","end":"in 1 hour"}`},
		{name: "unknown direction", method: http.MethodPost, path: "/v1/players/alice/games/b-1/moves", body: `{"direction":"sideways"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := h.do(tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
		})
	}
	assert.Empty(t, h.tournaments.Trace())
	assert.Empty(t, h.shards.Specs)
	assert.Empty(t, h.players.Trace())
}

func TestServer_RateLimit(t *testing.T) {
	h := newHarness(t, Options{RateLimit: 1, RateBurst: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		codes = append(codes, h.do(http.MethodPost, "/v1/tournaments/spring/pin", "").Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	// Health checks sit outside the limited group.
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/healthz", "").Code)
}

func TestIPRateLimiter_PrunesIdleEntries(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	clock := fixedNow
	l.now = func() time.Time { return clock }

	for i := 0; i <= cleanupThreshold; i++ {
		l.GetLimiter(strings.Repeat("x", i+1))
	}
	require.Equal(t, cleanupThreshold+1, l.Len())

	clock = clock.Add(maxIdleAge + time.Minute)
	l.GetLimiter("fresh")
	assert.Equal(t, 1, l.Len())
}
