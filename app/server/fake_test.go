package server

import (
	"context"

	leaderboardservice "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/application"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	playerservice "github.com/Black-And-White-Club/shardboard/app/modules/player/application"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	shardservice "github.com/Black-And-White-Club/shardboard/app/modules/shard/application"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// FakeTournaments records calls and answers with the configured funcs.
type FakeTournaments struct {
	trace []string

	CreateFunc func(ctx context.Context, spec leaderboardservice.TournamentSpec) (*leaderboarddb.LeaderboardState, error)
	UpdateFunc func(ctx context.Context, id sharedtypes.TournamentID, name, description string) (*leaderboarddb.LeaderboardState, error)
	PinFunc    func(ctx context.Context, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error)
	EndFunc    func(ctx context.Context, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error)
}

func (f *FakeTournaments) Trace() []string { return f.trace }

func (f *FakeTournaments) CreateTournament(ctx context.Context, spec leaderboardservice.TournamentSpec) (*leaderboarddb.LeaderboardState, error) {
	f.trace = append(f.trace, "CreateTournament")
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, spec)
	}
	st := leaderboarddb.NewLeaderboardState(spec.ID, spec.Name, spec.Window, 0)
	st.Description = spec.Description
	st.Host = spec.Host
	return st, nil
}

func (f *FakeTournaments) UpdateTournament(ctx context.Context, id sharedtypes.TournamentID, name, description string) (*leaderboarddb.LeaderboardState, error) {
	f.trace = append(f.trace, "UpdateTournament")
	if f.UpdateFunc != nil {
		return f.UpdateFunc(ctx, id, name, description)
	}
	st := leaderboarddb.NewLeaderboardState(id, name, sharedtypes.Window{}, 0)
	st.Description = description
	return st, nil
}

func (f *FakeTournaments) TogglePin(ctx context.Context, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error) {
	f.trace = append(f.trace, "TogglePin")
	if f.PinFunc != nil {
		return f.PinFunc(ctx, id)
	}
	st := leaderboarddb.NewLeaderboardState(id, "pinned", sharedtypes.Window{}, 0)
	st.Pinned = true
	return st, nil
}

func (f *FakeTournaments) EndTournament(ctx context.Context, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error) {
	f.trace = append(f.trace, "EndTournament")
	if f.EndFunc != nil {
		return f.EndFunc(ctx, id)
	}
	st := leaderboarddb.NewLeaderboardState(id, "ended", sharedtypes.Window{}, 0)
	st.Ended = true
	return st, nil
}

// FakeShards provisions shards in memory.
type FakeShards struct {
	Specs      []shardservice.ShardSpec
	CreateFunc func(ctx context.Context, spec shardservice.ShardSpec) (*sharddb.ShardState, error)
}

func (f *FakeShards) CreateShard(ctx context.Context, spec shardservice.ShardSpec) (*sharddb.ShardState, error) {
	f.Specs = append(f.Specs, spec)
	if f.CreateFunc != nil {
		return f.CreateFunc(ctx, spec)
	}
	return sharddb.NewShardState(spec.ShardID, spec.TournamentID, sharedtypes.Window{}), nil
}

// FakePlayers answers player calls with the configured funcs.
type FakePlayers struct {
	trace []string

	CreateGameFunc  func(ctx context.Context, player sharedtypes.PlayerID, tid sharedtypes.TournamentID) (playerservice.GameResult, error)
	ReportScoreFunc func(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, score uint64, isFinal bool) (*playerdb.Game, error)
	ApplyMoveFunc   func(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, dir playerdomain.Direction) (*playerdb.Game, error)
}

func (f *FakePlayers) Trace() []string { return f.trace }

func (f *FakePlayers) CreateGame(ctx context.Context, player sharedtypes.PlayerID, tid sharedtypes.TournamentID) (playerservice.GameResult, error) {
	f.trace = append(f.trace, "CreateGame")
	if f.CreateGameFunc != nil {
		return f.CreateGameFunc(ctx, player, tid)
	}
	return playerservice.GameResult{BoardID: "b-1", ShardID: "s-1", Strategy: playerservice.StrategyLeastLoaded}, nil
}

func (f *FakePlayers) ReportScore(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, score uint64, isFinal bool) (*playerdb.Game, error) {
	f.trace = append(f.trace, "ReportScore")
	if f.ReportScoreFunc != nil {
		return f.ReportScoreFunc(ctx, player, board, score, isFinal)
	}
	return &playerdb.Game{BoardID: board, ShardID: "s-1", Score: score, Finished: isFinal}, nil
}

func (f *FakePlayers) ApplyMove(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, dir playerdomain.Direction) (*playerdb.Game, error) {
	f.trace = append(f.trace, "ApplyMove")
	if f.ApplyMoveFunc != nil {
		return f.ApplyMoveFunc(ctx, player, board, dir)
	}
	return &playerdb.Game{BoardID: board, ShardID: "s-1", Moves: 1}, nil
}
