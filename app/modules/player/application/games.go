package playerservice

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	playerdomain "github.com/Black-And-White-Club/shardboard/app/modules/player/domain"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/google/uuid"
)

type gameResult = results.OperationResult[*playerdb.Game, error]

// CreateGame picks a shard for a new board and tells both the shard and the
// leaderboard about it. A tournament without shards gets one named after the
// player first. Cursors and the game record are only saved once both sends
// went through.
func (s *PlayerService) CreateGame(ctx context.Context, player sharedtypes.PlayerID, tournamentID sharedtypes.TournamentID, now sharedtypes.Timestamp) (results.OperationResult[GameResult, error], error) {
	now = orNow(now)
	return mutate(s, ctx, "CreateGame", player, func(ctx context.Context, state *playerdb.PlayerState) (GameResult, bool, error) {
		if tournamentID == "" {
			return GameResult{}, false, apperrors.Validation("tournament id is required")
		}

		desc, _, err := s.descriptor(ctx, state, tournamentID)
		if err != nil {
			return GameResult{}, false, err
		}
		if desc == nil {
			return GameResult{}, false, apperrors.NotFound("tournament %s is not published", tournamentID)
		}
		if status := effectiveStatus(desc, now); status != sharedtypes.TournamentStatusActive {
			return GameResult{}, false, apperrors.Validation("tournament %s is %s", tournamentID, status)
		}

		samples, err := s.workloads(ctx, state, desc.ShardIDs)
		if err != nil {
			return GameResult{}, false, err
		}
		shardID, strategy := SelectShard(desc.ShardIDs, samples, player)
		if strategy == StrategySelf {
			if s.shards == nil {
				return GameResult{}, false, apperrors.Validation("tournament %s has no shards yet", tournamentID)
			}
			if err := s.shards.ProvisionShard(ctx, shardID, tournamentID, now); err != nil {
				return GameResult{}, false, err
			}
		}
		if s.metrics != nil {
			s.metrics.RecordShardSelection(ctx, string(strategy))
		}

		boardID := sharedtypes.BoardID(uuid.NewString())
		notice := events.NewGameNotice{
			TournamentID: tournamentID,
			Player:       player,
			BoardID:      boardID,
			ShardID:      shardID,
			Timestamp:    now,
		}
		if err := s.sender.Send(ctx, events.ShardNewGameNoticeV1, shardID.String(), notice); err != nil {
			return GameResult{}, false, apperrors.State("notify shard", err)
		}
		if err := s.sender.Send(ctx, events.LeaderboardNewGameNoticeV1, tournamentID.String(), notice); err != nil {
			return GameResult{}, false, apperrors.State("notify leaderboard", err)
		}

		state.Games[boardID] = &playerdb.Game{
			BoardID:      boardID,
			TournamentID: tournamentID,
			ShardID:      shardID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		s.logger.InfoContext(ctx, "Game created",
			attr.PlayerID("player_id", player),
			attr.TournamentID("tournament_id", tournamentID),
			attr.ShardID("shard_id", shardID),
			attr.BoardID("board_id", boardID),
			attr.String("strategy", string(strategy)),
			attr.ExtractCorrelationID(ctx),
		)
		return GameResult{BoardID: boardID, ShardID: shardID, Strategy: strategy}, true, nil
	})
}

// ReportScore sends the score of one of the player's boards to its shard. A
// final report closes the game.
func (s *PlayerService) ReportScore(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, score uint64, isFinal bool, now sharedtypes.Timestamp) (gameResult, error) {
	now = orNow(now)
	return mutate(s, ctx, "ReportScore", player, func(ctx context.Context, state *playerdb.PlayerState) (*playerdb.Game, bool, error) {
		game, err := openGame(state, board)
		if err != nil {
			return nil, false, err
		}
		if err := s.report(ctx, player, game, score, isFinal, now); err != nil {
			return nil, false, err
		}
		return game, true, nil
	})
}

// ApplyMove plays dir on a board and reports the resulting score. A move
// that ends the game is reported as final.
func (s *PlayerService) ApplyMove(ctx context.Context, player sharedtypes.PlayerID, board sharedtypes.BoardID, dir playerdomain.Direction, now sharedtypes.Timestamp) (gameResult, error) {
	now = orNow(now)
	return mutate(s, ctx, "ApplyMove", player, func(ctx context.Context, state *playerdb.PlayerState) (*playerdb.Game, bool, error) {
		if s.engine == nil {
			return nil, false, apperrors.Validation("no game engine configured")
		}
		game, err := openGame(state, board)
		if err != nil {
			return nil, false, err
		}

		next, score, over, err := s.engine.ApplyMove(game.Board, dir)
		if err != nil {
			return nil, false, apperrors.Validation("move %s rejected: %v", dir, err)
		}
		if err := s.report(ctx, player, game, score, over, now); err != nil {
			return nil, false, err
		}
		game.Board = next
		game.Moves++
		return game, true, nil
	})
}

// report sends a ScoreUpdate and records it on the game.
func (s *PlayerService) report(ctx context.Context, player sharedtypes.PlayerID, game *playerdb.Game, score uint64, isFinal bool, now sharedtypes.Timestamp) error {
	update := events.ScoreUpdate{
		TournamentID: game.TournamentID,
		Player:       player,
		BoardID:      game.BoardID,
		Score:        score,
		IsFinal:      isFinal,
		Timestamp:    now,
	}
	if err := s.sender.Send(ctx, events.ShardScoreUpdateV1, game.ShardID.String(), update); err != nil {
		return apperrors.State("send score update", err)
	}

	game.Score = score
	game.Finished = isFinal
	game.UpdatedAt = now

	s.logger.DebugContext(ctx, "Score reported",
		attr.PlayerID("player_id", player),
		attr.ShardID("shard_id", game.ShardID),
		attr.BoardID("board_id", game.BoardID),
		attr.Uint64("score", score),
		attr.Bool("is_final", isFinal),
	)
	return nil
}

func openGame(state *playerdb.PlayerState, board sharedtypes.BoardID) (*playerdb.Game, error) {
	if board == "" {
		return nil, apperrors.Validation("board id is required")
	}
	game, ok := state.Games[board]
	if !ok {
		return nil, apperrors.NotFound("board %s not found", board)
	}
	if game.Finished {
		return nil, apperrors.Validation("board %s is finished", board)
	}
	return game, nil
}
