package leaderboardservice

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	leaderboarddomain "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/domain"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

type outcomeResult = results.OperationResult[Outcome, error]

type mutation func(ctx context.Context, state *leaderboarddb.LeaderboardState) (Outcome, error)

// update loads the tournament addressed by a message, applies fn and saves.
// A message naming another tournament is rejected before anything is loaded.
func (s *LeaderboardService) update(
	ctx context.Context,
	operationName string,
	tournamentID sharedtypes.TournamentID,
	msgTournament sharedtypes.TournamentID,
	fn mutation,
) (outcomeResult, error) {
	updateTx := func(ctx context.Context, db bun.IDB) (outcomeResult, error) {
		if msgTournament != tournamentID {
			return results.FailureResult[Outcome, error](apperrors.Validation(
				"message for tournament %s delivered to %s", msgTournament, tournamentID,
			)), nil
		}

		state, err := s.load(ctx, db, tournamentID)
		if err != nil {
			if apperrors.IsRetryable(err) {
				return outcomeResult{}, err
			}
			return results.FailureResult[Outcome, error](err), nil
		}

		outcome, err := fn(ctx, state)
		if err != nil {
			if apperrors.IsRetryable(err) {
				return outcomeResult{}, err
			}
			return results.FailureResult[Outcome, error](err), nil
		}

		if err := s.repo.Save(ctx, db, state); err != nil {
			return outcomeResult{}, apperrors.State("save tournament", err)
		}
		return results.SuccessResult[Outcome, error](outcome), nil
	}

	return withTelemetry(s, ctx, operationName, tournamentID.String(), func(ctx context.Context) (outcomeResult, error) {
		return runInTx(s, ctx, updateTx)
	})
}

// HandleFlushReport merges a shard's flushed scores into the standings.
func (s *LeaderboardService) HandleFlushReport(ctx context.Context, tournamentID sharedtypes.TournamentID, m events.FlushReport) (outcomeResult, error) {
	return s.update(ctx, "HandleFlushReport", tournamentID, m.TournamentID, func(ctx context.Context, state *leaderboarddb.LeaderboardState) (Outcome, error) {
		var out Outcome
		if !state.HasShard(m.ShardID) {
			s.logger.DebugContext(ctx, "Flush from unannounced shard",
				attr.TournamentID("tournament_id", tournamentID),
				attr.ShardID("shard_id", m.ShardID),
			)
		}

		out.Merge = leaderboarddomain.MergeFlush(&state.Standings, m)
		state.FlushesApplied++

		if s.metrics != nil {
			s.metrics.RecordMerge(ctx, out.Merge.Improved, out.Merge.Ignored)
		}
		s.logger.DebugContext(ctx, "Flush merged",
			attr.TournamentID("tournament_id", tournamentID),
			attr.ShardID("shard_id", m.ShardID),
			attr.Uint64("flush_seq", m.FlushSeq),
			attr.Int("improved", out.Merge.Improved),
			attr.Int("ignored", out.Merge.Ignored),
		)
		return out, nil
	})
}

// HandleNewGameNotice counts the player and board of a new game.
func (s *LeaderboardService) HandleNewGameNotice(ctx context.Context, tournamentID sharedtypes.TournamentID, m events.NewGameNotice) (outcomeResult, error) {
	return s.update(ctx, "HandleNewGameNotice", tournamentID, m.TournamentID, func(ctx context.Context, state *leaderboarddb.LeaderboardState) (Outcome, error) {
		var out Outcome
		if m.Player == "" || m.BoardID == "" {
			return out, apperrors.Validation("player and board id are required")
		}
		newPlayer, newBoard := state.Standings.RecordGame(m.Player, m.BoardID)
		if newPlayer {
			out.Merge.NewParticipants = 1
		}
		if newBoard {
			out.Merge.NewBoards = 1
		}
		return out, nil
	})
}

// HandleShardAnnouncement adds a shard to the registry. A shard announced
// after the tournament ended is retired straight away.
func (s *LeaderboardService) HandleShardAnnouncement(ctx context.Context, tournamentID sharedtypes.TournamentID, m events.ShardAnnouncement) (outcomeResult, error) {
	return s.update(ctx, "HandleShardAnnouncement", tournamentID, m.TournamentID, func(ctx context.Context, state *leaderboarddb.LeaderboardState) (Outcome, error) {
		var out Outcome
		if m.ShardID == "" {
			return out, apperrors.Validation("shard id is required")
		}
		if state.HasShard(m.ShardID) {
			return out, nil
		}

		if state.Ended {
			retire := events.RetireShard{TournamentID: tournamentID, Timestamp: m.Timestamp}
			if err := s.sender.Send(ctx, events.ShardRetireRequestedV1, m.ShardID.String(), retire); err != nil {
				return out, apperrors.State("send retire shard", err)
			}
			out.Retired = 1
		}

		state.ShardRegistry = append(state.ShardRegistry, m.ShardID)
		out.Registered = true
		if err := s.publishDescriptor(ctx, state, orNow(m.Timestamp)); err != nil {
			return out, err
		}
		out.Published = true

		s.logger.InfoContext(ctx, "Shard registered",
			attr.TournamentID("tournament_id", tournamentID),
			attr.ShardID("shard_id", m.ShardID),
			attr.Int("registry_size", len(state.ShardRegistry)),
		)
		return out, nil
	})
}

// HandleTriggererCandidate enrolls a shard's first player in the pool.
func (s *LeaderboardService) HandleTriggererCandidate(ctx context.Context, tournamentID sharedtypes.TournamentID, m events.TriggererCandidate) (outcomeResult, error) {
	return s.update(ctx, "HandleTriggererCandidate", tournamentID, m.TournamentID, func(ctx context.Context, state *leaderboarddb.LeaderboardState) (Outcome, error) {
		var out Outcome
		if m.Player == "" {
			return out, apperrors.Validation("candidate player is required")
		}
		if !state.Pool.AddCandidate(m.Player, m.Timestamp) {
			s.logger.DebugContext(ctx, "Triggerer candidate not enrolled",
				attr.TournamentID("tournament_id", tournamentID),
				attr.PlayerID("player_id", m.Player),
				attr.Int("pool_size", len(state.Pool.Members())),
			)
			return out, nil
		}
		out.Enrolled = true

		if err := s.publishDescriptor(ctx, state, orNow(m.Timestamp)); err != nil {
			return out, err
		}
		out.Published = true
		return out, nil
	})
}

// HandleTriggerAggregationRequest decides a trigger request. An accepted
// request fans out to every registered shard. Both outcomes produce a
// response for the requester.
func (s *LeaderboardService) HandleTriggerAggregationRequest(ctx context.Context, tournamentID sharedtypes.TournamentID, m events.TriggerAggregationRequest) (outcomeResult, error) {
	return s.update(ctx, "HandleTriggerAggregationRequest", tournamentID, m.TournamentID, func(ctx context.Context, state *leaderboarddb.LeaderboardState) (Outcome, error) {
		var out Outcome
		ts := orNow(m.Timestamp)

		decision := state.Pool.Authorize(m.RequesterID, ts, s.cfg.TriggerInterval, s.cfg.PromoteAfter)
		out.Decision = &decision
		if s.metrics != nil {
			s.metrics.RecordTriggerDecision(ctx, decision.Accepted, decision.Reason)
		}

		if decision.Accepted {
			state.LastTriggerBy = m.RequesterID
			state.TriggerCount++

			trigger := events.TriggerShardAggregation{TournamentID: tournamentID, Timestamp: ts}
			for _, shardID := range state.ShardRegistry {
				if err := s.sender.Send(ctx, events.ShardTriggerAggregationV1, shardID.String(), trigger); err != nil {
					return out, apperrors.State("send shard trigger", err)
				}
			}
			if len(state.ShardRegistry) == 0 {
				s.logger.InfoContext(ctx, "Trigger accepted with no registered shards",
					attr.TournamentID("tournament_id", tournamentID),
				)
			}

			if decision.Promoted {
				if s.metrics != nil {
					s.metrics.RecordPromotion(ctx)
				}
				s.logger.InfoContext(ctx, "Backup promoted to primary triggerer",
					attr.TournamentID("tournament_id", tournamentID),
					attr.PlayerID("player_id", m.RequesterID),
				)
			}

			if err := s.publishDescriptor(ctx, state, ts); err != nil {
				return out, err
			}
			out.Published = true
		} else {
			s.logger.WarnContext(ctx, "Trigger request rejected",
				attr.TournamentID("tournament_id", tournamentID),
				attr.PlayerID("player_id", m.RequesterID),
				attr.Timestamp("cooldown_until", decision.CooldownUntil),
				attr.Error(decision.Err()),
			)
		}

		out.Response = &events.TriggerAggregationResponse{
			TournamentID:  tournamentID,
			RequesterID:   m.RequesterID,
			Accepted:      decision.Accepted,
			Reason:        decision.Reason,
			CooldownUntil: decision.CooldownUntil,
			Timestamp:     ts,
		}
		return out, nil
	})
}

// HandleTournamentLifecycle applies a scheduled status change.
func (s *LeaderboardService) HandleTournamentLifecycle(ctx context.Context, tournamentID sharedtypes.TournamentID, m events.TournamentLifecycle) (outcomeResult, error) {
	return s.update(ctx, "HandleTournamentLifecycle", tournamentID, m.TournamentID, func(ctx context.Context, state *leaderboarddb.LeaderboardState) (Outcome, error) {
		var out Outcome
		now := orNow(m.Timestamp)

		switch m.Status {
		case sharedtypes.TournamentStatusActive:
			if state.Ended {
				return out, nil
			}
			// The job may fire a little before the window opens.
			if now < state.WindowStart {
				now = state.WindowStart
			}
			if err := s.publishDescriptor(ctx, state, now); err != nil {
				return out, err
			}
			out.Published = true
		case sharedtypes.TournamentStatusEnded:
			wasEnded := state.Ended
			n, err := s.end(ctx, state, now)
			if err != nil {
				return out, err
			}
			out.Retired, out.Published = n, !wasEnded
		default:
			return out, apperrors.Validation("unsupported lifecycle status %q", m.Status)
		}
		return out, nil
	})
}
