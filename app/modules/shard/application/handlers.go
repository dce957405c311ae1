package shardservice

import (
	"context"
	"errors"
	"maps"

	"github.com/Black-And-White-Club/shardboard/app/events"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// Flush reasons, used as metric labels.
const (
	FlushReasonFinal     = "final"
	FlushReasonThreshold = "threshold"
	FlushReasonTrigger   = "trigger"
	FlushReasonRetire    = "retire"
)

type mutation func(ctx context.Context, state *sharddb.ShardState) (Outcome, error)

// update loads the shard, checks the tournament pairing, applies fn and
// saves. Nothing is saved when fn fails, so a failed send leaves pending
// data exactly as it was.
func (s *ShardService) update(
	ctx context.Context,
	operationName string,
	shardID sharedtypes.ShardID,
	tournamentID sharedtypes.TournamentID,
	fn mutation,
) (results.OperationResult[Outcome, error], error) {
	updateTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[Outcome, error], error) {
		state, err := s.repo.Get(ctx, db, shardID)
		if err != nil {
			if errors.Is(err, sharddb.ErrNotFound) {
				return results.FailureResult[Outcome, error](apperrors.Validation("unknown shard %s", shardID)), nil
			}
			return results.OperationResult[Outcome, error]{}, apperrors.State("load shard", err)
		}
		if state.TournamentID != tournamentID {
			return results.FailureResult[Outcome, error](apperrors.Validation(
				"shard %s belongs to tournament %s, not %s", shardID, state.TournamentID, tournamentID,
			)), nil
		}
		ensureMaps(state)

		outcome, err := fn(ctx, state)
		if err != nil {
			if apperrors.IsRetryable(err) {
				return results.OperationResult[Outcome, error]{}, err
			}
			return results.FailureResult[Outcome, error](err), nil
		}

		if err := s.repo.Save(ctx, db, state); err != nil {
			return results.OperationResult[Outcome, error]{}, apperrors.State("save shard", err)
		}
		return results.SuccessResult[Outcome, error](outcome), nil
	}

	return withTelemetry(s, ctx, operationName, shardID.String(), func(ctx context.Context) (results.OperationResult[Outcome, error], error) {
		return runInTx(s, ctx, updateTx)
	})
}

// HandleScoreUpdate buffers a player's score and flushes when the report is
// final or the shard has seen enough reports.
func (s *ShardService) HandleScoreUpdate(ctx context.Context, shardID sharedtypes.ShardID, m events.ScoreUpdate) (results.OperationResult[Outcome, error], error) {
	return s.update(ctx, "HandleScoreUpdate", shardID, m.TournamentID, func(ctx context.Context, state *sharddb.ShardState) (Outcome, error) {
		var out Outcome
		if err := s.checkActive(state, m.Player, m.BoardID, m.Timestamp); err != nil {
			return out, err
		}

		registered, err := s.register(ctx, state, m.Player, m.Timestamp)
		if err != nil {
			return out, err
		}
		out.Registered = registered

		if cur, ok := state.PendingScores[m.Player]; !ok || m.Score > cur {
			state.PendingScores[m.Player] = m.Score
		}
		state.PendingBoards[m.Player] = m.BoardID
		state.FlushCounter++
		state.RecentPlayers[m.Player] = true
		state.ReportsSinceSample++

		reason := ""
		switch {
		case m.IsFinal:
			reason = FlushReasonFinal
		case state.FlushCounter >= state.DistinctPlayers()*s.cfg.FlushFactor:
			reason = FlushReasonThreshold
		}
		if reason != "" {
			n, err := s.flush(ctx, state, reason, m.Timestamp)
			if err != nil {
				return out, err
			}
			out.Flushed, out.FlushedScores = true, n
		}

		if state.WorkloadCursor == 0 || state.ReportsSinceSample >= s.cfg.WorkloadSampleEvery {
			if err := s.publishWorkload(ctx, state, m.Timestamp); err != nil {
				return out, err
			}
			out.Sampled = true
		}
		return out, nil
	})
}

// HandleNewGameNotice registers the player behind a new board.
func (s *ShardService) HandleNewGameNotice(ctx context.Context, shardID sharedtypes.ShardID, m events.NewGameNotice) (results.OperationResult[Outcome, error], error) {
	return s.update(ctx, "HandleNewGameNotice", shardID, m.TournamentID, func(ctx context.Context, state *sharddb.ShardState) (Outcome, error) {
		var out Outcome
		if m.ShardID != "" && m.ShardID != shardID {
			return out, apperrors.Validation("notice for shard %s delivered to %s", m.ShardID, shardID)
		}
		if err := s.checkActive(state, m.Player, m.BoardID, m.Timestamp); err != nil {
			return out, err
		}

		registered, err := s.register(ctx, state, m.Player, m.Timestamp)
		if err != nil {
			return out, err
		}
		out.Registered = registered
		state.BoardsSeen++
		state.RecentPlayers[m.Player] = true

		if state.WorkloadCursor == 0 {
			if err := s.publishWorkload(ctx, state, m.Timestamp); err != nil {
				return out, err
			}
			out.Sampled = true
		}
		return out, nil
	})
}

// HandleTriggerShardAggregation flushes whatever is pending and samples
// workload. Sent by the leaderboard after an accepted trigger request.
func (s *ShardService) HandleTriggerShardAggregation(ctx context.Context, shardID sharedtypes.ShardID, m events.TriggerShardAggregation) (results.OperationResult[Outcome, error], error) {
	return s.update(ctx, "HandleTriggerShardAggregation", shardID, m.TournamentID, func(ctx context.Context, state *sharddb.ShardState) (Outcome, error) {
		var out Outcome
		n, err := s.flush(ctx, state, FlushReasonTrigger, m.Timestamp)
		if err != nil {
			return out, err
		}
		out.Flushed, out.FlushedScores = n > 0, n

		if state.Retired {
			return out, nil
		}
		if err := s.publishWorkload(ctx, state, m.Timestamp); err != nil {
			return out, err
		}
		out.Sampled = true
		return out, nil
	})
}

// HandleRetireShard flushes leftovers and takes the shard out of
// aggregation. The state is kept.
func (s *ShardService) HandleRetireShard(ctx context.Context, shardID sharedtypes.ShardID, m events.RetireShard) (results.OperationResult[Outcome, error], error) {
	return s.update(ctx, "HandleRetireShard", shardID, m.TournamentID, func(ctx context.Context, state *sharddb.ShardState) (Outcome, error) {
		var out Outcome
		if state.Retired {
			return out, nil
		}
		n, err := s.flush(ctx, state, FlushReasonRetire, m.Timestamp)
		if err != nil {
			return out, err
		}
		out.Flushed, out.FlushedScores = n > 0, n
		state.Retired = true

		s.logger.InfoContext(ctx, "Shard retired",
			attr.ShardID("shard_id", state.ShardID),
			attr.TournamentID("tournament_id", state.TournamentID),
			attr.Uint64("flush_seq", state.FlushSeq),
		)
		return out, nil
	})
}

func (s *ShardService) checkActive(state *sharddb.ShardState, player sharedtypes.PlayerID, board sharedtypes.BoardID, ts sharedtypes.Timestamp) error {
	switch {
	case state.Retired:
		return apperrors.Validation("shard %s is retired", state.ShardID)
	case player == "":
		return apperrors.Validation("player is required")
	case board == "":
		return apperrors.Validation("board id is required")
	case ts != 0 && !state.Window().Contains(ts):
		return apperrors.Validation("timestamp %d outside tournament window", ts)
	}
	return nil
}

// register adds player to the shard. The shard's first player is nominated
// for the leaderboard's triggerer pool.
func (s *ShardService) register(ctx context.Context, state *sharddb.ShardState, player sharedtypes.PlayerID, ts sharedtypes.Timestamp) (bool, error) {
	if state.Players[player] {
		return false, nil
	}
	if len(state.Players) == 0 {
		candidate := events.TriggererCandidate{
			TournamentID: state.TournamentID,
			ShardID:      state.ShardID,
			Player:       player,
			Timestamp:    ts,
		}
		if err := s.sender.Send(ctx, events.LeaderboardTriggererCandidateV1, state.TournamentID.String(), candidate); err != nil {
			return false, apperrors.State("send triggerer candidate", err)
		}
	}
	state.Players[player] = true
	return true, nil
}

// flush hands the pending batch to the leaderboard and clears it only once
// the send went through. It returns the number of flushed players.
func (s *ShardService) flush(ctx context.Context, state *sharddb.ShardState, reason string, ts sharedtypes.Timestamp) (int, error) {
	if len(state.PendingScores) == 0 {
		return 0, nil
	}

	report := events.FlushReport{
		TournamentID: state.TournamentID,
		ShardID:      state.ShardID,
		FlushSeq:     state.FlushSeq,
		Scores:       maps.Clone(state.PendingScores),
		BoardIDs:     maps.Clone(state.PendingBoards),
		Timestamp:    ts,
	}
	if err := s.sender.Send(ctx, events.LeaderboardFlushReportedV1, state.TournamentID.String(), report); err != nil {
		if s.metrics != nil {
			s.metrics.RecordFlushFailure(ctx)
		}
		return 0, apperrors.State("send flush report", err)
	}

	n := len(report.Scores)
	state.PendingScores = map[sharedtypes.PlayerID]uint64{}
	state.PendingBoards = map[sharedtypes.PlayerID]sharedtypes.BoardID{}
	state.FlushCounter = 0
	state.FlushSeq++

	if s.metrics != nil {
		s.metrics.RecordFlush(ctx, reason, n)
	}
	s.logger.DebugContext(ctx, "Shard flushed",
		attr.ShardID("shard_id", state.ShardID),
		attr.String("reason", reason),
		attr.Int("entries", n),
		attr.Uint64("flush_seq", report.FlushSeq),
	)
	return n, nil
}

// publishWorkload appends a workload sample to the shard's discovery channel.
func (s *ShardService) publishWorkload(ctx context.Context, state *sharddb.ShardState, ts sharedtypes.Timestamp) error {
	fact := events.ShardWorkloadFact{
		ShardID:             state.ShardID,
		ActivePlayersRecent: uint32(len(state.RecentPlayers)),
		TotalPlayers:        state.DistinctPlayers(),
		SampledAt:           ts,
	}
	key := discoverydb.Key{
		Publisher: sharedtypes.PartitionID(state.ShardID),
		Topic:     events.DiscoveryTopicWorkload,
	}
	next, err := s.discovery.Publish(ctx, key, state.WorkloadCursor, fact)
	if err != nil {
		return apperrors.State("publish workload", err)
	}

	state.WorkloadCursor = next
	state.RecentPlayers = map[sharedtypes.PlayerID]bool{}
	state.ReportsSinceSample = 0
	if s.metrics != nil {
		s.metrics.RecordWorkloadSample(ctx)
	}
	return nil
}

func ensureMaps(state *sharddb.ShardState) {
	if state.PendingScores == nil {
		state.PendingScores = map[sharedtypes.PlayerID]uint64{}
	}
	if state.PendingBoards == nil {
		state.PendingBoards = map[sharedtypes.PlayerID]sharedtypes.BoardID{}
	}
	if state.Players == nil {
		state.Players = map[sharedtypes.PlayerID]bool{}
	}
	if state.RecentPlayers == nil {
		state.RecentPlayers = map[sharedtypes.PlayerID]bool{}
	}
}
