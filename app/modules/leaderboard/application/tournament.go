package leaderboardservice

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	leaderboarddb "github.com/Black-And-White-Club/shardboard/app/modules/leaderboard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

type stateResult = results.OperationResult[*leaderboarddb.LeaderboardState, error]

// CreateTournament creates a tournament. The id must not exist yet.
func (s *LeaderboardService) CreateTournament(ctx context.Context, spec TournamentSpec) (stateResult, error) {
	createTx := func(ctx context.Context, db bun.IDB) (stateResult, error) {
		return s.createTournamentLogic(ctx, db, spec)
	}

	return withTelemetry(s, ctx, "CreateTournament", spec.ID.String(), func(ctx context.Context) (stateResult, error) {
		result, err := runInTx(s, ctx, createTx)
		if err != nil || !result.IsSuccess() {
			return result, err
		}
		s.saveCursor(ctx, *result.Success)
		return result, nil
	})
}

// createTournamentLogic stores the tournament before anything leaves the
// service. A failed schedule or publish removes it again.
func (s *LeaderboardService) createTournamentLogic(ctx context.Context, db bun.IDB, spec TournamentSpec) (stateResult, error) {
	spec.Name = strings.TrimSpace(spec.Name)
	if spec.ID == "" || spec.Name == "" {
		return results.FailureResult[*leaderboarddb.LeaderboardState, error](apperrors.Validation("tournament id and name are required")), nil
	}
	if err := spec.Window.Validate(); err != nil {
		return results.FailureResult[*leaderboarddb.LeaderboardState, error](apperrors.Validation("%v", err)), nil
	}

	_, err := s.repo.Get(ctx, db, spec.ID)
	switch {
	case err == nil:
		return results.FailureResult[*leaderboarddb.LeaderboardState, error](apperrors.Validation("tournament %s already exists", spec.ID)), nil
	case !errors.Is(err, leaderboarddb.ErrNotFound):
		return stateResult{}, apperrors.State("load tournament", err)
	}

	now := orNow(spec.Now)
	state := leaderboarddb.NewLeaderboardState(spec.ID, spec.Name, spec.Window, s.cfg.PoolCapacity)
	state.Description = spec.Description
	state.Host = spec.Host

	if err := s.repo.Create(ctx, db, state); err != nil {
		if errors.Is(err, leaderboarddb.ErrAlreadyExists) {
			return results.FailureResult[*leaderboarddb.LeaderboardState, error](apperrors.Validation("tournament %s already exists", spec.ID)), nil
		}
		return stateResult{}, apperrors.State("create tournament", err)
	}

	if s.scheduler != nil {
		if err := s.scheduler.ScheduleLifecycle(ctx, spec.ID, spec.Window); err != nil {
			s.discard(ctx, db, spec.ID, false)
			return stateResult{}, apperrors.State("schedule lifecycle", err)
		}
	}

	if err := s.publishDescriptor(ctx, state, now); err != nil {
		s.discard(ctx, db, spec.ID, true)
		return stateResult{}, err
	}

	s.logger.InfoContext(ctx, "Tournament created",
		attr.TournamentID("tournament_id", spec.ID),
		attr.String("name", spec.Name),
		attr.Timestamp("window_start", spec.Window.Start),
		attr.Timestamp("window_end", spec.Window.End),
		attr.ExtractCorrelationID(ctx),
	)

	return results.SuccessResult[*leaderboarddb.LeaderboardState, error](state), nil
}

// discard removes a tournament whose creation failed after it was stored.
// Outside a transaction this is the only undo.
func (s *LeaderboardService) discard(ctx context.Context, db bun.IDB, id sharedtypes.TournamentID, scheduled bool) {
	if scheduled && s.scheduler != nil {
		if err := s.scheduler.CancelTournamentJobs(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "Failed to cancel lifecycle jobs of discarded tournament",
				attr.TournamentID("tournament_id", id),
				attr.Error(err),
			)
		}
	}
	if err := s.repo.Delete(ctx, db, id); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete discarded tournament",
			attr.TournamentID("tournament_id", id),
			attr.Error(err),
		)
	}
}

// saveCursor stores the descriptor cursor advanced by the first publish.
// A stale cursor only costs the next publish a skip forward.
func (s *LeaderboardService) saveCursor(ctx context.Context, state *leaderboarddb.LeaderboardState) {
	if err := s.repo.Save(ctx, nil, state); err != nil {
		s.logger.WarnContext(ctx, "Failed to save descriptor cursor",
			attr.TournamentID("tournament_id", state.TournamentID),
			attr.Error(err),
		)
	}
}

// UpdateTournament changes the display fields of a tournament.
func (s *LeaderboardService) UpdateTournament(ctx context.Context, id sharedtypes.TournamentID, name, description string, now sharedtypes.Timestamp) (stateResult, error) {
	return s.modify(ctx, "UpdateTournament", id, func(ctx context.Context, state *leaderboarddb.LeaderboardState) error {
		if name = strings.TrimSpace(name); name != "" {
			state.Name = name
		}
		state.Description = description
		return s.publishDescriptor(ctx, state, orNow(now))
	})
}

// TogglePin flips whether the tournament is listed first.
func (s *LeaderboardService) TogglePin(ctx context.Context, id sharedtypes.TournamentID, now sharedtypes.Timestamp) (stateResult, error) {
	return s.modify(ctx, "TogglePin", id, func(ctx context.Context, state *leaderboarddb.LeaderboardState) error {
		state.Pinned = !state.Pinned
		return s.publishDescriptor(ctx, state, orNow(now))
	})
}

// EndTournament ends the tournament. Ending twice is a no-op.
func (s *LeaderboardService) EndTournament(ctx context.Context, id sharedtypes.TournamentID, now sharedtypes.Timestamp) (stateResult, error) {
	return s.modify(ctx, "EndTournament", id, func(ctx context.Context, state *leaderboarddb.LeaderboardState) error {
		_, err := s.end(ctx, state, orNow(now))
		return err
	})
}

// PublishDescriptor republishes the current descriptor of a tournament.
func (s *LeaderboardService) PublishDescriptor(ctx context.Context, id sharedtypes.TournamentID, now sharedtypes.Timestamp) (results.OperationResult[events.TournamentDescriptor, error], error) {
	var descriptor events.TournamentDescriptor
	result, err := s.modify(ctx, "PublishDescriptor", id, func(ctx context.Context, state *leaderboarddb.LeaderboardState) error {
		ts := orNow(now)
		if err := s.publishDescriptor(ctx, state, ts); err != nil {
			return err
		}
		descriptor = state.Descriptor(ts)
		return nil
	})
	if err != nil {
		return results.OperationResult[events.TournamentDescriptor, error]{}, err
	}
	if result.IsFailure() {
		return results.FailureResult[events.TournamentDescriptor, error](*result.Failure), nil
	}
	return results.SuccessResult[events.TournamentDescriptor, error](descriptor), nil
}

// modify runs a user operation against a loaded tournament and saves it.
func (s *LeaderboardService) modify(
	ctx context.Context,
	operationName string,
	id sharedtypes.TournamentID,
	fn func(ctx context.Context, state *leaderboarddb.LeaderboardState) error,
) (stateResult, error) {
	modifyTx := func(ctx context.Context, db bun.IDB) (stateResult, error) {
		state, err := s.load(ctx, db, id)
		if err != nil {
			if apperrors.IsRetryable(err) {
				return stateResult{}, err
			}
			return results.FailureResult[*leaderboarddb.LeaderboardState, error](err), nil
		}

		if err := fn(ctx, state); err != nil {
			if apperrors.IsRetryable(err) {
				return stateResult{}, err
			}
			return results.FailureResult[*leaderboarddb.LeaderboardState, error](err), nil
		}

		state.UpdatedAt = time.Now().UTC()
		if err := s.repo.Save(ctx, db, state); err != nil {
			return stateResult{}, apperrors.State("save tournament", err)
		}
		return results.SuccessResult[*leaderboarddb.LeaderboardState, error](state), nil
	}

	return withTelemetry(s, ctx, operationName, id.String(), func(ctx context.Context) (stateResult, error) {
		return runInTx(s, ctx, modifyTx)
	})
}

func (s *LeaderboardService) load(ctx context.Context, db bun.IDB, id sharedtypes.TournamentID) (*leaderboarddb.LeaderboardState, error) {
	if id == "" {
		return nil, apperrors.Validation("tournament id is required")
	}
	state, err := s.repo.Get(ctx, db, id)
	if err != nil {
		if errors.Is(err, leaderboarddb.ErrNotFound) {
			return nil, apperrors.NotFound("tournament %s", id)
		}
		return nil, apperrors.State("load tournament", err)
	}
	return state, nil
}

// end marks the tournament ended, retires every registered shard and
// republishes the descriptor. It returns the number of retired shards.
func (s *LeaderboardService) end(ctx context.Context, state *leaderboarddb.LeaderboardState, now sharedtypes.Timestamp) (int, error) {
	if state.Ended {
		return 0, nil
	}
	state.Ended = true

	for _, shardID := range state.ShardRegistry {
		retire := events.RetireShard{TournamentID: state.TournamentID, Timestamp: now}
		if err := s.sender.Send(ctx, events.ShardRetireRequestedV1, shardID.String(), retire); err != nil {
			return 0, apperrors.State("send retire shard", err)
		}
	}

	if s.scheduler != nil {
		if err := s.scheduler.CancelTournamentJobs(ctx, state.TournamentID); err != nil {
			s.logger.WarnContext(ctx, "Failed to cancel lifecycle jobs",
				attr.TournamentID("tournament_id", state.TournamentID),
				attr.Error(err),
			)
		}
	}

	if err := s.publishDescriptor(ctx, state, now); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "Tournament ended",
		attr.TournamentID("tournament_id", state.TournamentID),
		attr.Int("shards_retired", len(state.ShardRegistry)),
		attr.Uint64("flushes_applied", state.FlushesApplied),
		attr.ExtractCorrelationID(ctx),
	)
	return len(state.ShardRegistry), nil
}

// publishDescriptor appends the tournament's descriptor to its discovery
// channel and advances the stored cursor.
func (s *LeaderboardService) publishDescriptor(ctx context.Context, state *leaderboarddb.LeaderboardState, now sharedtypes.Timestamp) error {
	fact := events.ActiveTournamentsFact{
		Tournaments: []events.TournamentDescriptor{state.Descriptor(now)},
		Timestamp:   now,
	}
	key := discoverydb.Key{
		Publisher: sharedtypes.PartitionID(state.TournamentID),
		Topic:     events.DiscoveryTopicActiveTournaments,
	}
	next, err := s.discovery.Publish(ctx, key, state.DescriptorCursor, fact)
	if err != nil {
		if apperrors.IsRetryable(err) {
			return err
		}
		return apperrors.State("publish descriptor", err)
	}
	state.DescriptorCursor = next
	if s.metrics != nil {
		s.metrics.RecordDescriptorPublished(ctx)
	}
	return nil
}

func orNow(ts sharedtypes.Timestamp) sharedtypes.Timestamp {
	if ts == 0 {
		return sharedtypes.TimestampFrom(time.Now())
	}
	return ts
}
