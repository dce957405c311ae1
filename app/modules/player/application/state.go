package playerservice

import (
	"context"
	"errors"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	playerdb "github.com/Black-And-White-Club/shardboard/app/modules/player/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// mutation changes a loaded player state. dirty reports whether the state
// must be saved.
type mutation[T any] func(ctx context.Context, state *playerdb.PlayerState) (out T, dirty bool, err error)

// mutate loads a player (or starts a fresh one), applies fn and saves when
// fn asks for it. Domain errors from fn become failure results.
func mutate[T any](
	s *PlayerService,
	ctx context.Context,
	operationName string,
	player sharedtypes.PlayerID,
	fn mutation[T],
) (results.OperationResult[T, error], error) {
	mutateTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[T, error], error) {
		if player == "" {
			return results.FailureResult[T, error](apperrors.Validation("player id is required")), nil
		}

		state, err := s.repo.Get(ctx, db, player)
		switch {
		case errors.Is(err, playerdb.ErrNotFound):
			state = playerdb.NewPlayerState(player)
		case err != nil:
			return results.OperationResult[T, error]{}, apperrors.State("load player", err)
		}
		state.Ensure()

		out, dirty, err := fn(ctx, state)
		if err != nil {
			if apperrors.IsRetryable(err) {
				return results.OperationResult[T, error]{}, err
			}
			return results.FailureResult[T, error](err), nil
		}

		if dirty {
			state.CountActive()
			state.UpdatedAt = time.Now().UTC()
			if err := s.repo.Save(ctx, db, state); err != nil {
				return results.OperationResult[T, error]{}, apperrors.State("save player", err)
			}
		}
		return results.SuccessResult[T, error](out), nil
	}

	return withTelemetry(s, ctx, operationName, player.String(), func(ctx context.Context) (results.OperationResult[T, error], error) {
		return runInTx(s, ctx, mutateTx)
	})
}

// descriptor refreshes the cached descriptor of a tournament from its
// leaderboard's discovery channel. It returns nil when the tournament has
// never published. changed reports whether the cache moved.
func (s *PlayerService) descriptor(ctx context.Context, state *playerdb.PlayerState, tournamentID sharedtypes.TournamentID) (desc *events.TournamentDescriptor, changed bool, err error) {
	cached := state.Descriptors[tournamentID]
	if cached == nil {
		cached = &playerdb.CachedDescriptor{}
	}

	key := discoverydb.Key{Publisher: sharedtypes.PartitionID(tournamentID), Topic: events.DiscoveryTopicActiveTournaments}
	fact, next, ok, err := discoveryservice.ReadLatest[events.ActiveTournamentsFact](ctx, s.reader, key, cached.Cursor)
	if err != nil {
		return cached.Descriptor, false, err
	}
	if ok {
		if d, found := fact.Find(tournamentID); found {
			cached.Descriptor = &d
		}
		cached.Cursor = next
		state.Descriptors[tournamentID] = cached
		changed = true
	}
	return cached.Descriptor, changed, nil
}

// workloads refreshes the cached workload sample of every shard listed.
func (s *PlayerService) workloads(ctx context.Context, state *playerdb.PlayerState, shardIDs []sharedtypes.ShardID) (map[sharedtypes.ShardID]*events.ShardWorkloadFact, error) {
	samples := make(map[sharedtypes.ShardID]*events.ShardWorkloadFact, len(shardIDs))
	for _, id := range shardIDs {
		cached := state.Workloads[id]
		if cached == nil {
			cached = &playerdb.CachedWorkload{}
		}

		key := discoverydb.Key{Publisher: sharedtypes.PartitionID(id), Topic: events.DiscoveryTopicWorkload}
		sample, next, ok, err := discoveryservice.ReadLatest[events.ShardWorkloadFact](ctx, s.reader, key, cached.Cursor)
		if err != nil {
			return nil, err
		}
		if ok {
			cached.Sample = &sample
			cached.Cursor = next
			state.Workloads[id] = cached
		}
		if cached.Sample != nil {
			samples[id] = cached.Sample
		}
	}
	return samples, nil
}

// effectiveStatus trusts an Ended descriptor and otherwise derives the status
// from the window, since descriptors are only republished on changes.
func effectiveStatus(d *events.TournamentDescriptor, now sharedtypes.Timestamp) sharedtypes.TournamentStatus {
	if d.Status == sharedtypes.TournamentStatusEnded {
		return sharedtypes.TournamentStatusEnded
	}
	return sharedtypes.StatusAt(d.Window, now, false)
}

func orNow(ts sharedtypes.Timestamp) sharedtypes.Timestamp {
	if ts == 0 {
		return sharedtypes.TimestampFrom(time.Now())
	}
	return ts
}
