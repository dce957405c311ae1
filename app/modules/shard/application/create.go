package shardservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/events"
	discoveryservice "github.com/Black-And-White-Club/shardboard/app/modules/discovery/application"
	discoverydb "github.com/Black-And-White-Club/shardboard/app/modules/discovery/infrastructure/repositories"
	sharddb "github.com/Black-And-White-Club/shardboard/app/modules/shard/infrastructure/repositories"
	"github.com/Black-And-White-Club/shardboard/app/observability/attr"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	"github.com/Black-And-White-Club/shardboard/app/shared/results"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
	"github.com/uptrace/bun"
)

// CreateShard provisions a shard. Re-creating an existing shard for the same
// tournament is a no-op that re-sends the announcement.
func (s *ShardService) CreateShard(ctx context.Context, spec ShardSpec) (results.OperationResult[*sharddb.ShardState, error], error) {
	createTx := func(ctx context.Context, db bun.IDB) (results.OperationResult[*sharddb.ShardState, error], error) {
		return s.createShardLogic(ctx, db, spec)
	}

	return withTelemetry(s, ctx, "CreateShard", spec.ShardID.String(), func(ctx context.Context) (results.OperationResult[*sharddb.ShardState, error], error) {
		return runInTx(s, ctx, createTx)
	})
}

// createShardLogic stores the shard before announcing it. A new shard whose
// announcement fails is removed again.
func (s *ShardService) createShardLogic(ctx context.Context, db bun.IDB, spec ShardSpec) (results.OperationResult[*sharddb.ShardState, error], error) {
	if spec.ShardID == "" || spec.TournamentID == "" {
		return results.FailureResult[*sharddb.ShardState, error](apperrors.Validation("shard id and tournament id are required")), nil
	}
	if spec.Now == 0 {
		spec.Now = sharedtypes.TimestampFrom(time.Now())
	}

	desc, err := s.tournament(ctx, spec.TournamentID)
	if err != nil {
		return results.OperationResult[*sharddb.ShardState, error]{}, err
	}
	if desc == nil {
		return results.FailureResult[*sharddb.ShardState, error](apperrors.NotFound("tournament %s", spec.TournamentID)), nil
	}
	if desc.Status == sharedtypes.TournamentStatusEnded || sharedtypes.StatusAt(desc.Window, spec.Now, false) == sharedtypes.TournamentStatusEnded {
		return results.FailureResult[*sharddb.ShardState, error](apperrors.Validation("tournament %s has ended", spec.TournamentID)), nil
	}

	created := false
	state, err := s.repo.Get(ctx, db, spec.ShardID)
	switch {
	case errors.Is(err, sharddb.ErrNotFound):
		state = sharddb.NewShardState(spec.ShardID, spec.TournamentID, desc.Window)
		created = true
	case err != nil:
		return results.OperationResult[*sharddb.ShardState, error]{}, apperrors.State("load shard", err)
	case state.TournamentID != spec.TournamentID:
		return results.FailureResult[*sharddb.ShardState, error](apperrors.Validation(
			"shard %s already belongs to tournament %s", spec.ShardID, state.TournamentID,
		)), nil
	}

	if err := s.repo.Save(ctx, db, state); err != nil {
		return results.OperationResult[*sharddb.ShardState, error]{}, apperrors.State("save shard", fmt.Errorf("%s: %w", spec.ShardID, err))
	}

	announcement := events.ShardAnnouncement{
		TournamentID: spec.TournamentID,
		ShardID:      spec.ShardID,
		Timestamp:    spec.Now,
	}
	if err := s.sender.Send(ctx, events.LeaderboardShardAnnouncedV1, spec.TournamentID.String(), announcement); err != nil {
		if created {
			if delErr := s.repo.Delete(ctx, db, spec.ShardID); delErr != nil {
				s.logger.WarnContext(ctx, "Failed to delete unannounced shard",
					attr.ShardID("shard_id", spec.ShardID),
					attr.Error(delErr),
				)
			}
		}
		return results.OperationResult[*sharddb.ShardState, error]{}, apperrors.State("announce shard", err)
	}

	s.logger.InfoContext(ctx, "Shard provisioned",
		attr.ShardID("shard_id", spec.ShardID),
		attr.TournamentID("tournament_id", spec.TournamentID),
		attr.Bool("created", created),
		attr.ExtractCorrelationID(ctx),
	)

	return results.SuccessResult[*sharddb.ShardState, error](state), nil
}

// tournament reads the newest descriptor the tournament's leaderboard
// published. It returns nil when the tournament never published.
func (s *ShardService) tournament(ctx context.Context, id sharedtypes.TournamentID) (*events.TournamentDescriptor, error) {
	key := discoverydb.Key{Publisher: sharedtypes.PartitionID(id), Topic: events.DiscoveryTopicActiveTournaments}
	fact, _, ok, err := discoveryservice.ReadLatest[events.ActiveTournamentsFact](ctx, s.reader, key, 0)
	if err != nil {
		if apperrors.IsRetryable(err) {
			return nil, err
		}
		return nil, apperrors.State("read tournament descriptor", err)
	}
	if !ok {
		return nil, nil
	}
	d, found := fact.Find(id)
	if !found {
		return nil, nil
	}
	return &d, nil
}
