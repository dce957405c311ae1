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
)

// HandleTriggerTick is the triggerer client. For every tournament the player
// has games in, a pool member whose turn has come asks the leaderboard for
// an aggregation round.
func (s *PlayerService) HandleTriggerTick(ctx context.Context, player sharedtypes.PlayerID, tick events.TriggerTick) (results.OperationResult[TickOutcome, error], error) {
	now := orNow(tick.Now)
	return mutate(s, ctx, "HandleTriggerTick", player, func(ctx context.Context, state *playerdb.PlayerState) (TickOutcome, bool, error) {
		var (
			out   TickOutcome
			dirty bool
		)
		for _, tournamentID := range state.Tournaments() {
			desc, changed, err := s.descriptor(ctx, state, tournamentID)
			if err != nil {
				return out, false, err
			}
			dirty = dirty || changed
			out.Checked++

			if desc == nil || effectiveStatus(desc, now) != sharedtypes.TournamentStatusActive {
				continue
			}
			position := playerdomain.PoolPosition(desc.Triggerers, player)
			if position < 0 {
				continue
			}

			trig := state.Trigger(tournamentID)
			cooldown := max(desc.CooldownUntil, trig.CooldownUntil)
			if !playerdomain.ShouldFire(now, cooldown, trig.LastSent, position, s.cfg.TriggerInterval) {
				continue
			}

			req := events.TriggerAggregationRequest{
				TournamentID: tournamentID,
				RequesterID:  player,
				Timestamp:    now,
			}
			if err := s.sender.Send(ctx, events.LeaderboardTriggerRequestedV1, tournamentID.String(), req); err != nil {
				return out, false, apperrors.State("send trigger request", err)
			}
			trig.LastSent = now
			dirty = true
			out.Sent = append(out.Sent, tournamentID)

			if s.metrics != nil {
				s.metrics.RecordTriggerSent(ctx)
			}
			s.logger.DebugContext(ctx, "Trigger requested",
				attr.PlayerID("player_id", player),
				attr.TournamentID("tournament_id", tournamentID),
				attr.Int("pool_position", position),
				attr.Timestamp("cooldown_until", cooldown),
			)
		}
		return out, dirty, nil
	})
}

// HandleTriggerAggregationResponse records the cooldown the leaderboard
// reported so the next tick does not fire inside it.
func (s *PlayerService) HandleTriggerAggregationResponse(ctx context.Context, player sharedtypes.PlayerID, resp events.TriggerAggregationResponse) (results.OperationResult[*playerdb.TriggerState, error], error) {
	return mutate(s, ctx, "HandleTriggerAggregationResponse", player, func(ctx context.Context, state *playerdb.PlayerState) (*playerdb.TriggerState, bool, error) {
		if resp.RequesterID != player {
			return nil, false, apperrors.Validation("response for %s delivered to %s", resp.RequesterID, player)
		}
		if resp.TournamentID == "" {
			return nil, false, apperrors.Validation("tournament id is required")
		}

		trig := state.Trigger(resp.TournamentID)
		if resp.CooldownUntil > trig.CooldownUntil {
			trig.CooldownUntil = resp.CooldownUntil
		}
		trig.LastAccepted = resp.Accepted

		s.logger.DebugContext(ctx, "Trigger response recorded",
			attr.PlayerID("player_id", player),
			attr.TournamentID("tournament_id", resp.TournamentID),
			attr.Bool("accepted", resp.Accepted),
			attr.String("reason", resp.Reason),
			attr.Timestamp("cooldown_until", trig.CooldownUntil),
		)
		return trig, true, nil
	})
}
