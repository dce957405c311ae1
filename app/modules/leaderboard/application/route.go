package leaderboardservice

import (
	"context"

	"github.com/Black-And-White-Club/shardboard/app/events"
	"github.com/Black-And-White-Club/shardboard/app/shared/apperrors"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Route dispatches a leaderboard message to its handler. It must only be
// called from the tournament's mailbox.
func (s *LeaderboardService) Route(ctx context.Context, tournamentID sharedtypes.TournamentID, msg events.LeaderboardMessage) (*events.TriggerAggregationResponse, error) {
	var (
		out Outcome
		err error
	)
	switch m := msg.(type) {
	case events.FlushReport:
		out, err = unwrap(s.HandleFlushReport(ctx, tournamentID, m))
	case events.NewGameNotice:
		out, err = unwrap(s.HandleNewGameNotice(ctx, tournamentID, m))
	case events.ShardAnnouncement:
		out, err = unwrap(s.HandleShardAnnouncement(ctx, tournamentID, m))
	case events.TriggererCandidate:
		out, err = unwrap(s.HandleTriggererCandidate(ctx, tournamentID, m))
	case events.TriggerAggregationRequest:
		out, err = unwrap(s.HandleTriggerAggregationRequest(ctx, tournamentID, m))
	case events.TournamentLifecycle:
		out, err = unwrap(s.HandleTournamentLifecycle(ctx, tournamentID, m))
	default:
		err = apperrors.Validation("tournament %s: unsupported message %T", tournamentID, msg)
	}
	if err != nil {
		return nil, err
	}
	return out.Response, nil
}
