// Package leaderboardqueue schedules tournament lifecycle transitions.
//
// A scheduled transition fires a TournamentLifecycle message into the
// tournament's leaderboard inbox, so the transition itself is handled by
// the partition like any other message.
package leaderboardqueue

import (
	"context"
	"time"

	"github.com/Black-And-White-Club/shardboard/app/eventbus"
	"github.com/Black-And-White-Club/shardboard/app/events"
	sharedtypes "github.com/Black-And-White-Club/shardboard/app/shared/types"
)

// Scheduler defines the contract for lifecycle job scheduling.
type Scheduler interface {
	// ScheduleLifecycle arranges for the tournament to be opened at the
	// window start and closed at the window end. Bounds that are zero or
	// already past are skipped.
	ScheduleLifecycle(ctx context.Context, tournamentID sharedtypes.TournamentID, window sharedtypes.Window) error
	// CancelTournamentJobs drops pending jobs of a tournament.
	CancelTournamentJobs(ctx context.Context, tournamentID sharedtypes.TournamentID) error
	// Start starts processing jobs.
	Start(ctx context.Context) error
	// Stop stops processing jobs.
	Stop(ctx context.Context) error
}

// minLead is how far in the future a bound must lie to be scheduled.
const minLead = time.Second

func due(ts sharedtypes.Timestamp, now time.Time, lead time.Duration) bool {
	return ts != 0 && ts.Time().After(now.Add(lead))
}

// sendLifecycle delivers a status change to the tournament's leaderboard.
func sendLifecycle(ctx context.Context, sender eventbus.Sender, id sharedtypes.TournamentID, status sharedtypes.TournamentStatus, now time.Time) error {
	msg := events.TournamentLifecycle{
		TournamentID: id,
		Status:       status,
		Timestamp:    sharedtypes.TimestampFrom(now),
	}
	return sender.Send(ctx, events.LeaderboardLifecycleV1, id.String(), msg)
}
